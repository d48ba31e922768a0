package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agency/internal/planfile"
	"github.com/aristath/agency/internal/scheduler"
)

var loadForce bool

var loadCmd = &cobra.Command{
	Use:   "load <plan.yaml>",
	Short: "Store a project and its tasks from a YAML plan",
	Long: `Read a plan file describing a project and its tasks, validate the task
graph and store everything in the database. The project starts in the
planning state and can then be run with 'agency run'.

Plans with a dependency cycle or a dependency on an unknown task are
rejected unless --force is given; such tasks fail at run time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		plan, err := planfile.ReadFile(args[0])
		if err != nil {
			return err
		}
		project, tasks := plan.Build()

		if _, err := scheduler.Validate(tasks); err != nil {
			if !loadForce {
				return fmt.Errorf("plan rejected: %w", err)
			}
			warnf("storing plan despite: %v", err)
		}

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SaveProject(ctx, project); err != nil {
			return err
		}
		for _, t := range tasks {
			if err := a.store.SaveTask(ctx, t); err != nil {
				return fmt.Errorf("saving task %s: %w", t.ID, err)
			}
		}

		for _, t := range tasks {
			if _, ok := a.agents.Get(t.AgentRole); !ok {
				warnf("task %s: agent %q is not available; it will fail when run", t.ID, t.AgentRole)
			}
		}

		printStatus("✓", fmt.Sprintf("Loaded project %s (%s) with %d tasks", project.ID, project.Name, len(tasks)), color.FgGreen)
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadForce, "force", false, "Store the plan even if its task graph is invalid")
}
