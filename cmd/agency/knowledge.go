package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aristath/agency/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge <project-id>",
	Short: "Show the knowledge archived for a project and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.store.ListKnowledge(ctx, knowledge.SourceProject, args[0])
		if err != nil {
			return err
		}
		tasks, err := a.store.ListProjectTasks(ctx, args[0])
		if err != nil {
			return err
		}
		for _, t := range tasks {
			taskEntries, err := a.store.ListKnowledge(ctx, knowledge.SourceTask, t.ID)
			if err != nil {
				return err
			}
			entries = append(entries, taskEntries...)
		}

		if queryJSON {
			return printJSON(os.Stdout, entries)
		}
		if len(entries) == 0 {
			fmt.Println("No knowledge archived.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s\n", color.New(color.Bold).Sprint(e.Title), color.HiBlackString(strings.Join(e.Tags, ", ")))
			fmt.Println(indent(e.Content, "  "))
			fmt.Println()
		}
		return nil
	},
}

func init() {
	knowledgeCmd.Flags().BoolVar(&queryJSON, "json", false, "Print JSON")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
