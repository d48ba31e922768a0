package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// CommandConfig configures a CommandAgent.
type CommandConfig struct {
	// Command is the executable to run; Args are passed verbatim except that
	// the literal "{prompt}" is replaced by the rendered task prompt.
	Command      string
	Args         []string
	WorkDir      string
	SystemPrompt string
	Env          []string
}

// CommandAgent is a Capability that runs one subprocess per task.
// The prompt is written to stdin unless an argument carries the {prompt} placeholder.
// Stdout is the response.
type CommandAgent struct {
	command      string
	args         []string
	workDir      string
	systemPrompt string
	env          []string
	procMgr      *ProcessManager
}

// NewCommandAgent creates a subprocess-backed agent.
// The ProcessManager is optional; if nil, subprocesses won't be tracked.
func NewCommandAgent(cfg CommandConfig, procMgr *ProcessManager) (*CommandAgent, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command agent requires a command")
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	return &CommandAgent{
		command:      cfg.Command,
		args:         cfg.Args,
		workDir:      workDir,
		systemPrompt: cfg.SystemPrompt,
		env:          cfg.Env,
		procMgr:      procMgr,
	}, nil
}

// Execute runs the configured command for req.
// A non-zero exit is reported as a failed result, not an error.
func (a *CommandAgent) Execute(ctx context.Context, req Request) (Result, error) {
	prompt := BuildPrompt(req)
	args, viaArgs := a.buildArgs(prompt)

	cmd := newCommand(ctx, a.command, args...)
	cmd.Dir = a.workDir
	cmd.Env = append(os.Environ(), a.env...)
	cmd.Env = append(cmd.Env,
		"AGENCY_TASK_ID="+req.TaskID,
		"AGENCY_PROJECT_ID="+req.ProjectID,
		"AGENCY_AGENT_ROLE="+req.Role,
		"AGENCY_SYSTEM_PROMPT="+a.systemPrompt,
	)
	if !viaArgs {
		cmd.Stdin = strings.NewReader(prompt)
	}

	start := time.Now()
	stdout, _, err := executeCommand(cmd, a.procMgr)
	duration := time.Since(start)

	if ctx.Err() != nil {
		return Result{Status: StatusFailed, Prompt: prompt, Error: ctx.Err().Error(), Duration: duration}, ctx.Err()
	}

	if err != nil {
		return Result{
			Status:   StatusFailed,
			Prompt:   prompt,
			Response: string(stdout),
			Error:    err.Error(),
			Duration: duration,
		}, nil
	}

	response := strings.TrimSpace(string(stdout))

	return Result{
		Status:     StatusSuccess,
		Output:     ParseOutput(response),
		Response:   response,
		Prompt:     prompt,
		TokensUsed: EstimateTokens(prompt) + EstimateTokens(response),
		Duration:   duration,
		Metadata: map[string]any{
			"command":    a.command,
			"task_title": req.Title,
		},
	}, nil
}

// buildArgs substitutes the prompt placeholder. The bool reports whether it was used.
func (a *CommandAgent) buildArgs(prompt string) ([]string, bool) {
	args := make([]string, len(a.args))
	used := false
	for i, arg := range a.args {
		if strings.Contains(arg, "{prompt}") {
			arg = strings.ReplaceAll(arg, "{prompt}", prompt)
			used = true
		}
		args[i] = arg
	}
	return args, used
}
