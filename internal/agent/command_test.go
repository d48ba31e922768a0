package agent

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestExecuteCommand_BasicExecution verifies basic command execution
func TestExecuteCommand_BasicExecution(t *testing.T) {
	cmd := newCommand(context.Background(), "echo", "hello")

	stdout, stderr, err := executeCommand(cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(string(stdout), "hello") {
		t.Errorf("Expected stdout to contain 'hello', got: %s", stdout)
	}
	if len(stderr) > 0 {
		t.Errorf("Expected empty stderr, got: %s", stderr)
	}
}

// TestExecuteCommand_LargeOutput verifies no deadlock when output exceeds the pipe buffer
func TestExecuteCommand_LargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// ~256KB on stdout and stderr
	cmd := newCommand(ctx, "sh", "-c", "head -c 262144 /dev/zero | tr '\\0' 'a'; head -c 262144 /dev/zero | tr '\\0' 'b' >&2")

	stdout, stderr, err := executeCommand(cmd, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(stdout) != 262144 || len(stderr) != 262144 {
		t.Errorf("got %d stdout / %d stderr bytes, want 262144 each", len(stdout), len(stderr))
	}
}

// TestExecuteCommand_FailureIncludesStderr verifies stderr is folded into the error
func TestExecuteCommand_FailureIncludesStderr(t *testing.T) {
	cmd := newCommand(context.Background(), "sh", "-c", "echo broken >&2; exit 3")

	_, _, err := executeCommand(cmd, nil)
	if err == nil {
		t.Fatal("Expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("Expected error to mention stderr, got: %v", err)
	}
}

// TestProcessManager_TracksWhileRunning verifies processes are tracked then released
func TestProcessManager_TracksWhileRunning(t *testing.T) {
	pm := NewProcessManager()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		cmd := newCommand(ctx, "sleep", "0.3")
		_, _, err := executeCommand(cmd, pm)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pm.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if pm.Count() != 1 {
		t.Fatalf("Count() = %d while running, want 1", pm.Count())
	}

	if err := <-done; err != nil {
		t.Fatalf("sleep failed: %v", err)
	}
	if pm.Count() != 0 {
		t.Errorf("Count() = %d after exit, want 0", pm.Count())
	}
}

// TestProcessManager_KillAll verifies tracked process groups are terminated
func TestProcessManager_KillAll(t *testing.T) {
	pm := NewProcessManager()

	done := make(chan error, 1)
	go func() {
		cmd := newCommand(context.Background(), "sleep", "30")
		_, _, err := executeCommand(cmd, pm)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pm.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected killed process to report an error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("process survived KillAll")
	}
}

// TestCommandAgent_StdinPrompt verifies the prompt reaches the command on stdin
func TestCommandAgent_StdinPrompt(t *testing.T) {
	a, err := NewCommandAgent(CommandConfig{Command: "cat"}, nil)
	if err != nil {
		t.Fatalf("NewCommandAgent: %v", err)
	}

	res, err := a.Execute(context.Background(), Request{Title: "Write copy", Description: "landing page"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %s (%s)", res.Status, res.Error)
	}
	if !strings.Contains(res.Response, "Task: Write copy") {
		t.Errorf("Response = %q, expected echoed prompt", res.Response)
	}
	if res.Output["response"] != res.Response {
		t.Errorf("Output = %v, expected plain-text wrap", res.Output)
	}
	if res.TokensUsed <= 0 {
		t.Errorf("TokensUsed = %d, want > 0", res.TokensUsed)
	}
}

// TestCommandAgent_PlaceholderAndEnv verifies {prompt} substitution and task env vars
func TestCommandAgent_PlaceholderAndEnv(t *testing.T) {
	a, err := NewCommandAgent(CommandConfig{
		Command: "sh",
		Args:    []string{"-c", `printf '{"role":"%s","has_prompt":%s}' "$AGENCY_AGENT_ROLE" "$([ -n "$1" ] && echo true || echo false)"`, "agent", "{prompt}"},
	}, nil)
	if err != nil {
		t.Fatalf("NewCommandAgent: %v", err)
	}

	res, err := a.Execute(context.Background(), Request{TaskID: "t1", Role: "devops_engineer", Title: "Deploy"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output["role"] != "devops_engineer" {
		t.Errorf("Output = %v", res.Output)
	}
	if res.Output["has_prompt"] != true {
		t.Errorf("prompt placeholder not substituted: %v", res.Output)
	}
}

// TestCommandAgent_NonZeroExit verifies failures become failed results
func TestCommandAgent_NonZeroExit(t *testing.T) {
	a, err := NewCommandAgent(CommandConfig{Command: "sh", Args: []string{"-c", "echo nope >&2; exit 1"}}, nil)
	if err != nil {
		t.Fatalf("NewCommandAgent: %v", err)
	}

	res, err := a.Execute(context.Background(), Request{Title: "x"})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if !strings.Contains(res.Error, "nope") {
		t.Errorf("Error = %q, expected stderr", res.Error)
	}
}

// TestNewCommandAgent_RequiresCommand verifies validation
func TestNewCommandAgent_RequiresCommand(t *testing.T) {
	if _, err := NewCommandAgent(CommandConfig{}, nil); err == nil {
		t.Error("expected error for empty command")
	}
}
