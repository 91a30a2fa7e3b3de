// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shelltool executes external commands on behalf of agents.
//
// Every call follows the same protocol: ask the confirmation handler, spawn
// a fresh shell (state such as cd does not persist between invocations),
// race the process against the timeout, and propagate cancellation to the
// process tree. Failures never panic; they are reported in the Result with
// a nil exit code.
package shelltool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/tolgaakin/weft/pkg/tool"
)

// Args is the tool input.
type Args struct {
	Command          string `json:"command"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	WorkingDirectory string `json:"working_directory,omitempty"`
}

// Result is the tool output. ExitCode is nil when the process did not run
// to completion (denied, timed out, failed to start).
type Result struct {
	Command       string `json:"command"`
	ExitCode      *int   `json:"exit_code"`
	Output        string `json:"output"`
	PartialOutput string `json:"partial_output,omitempty"`
}

// ConfirmationHandler decides whether a command may run. Reason is shown to
// the model when the command is denied.
type ConfirmationHandler interface {
	Confirm(ctx context.Context, command, workingDirectory string, timeout time.Duration) (allowed bool, reason string)
}

// ConfirmFunc adapts a function to ConfirmationHandler.
type ConfirmFunc func(ctx context.Context, command, workingDirectory string, timeout time.Duration) (bool, string)

func (f ConfirmFunc) Confirm(ctx context.Context, command, workingDirectory string, timeout time.Duration) (bool, string) {
	return f(ctx, command, workingDirectory, timeout)
}

// AllowAll confirms every command.
func AllowAll() ConfirmationHandler {
	return ConfirmFunc(func(context.Context, string, string, time.Duration) (bool, string) {
		return true, ""
	})
}

// DefaultDeniedPatterns block obviously destructive commands before the
// confirmation handler is even consulted.
var DefaultDeniedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+(-rf|-fr|--recursive)`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`),
	regexp.MustCompile(`wget.*\|\s*sh`),
	regexp.MustCompile(`curl.*\|\s*sh`),
	regexp.MustCompile(`--no-preserve-root`),
}

// Config configures a Tool.
type Config struct {
	// Name overrides the default tool name "execute_shell".
	Name string

	// Confirmation decides per command. Required.
	Confirmation ConfirmationHandler

	// DeniedPatterns overrides DefaultDeniedPatterns; nil keeps defaults,
	// an empty slice disables pattern checks.
	DeniedPatterns []*regexp.Regexp

	// DefaultTimeout applies when the call does not set timeout_seconds.
	DefaultTimeout time.Duration
}

// Tool runs shell commands through the confirmation/timeout protocol.
type Tool struct {
	name           string
	confirmation   ConfirmationHandler
	deniedPatterns []*regexp.Regexp
	defaultTimeout time.Duration
}

// New creates a shell tool.
func New(cfg Config) (*Tool, error) {
	if cfg.Confirmation == nil {
		return nil, fmt.Errorf("confirmation handler is required")
	}
	name := cfg.Name
	if name == "" {
		name = "execute_shell"
	}
	patterns := cfg.DeniedPatterns
	if patterns == nil {
		patterns = DefaultDeniedPatterns
	}
	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Tool{
		name:           name,
		confirmation:   cfg.Confirmation,
		deniedPatterns: patterns,
		defaultTimeout: timeout,
	}, nil
}

// Descriptor returns the tool metadata.
func (t *Tool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        t.name,
		Description: "Execute a shell command in a fresh shell. Working directory state does not persist between calls.",
		RequiredParams: []tool.Param{
			{Name: "command", Description: "The shell command to execute", Type: tool.StringType()},
		},
		OptionalParams: []tool.Param{
			{Name: "timeout_seconds", Description: "Maximum execution time in seconds", Type: tool.IntegerType()},
			{Name: "working_directory", Description: "Directory to run the command in", Type: tool.StringType()},
		},
	}
}

// Execute parses args, runs the command and returns the Result as JSON.
func (t *Tool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args Args
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", &tool.ValidationError{Tool: t.name, Reason: err.Error()}
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", &tool.ValidationError{Tool: t.name, Reason: "command is required"}
	}

	result, err := t.Run(ctx, args)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(encoded), nil
}

// Run executes one command through the full protocol. The only error it
// returns is the caller's cancellation; every other failure is reported in
// the Result.
func (t *Tool) Run(ctx context.Context, args Args) (Result, error) {
	result := Result{Command: args.Command}

	timeout := t.defaultTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}

	for _, pattern := range t.deniedPatterns {
		if pattern.MatchString(args.Command) {
			result.Output = fmt.Sprintf("denied by user: command matches denied pattern %s", pattern.String())
			return result, nil
		}
	}

	allowed, reason := t.confirmation.Confirm(ctx, args.Command, args.WorkingDirectory, timeout)
	if !allowed {
		if reason == "" {
			reason = "confirmation declined"
		}
		result.Output = fmt.Sprintf("denied by user: %s", reason)
		return result, nil
	}

	if args.WorkingDirectory != "" {
		if info, err := os.Stat(args.WorkingDirectory); err != nil || !info.IsDir() {
			result.Output = fmt.Sprintf("Failed to execute command: working directory %q does not exist", args.WorkingDirectory)
			return result, nil
		}
	}

	return t.spawn(ctx, args, timeout)
}

func (t *Tool) spawn(ctx context.Context, args Args, timeout time.Duration) (Result, error) {
	result := Result{Command: args.Command}

	// A new shell per call: cd and environment changes never persist.
	cmd := exec.Command("sh", "-c", args.Command)
	if args.WorkingDirectory != "" {
		cmd.Dir = args.WorkingDirectory
	}
	// Own process group so the whole tree can be terminated.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		result.Output = fmt.Sprintf("Failed to execute command: %v", err)
		return result, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		killProcessTree(cmd)
		<-done
		// Cancellation is re-raised, not converted to a Result.
		return result, ctx.Err()

	case <-timer.C:
		killProcessTree(cmd)
		<-done
		result.Output = "Command timed out"
		result.PartialOutput = output.String()
		return result, nil

	case err := <-done:
		result.Output = output.String()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code := exitErr.ExitCode()
				result.ExitCode = &code
				return result, nil
			}
			result.ExitCode = nil
			result.Output = fmt.Sprintf("Failed to execute command: %v", err)
			return result, nil
		}
		code := cmd.ProcessState.ExitCode()
		result.ExitCode = &code
		return result, nil
	}
}

func killProcessTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid signals the whole process group.
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}
