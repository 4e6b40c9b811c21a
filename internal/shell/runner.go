// Package shell runs the harness's external commands: git, conda, pip and
// the test commands validation drives. Every invocation carries an
// assembled environment and is appended to an optional transcript so a run
// leaves a readable trail.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

// Command describes one external invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string      // extra KEY=VALUE entries appended to the base environment
	Timeout time.Duration // optional deadline overlay on the context
}

// String renders the command the way a person would type it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result captures what an invocation produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands with a fixed base environment and an optional
// transcript writer shared by all invocations.
type Runner struct {
	baseEnv    []string
	mu         sync.Mutex
	transcript io.Writer
}

// NewRunner returns a runner. A nil baseEnv means the parent process
// environment; a nil transcript disables transcript output.
func NewRunner(baseEnv []string, transcript io.Writer) *Runner {
	if baseEnv == nil {
		baseEnv = os.Environ()
	}
	return &Runner{baseEnv: baseEnv, transcript: transcript}
}

// Environ merges extra variables over the parent process environment, in
// sorted key order so assembled environments are reproducible.
func Environ(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Run executes the command and returns its captured output. A non-zero
// exit, a missing binary, or a cancelled context all surface as errors; the
// Result is returned alongside whenever the command actually ran.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return nil, fmt.Errorf("binary %q not found: %w", cmd.Name, err)
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	execCmd.Dir = cmd.Dir
	execCmd.Env = append(append([]string{}, r.baseEnv...), cmd.Env...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	start := time.Now()
	runErr := execCmd.Run()

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	}
	r.writeTranscript(cmd, res, runErr)

	if runErr != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s interrupted: %w", cmd, ctx.Err())
		}
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = runErr.Error()
		}
		return res, fmt.Errorf("%s failed: %s", cmd, detail)
	}
	return res, nil
}

// writeTranscript appends one invocation record. Serialized so workers
// sharing a transcript never interleave.
func (r *Runner) writeTranscript(cmd Command, res *Result, runErr error) {
	if r.transcript == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.transcript, "$ %s\n", cmd)
	if cmd.Dir != "" {
		fmt.Fprintf(r.transcript, "(in %s)\n", cmd.Dir)
	}
	writeBlock(r.transcript, res.Stdout)
	writeBlock(r.transcript, res.Stderr)
	if runErr != nil && res.ExitCode == 0 {
		fmt.Fprintf(r.transcript, "error: %v\n", runErr)
	}
	fmt.Fprintf(r.transcript, "exit %d in %s\n\n", res.ExitCode, res.Duration.Round(time.Millisecond))
}

func writeBlock(w io.Writer, s string) {
	if s == "" {
		return
	}
	io.WriteString(w, s)
	if !strings.HasSuffix(s, "\n") {
		io.WriteString(w, "\n")
	}
}
