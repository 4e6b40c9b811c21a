// Package validate rebuilds each task instance's environment from scratch
// and runs its test suite, reporting per-instance outcomes.
package validate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vk/taskbed/internal/conda"
	"github.com/vk/taskbed/internal/config"
	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/extract"
	"github.com/vk/taskbed/internal/instance"
	"github.com/vk/taskbed/internal/pool"
	"github.com/vk/taskbed/internal/shell"
	"github.com/vk/taskbed/internal/testbed"
)

// Runner executes external commands. *shell.Runner satisfies it; tests
// substitute scripted fakes.
type Runner interface {
	Run(ctx context.Context, cmd shell.Command) (*shell.Result, error)
}

// Harness wires the process-level collaborators a validation run needs.
type Harness struct {
	// BaseEnv is the environment every external command inherits.
	BaseEnv []string
	// NewRunner overrides command execution; transcript receives every
	// command the instance runs. Nil uses shell.NewRunner over BaseEnv.
	NewRunner func(transcript io.Writer) Runner
}

func (h *Harness) runner(transcript io.Writer) Runner {
	if h.NewRunner != nil {
		return h.NewRunner(transcript)
	}
	return shell.NewRunner(h.BaseEnv, transcript)
}

// installKinds is the order requirement manifests install in.
// environment.yml is absent: it is consumed at env-creation time. tox.ini
// is absent too: tox runs suites, it does not install dependencies.
var installKinds = []string{
	"requirements.txt",
	"conda-requirements.txt",
	"requirements.in",
	"setup.py",
	"pyproject.toml",
	"Pipfile",
}

var unsafeNameRx = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Sanitize makes an instance id safe to use as an env name or file name.
func Sanitize(id string) string {
	return unsafeNameRx.ReplaceAllString(id, "-")
}

// Run validates every instance in the dataset and returns the report path.
// Instance failures become report outcomes; the returned error is non-nil
// when any instance missed OutcomeOK or the run itself broke down.
func Run(ctx context.Context, cfg *config.Validate, harness *Harness) (string, error) {
	logger := ctxlog.FromContext(ctx)

	instances, err := instance.Load(cfg.InstancesPath)
	if err != nil {
		return "", err
	}
	if cfg.InstanceID != "" {
		instances = instance.FilterID(instances, cfg.InstanceID)
		if len(instances) == 0 {
			return "", fmt.Errorf("instance %q not found in %s", cfg.InstanceID, cfg.InstancesPath)
		}
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("no instances found in %s", cfg.InstancesPath)
	}

	for _, dir := range []string{cfg.LogDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	logger.Info("Validating instances.", "dataset", cfg.InstancesPath, "count", len(instances), "workers", cfg.NumWorkers)

	report := NewReport()
	groups := instance.Split(instances, cfg.NumWorkers)
	poolErr := pool.Run(ctx, groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		result, err := validateInstance(ctx, cfg, harness, inst)
		if err != nil {
			return err
		}

		instLogger := ctxlog.FromContext(ctx).With("workerID", workerID, "instanceID", inst.ID)
		if result.Outcome == OutcomeOK {
			instLogger.Info("Instance validated.", "duration", result.Duration)
		} else {
			instLogger.Warn("Instance failed validation.", "outcome", result.Outcome, "log", result.LogPath)
		}
		report.Add(result)
		return nil
	})

	report.Finish()
	reportPath := filepath.Join(cfg.LogDir, "report.json")
	if err := report.WriteFile(reportPath); err != nil {
		return "", err
	}
	logger.Info("Validation report written.", "path", reportPath, "tallies", report.Tallies)

	if poolErr != nil {
		return reportPath, poolErr
	}
	if failed := report.FailedCount(); failed > 0 {
		return reportPath, fmt.Errorf("%d of %d instances failed validation", failed, len(instances))
	}
	return reportPath, nil
}

// validateInstance drives one instance through checkout, env build, install
// and tests, with every command transcribed to the instance's log file.
func validateInstance(ctx context.Context, cfg *config.Validate, harness *Harness, inst *instance.Instance) (InstanceResult, error) {
	started := time.Now()
	logger := ctxlog.FromContext(ctx).With("instanceID", inst.ID)

	name := Sanitize(inst.ID)
	logPath := filepath.Join(cfg.LogDir, name+".log")
	transcript, err := os.Create(logPath)
	if err != nil {
		return InstanceResult{}, fmt.Errorf("creating transcript %s: %w", logPath, err)
	}
	defer transcript.Close()

	run := harness.runner(transcript)
	manager := conda.NewManager(run, cfg.PathConda)
	scratch := filepath.Join(cfg.TempDir, name)
	workspace := testbed.NewWorkspace(run, scratch)

	outcome, detail := runStages(ctx, cfg, manager, workspace, name, inst)

	if cfg.KeepArtifacts {
		logger.Info("Keeping artifacts.", "env", name, "scratch", scratch)
	} else {
		teardown(ctx, manager, name, scratch)
	}

	return InstanceResult{
		InstanceID: inst.ID,
		Outcome:    outcome,
		Detail:     detail,
		Duration:   time.Since(started).Round(time.Millisecond).String(),
		LogPath:    logPath,
	}, nil
}

func runStages(ctx context.Context, cfg *config.Validate, manager *conda.Manager, workspace *testbed.Workspace, envName string, inst *instance.Instance) (string, string) {
	dir, err := workspace.Checkout(ctx, inst.Repo, inst.SetupCommit())
	if err != nil {
		return OutcomeCheckoutFailed, err.Error()
	}

	files, err := extract.FindSetupFiles(dir)
	if err != nil {
		return OutcomeEnvFailed, err.Error()
	}

	if err := createEnv(ctx, manager, envName, dir, files); err != nil {
		return OutcomeEnvFailed, err.Error()
	}
	if err := installRequirements(ctx, manager, envName, dir, files); err != nil {
		return OutcomeInstallFailed, err.Error()
	}

	if _, err := manager.RunIn(ctx, envName, dir, strings.Fields(cfg.TestCmd)...); err != nil {
		return OutcomeTestsFailed, err.Error()
	}
	return OutcomeOK, ""
}

// createEnv builds the instance's environment, from environment.yml when
// the tree ships one, otherwise from the python version the tree claims to
// support.
func createEnv(ctx context.Context, manager *conda.Manager, name, dir string, files map[string][]string) error {
	if ymls := files["environment.yml"]; len(ymls) > 0 {
		return manager.CreateEnvFromFile(ctx, name, filepath.Join(dir, ymls[0]))
	}

	python, err := extract.PythonVersion(dir)
	if err != nil || python == "" {
		python = config.DefaultPythonVersion
	}
	return manager.CreateEnv(ctx, name, python)
}

func installRequirements(ctx context.Context, manager *conda.Manager, name, dir string, files map[string][]string) error {
	hasSetupPy := len(files["setup.py"]) > 0
	for _, kind := range installKinds {
		if kind == "pyproject.toml" && hasSetupPy {
			// The editable pip install already covers the package.
			continue
		}
		for _, rel := range files[kind] {
			cmds, ok := extract.InstallCommands(kind, rel)
			if !ok {
				continue
			}
			for _, argv := range cmds {
				if _, err := manager.RunIn(ctx, name, dir, argv...); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// teardown removes the instance's env and scratch dir. It keeps working
// after cancellation so an interrupted run still cleans up.
func teardown(ctx context.Context, manager *conda.Manager, name, scratch string) {
	logger := ctxlog.FromContext(ctx)
	cleanupCtx := context.WithoutCancel(ctx)

	if err := manager.RemoveEnv(cleanupCtx, name); err != nil {
		logger.Warn("Env teardown failed.", "env", name, "error", err)
	}
	if err := os.RemoveAll(scratch); err != nil {
		logger.Warn("Scratch teardown failed.", "dir", scratch, "error", err)
	}
}
