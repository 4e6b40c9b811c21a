package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/taskbed/internal/app"
	"github.com/vk/taskbed/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usage = `
taskbed - a versioning and validation harness for task-instance datasets.

Usage:
  taskbed <command> [options]

Commands:
  versions   Resolve the library version each task instance ran against.
  validate   Rebuild instance environments and run their test suites.
  run        Execute a runbook of versions and validate runs.

Run 'taskbed <command> -h' for the options of one command.
`

// Parse processes command-line arguments. It returns a populated
// Invocation, a boolean indicating if the program should exit cleanly, or
// an ExitError.
func Parse(args []string, output io.Writer) (*app.Invocation, bool, error) {
	slog.Debug("CLI parser started.")

	if len(args) == 0 {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	switch args[0] {
	case "-h", "--help", "help":
		fmt.Fprint(output, usage)
		return nil, true, nil
	case "versions":
		return parseVersions(args[1:], output)
	case "validate":
		return parseValidate(args[1:], output)
	case "run":
		return parseRun(args[1:], output)
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q, expected 'versions', 'validate' or 'run'", args[0])}
	}
}

// globalFlags are registered on every subcommand's flag set.
type globalFlags struct {
	logLevel   *string
	logFormat  *string
	healthPort *int
	envFile    *string
}

func registerGlobals(flagSet *flag.FlagSet) *globalFlags {
	return &globalFlags{
		logLevel:   flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'."),
		logFormat:  flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'."),
		healthPort: flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled."),
		envFile:    flagSet.String("env-file", "", "Dotenv file merged into the environment of external commands."),
	}
}

func (g *globalFlags) global() (app.Global, error) {
	logFormat := strings.ToLower(*g.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return app.Global{}, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*g.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return app.Global{}, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	return app.Global{
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		HealthcheckPort: *g.healthPort,
		EnvFile:         *g.envFile,
	}, nil
}

func parseVersions(args []string, output io.Writer) (*app.Invocation, bool, error) {
	flagSet := flag.NewFlagSet("taskbed versions", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Resolve the library version each task instance ran against.

Usage:
  taskbed versions [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	instancesPath := flagSet.String("instances_path", "", "Path to the task instance file (.json, .jsonl, .jsonl.all).")
	retrievalMethod := flagSet.String("retrieval_method", "", "How versions are retrieved: 'build' or 'github'.")
	condaEnv := flagSet.String("conda_env", "", "Conda environment whose interpreter probes versions (build retrieval).")
	numWorkers := flagSet.Int("num_workers", 1, "Number of concurrent workers.")
	pathConda := flagSet.String("path_conda", "", "Root of a conda installation.")
	testbedDir := flagSet.String("testbed", "", "Working area for repository checkouts.")
	outputDir := flagSet.String("output_dir", "", "Directory versioned datasets are written to.")
	pathTasks := flagSet.String("path_tasks", "", "Directory of instance files to process sequentially.")
	publishDest := flagSet.String("publish", "", "Upload outputs to a pre-signed URL or s3:// URI.")
	globals := registerGlobals(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	global, err := globals.global()
	if err != nil {
		return nil, false, err
	}

	cfg, err := config.NewVersions(config.Versions{
		InstancesPath:   *instancesPath,
		RetrievalMethod: *retrievalMethod,
		CondaEnv:        *condaEnv,
		NumWorkers:      *numWorkers,
		PathConda:       *pathConda,
		Testbed:         *testbedDir,
		OutputDir:       *outputDir,
		PathTasks:       *pathTasks,
		Publish:         *publishDest,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return &app.Invocation{Global: global, Versions: cfg}, false, nil
}

func parseValidate(args []string, output io.Writer) (*app.Invocation, bool, error) {
	flagSet := flag.NewFlagSet("taskbed validate", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Rebuild instance environments and run their test suites.

Usage:
  taskbed validate [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	instancesPath := flagSet.String("instances_path", "", "Path to the task instance file.")
	logDir := flagSet.String("log_dir", "", "Directory for per-instance transcripts and the report.")
	tempDir := flagSet.String("temp_dir", "", "Scratch area for clones and environments.")
	verbose := flagSet.Bool("verbose", false, "Enable debug-level logging.")
	pathConda := flagSet.String("path_conda", "", "Root of a conda installation.")
	numWorkers := flagSet.Int("num_workers", 1, "Number of concurrent workers.")
	instanceID := flagSet.String("instance_id", "", "Restrict the run to one instance.")
	testCmd := flagSet.String("test_cmd", "", "Test command run inside each environment.")
	keepArtifacts := flagSet.Bool("keep-artifacts", false, "Keep environments and scratch checkouts after the run.")
	publishDest := flagSet.String("publish", "", "Upload the report to a pre-signed URL or s3:// URI.")
	globals := registerGlobals(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	global, err := globals.global()
	if err != nil {
		return nil, false, err
	}
	if *verbose {
		global.LogLevel = "debug"
	}

	cfg, err := config.NewValidate(config.Validate{
		InstancesPath: *instancesPath,
		LogDir:        *logDir,
		TempDir:       *tempDir,
		Verbose:       *verbose,
		PathConda:     *pathConda,
		NumWorkers:    *numWorkers,
		InstanceID:    *instanceID,
		TestCmd:       *testCmd,
		KeepArtifacts: *keepArtifacts,
		Publish:       *publishDest,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return &app.Invocation{Global: global, Validate: cfg}, false, nil
}

func parseRun(args []string, output io.Writer) (*app.Invocation, bool, error) {
	flagSet := flag.NewFlagSet("taskbed run", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Execute a runbook of versions and validate runs.

Usage:
  taskbed run [options] [RUNBOOK_PATH]

Arguments:
  RUNBOOK_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	runbookFlag := flagSet.String("runbook", "", "Path to the runbook file or directory.")
	globals := registerGlobals(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := *runbookFlag
	if path == "" && flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Runbook path determined.", "path", path)

	if path == "" {
		slog.Debug("No runbook path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	global, err := globals.global()
	if err != nil {
		return nil, false, err
	}

	slog.Debug("CLI parser finished successfully.")
	return &app.Invocation{Global: global, RunbookPath: path}, false, nil
}
