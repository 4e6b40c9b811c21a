package config

import (
	"errors"
	"fmt"
)

// Retrieval methods for the versions operation.
const (
	RetrievalBuild  = "build"
	RetrievalGitHub = "github"
)

// DefaultTestCmd runs a repository's test suite when the caller does not
// override it.
const DefaultTestCmd = "pytest --no-header -rA"

// DefaultPythonVersion is installed into validation environments whose
// repository never states a supported python.
const DefaultPythonVersion = "3.9"

// Versions describes one run of the versions operation.
type Versions struct {
	InstancesPath   string `hcl:"instances_path,optional"`
	RetrievalMethod string `hcl:"retrieval_method"`
	CondaEnv        string `hcl:"conda_env,optional"`
	NumWorkers      int    `hcl:"num_workers,optional"`
	PathConda       string `hcl:"path_conda,optional"`
	Testbed         string `hcl:"testbed,optional"`
	OutputDir       string `hcl:"output_dir,optional"`
	PathTasks       string `hcl:"path_tasks,optional"`
	Publish         string `hcl:"publish,optional"`
}

// NewVersions validates and defaults a versions configuration.
func NewVersions(cfg Versions) (*Versions, error) {
	if cfg.InstancesPath == "" && cfg.PathTasks == "" {
		return nil, errors.New("instances_path or path_tasks is a required configuration field")
	}
	if cfg.InstancesPath != "" && cfg.PathTasks != "" {
		return nil, errors.New("instances_path and path_tasks are mutually exclusive")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output_dir is a required configuration field and cannot be empty")
	}

	switch cfg.RetrievalMethod {
	case RetrievalBuild:
		if cfg.Testbed == "" || cfg.PathConda == "" {
			return nil, errors.New("build retrieval requires both testbed and path_conda")
		}
	case RetrievalGitHub:
		// Needs nothing beyond network access.
	default:
		return nil, fmt.Errorf("invalid retrieval_method %q: must be %q or %q", cfg.RetrievalMethod, RetrievalBuild, RetrievalGitHub)
	}

	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	return &cfg, nil
}

// Validate describes one run of the validate operation.
type Validate struct {
	InstancesPath string `hcl:"instances_path"`
	LogDir        string `hcl:"log_dir"`
	TempDir       string `hcl:"temp_dir"`
	Verbose       bool   `hcl:"verbose,optional"`
	PathConda     string `hcl:"path_conda,optional"`
	NumWorkers    int    `hcl:"num_workers,optional"`
	InstanceID    string `hcl:"instance_id,optional"`
	TestCmd       string `hcl:"test_cmd,optional"`
	KeepArtifacts bool   `hcl:"keep_artifacts,optional"`
	Publish       string `hcl:"publish,optional"`
}

// NewValidate validates and defaults a validate configuration.
func NewValidate(cfg Validate) (*Validate, error) {
	if cfg.InstancesPath == "" {
		return nil, errors.New("instances_path is a required configuration field and cannot be empty")
	}
	if cfg.LogDir == "" {
		return nil, errors.New("log_dir is a required configuration field and cannot be empty")
	}
	if cfg.TempDir == "" {
		return nil, errors.New("temp_dir is a required configuration field and cannot be empty")
	}

	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.TestCmd == "" {
		cfg.TestCmd = DefaultTestCmd
	}
	return &cfg, nil
}
