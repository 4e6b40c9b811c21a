// Package versions resolves the library version each task instance ran
// against and writes versioned copies of the dataset.
package versions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/taskbed/internal/config"
	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/instance"
	"github.com/vk/taskbed/internal/pool"
)

// Resolver resolves the version of a single instance. An empty version with
// a nil error means the instance could not be resolved; that is an expected
// outcome, not a failure.
type Resolver interface {
	Resolve(ctx context.Context, inst *instance.Instance) (string, error)
}

// Run executes the versions operation and returns the datasets it wrote.
// In batch mode every instance file is processed to completion before the
// next starts; per-file failures are joined, not short-circuited.
func Run(ctx context.Context, cfg *config.Versions, resolver Resolver) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	inputs, err := inputFiles(cfg)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		logger.Warn("No instance files found, nothing to resolve.", "path", cfg.PathTasks)
		return nil, nil
	}

	var (
		outputs []string
		errs    []error
	)
	for _, input := range inputs {
		output, err := runFile(ctx, cfg, resolver, input)
		if err != nil {
			logger.Error("Instance file failed.", "path", input, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", input, err))
			continue
		}
		outputs = append(outputs, output)
	}
	return outputs, errors.Join(errs...)
}

// inputFiles expands the configuration into the dataset files to process.
func inputFiles(cfg *config.Versions) ([]string, error) {
	if cfg.InstancesPath != "" {
		return []string{cfg.InstancesPath}, nil
	}

	entries, err := os.ReadDir(cfg.PathTasks)
	if err != nil {
		return nil, fmt.Errorf("listing instance files in %s: %w", cfg.PathTasks, err)
	}

	var inputs []string
	for _, entry := range entries {
		if entry.IsDir() || !isDatasetFile(entry.Name()) {
			continue
		}
		inputs = append(inputs, filepath.Join(cfg.PathTasks, entry.Name()))
	}
	return inputs, nil
}

func isDatasetFile(name string) bool {
	return strings.HasSuffix(name, ".json") ||
		strings.HasSuffix(name, ".jsonl") ||
		strings.HasSuffix(name, ".jsonl.all")
}

// runFile resolves one dataset and writes the versioned copy.
func runFile(ctx context.Context, cfg *config.Versions, resolver Resolver, input string) (string, error) {
	logger := ctxlog.FromContext(ctx).With("dataset", input)
	logger.Info("Resolving versions.", "retrievalMethod", cfg.RetrievalMethod, "workers", cfg.NumWorkers)

	instances, err := instance.Load(input)
	if err != nil {
		return "", err
	}

	var (
		mu         sync.Mutex
		unresolved int
	)
	groups := instance.Split(instances, cfg.NumWorkers)
	err = pool.Run(ctx, groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		instLogger := logger.With("workerID", workerID, "instanceID", inst.ID)

		version, err := resolver.Resolve(ctx, inst)
		if err != nil {
			instLogger.Warn("Version resolution failed.", "error", err)
		} else if version == "" {
			instLogger.Warn("No version declaration found.")
		}
		if version == "" {
			mu.Lock()
			unresolved++
			mu.Unlock()
			return nil
		}

		instLogger.Debug("Version resolved.", "version", version)
		inst.Version = version
		return nil
	})
	if err != nil {
		return "", err
	}

	// Split hands out subslices of the loaded dataset, so the workers'
	// writes are already in place and in input order.
	resolved := make([]instance.Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.Version != "" {
			resolved = append(resolved, inst)
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	output := filepath.Join(cfg.OutputDir, stem(input)+"_versions.json")
	if err := instance.Write(output, resolved); err != nil {
		return "", err
	}

	logger.Info("Versioned dataset written.", "output", output, "resolved", len(resolved), "unresolved", unresolved)
	return output, nil
}

// stem is the input's base name up to the first dot, so chained extensions
// like .jsonl.all collapse away.
func stem(path string) string {
	return strings.SplitN(filepath.Base(path), ".", 2)[0]
}
