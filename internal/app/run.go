package app

import (
	"context"
	"errors"
	"io"

	"github.com/vk/taskbed/internal/conda"
	"github.com/vk/taskbed/internal/config"
	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/github"
	"github.com/vk/taskbed/internal/runbook"
	"github.com/vk/taskbed/internal/shell"
	"github.com/vk/taskbed/internal/testbed"
	"github.com/vk/taskbed/internal/validate"
	"github.com/vk/taskbed/internal/versions"
)

// Run executes the operation the invocation selected.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.inv.Global.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.inv.Global.HealthcheckPort)
		defer a.closeHealthcheckServer()
	}

	switch {
	case a.inv.Versions != nil:
		a.logger.Info("🚀 Starting versions run...")
		if _, err := a.RunVersions(ctx, a.inv.Versions); err != nil {
			return err
		}
		a.logger.Info("🏁 Versions run finished.")
		return nil

	case a.inv.Validate != nil:
		a.logger.Info("🚀 Starting validation run...")
		report, err := a.RunValidate(ctx, a.inv.Validate)
		if err != nil {
			return err
		}
		a.logger.Info("🏁 Validation run finished.", "report", report)
		return nil

	case a.inv.RunbookPath != "":
		return a.runRunbook(ctx)

	default:
		return errors.New("no operation selected")
	}
}

// runRunbook loads the runbook, layers its env configuration over the
// global one, and executes the runs in dependency order.
func (a *App) runRunbook(ctx context.Context) error {
	book, err := runbook.Load(ctx, a.inv.RunbookPath)
	if err != nil {
		return err
	}

	baseEnv, err := baseEnviron([]string{a.inv.Global.EnvFile, book.Env.File}, book.Env.Vars)
	if err != nil {
		return err
	}
	a.baseEnv = baseEnv

	a.logger.Info("🚀 Starting runbook execution...", "runs", len(book.Runs))
	if err := runbook.Execute(ctx, book, a); err != nil {
		return err
	}
	a.logger.Info("🏁 Runbook execution finished.")
	return nil
}

// RunVersions performs one versions operation and returns the artifact
// other runs may reference.
func (a *App) RunVersions(ctx context.Context, cfg *config.Versions) (string, error) {
	outputs, err := versions.Run(ctx, cfg, a.newResolver(cfg))
	if err != nil {
		return "", err
	}

	if cfg.Publish != "" {
		for _, output := range outputs {
			if err := a.uploader.Upload(ctx, output, cfg.Publish); err != nil {
				return "", err
			}
		}
	}

	if len(outputs) == 1 {
		return outputs[0], nil
	}
	// A batch run has no single artifact; expose the directory instead.
	return cfg.OutputDir, nil
}

// RunValidate performs one validate operation and returns the report path.
func (a *App) RunValidate(ctx context.Context, cfg *config.Validate) (string, error) {
	if cfg.Verbose {
		ctx = ctxlog.WithLogger(ctx, newLogger("debug", a.inv.Global.LogFormat, a.outW))
	}

	report, err := validate.Run(ctx, cfg, &validate.Harness{BaseEnv: a.baseEnv})
	if err != nil {
		return report, err
	}

	if cfg.Publish != "" {
		if err := a.uploader.Upload(ctx, report, cfg.Publish); err != nil {
			return "", err
		}
	}
	return report, nil
}

// newResolver builds the version resolver the retrieval method asks for.
func (a *App) newResolver(cfg *config.Versions) versions.Resolver {
	if cfg.RetrievalMethod == config.RetrievalGitHub {
		return &versions.GitHubResolver{Fetcher: github.NewFetcher()}
	}

	runner := shell.NewRunner(a.baseEnv, io.Discard)
	resolver := &versions.BuildResolver{
		Workspace: testbed.NewWorkspace(runner, cfg.Testbed),
		CondaEnv:  cfg.CondaEnv,
	}
	if cfg.CondaEnv != "" {
		resolver.Conda = conda.NewManager(runner, cfg.PathConda)
	}
	return resolver
}
