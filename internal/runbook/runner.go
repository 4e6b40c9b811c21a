package runbook

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/taskbed/internal/config"
	"github.com/vk/taskbed/internal/ctxlog"
)

// Executor performs the operations run blocks declare.
type Executor interface {
	// RunVersions returns the dataset file the run wrote.
	RunVersions(ctx context.Context, cfg *config.Versions) (string, error)
	// RunValidate returns the report file the run wrote.
	RunValidate(ctx context.Context, cfg *config.Validate) (string, error)
}

// Execute runs every run block in dependency order, one at a time,
// resolving references between blocks as results land. The first failing
// run stops the batch: its dependents cannot evaluate anyway.
func Execute(ctx context.Context, book *Runbook, exec Executor) error {
	logger := ctxlog.FromContext(ctx)

	ordered, err := Order(book.Runs)
	if err != nil {
		return err
	}

	results := map[string]map[string]cty.Value{}
	for _, run := range ordered {
		logger.Info("Run starting.", "run", run.Address())

		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{"run": runsValue(results)},
		}

		var artifact, field string
		switch run.Kind {
		case KindVersions:
			var cfg config.Versions
			if diags := gohcl.DecodeBody(run.Body, evalCtx, &cfg); diags.HasErrors() {
				return fmt.Errorf("decoding run %q: %w", run.Address(), diags)
			}
			validated, err := config.NewVersions(cfg)
			if err != nil {
				return fmt.Errorf("run %q: %w", run.Address(), err)
			}
			artifact, err = exec.RunVersions(ctx, validated)
			if err != nil {
				return fmt.Errorf("run %q: %w", run.Address(), err)
			}
			field = "output_file"
		case KindValidate:
			var cfg config.Validate
			if diags := gohcl.DecodeBody(run.Body, evalCtx, &cfg); diags.HasErrors() {
				return fmt.Errorf("decoding run %q: %w", run.Address(), diags)
			}
			validated, err := config.NewValidate(cfg)
			if err != nil {
				return fmt.Errorf("run %q: %w", run.Address(), err)
			}
			artifact, err = exec.RunValidate(ctx, validated)
			if err != nil {
				return fmt.Errorf("run %q: %w", run.Address(), err)
			}
			field = "report_file"
		default:
			return fmt.Errorf("run %q: unknown operation kind %q", run.Address(), run.Kind)
		}

		if results[run.Kind] == nil {
			results[run.Kind] = map[string]cty.Value{}
		}
		results[run.Kind][run.Name] = cty.ObjectVal(map[string]cty.Value{
			field: cty.StringVal(artifact),
		})
		logger.Info("Run finished.", "run", run.Address(), field, artifact)
	}
	return nil
}

// runsValue exposes finished runs to HCL as run.<kind>.<name>.<field>.
func runsValue(results map[string]map[string]cty.Value) cty.Value {
	if len(results) == 0 {
		return cty.EmptyObjectVal
	}
	kinds := make(map[string]cty.Value, len(results))
	for kind, names := range results {
		kinds[kind] = cty.ObjectVal(names)
	}
	return cty.ObjectVal(kinds)
}
