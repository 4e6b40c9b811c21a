package runbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/fsutil"
)

// fileRoot decodes the top-level blocks of one runbook file.
type fileRoot struct {
	Envs []*envBlock `hcl:"env,block"`
	Runs []*runBlock `hcl:"run,block"`
}

type envBlock struct {
	File string            `hcl:"file,optional"`
	Vars map[string]string `hcl:"vars,optional"`
}

type runBlock struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// dependsOnSchema splits the static depends_on attribute away from the
// lazily evaluated rest of a run body.
var dependsOnSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "depends_on"}},
}

// Load parses a runbook from a .hcl file or a directory of .hcl files
// (discovered recursively, lexical order).
func Load(ctx context.Context, path string) (*Runbook, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found at %s", path)
	}
	logger.Debug("Discovered runbook files.", "count", len(files))

	book := &Runbook{Env: Env{Vars: map[string]string{}}}
	seen := make(map[string]struct{})
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse runbook file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode runbook file %s: %w", file, diags)
		}

		for _, env := range root.Envs {
			if env.File != "" {
				book.Env.File = env.File
			}
			for k, v := range env.Vars {
				book.Env.Vars[k] = v
			}
		}

		for _, block := range root.Runs {
			run, err := newRun(block)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if _, dup := seen[run.Address()]; dup {
				return nil, fmt.Errorf("%s: duplicate run address %q", file, run.Address())
			}
			seen[run.Address()] = struct{}{}
			book.Runs = append(book.Runs, run)
		}
	}

	logger.Debug("Runbook loaded.", "runs", len(book.Runs), "envVars", len(book.Env.Vars))
	return book, nil
}

// newRun validates a run block's kind and splits off its depends_on list.
func newRun(block *runBlock) (*Run, error) {
	switch block.Kind {
	case KindVersions, KindValidate:
	default:
		return nil, fmt.Errorf("run %q: unknown operation kind %q", block.Kind+"."+block.Name, block.Kind)
	}

	content, remain, diags := block.Body.PartialContent(dependsOnSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("run %q: %w", block.Kind+"."+block.Name, diags)
	}

	run := &Run{Kind: block.Kind, Name: block.Name, Body: remain}
	if attr, ok := content.Attributes["depends_on"]; ok {
		// depends_on holds plain address strings, so it evaluates without
		// any run having finished.
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &run.DependsOn); diags.HasErrors() {
			return nil, fmt.Errorf("run %q: decoding depends_on: %w", run.Address(), diags)
		}
	}
	return run, nil
}

// findHCLFiles expands a path into the .hcl files it names.
func findHCLFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".hcl" {
			return nil, fmt.Errorf("%s is not a .hcl file", path)
		}
		return []string{path}, nil
	}

	return fsutil.FindFilesByExtension(path, ".hcl")
}
