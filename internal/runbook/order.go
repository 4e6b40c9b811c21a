package runbook

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/hashicorp/hcl/v2"
)

// Order returns the runs in execution order: a stable topological sort of
// the graph formed by depends_on edges and run.* references. Cycles and
// references to unknown runs are errors.
func Order(runs []*Run) ([]*Run, error) {
	byAddress := make(map[string]*Run, len(runs))
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, run := range runs {
		byAddress[run.Address()] = run
		if err := g.AddVertex(run.Address()); err != nil {
			return nil, fmt.Errorf("adding run %q: %w", run.Address(), err)
		}
	}

	for _, run := range runs {
		deps, err := dependencies(run)
		if err != nil {
			return nil, err
		}
		for dep := range deps {
			if _, known := byAddress[dep]; !known {
				return nil, fmt.Errorf("run %q references unknown run %q", run.Address(), dep)
			}
			err := g.AddEdge(dep, run.Address())
			if errors.Is(err, graph.ErrEdgeAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("ordering %q after %q: %w", run.Address(), dep, err)
			}
		}
	}

	addresses, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, fmt.Errorf("ordering runs: %w", err)
	}

	ordered := make([]*Run, 0, len(addresses))
	for _, address := range addresses {
		ordered = append(ordered, byAddress[address])
	}
	return ordered, nil
}

// dependencies collects a run's explicit depends_on entries and the
// addresses its expressions reference.
func dependencies(run *Run) (map[string]struct{}, error) {
	deps := make(map[string]struct{})
	for _, dep := range run.DependsOn {
		deps[dep] = struct{}{}
	}

	attrs, diags := run.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("run %q: %w", run.Address(), diags)
	}
	for _, attr := range attrs {
		for _, traversal := range attr.Expr.Variables() {
			if address, ok := parseRunTraversal(traversal); ok {
				deps[address] = struct{}{}
			}
		}
	}
	return deps, nil
}

// parseRunTraversal extracts the "kind.name" address out of a
// run.<kind>.<name>.<field> reference.
func parseRunTraversal(traversal hcl.Traversal) (string, bool) {
	if len(traversal) < 3 || traversal.RootName() != "run" {
		return "", false
	}
	kindAttr, kindOk := traversal[1].(hcl.TraverseAttr)
	nameAttr, nameOk := traversal[2].(hcl.TraverseAttr)
	if !kindOk || !nameOk {
		return "", false
	}
	return kindAttr.Name + "." + nameAttr.Name, true
}
