// Package runbook loads and executes declarative .hcl batch files: a set of
// run blocks wired together by references, plus environment configuration
// shared by every external command the runs start.
package runbook

import "github.com/hashicorp/hcl/v2"

// Operation kinds a run block may declare.
const (
	KindVersions = "versions"
	KindValidate = "validate"
)

// Run is one run block: an operation kind, a name, and a lazily decoded
// body whose expressions may reference the results of other runs.
type Run struct {
	Kind      string
	Name      string
	DependsOn []string
	Body      hcl.Body
}

// Address is the unique "kind.name" identity of a run.
func (r *Run) Address() string {
	return r.Kind + "." + r.Name
}

// Env is a runbook's merged environment configuration.
type Env struct {
	// File is an optional dotenv file loaded before Vars apply.
	File string
	// Vars are exported to every external command of every run.
	Vars map[string]string
}

// Runbook is a parsed set of run blocks plus environment configuration.
type Runbook struct {
	Env  Env
	Runs []*Run
}
