// Package instance defines the task instance record and the dataset
// operations the harness performs on collections of them: loading,
// writing, splitting across workers, and filtering.
package instance

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Instance is a single task record: a repository, the commits that pin it,
// and whatever extra fields the dataset carries. Unknown fields survive a
// load/write round trip untouched.
type Instance struct {
	ID             string
	Repo           string
	BaseCommit     string
	EnvSetupCommit string
	Version        string

	extra map[string]json.RawMessage
}

// UnmarshalJSON decodes the known identifying fields and preserves every
// other field verbatim.
func (i *Instance) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, "decoding instance")
	}

	for key, dst := range map[string]*string{
		"instance_id":              &i.ID,
		"repo":                     &i.Repo,
		"base_commit":              &i.BaseCommit,
		"environment_setup_commit": &i.EnvSetupCommit,
		"version":                  &i.Version,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return errors.Wrapf(err, "decoding instance field %q", key)
		}
		delete(fields, key)
	}

	if len(fields) == 0 {
		fields = nil
	}
	i.extra = fields
	return nil
}

// MarshalJSON re-assembles the record. Known fields are emitted only when
// set, so a record never gains empty keys it did not have.
func (i Instance) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(i.extra)+5)
	for k, v := range i.extra {
		out[k] = v
	}

	for key, val := range map[string]string{
		"instance_id":              i.ID,
		"repo":                     i.Repo,
		"base_commit":              i.BaseCommit,
		"environment_setup_commit": i.EnvSetupCommit,
		"version":                  i.Version,
	} {
		if val == "" {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding instance field %q", key)
		}
		out[key] = raw
	}

	return json.Marshal(out)
}

// SetupCommit returns the commit validation should build against: the
// dedicated environment setup commit when the record has one, otherwise
// the base commit.
func (i Instance) SetupCommit() string {
	if i.EnvSetupCommit != "" {
		return i.EnvSetupCommit
	}
	return i.BaseCommit
}
