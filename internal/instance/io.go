package instance

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// isJSONL reports whether the path names a line-delimited dataset. Datasets
// arrive either as a JSON array (.json) or as one JSON object per line
// (.jsonl, and the .jsonl.all variant some collections ship).
func isJSONL(path string) bool {
	return strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".jsonl.all")
}

// Load reads a dataset file. Blank lines in line-delimited files are
// skipped; an empty file yields an empty slice, not an error.
func Load(path string) ([]Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading instance file")
	}

	if isJSONL(path) {
		var out []Instance
		for lineNo, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var inst Instance
			if err := json.Unmarshal(line, &inst); err != nil {
				return nil, errors.Wrapf(err, "parsing %s line %d", path, lineNo+1)
			}
			out = append(out, inst)
		}
		return out, nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out []Instance
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return out, nil
}

// Write stores a dataset, choosing JSON array or line-delimited form from
// the file extension.
func Write(path string, instances []Instance) error {
	var buf bytes.Buffer

	if isJSONL(path) {
		for _, inst := range instances {
			line, err := json.Marshal(inst)
			if err != nil {
				return errors.Wrap(err, "encoding instance")
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
	} else {
		data, err := json.MarshalIndent(instances, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encoding instances")
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0644), "writing %s", path)
}
