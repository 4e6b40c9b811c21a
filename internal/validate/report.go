package validate

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Outcomes an instance can reach. Every instance lands on exactly one.
const (
	OutcomeOK             = "ok"
	OutcomeCheckoutFailed = "checkout-failed"
	OutcomeEnvFailed      = "env-failed"
	OutcomeInstallFailed  = "install-failed"
	OutcomeTestsFailed    = "tests-failed"
)

// InstanceResult records how far one instance got and where its transcript
// lives.
type InstanceResult struct {
	InstanceID string `json:"instance_id"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	Duration   string `json:"duration"`
	LogPath    string `json:"log_path"`
}

// Report aggregates a whole validation run. Add is safe to call from
// concurrent workers.
type Report struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Instances  []InstanceResult `json:"instances"`
	Tallies    map[string]int   `json:"tallies"`

	mu sync.Mutex
}

// NewReport starts a report with a fresh run id.
func NewReport() *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Tallies:   map[string]int{},
	}
}

// Add records one instance outcome.
func (r *Report) Add(result InstanceResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Instances = append(r.Instances, result)
	r.Tallies[result.Outcome]++
}

// Finish stamps the report and orders instances for stable output.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	sort.Slice(r.Instances, func(i, j int) bool {
		return r.Instances[i].InstanceID < r.Instances[j].InstanceID
	})
}

// FailedCount is the number of instances that did not reach OutcomeOK.
func (r *Report) FailedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Instances) - r.Tallies[OutcomeOK]
}

// WriteFile persists the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return errors.Wrapf(err, "writing report to %s", path)
	}
	return nil
}
