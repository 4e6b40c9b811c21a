package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportTalliesAndOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	report := NewReport()
	report.Add(InstanceResult{InstanceID: "sqlfluff__sqlfluff-2419", Outcome: OutcomeTestsFailed})
	report.Add(InstanceResult{InstanceID: "astropy__astropy-12907", Outcome: OutcomeOK})
	report.Add(InstanceResult{InstanceID: "flask__flask-5014", Outcome: OutcomeOK})

	// --- Act ---
	report.Finish()

	// --- Assert ---
	require.Len(t, report.Instances, 3)
	assert.Equal(t, "astropy__astropy-12907", report.Instances[0].InstanceID)
	assert.Equal(t, "flask__flask-5014", report.Instances[1].InstanceID)
	assert.Equal(t, "sqlfluff__sqlfluff-2419", report.Instances[2].InstanceID)

	assert.Equal(t, 2, report.Tallies[OutcomeOK])
	assert.Equal(t, 1, report.Tallies[OutcomeTestsFailed])
	assert.Equal(t, 1, report.FailedCount())
	assert.False(t, report.FinishedAt.IsZero())
}

func TestReportWriteFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	report := NewReport()
	report.Add(InstanceResult{
		InstanceID: "astropy__astropy-12907",
		Outcome:    OutcomeOK,
		Duration:   "1.2s",
		LogPath:    "logs/astropy__astropy-12907.log",
	})
	report.Finish()
	path := filepath.Join(t.TempDir(), "report.json")

	// --- Act ---
	err := report.WriteFile(path)

	// --- Assert ---
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	require.Len(t, decoded.Instances, 1)
	assert.Equal(t, "logs/astropy__astropy-12907.log", decoded.Instances[0].LogPath)
	assert.Equal(t, 1, decoded.Tallies[OutcomeOK])
}

func TestReportAddIsConcurrencySafe(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	report := NewReport()
	const workers = 50

	// --- Act ---
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Add(InstanceResult{InstanceID: fmt.Sprintf("repo__task-%d", i), Outcome: OutcomeOK})
		}()
	}
	wg.Wait()

	// --- Assert ---
	assert.Len(t, report.Instances, workers)
	assert.Equal(t, workers, report.Tallies[OutcomeOK])
	assert.Zero(t, report.FailedCount())
}
