package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forsyde/idesyde-orchestrator/internal/config"
	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/exploration"
	"github.com/forsyde/idesyde-orchestrator/internal/identification"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/storage/sqlite"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// testSetup is a run directory with one design input, an empty
// identification module directory and an exploration module directory.
type testSetup struct {
	cfg      *config.Config
	emodules string
	rules    []identification.Module
	recorded []events.EventType
	mu       sync.Mutex
}

func newSetup(t *testing.T) *testSetup {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(filepath.Join(root, "run"))
	cfg.IdentificationModulesDir = filepath.Join(root, "imodules")
	cfg.ExplorationModulesDir = filepath.Join(root, "emodules")
	require.NoError(t, os.MkdirAll(cfg.ExplorationModulesDir, 0o755))

	rd, err := storage.OpenRunDir(cfg.RunDir)
	require.NoError(t, err)
	_, err = rd.WriteDesignHeader("0", "input", types.DesignHeader{
		Category:  "ForSyDeIO",
		Elements:  []string{"t1", "t2"},
		Relations: []types.LabelledArc{types.Arc("t1", "t2").WithLabel("5")},
	})
	require.NoError(t, err)

	rule := identification.NewRuleModule("workload", func(_ context.Context, design []types.DesignHeader, _ []types.DecisionHeader) ([]types.DecisionModel, error) {
		var out []types.DecisionModel
		for _, d := range design {
			if len(d.Elements) >= 2 {
				out = append(out, types.DecisionHeader{Category: "X", CoveredElements: d.Elements, CoveredRelations: d.Relations})
			}
		}
		return out, nil
	})
	// A strictly smaller header of the same category, so dominance has work to do.
	partial := identification.NewRuleModule("partial", func(_ context.Context, design []types.DesignHeader, _ []types.DecisionHeader) ([]types.DecisionModel, error) {
		return []types.DecisionModel{types.DecisionHeader{Category: "X", CoveredElements: []string{"t1"}}}, nil
	})

	return &testSetup{cfg: cfg, emodules: cfg.ExplorationModulesDir, rules: []identification.Module{rule, partial}}
}

func (s *testSetup) options() Options {
	return Options{
		Rules: s.rules,
		Recorder: events.RecorderFunc(func(_ context.Context, e *events.Event) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.recorded = append(s.recorded, e.Type)
			return nil
		}),
	}
}

// addExplorer installs an explorer that bids on anything and reports the
// same solution forever.
func (s *testSetup) addExplorer(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell modules need a POSIX shell")
	}
	fixtures, err := storage.OpenRunDir(filepath.Join(t.TempDir(), "fixtures"))
	require.NoError(t, err)
	solution, err := fixtures.WriteDecisionHeader(storage.AreaExplored, "0", "solution", types.DecisionHeader{
		Category:        "X",
		CoveredElements: []string{"t1", "t2", "core0"},
	})
	require.NoError(t, err)

	script := `#!/bin/sh
case "$1" in
  -c) echo '{"can_explore":true,"criteria":{"speed":1.0}}' ;;
  -e) while true; do echo ` + solution + `; done ;;
  *) exit 9 ;;
esac
`
	require.NoError(t, os.WriteFile(filepath.Join(s.emodules, "explorer"), []byte(script), 0o755))
}

func TestRunEndToEnd(t *testing.T) {
	setup := newSetup(t)
	setup.addExplorer(t)
	setup.cfg.Exploration.MaxSolutions = 2

	orch, err := New(setup.cfg, setup.options())
	require.NoError(t, err)

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.Identification)
	assert.Equal(t, 2, report.Identification.Steps)
	assert.Len(t, report.Identification.Headers, 2)

	require.Len(t, report.Dominant, 1)
	assert.ElementsMatch(t, []string{"t1", "t2"}, report.Dominant[0].CoveredElements)

	require.Len(t, report.Explorations, 1)
	exp := report.Explorations[0]
	assert.Equal(t, "explorer", exp.ModuleID)
	assert.Len(t, exp.Solutions, 2)
	assert.Equal(t, exploration.StopMaxSolutions, exp.StopReason)
	assert.NoError(t, exp.Err)
	assert.Equal(t, 2, report.Solutions())

	assert.Contains(t, setup.recorded, events.EventTypeRunStarted)
	assert.Contains(t, setup.recorded, events.EventTypeDominanceComputed)
	assert.Contains(t, setup.recorded, events.EventTypeExplorerSelected)
	assert.Contains(t, setup.recorded, events.EventTypeRunCompleted)

	journal, err := sqlite.Open(setup.cfg.JournalPath())
	require.NoError(t, err)
	defer journal.Close()

	runs, err := journal.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	require.NotNil(t, runs[0].Success)
	assert.True(t, *runs[0].Success)

	solutions, err := journal.Solutions(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, solutions, 2)
}

func TestIdentifyThenExplore(t *testing.T) {
	setup := newSetup(t)
	setup.cfg.Journal.Enabled = false

	orch, err := New(setup.cfg, setup.options())
	require.NoError(t, err)

	identified, err := orch.Identify(context.Background())
	require.NoError(t, err)
	assert.Len(t, identified.Dominant, 1)
	assert.Empty(t, identified.Explorations)

	// Exploration reuses the snapshot; no explorer is installed.
	explored, err := orch.Explore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, explored.Identification)
	require.Len(t, explored.Dominant, 1)
	require.Len(t, explored.Explorations, 1)
	assert.ErrorIs(t, explored.Explorations[0].Err, exploration.ErrNoExplorer)
	assert.Empty(t, explored.Explorations[0].ModuleID)

	_, err = os.Stat(setup.cfg.JournalPath())
	assert.True(t, os.IsNotExist(err), "journal disabled")
}

func TestRunCanceled(t *testing.T) {
	setup := newSetup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch, err := New(setup.cfg, setup.options())
	require.NoError(t, err)
	report, err := orch.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	journal, err := sqlite.Open(setup.cfg.JournalPath())
	require.NoError(t, err)
	defer journal.Close()
	runs, err := journal.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Success)
	assert.False(t, *runs[0].Success)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	cfg := config.Default("")
	_, err = New(cfg, Options{})
	assert.Error(t, err)
}
