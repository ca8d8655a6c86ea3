package exploration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// writeSolution stores a solution header in explored/ and returns its path
// relative to the run directory.
func writeSolution(t *testing.T, rd *storage.RunDir, suffix string) string {
	t.Helper()
	path, err := rd.WriteDecisionHeader(storage.AreaExplored, "0", suffix, types.DecisionHeader{
		Category:        "X",
		CoveredElements: []string{"t1", "t2", suffix},
	})
	require.NoError(t, err)
	rel, err := filepath.Rel(rd.Root(), path)
	require.NoError(t, err)
	return rel
}

func TestExploreDrainsFiniteStream(t *testing.T) {
	skipWithoutShell(t)
	var recorded []events.EventType
	rec := events.RecorderFunc(func(_ context.Context, e *events.Event) error {
		recorded = append(recorded, e.Type)
		return nil
	})
	gw, rd := newGateway(t, rec)
	first := writeSolution(t, rd, "a")
	second := writeSolution(t, rd, "b")

	argsFile := filepath.Join(t.TempDir(), "args")
	m := writeScript(t, t.TempDir(), "explorer", `echo "$@" > `+argsFile+`
echo `+first+`
echo not-a-header.msgpack
echo `+second+`
`)

	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{TimeResolution: time.Hour})
	require.NoError(t, err)

	var got []types.DecisionHeader
	for h := range stream.All() {
		got = append(got, h)
	}
	require.Len(t, got, 2, "unreadable solutions are dropped")
	assert.Contains(t, got[0].CoveredElements, "a")
	assert.Contains(t, got[1].CoveredElements, "b")
	assert.Equal(t, StopExhausted, stream.Reason())
	assert.NoError(t, stream.Err())
	assert.Equal(t, 2, stream.Count())

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-e "+rd.Root()+" --maximum-solutions 0 --total-timeout 0 --time-resolution 3600000 --memory-resolution 0",
		strings.TrimSpace(string(args)))

	assert.Contains(t, recorded, events.EventTypeExplorationStarted)
	assert.Contains(t, recorded, events.EventTypeSolutionFound)
	assert.Contains(t, recorded, events.EventTypeExplorationCompleted)
	progress := 0
	for _, typ := range recorded {
		if typ == events.EventTypeExplorationProgress {
			progress++
		}
	}
	assert.Equal(t, 1, progress, "progress is sampled at the time resolution")
}

func TestExploreStopsAtMaxSolutions(t *testing.T) {
	gw, rd := newGateway(t, nil)
	sol := writeSolution(t, rd, "a")
	m := writeScript(t, t.TempDir(), "endless", `while true; do echo `+sol+`; done
`)

	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{MaxSolutions: 3})
	require.NoError(t, err)

	count := 0
	for stream.Next() {
		count++
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, StopMaxSolutions, stream.Reason())
	assert.NoError(t, stream.Err())
	require.NotNil(t, stream.cmd.ProcessState, "the module process has been reaped")
}

func TestExploreTimeout(t *testing.T) {
	gw, _ := newGateway(t, nil)
	m := writeScript(t, t.TempDir(), "sleeper", "exec sleep 30\n")

	start := time.Now()
	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{TotalTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	assert.False(t, stream.Next())
	assert.Equal(t, StopTimeout, stream.Reason())
	assert.NoError(t, stream.Err())
	assert.Less(t, time.Since(start), 10*time.Second)
	require.NotNil(t, stream.cmd.ProcessState)
}

func TestExploreCloseEarly(t *testing.T) {
	gw, rd := newGateway(t, nil)
	sol := writeSolution(t, rd, "a")
	m := writeScript(t, t.TempDir(), "endless", `while true; do echo `+sol+`; done
`)

	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{})
	require.NoError(t, err)
	require.True(t, stream.Next())
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	assert.Equal(t, StopClosed, stream.Reason())
	assert.NotNil(t, stream.cmd.ProcessState)
	assert.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), ErrStreamClosed)
}

func TestExploreStopConsumingAll(t *testing.T) {
	gw, rd := newGateway(t, nil)
	sol := writeSolution(t, rd, "a")
	m := writeScript(t, t.TempDir(), "endless", `while true; do echo `+sol+`; done
`)

	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{})
	require.NoError(t, err)
	for range stream.All() {
		break
	}
	assert.Equal(t, StopClosed, stream.Reason())
	assert.NotNil(t, stream.cmd.ProcessState)
}

func TestExploreParentCanceled(t *testing.T) {
	gw, _ := newGateway(t, nil)
	m := writeScript(t, t.TempDir(), "sleeper", "exec sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := gw.Explore(ctx, m, workloadHeader, Limits{})
	require.NoError(t, err)

	time.AfterFunc(100*time.Millisecond, cancel)
	assert.False(t, stream.Next())
	assert.Equal(t, StopCanceled, stream.Reason())
	assert.ErrorIs(t, stream.Err(), context.Canceled)
}

func TestExploreModuleFailure(t *testing.T) {
	gw, rd := newGateway(t, nil)
	sol := writeSolution(t, rd, "a")
	m := writeScript(t, t.TempDir(), "crashing", `echo `+sol+`
echo "solver crashed" >&2
exit 4
`)

	stream, err := gw.Explore(context.Background(), m, workloadHeader, Limits{})
	require.NoError(t, err)
	assert.True(t, stream.Next())
	assert.False(t, stream.Next())

	var modErr *ModuleError
	require.ErrorAs(t, stream.Err(), &modErr)
	assert.Equal(t, 4, modErr.ExitCode)
	assert.Contains(t, modErr.Stderr, "solver crashed")
	assert.Equal(t, StopExhausted, stream.Reason())
}
