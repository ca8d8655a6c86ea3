package exploration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
	"github.com/forsyde/idesyde-orchestrator/internal/dominance"
	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell modules need a POSIX shell")
	}
}

func writeScript(t *testing.T, dir, name, body string) discovery.Module {
	t.Helper()
	skipWithoutShell(t)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return discovery.Module{Path: path, Kind: discovery.NativeBinary}
}

func newGateway(t *testing.T, rec events.Recorder, modules ...discovery.Module) (*Gateway, *storage.RunDir) {
	t.Helper()
	rd, err := storage.OpenRunDir(filepath.Join(t.TempDir(), "run"))
	require.NoError(t, err)
	reg := discovery.NewRegistry()
	for _, m := range modules {
		reg.Add(m)
	}
	return NewGateway(rd, reg, Options{RunID: "run-1", Recorder: rec}), rd
}

var workloadHeader = types.DecisionHeader{
	Category:        "X",
	CoveredElements: []string{"t1", "t2"},
}

func TestSelectPrefersDominantBid(t *testing.T) {
	dir := t.TempDir()
	fast := writeScript(t, dir, "fast", `[ "$1" = "-c" ] || exit 9
echo '{"can_explore":true,"criteria":{"speed":3.0}}'
`)
	slow := writeScript(t, dir, "slow", `echo '{"can_explore":true,"criteria":{"speed":1.0}}'
`)
	unable := writeScript(t, dir, "unable", `echo '{"can_explore":false,"criteria":{"speed":9.0}}'
`)
	broken := writeScript(t, dir, "broken", "exit 2\n")

	var recorded []events.EventType
	rec := events.RecorderFunc(func(_ context.Context, e *events.Event) error {
		recorded = append(recorded, e.Type)
		return nil
	})
	gw, rd := newGateway(t, rec, slow, broken, fast, unable)

	sel, err := gw.Select(context.Background(), workloadHeader)
	require.NoError(t, err)
	assert.Equal(t, "fast", sel.Module.ID())
	assert.Equal(t, 3.0, sel.Bid.Criteria["speed"])
	require.Len(t, sel.Candidates, 1)

	staged, err := rd.LoadDecisionHeaders(storage.AreaStaged)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.True(t, workloadHeader.Equal(staged[0]))

	assert.Contains(t, recorded, events.EventTypeBidReceived)
	assert.Contains(t, recorded, events.EventTypeExplorerSelected)
}

func TestSelectIncomparableBidsIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	b := writeScript(t, dir, "b-explorer", `echo '{"can_explore":true,"criteria":{"speed":3.0,"memory":1.0}}'
`)
	a := writeScript(t, dir, "a-explorer", `echo '{"can_explore":true,"criteria":{"speed":1.0,"memory":3.0}}'
`)
	gw, _ := newGateway(t, nil, b, a)

	sel, err := gw.Select(context.Background(), workloadHeader)
	require.NoError(t, err)
	assert.Equal(t, "a-explorer", sel.Module.ID())
	assert.Len(t, sel.Candidates, 2)
}

func TestSelectDistinguishesModulesSharingAName(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "b", "emodules"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	unable := writeScript(t, filepath.Join(root, "a"), "tool", `echo '{"can_explore":false,"criteria":{"speed":9.0}}'
`)
	able := writeScript(t, filepath.Join(root, "b"), "tool", `echo '{"can_explore":true,"criteria":{"speed":1.0}}'
`)
	require.NoError(t, os.Symlink(unable.Path, filepath.Join(root, "emodules", "one")))
	require.NoError(t, os.Symlink(able.Path, filepath.Join(root, "emodules", "two")))

	reg := discovery.Scan(filepath.Join(root, "emodules"))
	require.Equal(t, 2, reg.Len())

	rd, err := storage.OpenRunDir(filepath.Join(root, "run"))
	require.NoError(t, err)
	gw := NewGateway(rd, reg, Options{RunID: "run-1"})

	want, err := filepath.EvalSymlinks(able.Path)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		sel, err := gw.Select(context.Background(), workloadHeader)
		require.NoError(t, err)
		assert.Equal(t, "tool", sel.Module.ID())
		assert.Equal(t, want, sel.Module.Path, "the module that cannot explore must never be chosen")
		require.Len(t, sel.Candidates, 1)
		assert.Equal(t, want, sel.Candidates[0].ModuleID)
	}
}

func TestSelectTieBreaksOnPath(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "b"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0o755))
	}
	bid := `echo '{"can_explore":true,"criteria":{"speed":2.0}}'
`
	second := writeScript(t, filepath.Join(root, "b"), "tool", bid)
	first := writeScript(t, filepath.Join(root, "a"), "tool", bid)
	gw, _ := newGateway(t, nil, second, first)

	for i := 0; i < 10; i++ {
		sel, err := gw.Select(context.Background(), workloadHeader)
		require.NoError(t, err)
		assert.Equal(t, first.Path, sel.Module.Path)
		assert.Len(t, sel.Candidates, 2)
	}
}

func TestSelectWithoutExplorer(t *testing.T) {
	dir := t.TempDir()
	unable := writeScript(t, dir, "unable", `echo '{"can_explore":false,"criteria":{}}'
`)
	gw, _ := newGateway(t, nil, unable)

	_, err := gw.Select(context.Background(), workloadHeader)
	assert.ErrorIs(t, err, ErrNoExplorer)

	empty, _ := newGateway(t, nil)
	_, err = empty.Select(context.Background(), workloadHeader)
	assert.ErrorIs(t, err, ErrNoExplorer)
}

func TestBidsSkipUndecodableAnswers(t *testing.T) {
	dir := t.TempDir()
	garbage := writeScript(t, dir, "garbage", "echo '{nope'\n")
	silent := writeScript(t, dir, "silent", "exit 0\n")
	good := writeScript(t, dir, "good", `echo '{"can_explore":true,"criteria":{"speed":1.0}}'
`)
	gw, _ := newGateway(t, nil, garbage, silent, good)

	bids, err := gw.Bids(context.Background(), workloadHeader)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, good.Path, bids[0].ModuleID)
}

func TestAvailableCriteria(t *testing.T) {
	got := AvailableCriteria([]dominance.Bid{
		{ModuleID: "a", Bid: types.ExplorationBid{CanExplore: true, Criteria: map[string]float64{"speed": 1, "cost": 2}}},
		{ModuleID: "b", Bid: types.ExplorationBid{}},
	})
	assert.Equal(t, []string{"cost", "speed"}, got["a"])
	assert.Empty(t, got["b"])
}

func TestModuleErrorMessage(t *testing.T) {
	err := &ModuleError{ModuleID: "m", ExitCode: 3, Err: assert.AnError}
	assert.True(t, strings.Contains(err.Error(), "exit code 3"))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestLimitsArgs(t *testing.T) {
	limits := Limits{MaxSolutions: 5, TotalTimeout: 90 * time.Second, TimeResolution: time.Second, MemoryResolution: 64}
	assert.Equal(t, []string{
		"-e", "/run",
		"--maximum-solutions", "5",
		"--total-timeout", "90",
		"--time-resolution", "1000",
		"--memory-resolution", "64",
	}, limits.args("/run"))

	unbounded := Limits{MaxSolutions: -1, TotalTimeout: 100 * time.Millisecond}
	args := unbounded.args("/run")
	assert.Equal(t, "0", args[3])
	assert.Equal(t, "1", args[5], "sub-second timeouts round up to one second")
}
