// Package exploration talks to exploration modules: it asks each one for a
// bid on a decision model, picks the dominant bidder, and drives the chosen
// module's bounded search as a lazy stream of solutions.
//
// The decision model under consideration is always staged in
// <run_dir>/staged/ before a module is called. Modules are invoked as
//
//	<module> -c <run_dir>
//	<module> -e <run_dir> --maximum-solutions N --total-timeout S --time-resolution MS --memory-resolution MB
//
// (prefixed by "java -jar" for JVM archives) and report solutions as header
// paths under <run_dir>/explored/, one per stdout line.
package exploration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
	"github.com/forsyde/idesyde-orchestrator/internal/dominance"
	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// ErrNoExplorer is returned by Select when no module can explore a decision model.
var ErrNoExplorer = errors.New("no exploration module can explore the decision model")

// Options configures a Gateway.
type Options struct {
	// Java launches JVM archive modules (discovery.DefaultJava when empty).
	Java string
	// RunID tags emitted events.
	RunID string
	// Recorder receives bid and exploration events. May be nil.
	Recorder events.Recorder
}

// Gateway mediates between the orchestrator and the exploration modules of
// one run directory.
type Gateway struct {
	runDir  *storage.RunDir
	modules *discovery.Registry
	opts    Options
}

// NewGateway creates a gateway over the modules of reg.
func NewGateway(runDir *storage.RunDir, reg *discovery.Registry, opts Options) *Gateway {
	if opts.Java == "" {
		opts.Java = discovery.DefaultJava
	}
	if reg == nil {
		reg = discovery.NewRegistry()
	}
	return &Gateway{runDir: runDir, modules: reg, opts: opts}
}

// Modules returns the exploration modules known to the gateway.
func (g *Gateway) Modules() []discovery.Module {
	return g.modules.Modules()
}

// Bids stages h and asks every module for its bid, in registry order. Each bid
// is keyed by the module's resolved path. A module that fails or answers with
// something undecodable is skipped; only a failure to stage h is returned.
func (g *Gateway) Bids(ctx context.Context, h types.DecisionHeader) ([]dominance.Bid, error) {
	if _, err := g.runDir.StageForExploration(h); err != nil {
		return nil, fmt.Errorf("failed to stage %s for exploration: %w", h.Category, err)
	}

	var bids []dominance.Bid
	for _, m := range g.modules.Modules() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bid, err := g.bid(ctx, m)
		if err != nil {
			slog.Warn("exploration module did not bid", "module", m.ID(), "category", h.Category, "error", err)
			continue
		}
		bids = append(bids, dominance.Bid{ModuleID: m.Path, Bid: bid})

		slog.Debug("exploration bid received", "module", m.ID(), "category", h.Category,
			"can_explore", bid.CanExplore, "criteria", bid.CriteriaNames())
		events.Emit(ctx, g.opts.Recorder, events.EventTypeBidReceived, g.opts.RunID, events.SeverityInfo,
			fmt.Sprintf("module %s bid on %s", m.ID(), h.Category),
			events.BidData{ModuleID: m.ID(), Category: h.Category, CanExplore: bid.CanExplore, Criteria: bid.Criteria})
	}
	return bids, nil
}

// bid invokes one module with -c and decodes its answer.
func (g *Gateway) bid(ctx context.Context, m discovery.Module) (types.ExplorationBid, error) {
	cmd := m.Command(ctx, g.opts.Java, "-c", g.runDir.Root())
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	stderr := discovery.NewTail(0)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return types.ExplorationBid{}, &ModuleError{ModuleID: m.ID(), ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}
	bid, err := types.DecodeBid(stdout.Bytes())
	if err != nil {
		return types.ExplorationBid{}, &ModuleError{ModuleID: m.ID(), ExitCode: 0, Stderr: stderr.String(), Err: err}
	}
	return bid, nil
}

// Selection is the module chosen to explore a decision model.
type Selection struct {
	Module discovery.Module
	Bid    types.ExplorationBid
	// Candidates are all maximal eligible bids, the chosen one first.
	Candidates []dominance.Bid
}

// Select collects bids for h and picks the dominant bidder. Among bids that
// do not dominate each other the lexicographically smallest module path wins.
func (g *Gateway) Select(ctx context.Context, h types.DecisionHeader) (*Selection, error) {
	bids, err := g.Bids(ctx, h)
	if err != nil {
		return nil, err
	}
	maximal := dominance.MaximalBids(bids)
	if len(maximal) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExplorer, h.Category)
	}
	chosen := maximal[0]
	m, ok := g.modules.Get(chosen.ModuleID)
	if !ok {
		return nil, fmt.Errorf("selected module %s is no longer registered", chosen.ModuleID)
	}

	slog.Info("exploration module selected", "module", m.ID(), "category", h.Category, "candidates", len(maximal))
	events.Emit(ctx, g.opts.Recorder, events.EventTypeExplorerSelected, g.opts.RunID, events.SeverityInfo,
		fmt.Sprintf("module %s selected to explore %s", m.ID(), h.Category),
		events.BidData{ModuleID: m.ID(), Category: h.Category, CanExplore: true, Criteria: chosen.Bid.Criteria})

	return &Selection{Module: m, Bid: chosen.Bid, Candidates: maximal}, nil
}

// AvailableCriteria maps each bidding module's path to the criteria names it reports.
func AvailableCriteria(bids []dominance.Bid) map[string][]string {
	out := make(map[string][]string, len(bids))
	for _, b := range bids {
		out[b.ModuleID] = b.Bid.CriteriaNames()
	}
	return out
}

// ModuleError describes a failed exploration module invocation.
type ModuleError struct {
	ModuleID string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ModuleError) Error() string {
	msg := fmt.Sprintf("exploration module %s failed", e.ModuleID)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
