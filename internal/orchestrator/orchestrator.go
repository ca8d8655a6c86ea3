// Package orchestrator runs one pass of design space exploration over a run
// directory: discover modules, identify decision models to a fixpoint, keep
// the dominant ones, and explore each with the best bidding explorer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forsyde/idesyde-orchestrator/internal/config"
	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
	"github.com/forsyde/idesyde-orchestrator/internal/dominance"
	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/exploration"
	"github.com/forsyde/idesyde-orchestrator/internal/identification"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/storage/sqlite"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// Options extends an Orchestrator beyond what the configuration describes.
type Options struct {
	// Rules are in-process identification modules run alongside the
	// discovered ones.
	Rules []identification.Module
	// Recorder receives every event in addition to the log and the journal.
	Recorder events.Recorder
}

// Orchestrator runs passes over one run directory.
type Orchestrator struct {
	cfg  *config.Config
	opts Options
}

// New validates cfg and creates an orchestrator.
func New(cfg *config.Config, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Orchestrator{cfg: cfg, opts: opts}, nil
}

// Report summarises a pass.
type Report struct {
	RunID  string
	RunDir string
	// Identification is nil when the pass skipped identification.
	Identification *identification.Result
	Dominant       []types.DecisionHeader
	Explorations   []Exploration
	Elapsed        time.Duration
}

// Solutions counts the solutions of every exploration.
func (r *Report) Solutions() int {
	n := 0
	for _, e := range r.Explorations {
		n += len(e.Solutions)
	}
	return n
}

// Exploration is the outcome of exploring one dominant decision model.
type Exploration struct {
	Header types.DecisionHeader
	// ModuleID is empty when no module could explore Header.
	ModuleID  string
	Bid       types.ExplorationBid
	Solutions []types.DecisionHeader
	// StopReason is one of the exploration.Stop* values.
	StopReason string
	// Err is a non-fatal failure: no explorer, or a module that crashed.
	Err error
}

// session is the state shared by the phases of one pass.
type session struct {
	runID    string
	runDir   *storage.RunDir
	recorder events.Recorder
	journal  *sqlite.Journal
	release  func() error
	started  time.Time
}

// Run executes a full pass: identification, dominance, then exploration.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	return o.pass(ctx, true, true)
}

// Identify runs identification and dominance only.
func (o *Orchestrator) Identify(ctx context.Context) (*Report, error) {
	return o.pass(ctx, true, false)
}

// Explore explores the dominant subset of the accumulated snapshot left by a
// previous identification, without identifying again.
func (o *Orchestrator) Explore(ctx context.Context) (*Report, error) {
	return o.pass(ctx, false, true)
}

func (o *Orchestrator) pass(ctx context.Context, identify, explore bool) (report *Report, err error) {
	s, err := o.open(ctx)
	if err != nil {
		return nil, err
	}
	report = &Report{RunID: s.runID, RunDir: s.runDir.Root()}
	defer func() {
		report.Elapsed = time.Since(s.started)
		o.close(ctx, s, report, err)
	}()

	var accumulated []types.DecisionHeader
	if identify {
		result, err := o.identify(ctx, s)
		if err != nil {
			return report, err
		}
		report.Identification = result
		accumulated = result.Headers
	} else {
		accumulated, err = s.runDir.LoadAccumulated()
		if err != nil {
			return report, fmt.Errorf("failed to load accumulated headers: %w", err)
		}
		if accumulated == nil {
			accumulated, err = s.runDir.LoadDecisionHeaders(storage.AreaIdentified)
			if err != nil {
				return report, fmt.Errorf("failed to load identified headers: %w", err)
			}
		}
	}

	report.Dominant = dominance.DominantDecisionHeaders(accumulated)
	slog.Info("dominant decision models computed", "accumulated", len(accumulated), "dominant", len(report.Dominant))
	events.Emit(ctx, s.recorder, events.EventTypeDominanceComputed, s.runID, events.SeverityInfo,
		fmt.Sprintf("%d of %d decision models are dominant", len(report.Dominant), len(accumulated)),
		events.RunData{RunDir: s.runDir.Root(), Identified: len(accumulated), Dominant: len(report.Dominant), Success: true})

	if explore {
		explorations, err := o.explore(ctx, s, report.Dominant)
		report.Explorations = explorations
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// open prepares the run directory, takes its lock, and opens the journal.
func (o *Orchestrator) open(ctx context.Context) (*session, error) {
	runDir, err := storage.OpenRunDir(o.cfg.RunDir)
	if err != nil {
		return nil, err
	}

	s := &session{runID: uuid.New().String(), runDir: runDir, started: time.Now()}
	s.release, err = runDir.Lock(s.runID)
	if err != nil {
		return nil, err
	}

	if o.cfg.Journal.Enabled {
		s.journal, err = sqlite.Open(o.cfg.JournalPath())
		if err != nil {
			_ = s.release()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}
	var journal events.Recorder
	if s.journal != nil {
		journal = s.journal
	}
	s.recorder = events.Multi(events.LogRecorder, journal, o.opts.Recorder)

	slog.Info("run started", "run", s.runID, "run_dir", runDir.Root())
	events.Emit(context.WithoutCancel(ctx), s.recorder, events.EventTypeRunStarted, s.runID, events.SeverityInfo,
		fmt.Sprintf("run started in %s", runDir.Root()),
		events.RunData{RunDir: runDir.Root()})
	return s, nil
}

// close records the outcome, prunes the journal, and releases the lock.
func (o *Orchestrator) close(ctx context.Context, s *session, report *Report, runErr error) {
	ctx = context.WithoutCancel(ctx)

	data := events.RunData{
		RunDir:     s.runDir.Root(),
		Dominant:   len(report.Dominant),
		Solutions:  report.Solutions(),
		Success:    runErr == nil,
		DurationMs: report.Elapsed.Milliseconds(),
	}
	if report.Identification != nil {
		data.Steps = report.Identification.Steps
		data.Identified = len(report.Identification.Headers)
	}
	severity := events.SeverityInfo
	message := fmt.Sprintf("run completed: %d dominant decision models, %d solutions", data.Dominant, data.Solutions)
	if runErr != nil {
		severity = events.SeverityError
		data.Error = runErr.Error()
		message = fmt.Sprintf("run failed: %v", runErr)
	}
	events.Emit(ctx, s.recorder, events.EventTypeRunCompleted, s.runID, severity, message, data)

	if s.journal != nil {
		if o.cfg.Journal.KeepRuns > 0 {
			if pruned, err := s.journal.Prune(ctx, o.cfg.Journal.KeepRuns); err != nil {
				slog.Warn("failed to prune journal", "error", err)
			} else if pruned > 0 {
				slog.Debug("pruned journal", "runs", pruned)
			}
		}
		if err := s.journal.Close(); err != nil {
			slog.Warn("failed to close journal", "error", err)
		}
	}
	if err := s.release(); err != nil {
		slog.Warn("failed to release run directory lock", "error", err)
	}
}

// identify runs the fixpoint with the discovered modules and the configured rules.
func (o *Orchestrator) identify(ctx context.Context, s *session) (*identification.Result, error) {
	registry := discovery.Scan(o.cfg.IdentificationModulesDir)
	modules := identification.FromRegistry(registry, o.cfg.JavaBinary)
	modules = append(modules, o.opts.Rules...)
	slog.Info("identification modules discovered", "dir", o.cfg.IdentificationModulesDir,
		"external", registry.Len(), "rules", len(o.opts.Rules))

	engine, err := identification.NewEngine(s.runDir, modules, identification.EngineConfig{
		Concurrency: o.cfg.Concurrency,
		RunID:       s.runID,
		Recorder:    s.recorder,
	})
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}

// explore explores each dominant header in turn. Only staging failures and
// cancellation are returned; everything else is recorded on the Exploration.
func (o *Orchestrator) explore(ctx context.Context, s *session, dominant []types.DecisionHeader) ([]Exploration, error) {
	registry := discovery.Scan(o.cfg.ExplorationModulesDir)
	slog.Info("exploration modules discovered", "dir", o.cfg.ExplorationModulesDir, "count", registry.Len())

	gw := exploration.NewGateway(s.runDir, registry, exploration.Options{
		Java:     o.cfg.JavaBinary,
		RunID:    s.runID,
		Recorder: s.recorder,
	})
	limits := exploration.Limits{
		MaxSolutions:     o.cfg.Exploration.MaxSolutions,
		TotalTimeout:     o.cfg.Exploration.TotalTimeout,
		TimeResolution:   o.cfg.Exploration.TimeResolution,
		MemoryResolution: o.cfg.Exploration.MemoryResolution,
	}

	var out []Exploration
	for _, h := range dominant {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		result := Exploration{Header: h}

		sel, err := gw.Select(ctx, h)
		if err != nil {
			if !errors.Is(err, exploration.ErrNoExplorer) {
				return out, err
			}
			slog.Info("no exploration module for decision model", "category", h.Category)
			result.Err = err
			out = append(out, result)
			continue
		}
		result.ModuleID, result.Bid = sel.Module.ID(), sel.Bid

		stream, err := gw.Explore(ctx, sel.Module, h, limits)
		if err != nil {
			var modErr *exploration.ModuleError
			if !errors.As(err, &modErr) {
				return out, err
			}
			result.Err = err
			out = append(out, result)
			continue
		}
		for solution := range stream.All() {
			result.Solutions = append(result.Solutions, solution)
		}
		result.StopReason = stream.Reason()
		result.Err = stream.Err()
		out = append(out, result)

		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			return out, result.Err
		}
	}
	return out, nil
}
