package identification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// EngineConfig tunes an Engine.
type EngineConfig struct {
	// Concurrency is how many modules run at once within a step (>= 1).
	Concurrency int
	// RunID tags emitted events.
	RunID string
	// Recorder receives step and invocation events. May be nil.
	Recorder events.Recorder
}

// Engine runs the identification fixpoint over one run directory.
type Engine struct {
	runDir  *storage.RunDir
	modules []Module
	cfg     EngineConfig
}

// Result is the outcome of a fixpoint run.
type Result struct {
	// Steps is the number of steps executed, the final (empty) one included.
	Steps int
	// Headers is the accumulated set, seeded headers first, then in discovery order.
	Headers []types.DecisionHeader
	// NewPerStep counts the headers each step added.
	NewPerStep []int
	// Failures counts module invocations that contributed nothing because they failed.
	Failures int
	Elapsed  time.Duration
}

// NewEngine creates an engine for the given modules.
func NewEngine(runDir *storage.RunDir, modules []Module, cfg EngineConfig) (*Engine, error) {
	if runDir == nil {
		return nil, fmt.Errorf("run directory is required")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", cfg.Concurrency)
	}
	return &Engine{runDir: runDir, modules: modules, cfg: cfg}, nil
}

// accumulator is the in-memory working set: an insertion-ordered set of
// headers keyed by identity.
type accumulator struct {
	keys    map[string]struct{}
	headers []types.DecisionHeader
}

func newAccumulator(seed []types.DecisionHeader) *accumulator {
	acc := &accumulator{keys: make(map[string]struct{}, len(seed))}
	for _, h := range seed {
		acc.add(h)
	}
	return acc
}

// add inserts h and reports whether it was new.
func (a *accumulator) add(h types.DecisionHeader) bool {
	key := h.Key()
	if _, exists := a.keys[key]; exists {
		return false
	}
	a.keys[key] = struct{}{}
	a.headers = append(a.headers, h.Normalize())
	return true
}

func (a *accumulator) snapshot() []types.DecisionHeader {
	return append([]types.DecisionHeader(nil), a.headers...)
}

// Run executes steps until one adds no new header, then returns the
// accumulated set. The set is seeded from identified/ and written back as the
// accumulated snapshot after every step. Module failures are absorbed;
// storage failures and cancellation end the run with an error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	design, err := e.runDir.LoadDesignHeaders()
	if err != nil {
		return nil, fmt.Errorf("failed to load design headers: %w", err)
	}
	seed, err := e.runDir.LoadDecisionHeaders(storage.AreaIdentified)
	if err != nil {
		return nil, fmt.Errorf("failed to load identified headers: %w", err)
	}
	acc := newAccumulator(seed)

	slog.Info("identification started",
		"modules", len(e.modules), "design_headers", len(design), "seeded", len(acc.headers))

	result := &Result{}
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("identification canceled after %d steps: %w", step, err)
		}

		events.Emit(ctx, e.cfg.Recorder, events.EventTypeStepStarted, e.cfg.RunID, events.SeverityInfo,
			fmt.Sprintf("identification step %d started", step),
			events.StepData{Step: step, Total: len(acc.headers)})

		req := StepRequest{
			Step:     step,
			RunDir:   e.runDir,
			Design:   design,
			Decision: acc.snapshot(),
		}
		contributions, failures, err := e.runStep(ctx, req)
		if err != nil {
			return nil, err
		}
		result.Failures += failures

		added := 0
		for _, headers := range contributions {
			for _, h := range headers {
				if acc.add(h) {
					added++
				}
			}
		}
		result.NewPerStep = append(result.NewPerStep, added)
		result.Steps = step + 1

		if err := e.runDir.SaveAccumulated(acc.headers); err != nil {
			return nil, fmt.Errorf("failed to persist accumulated headers: %w", err)
		}

		events.Emit(ctx, e.cfg.Recorder, events.EventTypeStepCompleted, e.cfg.RunID, events.SeverityInfo,
			fmt.Sprintf("identification step %d added %d headers", step, added),
			events.StepData{Step: step, NewHeaders: added, Total: len(acc.headers)})
		slog.Info("identification step completed", "step", step, "new", added, "total", len(acc.headers))

		if added == 0 {
			events.Emit(ctx, e.cfg.Recorder, events.EventTypeFixpointReached, e.cfg.RunID, events.SeverityInfo,
				fmt.Sprintf("fixpoint reached after %d steps", result.Steps),
				events.StepData{Step: step, Total: len(acc.headers)})
			break
		}
	}

	result.Headers = acc.snapshot()
	result.Elapsed = time.Since(start)
	return result, nil
}

// runStep invokes every module once, at most Concurrency at a time, and
// returns their contributions in module order.
func (e *Engine) runStep(ctx context.Context, req StepRequest) ([][]types.DecisionHeader, int, error) {
	contributions := make([][]types.DecisionHeader, len(e.modules))
	errs := make([]error, len(e.modules))

	sem := semaphore.NewWeighted(int64(e.cfg.Concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range e.modules {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			headers, err := e.invoke(gctx, req, m)
			if errors.Is(err, ErrPersist) {
				return err
			}
			contributions[i], errs[i] = headers, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("identification step %d: %w", req.Step, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("identification canceled during step %d: %w", req.Step, err)
	}

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	return contributions, failures, nil
}

// invoke runs one module and reports the outcome. Failures other than
// ErrPersist are logged and turned into an empty contribution.
func (e *Engine) invoke(ctx context.Context, req StepRequest, m Module) ([]types.DecisionHeader, error) {
	start := time.Now()
	headers, err := m.Identify(ctx, req)
	elapsed := time.Since(start)

	data := events.ModuleInvocationData{
		ModuleID:   m.ID(),
		Step:       req.Step,
		Headers:    len(headers),
		DurationMs: elapsed.Milliseconds(),
	}

	if err != nil {
		if errors.Is(err, ErrPersist) {
			return nil, err
		}
		data.Headers = 0
		data.ExitCode = -1
		var modErr *ModuleError
		if errors.As(err, &modErr) {
			data.ExitCode = modErr.ExitCode
		}
		data.Error = err.Error()

		slog.Warn("identification module failed", "module", m.ID(), "step", req.Step, "error", err)
		events.Emit(ctx, e.cfg.Recorder, events.EventTypeModuleFailed, e.cfg.RunID, events.SeverityWarning,
			fmt.Sprintf("module %s failed at step %d", m.ID(), req.Step), data)
		return nil, err
	}

	slog.Debug("identification module returned", "module", m.ID(), "step", req.Step, "headers", len(headers), "elapsed", elapsed)
	events.Emit(ctx, e.cfg.Recorder, events.EventTypeModuleInvoked, e.cfg.RunID, events.SeverityInfo,
		fmt.Sprintf("module %s returned %d headers at step %d", m.ID(), len(headers), req.Step), data)
	return headers, nil
}
