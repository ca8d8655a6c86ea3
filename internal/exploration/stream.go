package exploration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
	"github.com/forsyde/idesyde-orchestrator/internal/events"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// ErrStreamClosed is reported by Err when Next is called after Close.
var ErrStreamClosed = errors.New("solution stream closed")

// Limits bound one exploration.
type Limits struct {
	// MaxSolutions stops the stream after that many solutions (<= 0: unbounded).
	MaxSolutions int64
	// TotalTimeout stops the stream after that much wall-clock time (<= 0: none).
	TotalTimeout time.Duration
	// TimeResolution is how often the module samples time, and how often
	// progress events are emitted.
	TimeResolution time.Duration
	// MemoryResolution is how finely, in MB, the module samples memory.
	MemoryResolution int
}

// args renders the limits as exploration module flags.
func (l Limits) args(runDir string) []string {
	timeout := int64(0)
	if l.TotalTimeout > 0 {
		timeout = int64(l.TotalTimeout.Round(time.Second) / time.Second)
		if timeout == 0 {
			timeout = 1
		}
	}
	return []string{
		"-e", runDir,
		"--maximum-solutions", strconv.FormatInt(max(l.MaxSolutions, 0), 10),
		"--total-timeout", strconv.FormatInt(timeout, 10),
		"--time-resolution", strconv.FormatInt(l.TimeResolution.Milliseconds(), 10),
		"--memory-resolution", strconv.Itoa(max(l.MemoryResolution, 0)),
	}
}

// Why a stream stopped.
const (
	StopExhausted    = "exhausted"
	StopMaxSolutions = "max_solutions"
	StopTimeout      = "timeout"
	StopCanceled     = "canceled"
	StopClosed       = "closed"
)

// Explore stages h, starts m's search and returns the stream of its
// solutions. The caller must Close the stream (or drain All) so the module
// process is released.
func (g *Gateway) Explore(ctx context.Context, m discovery.Module, h types.DecisionHeader, limits Limits) (*Stream, error) {
	if _, err := g.runDir.StageForExploration(h); err != nil {
		return nil, fmt.Errorf("failed to stage %s for exploration: %w", h.Category, err)
	}

	var procCtx context.Context
	var cancel context.CancelFunc
	if limits.TotalTimeout > 0 {
		procCtx, cancel = context.WithTimeout(ctx, limits.TotalTimeout)
	} else {
		procCtx, cancel = context.WithCancel(ctx)
	}

	cmd := m.Command(procCtx, g.opts.Java, limits.args(g.runDir.Root())...)
	cmd.WaitDelay = time.Second
	stderr := discovery.NewTail(0)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open stdout of %s: %w", m.ID(), err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &ModuleError{ModuleID: m.ID(), ExitCode: -1, Err: err}
	}

	every := rate.Inf
	if limits.TimeResolution > 0 {
		every = rate.Every(limits.TimeResolution)
	}
	s := &Stream{
		parent:   ctx,
		ctx:      procCtx,
		cancel:   cancel,
		cmd:      cmd,
		stderr:   stderr,
		module:   m.ID(),
		category: h.Category,
		runDir:   g.runDir,
		limits:   limits,
		progress: rate.NewLimiter(every, 1),
		lines:    make(chan string),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		started:  time.Now(),
		runID:    g.opts.RunID,
		recorder: g.opts.Recorder,
	}
	go s.read(stdout)

	slog.Info("exploration started", "module", m.ID(), "category", h.Category,
		"max_solutions", limits.MaxSolutions, "timeout", limits.TotalTimeout)
	events.Emit(ctx, g.opts.Recorder, events.EventTypeExplorationStarted, g.opts.RunID, events.SeverityInfo,
		fmt.Sprintf("module %s exploring %s", m.ID(), h.Category),
		events.ExplorationData{ModuleID: m.ID(), Category: h.Category})
	return s, nil
}

// Stream is the lazy, non-restartable sequence of solutions produced by one
// exploration module. It is not safe for concurrent use; cancel the context
// given to Explore to stop it from another goroutine.
type Stream struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stderr *discovery.Tail

	module   string
	category string
	runDir   *storage.RunDir
	limits   Limits
	progress *rate.Limiter

	lines    chan string
	done     chan struct{}
	readDone chan struct{}
	readErr  error

	started  time.Time
	count    int
	current  types.DecisionHeader
	path     string
	runID    string
	recorder events.Recorder

	stopOnce sync.Once
	mu       sync.Mutex
	reason   string
	err      error
}

// read forwards non-blank stdout lines until EOF or until the stream stops.
func (s *Stream) read(stdout io.Reader) {
	defer close(s.readDone)
	defer close(s.lines)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
	s.readErr = scanner.Err()
}

// Next advances to the next solution. It returns false once the module is
// done, the timeout expired, or the stream was closed; the module process has
// been released by then. The solution that reaches MaxSolutions is still
// returned, and the process is released right away.
func (s *Stream) Next() bool {
	if s.stopped() {
		if s.Reason() == StopClosed {
			s.setErr(ErrStreamClosed)
		}
		return false
	}
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				s.stop(StopExhausted, nil)
				return false
			}
			path := s.runDir.Resolve(line)
			h, err := storage.ReadDecisionHeader(path)
			if err != nil {
				slog.Warn("dropping solution reported by module", "module", s.module, "path", path, "error", err)
				continue
			}
			s.current, s.path = h, path
			s.count++
			s.reportSolution()
			if s.limits.MaxSolutions > 0 && int64(s.count) >= s.limits.MaxSolutions {
				s.stop(StopMaxSolutions, nil)
			}
			return true
		case <-s.ctx.Done():
			if s.parent.Err() != nil {
				s.stop(StopCanceled, s.parent.Err())
			} else {
				s.stop(StopTimeout, nil)
			}
			return false
		}
	}
}

// Header returns the current solution.
func (s *Stream) Header() types.DecisionHeader {
	return s.current
}

// HeaderPath returns where the current solution's header was read from.
func (s *Stream) HeaderPath() string {
	return s.path
}

// Count returns how many solutions have been read so far.
func (s *Stream) Count() int {
	return s.count
}

// Reason reports why the stream stopped, or "" while it is running.
func (s *Stream) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the error that ended the stream, if any. Reaching a limit,
// the module finishing normally, and Close are not errors. A module that
// exits with a failure status is reported as a *ModuleError.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the stream and releases the module process. It is idempotent.
func (s *Stream) Close() error {
	s.stop(StopClosed, nil)
	return nil
}

// All returns the remaining solutions as an iterator. The stream is closed
// when iteration ends, whether or not it was drained.
func (s *Stream) All() iter.Seq[types.DecisionHeader] {
	return func(yield func(types.DecisionHeader) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Header()) {
				return
			}
		}
	}
}

func (s *Stream) stopped() bool {
	return s.Reason() != ""
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// stop terminates the module (unless it already finished on its own), waits
// for it, and records the outcome. Only the first call has any effect.
func (s *Stream) stop(reason string, err error) {
	s.stopOnce.Do(func() {
		// A reader that gave up early leaves the module blocked on a full pipe.
		if reason != StopExhausted || s.readErr != nil {
			s.cancel()
		}
		close(s.done)
		waitErr := s.cmd.Wait()
		<-s.readDone
		s.cancel()

		if err == nil && reason == StopExhausted {
			err = s.exitError(waitErr)
		}

		s.mu.Lock()
		s.reason = reason
		s.err = err
		s.mu.Unlock()

		elapsed := time.Since(s.started)
		severity := events.SeverityInfo
		if err != nil {
			severity = events.SeverityWarning
			slog.Warn("exploration ended with an error", "module", s.module, "category", s.category, "error", err)
		}
		slog.Info("exploration completed", "module", s.module, "category", s.category,
			"solutions", s.count, "reason", reason, "elapsed", elapsed)
		events.Emit(context.WithoutCancel(s.parent), s.recorder, events.EventTypeExplorationCompleted, s.runID, severity,
			fmt.Sprintf("module %s stopped exploring %s (%s) after %d solutions", s.module, s.category, reason, s.count),
			events.ExplorationData{
				ModuleID:   s.module,
				Category:   s.category,
				Solutions:  s.count,
				ElapsedMs:  elapsed.Milliseconds(),
				StopReason: reason,
			})
	})
}

// exitError turns the status of a module that ran to completion into an
// error, if it failed.
func (s *Stream) exitError(waitErr error) error {
	if s.readErr != nil {
		return fmt.Errorf("failed to read solutions of %s: %w", s.module, s.readErr)
	}
	if waitErr == nil {
		return nil
	}
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &ModuleError{ModuleID: s.module, ExitCode: exitCode, Stderr: s.stderr.String(), Err: waitErr}
}

// reportSolution emits solution_found, plus a progress event at most once
// per time resolution.
func (s *Stream) reportSolution() {
	ctx := context.WithoutCancel(s.parent)
	events.Emit(ctx, s.recorder, events.EventTypeSolutionFound, s.runID, events.SeverityInfo,
		fmt.Sprintf("module %s found solution %d for %s", s.module, s.count, s.category),
		events.SolutionData{ModuleID: s.module, Index: s.count - 1, Category: s.current.Category, HeaderPath: s.path})

	if s.progress.Allow() {
		elapsed := time.Since(s.started)
		slog.Debug("exploration progress", "module", s.module, "solutions", s.count, "elapsed", elapsed)
		events.Emit(ctx, s.recorder, events.EventTypeExplorationProgress, s.runID, events.SeverityInfo,
			fmt.Sprintf("module %s: %d solutions in %s", s.module, s.count, elapsed.Round(time.Millisecond)),
			events.ExplorationData{ModuleID: s.module, Category: s.category, Solutions: s.count, ElapsedMs: elapsed.Milliseconds()})
	}
}
