// Package identification drives the identification fixpoint: every module is
// asked, step after step, for decision models it can derive from the design
// models and the decision models known so far, until a whole step adds
// nothing new.
//
// Modules are either external programs speaking the file based protocol
// (ExternalModule) or Go functions run in-process (RuleModule). Both persist
// what they find under <run_dir>/identified/ and hand back headers; the
// Engine owns the union and the consolidated snapshot.
package identification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// ProtocolVersion is the structured response protocol this orchestrator speaks.
// Modules answering with a different major version are ignored.
const ProtocolVersion = "v1.0.0"

// ErrProtocolVersion is returned when a module answers with an incompatible
// structured response.
var ErrProtocolVersion = errors.New("unsupported module protocol version")

// ErrPersist marks a module failure caused by the run directory itself. Unlike
// other module failures it ends the run.
var ErrPersist = errors.New("failed to persist decision model")

// StepRequest is what a module sees at one identification step.
type StepRequest struct {
	Step   int
	RunDir *storage.RunDir
	// Design headers loaded from inputs/ when the run started.
	Design []types.DesignHeader
	// Decision headers accumulated before this step.
	Decision []types.DecisionHeader
}

// Module is one identification module.
type Module interface {
	ID() string
	// Identify returns the decision headers the module finds at this step.
	// Returning headers already known is allowed; the engine deduplicates.
	Identify(ctx context.Context, req StepRequest) ([]types.DecisionHeader, error)
}

// ModuleError describes a failed module invocation.
type ModuleError struct {
	ModuleID string
	Step     int
	// ExitCode is the process exit status, or -1 when the process did not
	// run to completion (or is not a process at all).
	ExitCode int
	// Stderr holds the tail of the module's standard error.
	Stderr string
	Err    error
}

func (e *ModuleError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s failed at step %d", e.ModuleID, e.Step)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", s)
	}
	return b.String()
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
