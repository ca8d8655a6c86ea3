package identification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// RuleFunc derives decision models from the design headers and the decision
// headers known so far.
type RuleFunc func(ctx context.Context, design []types.DesignHeader, decision []types.DecisionHeader) ([]types.DecisionModel, error)

// RuleModule runs a RuleFunc in-process as an identification module. Models
// it returns are persisted under identified/ like those of external modules;
// a model whose header is already known is not written again.
type RuleModule struct {
	Name string
	Rule RuleFunc
}

// NewRuleModule creates a named in-process module.
func NewRuleModule(name string, rule RuleFunc) *RuleModule {
	return &RuleModule{Name: name, Rule: rule}
}

// ID returns the rule's name.
func (r *RuleModule) ID() string {
	return r.Name
}

// Identify runs the rule and persists each new model.
func (r *RuleModule) Identify(ctx context.Context, req StepRequest) ([]types.DecisionHeader, error) {
	models, err := r.Rule(ctx, req.Design, req.Decision)
	if err != nil {
		return nil, &ModuleError{ModuleID: r.Name, Step: req.Step, ExitCode: -1, Err: err}
	}

	known := make(map[string]struct{}, len(req.Decision))
	for _, h := range req.Decision {
		known[h.Key()] = struct{}{}
	}

	prefix := strconv.Itoa(req.Step)
	var headers []types.DecisionHeader
	for i, m := range models {
		h := m.Header()
		if err := h.Validate(); err != nil {
			return nil, &ModuleError{ModuleID: r.Name, Step: req.Step, ExitCode: -1, Err: err}
		}
		if _, dup := known[h.Key()]; dup {
			continue
		}
		known[h.Key()] = struct{}{}

		suffix := fmt.Sprintf("%s-%d", r.Name, i)
		if header, ok := m.(types.DecisionHeader); ok {
			if _, err := req.RunDir.WriteDecisionHeader(storage.AreaIdentified, prefix, suffix, header); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrPersist, header.Category, err)
			}
			headers = append(headers, header.Normalize())
			continue
		}
		written, _, err := req.RunDir.WriteDecisionModel(storage.AreaIdentified, prefix, suffix, m)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPersist, h.Category, err)
		}
		headers = append(headers, written.Normalize())
	}
	return headers, nil
}
