package identification

import (
	"context"
	"fmt"

	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// BuiltinRules returns the in-process rules every run starts with.
func BuiltinRules() []Module {
	return []Module{
		NewRuleModule("reactive-workload", ReactiveWorkloadRule),
	}
}

// ReactiveWorkloadRule identifies a reactive workload from each design model
// of the workload category. Every .json or .msgpack model path of such a
// design header must hold a serialized ReactiveWorkload; other paths are
// ignored. Workloads already known are not returned again.
func ReactiveWorkloadRule(ctx context.Context, design []types.DesignHeader, decision []types.DecisionHeader) ([]types.DecisionModel, error) {
	known := make(map[string]struct{}, len(decision))
	for _, h := range decision {
		known[h.Key()] = struct{}{}
	}

	var models []types.DecisionModel
	for _, d := range design {
		if d.Category != types.ReactiveWorkloadCategory {
			continue
		}
		for _, path := range d.ModelPaths {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !storage.IsModelFile(path) {
				continue
			}
			w, err := storage.ReadModel[types.ReactiveWorkload](path)
			if err != nil {
				return nil, fmt.Errorf("reactive workload design: %w", err)
			}
			if _, ok := known[w.Header().Key()]; ok {
				continue
			}
			known[w.Header().Key()] = struct{}{}
			models = append(models, &w)
		}
	}
	return models, nil
}
