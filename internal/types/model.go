package types

// DesignModel is implemented by every input model the orchestrator can reason
// about. Orchestration never looks past the header.
type DesignModel interface {
	// UniqueIdentifier names the model's category (its schema).
	UniqueIdentifier() string
	// Header summarises the model's covered elements and relations.
	Header() DesignHeader
}

// DecisionModel is implemented by every formal, analyzable model produced by
// identification. Cross-model operations are expressed purely on headers.
type DecisionModel interface {
	UniqueIdentifier() string
	Header() DecisionHeader
}

// Dominates reports whether m strictly dominates o: same category and m's
// header is strictly greater in the coverage order.
func Dominates(m, o DecisionModel) bool {
	if m.UniqueIdentifier() != o.UniqueIdentifier() {
		return false
	}
	return m.Header().Compare(o.Header()) == Greater
}

// SameDecisionModel reports whether two decision models are interchangeable for
// orchestration purposes.
func SameDecisionModel(m, o DecisionModel) bool {
	return m.UniqueIdentifier() == o.UniqueIdentifier() && m.Header().Equal(o.Header())
}

var (
	_ DesignModel   = DesignHeader{}
	_ DecisionModel = DecisionHeader{}
)
