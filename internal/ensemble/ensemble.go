// Package ensemble implements the accuracy-escalation ladder for drawing
// extraction: one model pass, repeated-pass consensus, cross-model consensus,
// and a weighted combination of the last two. Each tier spends more inference
// time than the one before it; the controller walks them in order and stops
// at the first tier whose confidence meets the caller's target.
package ensemble

// Escalation method identifiers, in ladder order.
const (
	MethodSingle       = "single"
	MethodMultiPass    = "multi_pass"
	MethodMultiModel   = "multi_model"
	MethodFullEnsemble = "full_ensemble"
)

// Methods lists the escalation tiers in ladder order.
func Methods() []string {
	return []string{MethodSingle, MethodMultiPass, MethodMultiModel, MethodFullEnsemble}
}

// MethodRank returns a tier's position on the ladder, or -1 for an unknown
// method name.
func MethodRank(method string) int {
	for i, m := range Methods() {
		if m == method {
			return i
		}
	}
	return -1
}

// KnownMethod reports whether method names an escalation tier.
func KnownMethod(method string) bool {
	return MethodRank(method) >= 0
}
