package resolver

import "github.com/UnknownOlympus/hermes/internal/models"

// DecisionKind tells the caller what to do with a resolution result.
type DecisionKind string

const (
	// AutoCommit: exactly one candidate, commit it to the target.
	AutoCommit DecisionKind = "auto_commit"
	// PromptUser: several candidates, the courier must pick one.
	PromptUser DecisionKind = "prompt_user"
	// FallbackManualEntry: nothing matched, reopen the text entry pre-filled with RawText.
	FallbackManualEntry DecisionKind = "fallback_manual_entry"
)

// Decision is the outcome of Disambiguate.
type Decision struct {
	Kind       DecisionKind              `json:"kind"`
	Candidate  *models.AddressCandidate  `json:"candidate,omitempty"`
	Candidates []models.AddressCandidate `json:"candidates,omitempty"`
	RawText    string                    `json:"raw_text,omitempty"`
}

// Disambiguate decides between committing, prompting and manual entry. The candidate list is
// kept whole and in the resolver's order.
func Disambiguate(candidates []models.AddressCandidate, rawText string) Decision {
	switch len(candidates) {
	case 0:
		return Decision{Kind: FallbackManualEntry, RawText: rawText}
	case 1:
		candidate := candidates[0]
		return Decision{Kind: AutoCommit, Candidate: &candidate, RawText: rawText}
	default:
		list := make([]models.AddressCandidate, len(candidates))
		copy(list, candidates)
		return Decision{Kind: PromptUser, Candidates: list, RawText: rawText}
	}
}
