package approver

import "strings"

// Decision labels, the hook's only output vocabulary.
const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
	DecisionAsk   = "ask"
)

const (
	// MaxReasonLength caps the decision reason.
	MaxReasonLength = 500

	// MaxToolInputJSON bounds the serialized tool input so a huge
	// payload cannot blow up the prompt.
	MaxToolInputJSON = 8000
)

// NormalizeDecision maps any model output onto the three valid labels.
// Anything unrecognized becomes "ask", the only safe unattended
// default.
func NormalizeDecision(decision string) string {
	switch d := strings.ToLower(strings.TrimSpace(decision)); d {
	case DecisionAllow, DecisionDeny, DecisionAsk:
		return d
	default:
		return DecisionAsk
	}
}

// NormalizeLabel is the training-side variant: an unrecognized label
// collapses to empty so the loader rejects the record instead of
// defaulting it.
func NormalizeLabel(label string) string {
	switch l := strings.ToLower(strings.TrimSpace(label)); l {
	case DecisionAllow, DecisionDeny, DecisionAsk:
		return l
	default:
		return ""
	}
}

// TruncateReason bounds a reason to MaxReasonLength characters.
func TruncateReason(reason string) string {
	runes := []rune(reason)
	if len(runes) <= MaxReasonLength {
		return reason
	}
	return string(runes[:MaxReasonLength])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
