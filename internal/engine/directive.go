package engine

import "fmt"

// DirectiveKind enumerates the per-step instructions the orchestration layer
// can hand to the engine's writer. The set is closed: new behavior is a new
// variant here, never an ad hoc string comparison at the write site.
type DirectiveKind uint8

const (
	// DirectiveSkipWrite advances the simulation without persisting a snapshot.
	DirectiveSkipWrite DirectiveKind = iota

	// DirectiveWrite persists the current frame under the current step key.
	DirectiveWrite

	// DirectiveCheckpoint is reserved for future checkpoint/resume support.
	DirectiveCheckpoint

	// DirectiveUpdateParam is reserved for future mid-run parameter steering.
	DirectiveUpdateParam

	// DirectiveDiagnose is reserved for future on-demand diagnostics.
	DirectiveDiagnose
)

// Directive is one per-step instruction. Param and Value carry the payload
// for DirectiveUpdateParam; they are zero for all other kinds.
type Directive struct {
	Kind  DirectiveKind
	Param string
	Value float64
}

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveSkipWrite:
		return "skip_write"
	case DirectiveWrite:
		return "write"
	case DirectiveCheckpoint:
		return "checkpoint"
	case DirectiveUpdateParam:
		return "update_param"
	case DirectiveDiagnose:
		return "diagnose"
	default:
		return fmt.Sprintf("DirectiveKind(%d)", uint8(k))
	}
}

// WritePolicy translates a write frequency into per-step directives.
//
// A step is written when step mod Frequency == 0 or on the final step, so a
// run always persists its last state even when FinalStep is not a multiple
// of the frequency.
type WritePolicy struct {
	Frequency int
	FinalStep int
}

// Directive returns the instruction for the given 1-based step.
func (p WritePolicy) Directive(step int) Directive {
	if p.Frequency > 0 && step%p.Frequency == 0 {
		return Directive{Kind: DirectiveWrite}
	}
	if step == p.FinalStep {
		return Directive{Kind: DirectiveWrite}
	}
	return Directive{Kind: DirectiveSkipWrite}
}
