package domains

import "github.com/plaans/aries/internal/ids"

// ReasonerID identifies which theory produced an inference. The set of
// reasoners is fixed at solve-start (see internal/search), so a small
// integer tag is enough.
type ReasonerID uint8

const (
	// ReasonerNone marks causes that do not originate from a theory
	// (decisions, implications, absence inferences).
	ReasonerNone ReasonerID = iota
	ReasonerSAT
	ReasonerSTN
)

// CauseKind discriminates the origin of a trail event.
type CauseKind uint8

const (
	// CauseDecision marks a literal asserted by the brancher.
	CauseDecision CauseKind = iota
	// CauseInference marks a literal produced by a reasoner's Propagate.
	// Tag is an opaque value meaningful only to that reasoner's Explain.
	CauseInference
	// CauseImplication marks a literal derived from another, already
	// entailed literal via the implication graph.
	CauseImplication
	// CauseAbsence marks ¬prez(v) inferred because tightening v's bounds
	// would otherwise make its domain empty.
	CauseAbsence
)

// Cause records why a literal was entailed, exactly as the trail requires:
// "a decision, a propagation from a specific reasoner with an opaque
// inference tag, or derivation from a previously entailed literal".
type Cause struct {
	Kind     CauseKind
	Reasoner ReasonerID
	Tag      uint32
	From     ids.Literal // CauseImplication: the implying literal.
	From2    ids.Literal // CauseAbsence: the other bound that, combined with
	// From, proved the domain empty.
}

// DecisionCause is the cause attached to a branching decision.
var DecisionCause = Cause{Kind: CauseDecision}

// InferenceCause builds the cause for a reasoner-produced literal.
func InferenceCause(r ReasonerID, tag uint32) Cause {
	return Cause{Kind: CauseInference, Reasoner: r, Tag: tag}
}

// ImplicationCause builds the cause for a literal derived from `from` via
// the implication graph.
func ImplicationCause(from ids.Literal) Cause {
	return Cause{Kind: CauseImplication, From: from}
}

// AbsenceCause builds the cause for an inferred ¬prez(v): the tightened
// bound `tightened` together with the pre-existing opposite bound
// `opposite` jointly proved the domain of v empty.
func AbsenceCause(tightened, opposite ids.Literal) Cause {
	return Cause{Kind: CauseAbsence, From: tightened, From2: opposite}
}
