// Package ids defines the identifiers and literal encoding shared by every
// layer of the solver: variable references, signed variables and the
// one-sided bound literals built from them.
package ids

import "fmt"

// VarRef is a dense identifier for an integer variable. Variables are
// allocated in order starting at ZERO and are immutable once created.
type VarRef int32

// ZERO is the distinguished variable pinned to the constant 0. It is always
// present and always has bounds [0, 0].
const ZERO VarRef = 0

func (v VarRef) String() string {
	return fmt.Sprintf("v%d", int32(v))
}

// SignedVar is a variable paired with a sign, packed as 2*var+sign so that
// negation is a single XOR, mirroring the classic two-valued SAT literal
// trick. The positive signed var of v denotes "+v"; the negative one denotes
// "-v".
type SignedVar int32

// PlusSignedVar returns the positive signed var of v ("+v").
func PlusSignedVar(v VarRef) SignedVar {
	return SignedVar(v * 2)
}

// MinusSignedVar returns the negative signed var of v ("-v").
func MinusSignedVar(v VarRef) SignedVar {
	return SignedVar(v*2 + 1)
}

// VarRef returns the underlying variable of the signed var.
func (sv SignedVar) VarRef() VarRef {
	return VarRef(sv / 2)
}

// IsPlus returns true if sv denotes "+v" rather than "-v".
func (sv SignedVar) IsPlus() bool {
	return sv&1 == 0
}

// Negated returns the signed var of opposite sign over the same variable.
func (sv SignedVar) Negated() SignedVar {
	return sv ^ 1
}

func (sv SignedVar) String() string {
	if sv.IsPlus() {
		return fmt.Sprintf("+%s", sv.VarRef())
	}
	return fmt.Sprintf("-%s", sv.VarRef())
}

// Literal asserts "signedVar <= bound". Depending on the sign of SignedVar
// this reads as an upper bound on +v (v <= bound) or, via the negative view,
// as a lower bound on v (v >= -bound).
type Literal struct {
	SVar  SignedVar
	Bound int32
}

// NewLeq builds the literal "v <= bound".
func NewLeq(v VarRef, bound int32) Literal {
	return Literal{SVar: PlusSignedVar(v), Bound: bound}
}

// NewGeq builds the literal "v >= bound", encoded on the negative signed var.
func NewGeq(v VarRef, bound int32) Literal {
	return Literal{SVar: MinusSignedVar(v), Bound: -bound}
}

// TRUE is the literal ZERO<=0, always entailed.
var TRUE = Literal{SVar: PlusSignedVar(ZERO), Bound: 0}

// FALSE is the negation of TRUE, never entailed.
var FALSE = TRUE.Negated()

// Negated returns the logical negation of the literal:
// ¬(sv<=k) == (¬sv <= -k-1).
func (l Literal) Negated() Literal {
	return Literal{SVar: l.SVar.Negated(), Bound: -l.Bound - 1}
}

// VarRef returns the variable the literal constrains.
func (l Literal) VarRef() VarRef {
	return l.SVar.VarRef()
}

// IsUpperBound returns true if the literal directly bounds +v (v <= Bound).
func (l Literal) IsUpperBound() bool {
	return l.SVar.IsPlus()
}

// Entails returns true if l being true implies other is true, i.e. l is at
// least as tight as other on the same signed var.
func (l Literal) Entails(other Literal) bool {
	return l.SVar == other.SVar && l.Bound <= other.Bound
}

func (l Literal) String() string {
	return fmt.Sprintf("(%s<=%d)", l.SVar, l.Bound)
}
