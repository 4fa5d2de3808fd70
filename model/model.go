// Package model is the stateless builder layer (L7): typed boolean and
// integer variables, linear/difference constraints, reification, and table
// constraints, all lowered directly onto the internal/domains store and the
// satreasoner/stn reasoners. Its vocabulary is new, but its lowering style —
// build small, typed helpers over the same AddClause/AddDiff primitives the
// CLI itself would call — follows the clause-builder idiom in
// parsers/parsers.go directly.
package model

import (
	"errors"
	"fmt"

	"github.com/plaans/aries/internal/domains"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/internal/satreasoner"
	"github.com/plaans/aries/internal/search"
	"github.com/plaans/aries/internal/stn"
)

// BoolVar is a 0/1-domain variable with convenience literal accessors.
type BoolVar struct{ V ids.VarRef }

// Lit returns the literal asserting the variable is true (1).
func (b BoolVar) Lit() ids.Literal { return ids.NewGeq(b.V, 1) }

// Not returns the literal asserting the variable is false (0).
func (b BoolVar) Not() ids.Literal { return ids.NewLeq(b.V, 0) }

// IntVar is a bounded integer variable, optional or not.
type IntVar struct{ V ids.VarRef }

// Eq returns the pair of literals asserting v == val.
func (v IntVar) Eq(val int32) (ids.Literal, ids.Literal) {
	return ids.NewLeq(v.V, val), ids.NewGeq(v.V, val)
}

// Model is the stateless-between-calls builder: every method either
// allocates a variable or lowers a constraint directly into the reasoners.
// It is never touched again once solver.Solve starts.
type Model struct {
	D        *domains.Domains
	Sat      *satreasoner.Reasoner
	Stn      *stn.Reasoner
	Brancher *search.Brancher
}

// New returns an empty model with its own domains store and reasoners.
func New() *Model {
	m := &Model{
		D:        domains.New(),
		Sat:      satreasoner.NewReasoner(),
		Stn:      stn.NewReasoner(),
		Brancher: search.NewBrancher(0.95, false),
	}
	m.expand()
	return m
}

func (m *Model) expand() {
	m.Sat.ExpandTo(m.D.NumVars())
	m.Stn.ExpandTo(m.D.NumVars())
}

// NewBoolVar allocates a fresh, non-optional boolean decision variable.
func (m *Model) NewBoolVar() BoolVar {
	v := m.D.NewVar(0, 1, ids.TRUE)
	m.expand()
	m.Brancher.AddVar(v)
	return BoolVar{V: v}
}

// NewIntVar allocates a fresh, non-optional bounded integer variable.
func (m *Model) NewIntVar(lb, ub int32) IntVar {
	v := m.D.NewVar(lb, ub, ids.TRUE)
	m.expand()
	m.Brancher.AddVar(v)
	return IntVar{V: v}
}

// NewOptionalIntVar allocates a variable whose presence is controlled by the
// given literal: the variable is absent whenever the literal is false.
func (m *Model) NewOptionalIntVar(lb, ub int32, presence ids.Literal) IntVar {
	v := m.D.NewVar(lb, ub, presence)
	m.expand()
	m.Brancher.AddVar(v)
	return IntVar{V: v}
}

// AddClause posts a hard disjunction of (boolean-form) literals.
func (m *Model) AddClause(lits ...ids.Literal) error {
	return m.Sat.AddClause(m.D, lits)
}

// andLiteral returns a literal entailed exactly when every literal in lits
// holds. ids.TRUE literals are dropped as trivially satisfied; a single
// remaining literal is returned directly with no new variable; two or more
// are tied together by a fresh auxiliary boolean variable and the defining
// clauses of an AND gate (one "r => lits[i]" clause per operand, plus one
// "all lits => r" clause), so the result is a genuine conjunction rather
// than an arbitrary pick among the operands.
func (m *Model) andLiteral(lits ...ids.Literal) (ids.Literal, error) {
	var distinct []ids.Literal
	seen := map[ids.Literal]bool{}
	for _, l := range lits {
		if l == ids.TRUE || seen[l] {
			continue
		}
		seen[l] = true
		distinct = append(distinct, l)
	}

	switch len(distinct) {
	case 0:
		return ids.TRUE, nil
	case 1:
		return distinct[0], nil
	}

	r := m.NewBoolVar()
	tail := make([]ids.Literal, 0, len(distinct)+1)
	for _, l := range distinct {
		if err := m.AddClause(r.Not(), l); err != nil {
			return r.Lit(), err
		}
		tail = append(tail, l.Negated())
	}
	tail = append(tail, r.Lit())
	if err := m.AddClause(tail...); err != nil {
		return r.Lit(), err
	}
	return r.Lit(), nil
}

// AddDiff posts the hard difference constraint "b - a <= k". When either
// variable is optional, the edge is only wired to fire while both are
// actually present: presence(a) ⇒ (trigger ∧ presence(b)) and symmetrically
// for b, so the constraint imposes no obligation on a scope where one of
// its variables doesn't exist.
func (m *Model) AddDiff(a, b IntVar, k int32) error {
	trigger, err := m.andLiteral(m.D.Presence(a.V), m.D.Presence(b.V))
	if err != nil {
		return err
	}
	return m.Stn.AddDiff(m.D, a.V, b.V, k, trigger, trigger)
}

// ReifyDiff returns a boolean variable whose value tracks whether
// "b - a <= k" holds, via precomputed forward and backward trigger
// literals. The forward edge is active when the reification and both
// variables' presence hold; its logical negation, "a - b <= -k-1", is wired
// as the backward edge, active when the reification is false and both
// variables are present — together the two make the reification
// bidirectional without an explicit equality theory, and without letting
// either edge fire outside the scope where both endpoints exist.
func (m *Model) ReifyDiff(a, b IntVar, k int32) (BoolVar, error) {
	r := m.NewBoolVar()
	presA := m.D.Presence(a.V)
	presB := m.D.Presence(b.V)

	fwdTrigger, err := m.andLiteral(r.Lit(), presA, presB)
	if err != nil {
		return r, err
	}
	if err := m.Stn.AddDiff(m.D, a.V, b.V, k, fwdTrigger, fwdTrigger); err != nil {
		return r, err
	}

	bwdTrigger, err := m.andLiteral(r.Not(), presA, presB)
	if err != nil {
		return r, err
	}
	if err := m.Stn.AddDiff(m.D, b.V, a.V, -k-1, bwdTrigger, bwdTrigger); err != nil {
		return r, err
	}
	return r, nil
}

// Reify returns a boolean variable whose value tracks whether lit holds,
// via the two clauses (¬r ∨ lit) and (r ∨ ¬lit).
func (m *Model) Reify(lit ids.Literal) (BoolVar, error) {
	r := m.NewBoolVar()
	if err := m.AddClause(r.Not(), lit); err != nil {
		return r, err
	}
	if err := m.AddClause(r.Lit(), lit.Negated()); err != nil {
		return r, err
	}
	return r, nil
}

// Enforce posts lit as a hard constraint whenever scope holds ("scope
// implies lit"); scope == ids.TRUE posts lit unconditionally.
func (m *Model) Enforce(lit ids.Literal, scope ids.Literal) error {
	if scope == ids.TRUE {
		return m.AddClause(lit)
	}
	return m.AddClause(scope.Negated(), lit)
}

var errTableArity = errors.New("model: table row arity does not match the number of columns")

// ForbidTable posts, for each row in rows, a clause excluding exactly that
// combination of boolean column values — the complement of an "allowed
// assignments" table constraint, expressed directly as CNF since every
// column here is boolean-valued (the common case for the reified atoms
// table constraints are typically built from).
func (m *Model) ForbidTable(cols []BoolVar, rows [][]bool) error {
	for _, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("%w: got %d values for %d columns", errTableArity, len(row), len(cols))
		}
		clause := make([]ids.Literal, len(cols))
		for i, v := range row {
			if v {
				clause[i] = cols[i].Not()
			} else {
				clause[i] = cols[i].Lit()
			}
		}
		if err := m.AddClause(clause...); err != nil {
			return err
		}
	}
	return nil
}
