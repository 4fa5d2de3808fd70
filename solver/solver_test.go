package solver

import (
	"context"
	"testing"

	"github.com/plaans/aries/config"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/model"
)

func newTestSolver(t *testing.T, m *model.Model) *Solver {
	t.Helper()
	sv, err := New(m, config.Default)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	return sv
}

// TestPigeonholeIsUnsat encodes 3 pigeons into 2 holes: each pigeon must
// occupy at least one hole, and no hole may hold two distinct pigeons. The
// resulting CNF has no model.
func TestPigeonholeIsUnsat(t *testing.T) {
	const pigeons, holes = 3, 2

	m := model.New()
	occupies := make([][]model.BoolVar, pigeons)
	for p := 0; p < pigeons; p++ {
		occupies[p] = make([]model.BoolVar, holes)
		for h := 0; h < holes; h++ {
			occupies[p][h] = m.NewBoolVar()
		}
	}

	for p := 0; p < pigeons; p++ {
		lits := make([]ids.Literal, holes)
		for h := 0; h < holes; h++ {
			lits[h] = occupies[p][h].Lit()
		}
		if err := m.AddClause(lits...); err != nil {
			t.Fatalf("AddClause (pigeon %d coverage): %v", p, err)
		}
	}

	for h := 0; h < holes; h++ {
		for p1 := 0; p1 < pigeons; p1++ {
			for p2 := p1 + 1; p2 < pigeons; p2++ {
				if err := m.AddClause(occupies[p1][h].Not(), occupies[p2][h].Not()); err != nil {
					t.Fatalf("AddClause (hole %d exclusion): %v", h, err)
				}
			}
		}
	}

	sv := newTestSolver(t, m)
	if status := sv.Solve(context.Background()); status != StatusUnsat {
		t.Errorf("Solve() = %v, want StatusUnsat", status)
	}
}

// notEqualAtOffset posts "a - b != offset" via two reified difference
// constraints covering the two ways the inequality can be violated.
func notEqualAtOffset(m *model.Model, a, b model.IntVar, offset int32) error {
	below, err := m.ReifyDiff(b, a, offset-1) // reifies a-b <= offset-1
	if err != nil {
		return err
	}
	above, err := m.ReifyDiff(a, b, -offset-1) // reifies b-a <= -offset-1, i.e. a-b >= offset+1
	if err != nil {
		return err
	}
	return m.AddClause(below.Lit(), above.Lit())
}

// TestNQueensFindsDistinctSolution encodes the 8-queens problem as integer
// row positions with column/diagonal distinctness constraints, and checks that the returned solution is a genuine placement: all columns
// distinct and no two queens share a diagonal.
func TestNQueensFindsDistinctSolution(t *testing.T) {
	const n = 8

	m := model.New()
	queens := make([]model.IntVar, n)
	for i := range queens {
		queens[i] = m.NewIntVar(0, n-1)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if err := notEqualAtOffset(m, queens[i], queens[j], 0); err != nil {
				t.Fatalf("column constraint (%d,%d): %v", i, j, err)
			}
			d := int32(j - i)
			if err := notEqualAtOffset(m, queens[i], queens[j], d); err != nil {
				t.Fatalf("diagonal constraint (%d,%d,+%d): %v", i, j, d, err)
			}
			if err := notEqualAtOffset(m, queens[i], queens[j], -d); err != nil {
				t.Fatalf("diagonal constraint (%d,%d,-%d): %v", i, j, d, err)
			}
		}
	}

	sv := newTestSolver(t, m)
	status := sv.Solve(context.Background())
	if status != StatusSat {
		t.Fatalf("Solve() = %v, want StatusSat", status)
	}

	sol, ok := sv.LastSolution()
	if !ok {
		t.Fatalf("LastSolution(): no solution recorded despite StatusSat")
	}

	vals := make([]int32, n)
	for i, q := range queens {
		vals[i] = sol.Values[q.V]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if vals[i] == vals[j] {
				t.Errorf("queens %d and %d share column %d", i, j, vals[i])
			}
			if abs32(vals[i]-vals[j]) == int32(j-i) {
				t.Errorf("queens %d and %d share a diagonal (%d,%d)", i, j, vals[i], vals[j])
			}
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// TestJobshopMinimizesMakespan encodes a 2-jobs-by-2-machines instance:
// job A runs op1 on m1 (3 units) then op2 on m2 (2 units);
// job B runs op1 on m2 (2 units) then op2 on m1 (4 units). Operations
// sharing a machine are disjoint via a reified ordering choice. The optimal
// makespan is 7: A's op1 (0..3) on m1 in parallel with B's op1 (0..2) on
// m2, then A's op2 (3..5) on m2 and B's op2 (3..7) on m1; branch-and-bound
// over the makespan variable finds the true optimum regardless of which
// particular schedule realizes it.
func TestJobshopMinimizesMakespan(t *testing.T) {
	const horizon = 20

	m := model.New()
	aOp1 := m.NewIntVar(0, horizon)
	aOp2 := m.NewIntVar(0, horizon)
	bOp1 := m.NewIntVar(0, horizon)
	bOp2 := m.NewIntVar(0, horizon)
	makespan := m.NewIntVar(0, horizon)

	const aOp1Dur, aOp2Dur, bOp1Dur, bOp2Dur = 3, 2, 2, 4

	// Within-job precedence: op2 starts no earlier than op1's completion.
	mustPrecede := func(first model.IntVar, dur int32, second model.IntVar) {
		// second >= first + dur  <=>  first - second <= -dur.
		if err := m.AddDiff(second, first, -dur); err != nil {
			t.Fatalf("AddDiff (precedence): %v", err)
		}
	}
	mustPrecede(aOp1, aOp1Dur, aOp2)
	mustPrecede(bOp1, bOp1Dur, bOp2)

	// Disjunctive machine-sharing constraints, each reified as "does X run
	// before Y on the shared machine".
	disjoint := func(x model.IntVar, xDur int32, y model.IntVar, yDur int32) {
		// x before y: y >= x + xDur  <=>  x - y <= -xDur.
		xBeforeY, err := m.ReifyDiff(y, x, -xDur)
		if err != nil {
			t.Fatalf("ReifyDiff: %v", err)
		}
		// y before x: x >= y + yDur  <=>  y - x <= -yDur.
		yBeforeX, err := m.ReifyDiff(x, y, -yDur)
		if err != nil {
			t.Fatalf("ReifyDiff: %v", err)
		}
		if err := m.AddClause(xBeforeY.Lit(), yBeforeX.Lit()); err != nil {
			t.Fatalf("AddClause (disjunction): %v", err)
		}
	}
	disjoint(aOp1, aOp1Dur, bOp2, bOp2Dur) // both use m1
	disjoint(bOp1, bOp1Dur, aOp2, aOp2Dur) // both use m2

	// Makespan is at least the completion time of every operation:
	// op + dur <= makespan  <=>  op - makespan <= -dur.
	completes := func(op model.IntVar, dur int32) {
		if err := m.AddDiff(makespan, op, -dur); err != nil {
			t.Fatalf("AddDiff (makespan bound): %v", err)
		}
	}
	completes(aOp1, aOp1Dur)
	completes(aOp2, aOp2Dur)
	completes(bOp1, bOp1Dur)
	completes(bOp2, bOp2Dur)

	sv := newTestSolver(t, m)
	best, status := sv.SolveOptimal(context.Background(), Objective{Var: makespan, Minimize: true})
	if status != StatusSat {
		t.Fatalf("SolveOptimal() = %v, want StatusSat", status)
	}
	if best == nil {
		t.Fatalf("SolveOptimal(): no solution returned despite StatusSat")
	}
	if got := best.Values[makespan.V]; got != 7 {
		t.Errorf("makespan = %d, want 7", got)
	}
}

// addSumEncoding posts order-encoding clauses over raw bound literals
// (shared currency between the SAT and STN theories) tying total to x+y
// exactly: for every threshold pair (xv, yv), x>=xv && y>=yv implies
// total>=xv+yv, and x<=xv && y<=yv implies total<=xv+yv. A pure
// difference-logic edge cannot express a three-variable sum, so this is
// deliberately a SAT-level encoding instead of an STN one.
func addSumEncoding(m *model.Model, x, y, total model.IntVar, xLB, xUB, yLB, yUB int32) error {
	for xv := xLB; xv <= xUB; xv++ {
		for yv := yLB; yv <= yUB; yv++ {
			if err := m.AddClause(
				ids.NewLeq(x.V, xv-1),
				ids.NewLeq(y.V, yv-1),
				ids.NewGeq(total.V, xv+yv),
			); err != nil {
				return err
			}
			if err := m.AddClause(
				ids.NewGeq(x.V, xv+1),
				ids.NewGeq(y.V, yv+1),
				ids.NewLeq(total.V, xv+yv),
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// TestIncrementalOptimizationStream exercises the anytime channel:
// maximize x+y subject to x+y<=10, x<=6, y<=7, x,y in [0,10].
// The stream must yield a solution whose objective value reaches 10 and
// then close once no further improvement is possible.
func TestIncrementalOptimizationStream(t *testing.T) {
	m := model.New()
	x := m.NewIntVar(0, 6)
	y := m.NewIntVar(0, 7)
	total := m.NewIntVar(0, 13)

	if err := addSumEncoding(m, x, y, total, 0, 6, 0, 7); err != nil {
		t.Fatalf("addSumEncoding: %v", err)
	}
	if err := m.AddClause(ids.NewLeq(total.V, 10)); err != nil {
		t.Fatalf("AddClause (x+y<=10): %v", err)
	}

	sv := newTestSolver(t, m)
	ch := sv.SolveAnytime(context.Background(), Objective{Var: total, Minimize: false})

	best := int32(-1)
	for sol := range ch {
		if v := sol.Values[total.V]; v > best {
			best = v
		}
	}
	if best != 10 {
		t.Errorf("best x+y = %d, want 10", best)
	}
}
