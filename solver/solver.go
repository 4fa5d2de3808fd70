// Package solver is the public facade (L7 companion): it wires a built
// model's reasoners into a search.Loop, exposes one-shot, anytime and
// branch-and-bound optimal solving, and a thin portfolio-parallel wrapper.
package solver

import (
	"context"
	"errors"
	"sync"

	"github.com/plaans/aries/config"
	"github.com/plaans/aries/internal/ids"
	"github.com/plaans/aries/internal/reasoner"
	"github.com/plaans/aries/internal/search"
	"github.com/plaans/aries/model"
)

// Status mirrors search.Status under the public-facing name.
type Status = search.Status

const (
	StatusUnknown = search.StatusUnknown
	StatusSat     = search.StatusSat
	StatusUnsat   = search.StatusUnsat
)

// ErrEqLogicUnsupported is returned by New when cfg.UseEqLogic is set: the
// equality-logic theory is not implemented in this solver.
var ErrEqLogicUnsupported = errors.New("solver: equality-logic theory is not implemented")

// Solver binds one model to one search loop. It is single-use: call Solve,
// SolveOptimal or SolveAnytime once per instance.
type Solver struct {
	m    *model.Model
	loop *search.Loop
}

// New validates cfg and builds a search loop over m's reasoners, with the
// SAT reasoner always first and the STN reasoner propagating after it.
func New(m *model.Model, cfg config.Config) (*Solver, error) {
	if cfg.UseEqLogic {
		return nil, ErrEqLogicUnsupported
	}

	m.Sat.SetClauseDecay(cfg.ClauseDecay)
	m.Brancher.SetDecay(cfg.VariableDecay)
	m.Brancher.SetPhaseSaving(cfg.PhaseSaving)

	opts := search.Options{
		ClauseDecay:   cfg.ClauseDecay,
		VariableDecay: cfg.VariableDecay,
		MaxConflicts:  cfg.MaxConflicts,
		Timeout:       cfg.Timeout,
		PhaseSaving:   cfg.PhaseSaving,
		LubyBase:      100,
	}

	loop := search.NewLoop(m.D, m.Sat, []reasoner.Reasoner{m.Stn}, m.Brancher, opts)
	return &Solver{m: m, loop: loop}, nil
}

// Solve runs the CDCL loop to completion (subject to cfg's stop conditions
// and ctx cancellation) and returns the outcome.
func (s *Solver) Solve(ctx context.Context) Status {
	s.loop.SetContext(ctx)
	s.m.Stn.SetContext(ctx)
	return s.loop.Solve()
}

// LastSolution returns the most recently found solution, or ok=false if
// none has been found yet.
func (s *Solver) LastSolution() (search.Solution, bool) {
	if len(s.loop.Models) == 0 {
		return search.Solution{}, false
	}
	return s.loop.Models[len(s.loop.Models)-1], true
}

// Objective names the variable a branch-and-bound search should optimize.
type Objective struct {
	Var      model.IntVar
	Minimize bool
}

func (s *Solver) tighten(obj Objective, sol search.Solution) error {
	val := sol.Values[obj.Var.V]
	if obj.Minimize {
		return s.m.AddClause(ids.NewLeq(obj.Var.V, val-1))
	}
	return s.m.AddClause(ids.NewGeq(obj.Var.V, val+1))
}

// SolveOptimal runs branch-and-bound to exact optimality: every time a
// solution is found, a clause forbidding any non-improving value of
// obj.Var is posted at the (now root-level) decision level, and the search
// restarts. Returns the best solution found and the terminal status:
// StatusSat means proven optimal, StatusUnknown means a stop condition or
// ctx cancellation interrupted the search with a (possibly non-optimal)
// incumbent in hand.
func (s *Solver) SolveOptimal(ctx context.Context, obj Objective) (*search.Solution, Status) {
	var best *search.Solution
	for {
		status := s.Solve(ctx)
		switch status {
		case StatusUnsat:
			if best == nil {
				return nil, StatusUnsat
			}
			return best, StatusSat
		case StatusUnknown:
			return best, StatusUnknown
		}

		sol, _ := s.LastSolution()
		best = &sol
		if err := s.tighten(obj, sol); err != nil {
			// The improving bound is already refuted at the root level:
			// no better solution exists.
			return best, StatusSat
		}
	}
}

// SolveAnytime streams every improving solution on the returned channel,
// closing it once the search is exhausted, a stop condition fires, or ctx
// is cancelled.
func (s *Solver) SolveAnytime(ctx context.Context, obj Objective) <-chan search.Solution {
	ch := make(chan search.Solution)
	go func() {
		defer close(ch)
		for {
			status := s.Solve(ctx)
			if status != StatusSat {
				return
			}
			sol, _ := s.LastSolution()
			select {
			case ch <- sol:
			case <-ctx.Done():
				return
			}
			if err := s.tighten(obj, sol); err != nil {
				return
			}
		}
	}()
	return ch
}

// PortfolioResult is the outcome of a SolvePortfolio race.
type PortfolioResult struct {
	Status   Status
	Solution *search.Solution
}

// SolvePortfolio runs one solver per (model, config) pair concurrently,
// each in its own goroutine, and returns as soon as the first one reaches a
// decisive status (Sat or Unsat), cancelling the rest via ctx. Communication
// between goroutines is limited to ctx cancellation and a sync.Once-guarded
// result: each Solver is a pure value with no shared mutable search state,
// so no other coordination is needed between portfolio members.
func SolvePortfolio(ctx context.Context, models []*model.Model, cfgs []config.Config) (PortfolioResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var once sync.Once
	var wg sync.WaitGroup
	result := PortfolioResult{Status: StatusUnknown}

	for i, m := range models {
		cfg := cfgs[0]
		if i < len(cfgs) {
			cfg = cfgs[i]
		}

		sv, err := New(m, cfg)
		if err != nil {
			return PortfolioResult{}, err
		}

		wg.Add(1)
		go func(sv *Solver) {
			defer wg.Done()
			status := sv.Solve(ctx)
			if status == StatusUnknown {
				return
			}
			once.Do(func() {
				result.Status = status
				if status == StatusSat {
					if sol, ok := sv.LastSolution(); ok {
						result.Solution = &sol
					}
				}
				cancel()
			})
		}(sv)
	}

	wg.Wait()
	return result, nil
}
