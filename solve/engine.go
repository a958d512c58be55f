// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package solve declares the minimal CP-SAT engine surface the rest of the
// core needs, and an Expr/BoolVar vocabulary that is engine-agnostic: the
// constraint builder (package build) only ever talks to an Engine, never
// to a concrete solver package, so an engine with process-wide internal
// state stays swappable behind this minimal interface.
package solve

import (
	"context"

	"github.com/clinicalroster/roster-core/domain"
)

// BoolVar is an opaque handle to a boolean decision variable created by an
// Engine. It is only valid for the Engine that created it.
type BoolVar struct {
	id int
}

// NewBoolVarHandle constructs a BoolVar wrapping id. It exists for engine
// implementations living outside this package (e.g. solve/fake) that need
// to hand out handles without exposing the id field itself.
func NewBoolVarHandle(id int) BoolVar { return BoolVar{id: id} }

// ID returns the opaque id backing v, for engines outside this package
// that index their own state by it (e.g. solve/fake).
func (v BoolVar) ID() int { return v.id }

// Term is a single coefficient*variable term of a linear expression.
type Term struct {
	Var   BoolVar
	Coeff int64
}

// Expr is a linear expression over BoolVars, `constant + Σ Coeff*Var`.
type Expr struct {
	Terms    []Term
	Constant int64
}

// Sum builds an Expr that is the unweighted sum of vars.
func Sum(vars ...BoolVar) Expr {
	e := Expr{Terms: make([]Term, len(vars))}
	for i, v := range vars {
		e.Terms[i] = Term{Var: v, Coeff: 1}
	}
	return e
}

// WeightedSum builds an Expr from parallel var/coefficient slices.
func WeightedSum(vars []BoolVar, coeffs []int64) Expr {
	e := Expr{Terms: make([]Term, len(vars))}
	for i, v := range vars {
		e.Terms[i] = Term{Var: v, Coeff: coeffs[i]}
	}
	return e
}

// Single builds a single-variable Expr with coefficient 1.
func Single(v BoolVar) Expr {
	return Expr{Terms: []Term{{Var: v, Coeff: 1}}}
}

// Op is a linear (in)equality operator.
type Op int

const (
	LessOrEqual Op = iota
	GreaterOrEqual
	Equal
)

// Constraint is an opaque handle to a posted constraint. It carries no
// behavior in this core; it exists so adapters that support it can expose
// richer operations (e.g. OnlyEnforceIf) without changing the Engine
// interface.
type Constraint struct {
	id int
}

// Engine is the minimal surface any CP-SAT-like solver must expose. The
// constraint builder and package generate depend only on this interface; concrete
// engines (CPSATEngine, solve/fake.Engine) are swapped in behind it.
type Engine interface {
	// NewBoolVar allocates a fresh boolean decision variable named name.
	NewBoolVar(name string) BoolVar

	// AddLinearInequality posts `lhs op rhs` as a hard constraint.
	AddLinearInequality(lhs Expr, op Op, rhs int64) Constraint

	// AddMaxEquality posts `target == max(inputs...)` as a hard constraint.
	AddMaxEquality(target Expr, inputs ...Expr) Constraint

	// Maximize sets the objective to maximize sum.
	Maximize(sum Expr)

	// Solve runs the engine with the given time limit and worker count and
	// returns the closed-set status. ctx cancellation is cooperative: once
	// Solve has started, only ctx or the time limit can end it early.
	Solve(ctx context.Context, timeLimitSeconds int, numWorkers int) (domain.SolverStatus, error)

	// Value returns the 0/1 assignment of v in the last solved response.
	Value(v BoolVar) int

	// ObjectiveValue returns the objective value of the last solved
	// response.
	ObjectiveValue() int64

	// StatusName returns the last solved response's status as one of
	// "OPTIMAL"|"FEASIBLE"|"INFEASIBLE"|"UNKNOWN".
	StatusName() string
}
