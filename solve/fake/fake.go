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

// Package fake provides a solve.Engine that ignores every constraint it is
// given and instead returns whatever assignment the test configured. It
// exists to prove the validator re-derives violations independently of the
// builder and the real engine: a real CP-SAT engine would never emit an
// assignment that breaks one of its own constraints, so only a fake can
// manufacture that disagreement.
package fake

import (
	"context"

	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/solve"
)

// Engine is a solve.Engine whose Solve result is entirely prescribed by
// ForceValue, Default, and the Status/Objective fields; it never actually
// searches.
type Engine struct {
	names  []string
	forced map[int]int // var id -> forced 0/1 value, overrides Default

	// Status is returned verbatim by Solve.
	Status domain.SolverStatus
	// Objective is returned verbatim by ObjectiveValue.
	Objective int64
	// Default is the value Value returns for any variable not pinned with
	// ForceValue. Set to 1 to manufacture an engine that reports every
	// decision variable assigned, regardless of what constraints the
	// builder posted.
	Default int
}

// New returns an Engine that, absent further configuration, reports
// FEASIBLE with every variable at 0.
func New() *Engine {
	return &Engine{forced: make(map[int]int), Status: domain.StatusFeasible}
}

func (e *Engine) NewBoolVar(name string) solve.BoolVar {
	e.names = append(e.names, name)
	return solve.NewBoolVarHandle(len(e.names) - 1)
}

func (e *Engine) AddLinearInequality(solve.Expr, solve.Op, int64) solve.Constraint { return solve.Constraint{} }
func (e *Engine) AddMaxEquality(solve.Expr, ...solve.Expr) solve.Constraint        { return solve.Constraint{} }
func (e *Engine) Maximize(solve.Expr)                                             {}

// ForceValue pins v to value (0 or 1) in the response Solve will report.
func (e *Engine) ForceValue(v solve.BoolVar, value int) {
	e.forced[v.ID()] = value
}

func (e *Engine) Solve(ctx context.Context, timeLimitSeconds, numWorkers int) (domain.SolverStatus, error) {
	return e.Status, nil
}

func (e *Engine) Value(v solve.BoolVar) int {
	if val, ok := e.forced[v.ID()]; ok {
		return val
	}
	return e.Default
}

func (e *Engine) ObjectiveValue() int64 { return e.Objective }

func (e *Engine) StatusName() string { return string(e.Status) }
