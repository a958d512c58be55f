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

package solve

import (
	"context"
	"fmt"

	log "github.com/golang/glog"
	"google.golang.org/protobuf/proto"

	"github.com/clinicalroster/roster-core/domain"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"
)

// CPSATEngine adapts github.com/google/or-tools's Go CP-SAT bindings
// (ortools/sat/go/cpmodel) to the Engine interface. It owns all
// engine-specific vocabulary (BoolVar proto indices, SatParameters,
// CpSolverStatus); nothing outside this file imports cpmodel directly.
type CPSATEngine struct {
	builder *cpmodel.Builder
	vars    []cpmodel.BoolVar

	// LogSearchProgress enables CP-SAT's own search-progress logging when
	// set; default false.
	LogSearchProgress bool

	response *cmpb.CpSolverResponse
}

// NewCPSATEngine returns a fresh engine with an empty model.
func NewCPSATEngine() *CPSATEngine {
	return &CPSATEngine{builder: cpmodel.NewCpModelBuilder()}
}

func (e *CPSATEngine) NewBoolVar(name string) BoolVar {
	v := e.builder.NewBoolVar().WithName(name)
	e.vars = append(e.vars, v)
	return BoolVar{id: len(e.vars) - 1}
}

func (e *CPSATEngine) linearExpr(expr Expr) *cpmodel.LinearExpr {
	le := cpmodel.NewLinearExpr()
	for _, t := range expr.Terms {
		le.AddTerm(e.vars[t.Var.id], t.Coeff)
	}
	le.AddConstant(expr.Constant)
	return le
}

func (e *CPSATEngine) AddLinearInequality(lhs Expr, op Op, rhs int64) Constraint {
	le := e.linearExpr(lhs)
	switch op {
	case LessOrEqual:
		e.builder.AddLessOrEqual(le, cpmodel.NewConstant(rhs))
	case GreaterOrEqual:
		e.builder.AddGreaterOrEqual(le, cpmodel.NewConstant(rhs))
	case Equal:
		e.builder.AddEquality(le, cpmodel.NewConstant(rhs))
	default:
		log.Fatalf("solve: unknown Op %v", op)
	}
	return Constraint{}
}

func (e *CPSATEngine) AddMaxEquality(target Expr, inputs ...Expr) Constraint {
	args := make([]cpmodel.LinearArgument, len(inputs))
	for i, in := range inputs {
		args[i] = e.linearExpr(in)
	}
	e.builder.AddMaxEquality(e.linearExpr(target), args...)
	return Constraint{}
}

func (e *CPSATEngine) Maximize(sum Expr) {
	e.builder.Maximize(e.linearExpr(sum))
}

// Solve builds the proto model and invokes the CP-SAT engine with the
// given time limit and worker count, exactly as
// solve_with_time_limit_sample_sat.go configures sppb.SatParameters. ctx
// cancellation triggers the engine's own interrupt channel via
// cpmodel.SolveCpModelInterruptibleWithParameters.
func (e *CPSATEngine) Solve(ctx context.Context, timeLimitSeconds int, numWorkers int) (domain.SolverStatus, error) {
	m, err := e.builder.Model()
	if err != nil {
		return "", fmt.Errorf("solve: building model: %w", err)
	}

	params := &sppb.SatParameters{
		MaxTimeInSeconds:  proto.Float64(float64(timeLimitSeconds)),
		NumSearchWorkers:  proto.Int32(int32(numWorkers)),
		LogSearchProgress: proto.Bool(e.LogSearchProgress),
	}

	interrupt := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			close(interrupt)
		case <-done:
		}
	}()

	response, err := cpmodel.SolveCpModelInterruptibleWithParameters(m, params, interrupt)
	if err != nil {
		return "", fmt.Errorf("solve: engine returned an error: %w", err)
	}
	e.response = response

	status, err := statusFromProto(response.GetStatus())
	if err != nil {
		// MODEL_INVALID and any future unnamed status are a programmer
		// error, not a roster status.
		log.Errorf("solve: %v", err)
		return "", err
	}
	return status, nil
}

func statusFromProto(s cmpb.CpSolverStatus) (domain.SolverStatus, error) {
	switch s {
	case cmpb.CpSolverStatus_OPTIMAL:
		return domain.StatusOptimal, nil
	case cmpb.CpSolverStatus_FEASIBLE:
		return domain.StatusFeasible, nil
	case cmpb.CpSolverStatus_INFEASIBLE:
		return domain.StatusInfeasible, nil
	case cmpb.CpSolverStatus_UNKNOWN:
		return domain.StatusUnknown, nil
	default:
		return "", fmt.Errorf("solve: engine returned unsupported status %v", s)
	}
}

func (e *CPSATEngine) Value(v BoolVar) int {
	if cpmodel.SolutionBooleanValue(e.response, e.vars[v.id]) {
		return 1
	}
	return 0
}

func (e *CPSATEngine) ObjectiveValue() int64 {
	return int64(e.response.GetObjectiveValue())
}

func (e *CPSATEngine) StatusName() string {
	return e.response.GetStatus().String()
}
