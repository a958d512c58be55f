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

// Package generate orchestrates the full roster pipeline: snapshot, build,
// solve, validate, persist. It is the only package that sequences the
// other components; none of them know about each other.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/clinicalroster/roster-core/build"
	"github.com/clinicalroster/roster-core/dataset"
	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/solve"
	"github.com/clinicalroster/roster-core/store"
	"github.com/clinicalroster/roster-core/validate"
)

// ErrScheduleFinalized is returned when a generation run targets a
// (month, year) whose schedule is already finalized.
var ErrScheduleFinalized = errors.New("generate: schedule is finalized")

// ErrAlreadyRunning is returned when a generation run is already in flight
// for the same (month, year): at most one in-flight generation per
// (month, year) is allowed.
var ErrAlreadyRunning = errors.New("generate: generation already in progress for this period")

const finalizedStatus = "finalized"

// inFlight is the process-wide advisory lock keyed by (year, month); it
// only prevents concurrent generation within this process — no
// cross-process guarantee is implied.
var inFlight sync.Map // map[[2]int]struct{}

// ProgressFunc receives coarse progress notifications during a generation
// run. step names the pipeline stage ("snapshot", "build", "solve",
// "validate", "persist"); detail is a short human-readable note. Callers
// that don't care about progress pass nil. It never attempts constraint
// relaxation on timeout or infeasibility; it only reports where the
// pipeline currently is.
type ProgressFunc func(step, detail string)

// EngineFactory constructs a fresh solve.Engine for a single generation run.
// Engines are not reused across runs: each run gets its own Builder.
type EngineFactory func() solve.Engine

// NewCPSATEngineFactory returns an EngineFactory producing solve.CPSATEngine
// values, the default used by cmd/roster.
func NewCPSATEngineFactory() EngineFactory {
	return func() solve.Engine { return solve.NewCPSATEngine() }
}

// Options configures a single call to Generate.
type Options struct {
	// TimeLimit bounds the solver's search.
	TimeLimit time.Duration
	// NumWorkers is the solver's parallel worker count; 0 lets the engine
	// choose its own default.
	NumWorkers int
	// Progress, if non-nil, is called as the pipeline advances.
	Progress ProgressFunc
	// Engine constructs the solve.Engine for this run. Defaults to a real
	// CPSATEngine if nil.
	Engine EngineFactory
}

func (o Options) engine() solve.Engine {
	if o.Engine != nil {
		return o.Engine()
	}
	return solve.NewCPSATEngine()
}

func (o Options) report(step, detail string) {
	if o.Progress != nil {
		o.Progress(step, detail)
	}
}

// Generate runs the full pipeline for (month, year) against rw and persists
// the result in a single atomic transaction.
func Generate(ctx context.Context, rw store.ReadWriter, month, year int, opts Options) (domain.GenerationResult, error) {
	key := [2]int{year, month}
	if _, already := inFlight.LoadOrStore(key, struct{}{}); already {
		return domain.GenerationResult{}, ErrAlreadyRunning
	}
	defer inFlight.Delete(key)

	status, found, err := rw.ScheduleStatus(ctx, month, year)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: checking schedule status: %w", err)
	}
	if found && status == finalizedStatus {
		return domain.GenerationResult{}, fmt.Errorf("%w: %d-%02d", ErrScheduleFinalized, year, month)
	}

	opts.report("snapshot", fmt.Sprintf("%d-%02d", year, month))
	ds, err := dataset.Snapshot(ctx, rw, month, year)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: snapshot: %w", err)
	}
	logUnsatisfiableRequirements(ds)

	opts.report("build", fmt.Sprintf("%d doctors x %d shifts", ds.NumDoctors(), ds.NumShifts()))
	engine := opts.engine()
	model := build.Build(engine, ds)

	opts.report("solve", "")
	start := time.Now()
	status2, err := engine.Solve(ctx, int(opts.TimeLimit.Seconds()), opts.NumWorkers)
	elapsed := time.Since(start)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: solve: %w", err)
	}
	log.Infof("generate: %d-%02d solved status=%s in %.2fs", year, month, status2, elapsed.Seconds())

	result := domain.GenerationResult{
		Status:            status2,
		SolverTimeSeconds: elapsed.Seconds(),
	}

	if !status2.IsFeasible() {
		logInfeasibilityHints(ds)
		opts.report("persist", "infeasible")
		scheduleID, err := persistInfeasible(ctx, rw, month, year, result)
		if err != nil {
			return domain.GenerationResult{}, err
		}
		result.ScheduleID = scheduleID
		return result, nil
	}

	assignments := extractAssignments(model, engine)
	result.AssignmentCount = len(assignments)
	result.ObjectiveValue = engine.ObjectiveValue()

	opts.report("validate", fmt.Sprintf("%d assignments", len(assignments)))
	violations := validate.Check(ds, assignments)
	violations = append(violations, unsatisfiableRequirementViolations(ds)...)
	result.ViolationCount = len(violations)
	logCoverageSummary(ds, assignments, violations)

	opts.report("persist", fmt.Sprintf("%d assignments, %d violations", len(assignments), len(violations)))
	scheduleID, err := persist(ctx, rw, month, year, assignments, violations, result)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	result.ScheduleID = scheduleID
	return result, nil
}

// Validate re-checks a previously persisted schedule without re-solving,
// reconstructing the snapshot it was generated against.
func Validate(ctx context.Context, r store.Reader, scheduleID string) (domain.ValidationResult, error) {
	month, year, found, err := r.ScheduleMonthYear(ctx, scheduleID)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validate: resolving schedule period: %w", err)
	}
	if !found {
		return domain.ValidationResult{}, fmt.Errorf("validate: unknown schedule %q", scheduleID)
	}

	ds, err := dataset.Snapshot(ctx, r, month, year)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validate: snapshot: %w", err)
	}

	assignments, err := r.ScheduleAssignments(ctx, scheduleID)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("validate: loading assignments: %w", err)
	}

	violations := validate.Check(ds, assignments)
	return domain.ValidationResult{
		ViolationCount: len(violations),
		Violations:     violations,
	}, nil
}

func extractAssignments(model *build.Model, engine solve.Engine) []domain.Assignment {
	var out []domain.Assignment
	for di, doctor := range model.Data.Doctors {
		for si, shift := range model.Data.Shifts {
			if engine.Value(model.X[di][si]) == 1 {
				out = append(out, domain.Assignment{
					DoctorID: doctor.ID,
					ShiftID:  shift.ID,
					Kind:     domain.AssignmentScheduled,
				})
			}
		}
	}
	return out
}

func persist(ctx context.Context, rw store.ReadWriter, month, year int, assignments []domain.Assignment, violations []domain.Violation, result domain.GenerationResult) (string, error) {
	var scheduleID string
	err := rw.WithTransaction(ctx, func(w store.Writer) error {
		id, err := w.UpsertSchedule(ctx, month, year)
		if err != nil {
			return fmt.Errorf("upserting schedule: %w", err)
		}
		scheduleID = id

		if err := w.DeleteAssignments(ctx, id); err != nil {
			return fmt.Errorf("clearing prior assignments: %w", err)
		}
		stamped := make([]domain.Assignment, len(assignments))
		for i, a := range assignments {
			a.ScheduleID = id
			stamped[i] = a
		}
		if err := w.InsertAssignments(ctx, id, stamped); err != nil {
			return fmt.Errorf("inserting assignments: %w", err)
		}

		if err := w.DeleteViolations(ctx, id); err != nil {
			return fmt.Errorf("clearing prior violations: %w", err)
		}
		if err := w.InsertViolations(ctx, id, violations); err != nil {
			return fmt.Errorf("inserting violations: %w", err)
		}

		meta := domain.ScheduleMetadata{
			SolverStatus:      result.Status,
			SolverTimeSeconds: result.SolverTimeSeconds,
			ObjectiveValue:    result.ObjectiveValue,
		}
		if err := w.UpdateScheduleMetadata(ctx, id, meta); err != nil {
			return fmt.Errorf("updating schedule metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: persisting schedule: %w", err)
	}
	return scheduleID, nil
}

// persistInfeasible records an infeasible or unknown run with no assignments
// so the caller can see a schedule exists and why it has none.
func persistInfeasible(ctx context.Context, rw store.ReadWriter, month, year int, result domain.GenerationResult) (string, error) {
	var scheduleID string
	err := rw.WithTransaction(ctx, func(w store.Writer) error {
		id, err := w.UpsertSchedule(ctx, month, year)
		if err != nil {
			return fmt.Errorf("upserting schedule: %w", err)
		}
		scheduleID = id
		if err := w.DeleteAssignments(ctx, id); err != nil {
			return fmt.Errorf("clearing prior assignments: %w", err)
		}
		if err := w.DeleteViolations(ctx, id); err != nil {
			return fmt.Errorf("clearing prior violations: %w", err)
		}
		meta := domain.ScheduleMetadata{
			SolverStatus:      result.Status,
			SolverTimeSeconds: result.SolverTimeSeconds,
			Notes:             "solver returned no feasible assignment",
		}
		return w.UpdateScheduleMetadata(ctx, id, meta)
	})
	if err != nil {
		return "", fmt.Errorf("generate: persisting infeasible schedule: %w", err)
	}
	return scheduleID, nil
}

func logUnsatisfiableRequirements(ds *dataset.Dataset) {
	for _, idx := range ds.UnsatisfiableRequirements {
		req := ds.Requirements[idx]
		log.Warningf("generate: %d-%02d requirement %s on specialty %q has zero qualified active doctors",
			ds.Year, ds.Month, req.ID, req.RequiredSpecialty)
	}
}

// unsatisfiableRequirementViolations copies the loader's unsatisfiable
// ShiftRequirement findings into the persisted violation batch, so they
// reach the store alongside the validator's own findings instead of only
// living in the log (spec.md §9 open question 2's other half).
func unsatisfiableRequirementViolations(ds *dataset.Dataset) []domain.Violation {
	var out []domain.Violation
	for _, idx := range ds.UnsatisfiableRequirements {
		req := ds.Requirements[idx]
		out = append(out, domain.Violation{
			Kind:     domain.ViolationUnsatisfiableRequirement,
			Severity: domain.SeverityWarning,
			Description: fmt.Sprintf("requirement %s on specialty %q has zero qualified active doctors and was skipped",
				req.ID, req.RequiredSpecialty),
		})
	}
	return out
}

// logInfeasibilityHints surfaces coarse capacity signals a human can act
// on, without attempting any automatic relaxation.
func logInfeasibilityHints(ds *dataset.Dataset) {
	cfg := ds.Configuration
	capacity := ds.NumDoctors() * cfg.MaxShiftsPerDoctor
	demand := 0
	for _, s := range ds.Shifts {
		demand += s.EffectiveMinDoctors(cfg)
	}
	log.Warningf("generate: %d-%02d infeasible: capacity=%d (doctors x max shifts), demand=%d (sum of shift minimums)",
		ds.Year, ds.Month, capacity, demand)
	if capacity < demand {
		log.Warningf("generate: %d-%02d capacity is below demand; relax MaxShiftsPerDoctor or add doctors", ds.Year, ds.Month)
	}
}

// logCoverageSummary logs each doctor's assigned shift count and the total
// violation count at verbosity 1.
func logCoverageSummary(ds *dataset.Dataset, assignments []domain.Assignment, violations []domain.Violation) {
	if !log.V(1) {
		return
	}
	counts := make(map[string]int, ds.NumDoctors())
	for _, a := range assignments {
		counts[a.DoctorID]++
	}
	for _, d := range ds.Doctors {
		log.Infof("generate: %d-%02d doctor %s assigned %d shifts", ds.Year, ds.Month, d.ID, counts[d.ID])
	}
	log.Infof("generate: %d-%02d validator found %d violations", ds.Year, ds.Month, len(violations))
}
