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

package build

import (
	"context"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/clinicalroster/roster-core/dataset"
	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/solve"
)

// recordingEngine is a solve.Engine that posts nothing to a real solver; it
// only records what the builder asked for, so these tests can assert on
// constraint shape without needing an actual CP-SAT backend.
type recordingEngine struct {
	numVars       int
	inequalities  []inequalityCall
	maxEqualities int
	objectiveLen  int
}

type inequalityCall struct {
	lhs solve.Expr
	op  solve.Op
	rhs int64
}

func (e *recordingEngine) NewBoolVar(name string) solve.BoolVar {
	v := solve.NewBoolVarHandle(e.numVars)
	e.numVars++
	return v
}

func (e *recordingEngine) AddLinearInequality(lhs solve.Expr, op solve.Op, rhs int64) solve.Constraint {
	e.inequalities = append(e.inequalities, inequalityCall{lhs, op, rhs})
	return solve.Constraint{}
}

func (e *recordingEngine) AddMaxEquality(target solve.Expr, inputs ...solve.Expr) solve.Constraint {
	e.maxEqualities++
	return solve.Constraint{}
}

func (e *recordingEngine) Maximize(sum solve.Expr) { e.objectiveLen = len(sum.Terms) }

func (e *recordingEngine) Solve(ctx context.Context, timeLimitSeconds, numWorkers int) (domain.SolverStatus, error) {
	return domain.StatusFeasible, nil
}

func (e *recordingEngine) Value(v solve.BoolVar) int { return 0 }

func (e *recordingEngine) ObjectiveValue() int64 { return 0 }

func (e *recordingEngine) StatusName() string { return string(domain.StatusFeasible) }

func smallDataset(numDoctors, numDays int) *dataset.Dataset {
	cfg := domain.Configuration{
		ID:                        "cfg-1",
		MinShiftsPerDoctor:        1,
		MaxShiftsPerDoctor:        30,
		MaxConsecutiveShifts:      3,
		MinRestHoursBetweenShifts: 12,
		MaxConsecutiveDaysOff:     5,
		AvoidSingleDayOff:         true,
		DefaultMinDoctorsPerShift: 1,
	}

	ds := &dataset.Dataset{
		Configuration:      cfg,
		DoctorIndex:        make(map[string]int),
		ShiftIndex:         make(map[string]int),
		DoctorsBySpecialty: make(map[string][]int),
		LeaveDates:         make(map[string]map[string]bool),
		DailyShifts:        make(map[string][]int),
	}

	for i := 0; i < numDoctors; i++ {
		id := "doc-" + string(rune('A'+i))
		ds.Doctors = append(ds.Doctors, domain.Doctor{ID: id, Active: true})
		ds.DoctorIndex[id] = i
	}

	start := domain.NewDate(2026, time.March, 1)
	for d := 0; d < numDays; d++ {
		date := start.AddDays(d)
		ds.Dates = append(ds.Dates, date)
		for _, kind := range []domain.ShiftKind{domain.ShiftDay, domain.ShiftNight} {
			id := date.String() + "-" + string(kind)
			si := len(ds.Shifts)
			ds.Shifts = append(ds.Shifts, domain.Shift{ID: id, Date: date, Kind: kind})
			ds.ShiftIndex[id] = si
			ds.DailyShifts[date.String()] = append(ds.DailyShifts[date.String()], si)
		}
	}
	return ds
}

// TestBuildCoverageConstraintCount checks that there is at least one
// coverage-shaped constraint per shift.
func TestBuildCoverageConstraintCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numDoctors := rapid.IntRange(1, 8).Draw(rt, "numDoctors")
		numDays := rapid.IntRange(1, 14).Draw(rt, "numDays")

		ds := smallDataset(numDoctors, numDays)
		engine := &recordingEngine{}
		m := Build(engine, ds)

		if len(m.X) != numDoctors || (numDoctors > 0 && len(m.X[0]) != ds.NumShifts()) {
			rt.Fatalf("X has wrong shape: %d doctors, want %d", len(m.X), numDoctors)
		}

		coverageCount := 0
		for _, call := range engine.inequalities {
			if call.op == solve.GreaterOrEqual && call.rhs == int64(ds.Configuration.DefaultMinDoctorsPerShift) {
				coverageCount++
			}
		}
		if coverageCount < ds.NumShifts() {
			rt.Fatalf("found %d coverage-shaped constraints, want at least %d (one per shift)", coverageCount, ds.NumShifts())
		}
	})
}

// TestBuildLeaveConstraintsForceZero checks that a doctor on leave gets an
// equality-to-zero constraint on every shift that day.
func TestBuildLeaveConstraintsForceZero(t *testing.T) {
	ds := smallDataset(2, 3)
	ds.LeaveDates["doc-A"] = map[string]bool{ds.Dates[1].String(): true}

	engine := &recordingEngine{}
	Build(engine, ds)

	zeroEqualities := 0
	for _, call := range engine.inequalities {
		if call.op == solve.Equal && call.rhs == 0 {
			zeroEqualities++
		}
	}
	wantShiftsOnLeaveDay := len(ds.DailyShifts[ds.Dates[1].String()])
	if zeroEqualities != wantShiftsOnLeaveDay {
		t.Errorf("zero-equality constraints = %d, want %d", zeroEqualities, wantShiftsOnLeaveDay)
	}
}

// TestBuildShiftCountConstraintsPerDoctor checks that every doctor gets
// exactly one min and one max workload constraint.
func TestBuildShiftCountConstraintsPerDoctor(t *testing.T) {
	ds := smallDataset(4, 7)
	// Coverage and max-consecutive-days-off constraints are also
	// GreaterOrEqual-1; a distinct minimum keeps them out of minCount.
	ds.Configuration.MinShiftsPerDoctor = 2
	engine := &recordingEngine{}
	Build(engine, ds)

	var minCount, maxCount int
	for _, call := range engine.inequalities {
		switch {
		case call.op == solve.GreaterOrEqual && call.rhs == int64(ds.Configuration.MinShiftsPerDoctor):
			minCount++
		case call.op == solve.LessOrEqual && call.rhs == int64(ds.Configuration.MaxShiftsPerDoctor):
			maxCount++
		}
	}
	if minCount != ds.NumDoctors() {
		t.Errorf("min-shift constraints = %d, want %d", minCount, ds.NumDoctors())
	}
	if maxCount != ds.NumDoctors() {
		t.Errorf("max-shift constraints = %d, want %d", maxCount, ds.NumDoctors())
	}
}

// TestBuildObjectiveCoversEveryVariable checks that the objective is a pure
// sum over every x[d,s].
func TestBuildObjectiveCoversEveryVariable(t *testing.T) {
	ds := smallDataset(3, 5)
	engine := &recordingEngine{}
	Build(engine, ds)

	want := ds.NumDoctors() * ds.NumShifts()
	if engine.objectiveLen != want {
		t.Errorf("objective term count = %d, want %d", engine.objectiveLen, want)
	}
}

// TestBuildSingleDayOffUsesMaxEquality confirms rule 6 only fires when
// AvoidSingleDayOff is set, and posts three auxiliaries (one per date) for
// every (doctor, consecutive-date triple) via AddMaxEquality.
func TestBuildSingleDayOffUsesMaxEquality(t *testing.T) {
	ds := smallDataset(2, 5)
	ds.Configuration.AvoidSingleDayOff = false
	engine := &recordingEngine{}
	Build(engine, ds)
	if engine.maxEqualities != 0 {
		t.Fatalf("maxEqualities = %d, want 0 when AvoidSingleDayOff is false", engine.maxEqualities)
	}

	ds2 := smallDataset(2, 5)
	engine2 := &recordingEngine{}
	Build(engine2, ds2)
	wantTriples := (len(ds2.Dates) - 2) * ds2.NumDoctors() * 3 // 3 aux vars per triple
	if engine2.maxEqualities != wantTriples {
		t.Errorf("maxEqualities = %d, want %d", engine2.maxEqualities, wantTriples)
	}
}

// TestBuildRestPeriodConstraints checks rule 5 posts exactly one
// LessOrEqual-1 constraint per doctor per night->day date boundary, and
// nothing at all once MinRestHoursBetweenShifts drops below the 12-hour
// threshold that makes night->day adjacency meaningful.
func TestBuildRestPeriodConstraints(t *testing.T) {
	ds := smallDataset(3, 5)
	engine := &recordingEngine{}
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addRestPeriodConstraints()

	want := ds.NumDoctors() * (len(ds.Dates) - 1)
	if len(engine.inequalities) != want {
		t.Fatalf("rest-period constraints = %d, want %d (one night->day transition per doctor per day boundary)", len(engine.inequalities), want)
	}
	for _, call := range engine.inequalities {
		if call.op != solve.LessOrEqual || call.rhs != 1 {
			t.Errorf("rest-period constraint = {%v, %d}, want {LessOrEqual, 1}", call.op, call.rhs)
		}
	}
}

func TestBuildRestPeriodConstraintsSkippedBelowThreshold(t *testing.T) {
	ds := smallDataset(2, 5)
	ds.Configuration.MinRestHoursBetweenShifts = 8
	engine := &recordingEngine{}
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addRestPeriodConstraints()
	if len(engine.inequalities) != 0 {
		t.Errorf("rest-period constraints = %d, want 0 when MinRestHoursBetweenShifts < 12", len(engine.inequalities))
	}
}

// TestBuildMaxConsecutiveDaysOffConstraints checks rule 7 posts one
// GreaterOrEqual-1 constraint per doctor per sliding window of
// MaxConsecutiveDaysOff+1 consecutive dates.
func TestBuildMaxConsecutiveDaysOffConstraints(t *testing.T) {
	ds := smallDataset(2, 5)
	ds.Configuration.MaxConsecutiveDaysOff = 2
	engine := &recordingEngine{}
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addMaxConsecutiveDaysOffConstraints()

	wantWindows := len(ds.Dates) - ds.Configuration.MaxConsecutiveDaysOff
	want := ds.NumDoctors() * wantWindows
	if len(engine.inequalities) != want {
		t.Fatalf("max-consecutive-days-off constraints = %d, want %d", len(engine.inequalities), want)
	}
	for _, call := range engine.inequalities {
		if call.op != solve.GreaterOrEqual || call.rhs != 1 {
			t.Errorf("max-consecutive-days-off constraint = {%v, %d}, want {GreaterOrEqual, 1}", call.op, call.rhs)
		}
	}
}

func TestBuildMaxConsecutiveDaysOffSkippedWhenTooFewDates(t *testing.T) {
	ds := smallDataset(2, 3)
	ds.Configuration.MaxConsecutiveDaysOff = 5
	engine := &recordingEngine{}
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addMaxConsecutiveDaysOffConstraints()
	if len(engine.inequalities) != 0 {
		t.Errorf("max-consecutive-days-off constraints = %d, want 0 when the dataset has fewer dates than the window needs", len(engine.inequalities))
	}
}

// TestBuildSkillMixConstraints checks rule 8 posts a GreaterOrEqual
// constraint, summed only over doctors holding the required specialty, for
// every requirement whose scope matches the shift and whose specialty has
// at least one qualified doctor.
func TestBuildSkillMixConstraints(t *testing.T) {
	ds := smallDataset(3, 2)
	ds.Doctors[0].Specialties = []string{"cardiology"}
	ds.DoctorsBySpecialty["cardiology"] = []int{0}
	ds.Requirements = []domain.ShiftRequirement{
		{ID: "r1", AppliesTo: domain.ScopeAll, RequiredSpecialty: "cardiology", MinWithSpecialty: 1},
		// unsatisfiable: no qualified doctors.
		{ID: "r2", AppliesTo: domain.ScopeAll, RequiredSpecialty: "neurology", MinWithSpecialty: 1},
		// no specialty filter: ignored by the builder.
		{ID: "r3", AppliesTo: domain.ScopeAll, RequiredSpecialty: "", MinWithSpecialty: 1},
	}

	engine := &recordingEngine{}
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addSkillMixConstraints()

	want := ds.NumShifts() // one r1-derived constraint per shift, r2 and r3 contribute none
	if len(engine.inequalities) != want {
		t.Fatalf("skill-mix constraints = %d, want %d", len(engine.inequalities), want)
	}
	for _, call := range engine.inequalities {
		if call.op != solve.GreaterOrEqual || call.rhs != 1 {
			t.Errorf("skill-mix constraint = {%v, %d}, want {GreaterOrEqual, 1}", call.op, call.rhs)
		}
		if len(call.lhs.Terms) != 1 {
			t.Errorf("skill-mix constraint summed over %d doctors, want 1 (only the cardiology-qualified doctor)", len(call.lhs.Terms))
		}
	}
}
