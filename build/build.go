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

// Package build constructs the roster CP-SAT model. It allocates the boolean
// decision matrix x[d,s] and adds every hard constraint, in a fixed order,
// against a solve.Engine.
package build

import (
	"fmt"

	log "github.com/golang/glog"

	"github.com/clinicalroster/roster-core/dataset"
	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/solve"
)

// Model is the decision matrix and the engine it was built against. Builder
// errors are programmer errors: Build panics on an invariant violation
// rather than returning an error, the same way cpmodel.Builder fails fast
// on malformed input (its AddWeightedSum length check, for instance).
type Model struct {
	Engine solve.Engine
	Data   *dataset.Dataset

	// X[d][s] is the decision variable for doctor d, shift s.
	X [][]solve.BoolVar
}

// Build allocates x[d,s] for every (doctor, shift) pair, posts every hard
// constraint in a fixed order, and sets the pure-coverage objective.
func Build(engine solve.Engine, ds *dataset.Dataset) *Model {
	m := &Model{Engine: engine, Data: ds}
	m.createDecisionVariables()
	m.addCoverageConstraints()
	m.addLeaveConstraints()
	m.addShiftCountConstraints()
	m.addConsecutiveShiftConstraints()
	m.addRestPeriodConstraints()
	m.addSingleDayOffConstraints()
	m.addMaxConsecutiveDaysOffConstraints()
	m.addSkillMixConstraints()
	m.addObjective()
	log.V(1).Infof("build: model built for %d doctors x %d shifts", ds.NumDoctors(), ds.NumShifts())
	return m
}

func (m *Model) createDecisionVariables() {
	d, s := m.Data.NumDoctors(), m.Data.NumShifts()
	m.X = make([][]solve.BoolVar, d)
	for di := 0; di < d; di++ {
		m.X[di] = make([]solve.BoolVar, s)
		for si := 0; si < s; si++ {
			m.X[di][si] = m.Engine.NewBoolVar(fmt.Sprintf("x_d%d_s%d", di, si))
		}
	}
}

// column returns x[*, shiftIdx] as a slice over all doctors, for building
// per-shift sums.
func (m *Model) column(shiftIdx int) []solve.BoolVar {
	col := make([]solve.BoolVar, m.Data.NumDoctors())
	for di := range col {
		col[di] = m.X[di][shiftIdx]
	}
	return col
}

// rule 1: coverage.
func (m *Model) addCoverageConstraints() {
	for si, shift := range m.Data.Shifts {
		min := shift.EffectiveMinDoctors(m.Data.Configuration)
		m.Engine.AddLinearInequality(solve.Sum(m.column(si)...), solve.GreaterOrEqual, int64(min))
	}
}

// rule 2: leave.
func (m *Model) addLeaveConstraints() {
	for di, doctor := range m.Data.Doctors {
		for si, shift := range m.Data.Shifts {
			if m.Data.IsDoctorOnLeave(doctor.ID, shift.Date) {
				m.Engine.AddLinearInequality(solve.Single(m.X[di][si]), solve.Equal, 0)
			}
		}
	}
}

// rule 3: workload.
func (m *Model) addShiftCountConstraints() {
	cfg := m.Data.Configuration
	for di := range m.Data.Doctors {
		total := solve.Sum(m.X[di]...)
		m.Engine.AddLinearInequality(total, solve.GreaterOrEqual, int64(cfg.MinShiftsPerDoctor))
		m.Engine.AddLinearInequality(total, solve.LessOrEqual, int64(cfg.MaxShiftsPerDoctor))
	}
}

// rule 4: no more than K consecutive shifts, where consecutive means
// adjacent shift positions in the (date, kind) ordering, not calendar-date
// adjacency.
func (m *Model) addConsecutiveShiftConstraints() {
	k := m.Data.Configuration.MaxConsecutiveShifts
	s := m.Data.NumShifts()
	if s < k+1 {
		return
	}
	for di := range m.Data.Doctors {
		for start := 0; start <= s-k-1; start++ {
			window := m.X[di][start : start+k+1]
			m.Engine.AddLinearInequality(solve.Sum(window...), solve.LessOrEqual, int64(k))
		}
	}
}

// rule 5: night -> day rest period.
func (m *Model) addRestPeriodConstraints() {
	if m.Data.Configuration.MinRestHoursBetweenShifts < 12 {
		return
	}
	shifts := m.Data.Shifts
	for di := range m.Data.Doctors {
		for si := 0; si < len(shifts)-1; si++ {
			cur, next := shifts[si], shifts[si+1]
			if cur.Kind != domain.ShiftNight || next.Kind != domain.ShiftDay {
				continue
			}
			if daysBetween(cur.Date, next.Date) > 1 {
				continue
			}
			m.Engine.AddLinearInequality(
				solve.Sum(m.X[di][si], m.X[di][si+1]), solve.LessOrEqual, 1)
		}
	}
}

func daysBetween(a, b domain.Date) int {
	n := 0
	for d := a; d.Before(b); d = d.AddDays(1) {
		n++
	}
	return n
}

// rule 6: avoid a single day off sandwiched between two working days.
func (m *Model) addSingleDayOffConstraints() {
	if !m.Data.Configuration.AvoidSingleDayOff {
		return
	}
	dates := m.Data.Dates
	for di := range m.Data.Doctors {
		for i := 0; i+2 < len(dates); i++ {
			if !consecutiveDates(dates[i], dates[i+1], dates[i+2]) {
				continue
			}
			worksI := m.worksOnDate(di, dates[i], fmt.Sprintf("works_d%d_day%d", di, i))
			worksI1 := m.worksOnDate(di, dates[i+1], fmt.Sprintf("works_d%d_day%d", di, i+1))
			worksI2 := m.worksOnDate(di, dates[i+2], fmt.Sprintf("works_d%d_day%d", di, i+2))

			// worksI + worksI2 <= 1 + worksI1
			lhs := solve.WeightedSum(
				[]solve.BoolVar{worksI, worksI2, worksI1},
				[]int64{1, 1, -1},
			)
			m.Engine.AddLinearInequality(lhs, solve.LessOrEqual, 1)
		}
	}
}

// worksOnDate introduces an auxiliary boolean equal to max(x[d,s] : s on
// date) via AddMaxEquality.
func (m *Model) worksOnDate(doctorIdx int, date domain.Date, name string) solve.BoolVar {
	shiftIdxs := m.Data.DailyShifts[date.String()]
	aux := m.Engine.NewBoolVar(name)
	inputs := make([]solve.Expr, len(shiftIdxs))
	for i, si := range shiftIdxs {
		inputs[i] = solve.Single(m.X[doctorIdx][si])
	}
	m.Engine.AddMaxEquality(solve.Single(aux), inputs...)
	return aux
}

// rule 7: no more than M consecutive days off.
func (m *Model) addMaxConsecutiveDaysOffConstraints() {
	maxOff := m.Data.Configuration.MaxConsecutiveDaysOff
	dates := m.Data.Dates
	if len(dates) < maxOff+1 {
		return
	}
	for di := range m.Data.Doctors {
		for i := 0; i+maxOff < len(dates); i++ {
			window := dates[i : i+maxOff+1]
			if !allConsecutive(window) {
				continue
			}
			var shiftIdxs []int
			for _, d := range window {
				shiftIdxs = append(shiftIdxs, m.Data.DailyShifts[d.String()]...)
			}
			vars := make([]solve.BoolVar, len(shiftIdxs))
			for i, si := range shiftIdxs {
				vars[i] = m.X[di][si]
			}
			m.Engine.AddLinearInequality(solve.Sum(vars...), solve.GreaterOrEqual, 1)
		}
	}
}

// rule 8: skill mix.
func (m *Model) addSkillMixConstraints() {
	for si, shift := range m.Data.Shifts {
		for _, req := range m.Data.RequirementsFor(shift) {
			if req.RequiredSpecialty == "" || req.MinWithSpecialty <= 0 {
				continue
			}
			doctorIdxs := m.Data.DoctorsBySpecialty[req.RequiredSpecialty]
			if len(doctorIdxs) == 0 {
				continue // Silently omitted; loader records an unsatisfiable_requirement warning.
			}
			vars := make([]solve.BoolVar, len(doctorIdxs))
			for i, di := range doctorIdxs {
				vars[i] = m.X[di][si]
			}
			m.Engine.AddLinearInequality(solve.Sum(vars...), solve.GreaterOrEqual, int64(req.MinWithSpecialty))
		}
	}
}

// Objective: maximize total coverage. No weighted soft terms are defined by
// default; callers wanting them extend this function.
func (m *Model) addObjective() {
	var all []solve.BoolVar
	for di := range m.Data.Doctors {
		all = append(all, m.X[di]...)
	}
	m.Engine.Maximize(solve.Sum(all...))
}

func consecutiveDates(a, b, c domain.Date) bool {
	return daysBetween(a, b) == 1 && daysBetween(b, c) == 1
}

func allConsecutive(dates []domain.Date) bool {
	for i := 0; i+1 < len(dates); i++ {
		if daysBetween(dates[i], dates[i+1]) != 1 {
			return false
		}
	}
	return true
}
