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

// Package validate independently re-checks a proposed schedule. It never
// consults the model or the engine: it re-derives every hard-rule
// violation directly from the raw (doctor, shift) assignment set, so it
// would catch a bug in either the constraint builder or the engine.
package validate

import (
	"fmt"
	"sort"

	"github.com/clinicalroster/roster-core/dataset"
	"github.com/clinicalroster/roster-core/domain"
)

// Check re-derives every hard-rule violation in assignments against ds. It
// is pure: given the same (ds, assignments), it always returns the same
// violations (testable property 7 depends on this).
func Check(ds *dataset.Dataset, assignments []domain.Assignment) []domain.Violation {
	byShift, byDoctor := index(ds, assignments)

	var violations []domain.Violation
	violations = append(violations, checkCoverage(ds, byShift)...)
	violations = append(violations, checkWorkload(ds, byDoctor)...)
	violations = append(violations, checkConsecutiveShifts(ds, byDoctor)...)
	violations = append(violations, checkRestPeriod(ds, byDoctor)...)
	violations = append(violations, checkLeaveBreach(ds, byDoctor)...)
	return violations
}

// index groups assignments by shift position and by doctor, with each
// doctor's shift positions sorted ascending — the same ordering
// `_check_consecutive_shift_violations` relies on in the original
// implementation (order_by('shift__date', 'shift__shift_type')).
func index(ds *dataset.Dataset, assignments []domain.Assignment) (byShift map[int][]string, byDoctor map[string][]int) {
	byShift = make(map[int][]string)
	byDoctor = make(map[string][]int)
	for _, a := range assignments {
		si, ok := ds.ShiftIndex[a.ShiftID]
		if !ok {
			continue // Not in this snapshot's month; ignore.
		}
		byShift[si] = append(byShift[si], a.DoctorID)
		byDoctor[a.DoctorID] = append(byDoctor[a.DoctorID], si)
	}
	for d := range byDoctor {
		sort.Ints(byDoctor[d])
	}
	return byShift, byDoctor
}

func checkCoverage(ds *dataset.Dataset, byShift map[int][]string) []domain.Violation {
	var out []domain.Violation
	for si, shift := range ds.Shifts {
		min := shift.EffectiveMinDoctors(ds.Configuration)
		if len(byShift[si]) < min {
			out = append(out, domain.Violation{
				Kind:     domain.ViolationUnderCoverage,
				Severity: domain.SeverityError,
				Description: fmt.Sprintf("shift %s %s on %s has %d doctors (minimum %d)",
					shift.ID, shift.Kind, shift.Date, len(byShift[si]), min),
			})
		}
	}
	return out
}

func checkWorkload(ds *dataset.Dataset, byDoctor map[string][]int) []domain.Violation {
	cfg := ds.Configuration
	var out []domain.Violation
	for _, doctor := range ds.Doctors {
		count := len(byDoctor[doctor.ID])
		if count < cfg.MinShiftsPerDoctor {
			out = append(out, domain.Violation{
				Kind:     domain.ViolationUnderMinShifts,
				Severity: domain.SeverityWarning,
				DoctorID: doctor.ID,
				Description: fmt.Sprintf("doctor %s has %d shifts (minimum %d)",
					doctor.ID, count, cfg.MinShiftsPerDoctor),
			})
		}
		if count > cfg.MaxShiftsPerDoctor {
			out = append(out, domain.Violation{
				Kind:     domain.ViolationOverMaxShifts,
				Severity: domain.SeverityError,
				DoctorID: doctor.ID,
				Description: fmt.Sprintf("doctor %s has %d shifts (maximum %d)",
					doctor.ID, count, cfg.MaxShiftsPerDoctor),
			})
		}
	}
	return out
}

// checkConsecutiveShifts walks each doctor's sorted shift positions,
// incrementing a counter on each +1 adjacency and resetting otherwise,
// emitting at most one violation per doctor the first time the run exceeds
// K.
func checkConsecutiveShifts(ds *dataset.Dataset, byDoctor map[string][]int) []domain.Violation {
	k := ds.Configuration.MaxConsecutiveShifts
	var out []domain.Violation
	for _, doctor := range ds.Doctors {
		positions := byDoctor[doctor.ID]
		if len(positions) < 2 {
			continue
		}
		run := 1
		for i := 1; i < len(positions); i++ {
			if positions[i] == positions[i-1]+1 {
				run++
				if run > k {
					out = append(out, domain.Violation{
						Kind:     domain.ViolationTooManyConsecutive,
						Severity: domain.SeverityError,
						DoctorID: doctor.ID,
						Description: fmt.Sprintf("doctor %s has %d consecutive shifts (maximum %d)",
							doctor.ID, run, k),
					})
					break
				}
			} else {
				run = 1
			}
		}
	}
	return out
}

func checkRestPeriod(ds *dataset.Dataset, byDoctor map[string][]int) []domain.Violation {
	if ds.Configuration.MinRestHoursBetweenShifts < 12 {
		return nil
	}
	var out []domain.Violation
	for _, doctor := range ds.Doctors {
		positions := byDoctor[doctor.ID]
		for i := 0; i+1 < len(positions); i++ {
			cur := ds.Shifts[positions[i]]
			next := ds.Shifts[positions[i+1]]
			if cur.Kind != domain.ShiftNight || next.Kind != domain.ShiftDay {
				continue
			}
			if daysBetween(cur.Date, next.Date) > 1 {
				continue
			}
			out = append(out, domain.Violation{
				Kind:     domain.ViolationInsufficientRest,
				Severity: domain.SeverityError,
				DoctorID: doctor.ID,
				Description: fmt.Sprintf("doctor %s has night shift on %s followed by day shift on %s (less than %d hours rest)",
					doctor.ID, cur.Date, next.Date, ds.Configuration.MinRestHoursBetweenShifts),
			})
		}
	}
	return out
}

// checkLeaveBreach independently re-checks the leave constraint the builder
// posts; an assignment on a leave day here means the builder or the engine
// disagreed with the snapshot.
func checkLeaveBreach(ds *dataset.Dataset, byDoctor map[string][]int) []domain.Violation {
	var out []domain.Violation
	for _, doctor := range ds.Doctors {
		for _, si := range byDoctor[doctor.ID] {
			shift := ds.Shifts[si]
			if ds.IsDoctorOnLeave(doctor.ID, shift.Date) {
				out = append(out, domain.Violation{
					Kind:     domain.ViolationLeaveBreach,
					Severity: domain.SeverityError,
					DoctorID: doctor.ID,
					Description: fmt.Sprintf("doctor %s is assigned to shift %s on %s despite approved leave",
						doctor.ID, shift.ID, shift.Date),
				})
			}
		}
	}
	return out
}

func daysBetween(a, b domain.Date) int {
	n := 0
	for d := a; d.Before(b); d = d.AddDays(1) {
		n++
	}
	return n
}
