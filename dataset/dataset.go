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

// Package dataset snapshots doctors, shifts, leave, requirements, and
// configuration into indexed in-memory arrays that the builder and
// validator operate on by position, never by identity.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/golang/glog"

	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/store"
)

// ErrNoActiveConfiguration is returned when the store has no active
// Configuration.
var ErrNoActiveConfiguration = errors.New("dataset: no active configuration")

// ErrInvalidPeriod is returned when (month, year) is out of range.
var ErrInvalidPeriod = errors.New("dataset: invalid period")

// Dataset is the immutable snapshot a single generation run operates on.
// Every field is read-only after Snapshot returns.
type Dataset struct {
	Month int
	Year  int
	Range domain.DateRange

	Configuration domain.Configuration
	Requirements  []domain.ShiftRequirement

	Doctors []domain.Doctor
	Shifts  []domain.Shift

	DoctorIndex map[string]int // doctor id -> position in Doctors
	ShiftIndex  map[string]int // shift id -> position in Shifts

	DoctorsBySpecialty map[string][]int // specialty id -> doctor positions

	// LeaveDates maps a doctor id to the set of dates, clipped to Range,
	// on which that doctor has approved leave.
	LeaveDates map[string]map[string]bool // doctor id -> date string -> true

	// DailyShifts maps a date string to the shift positions on that date,
	// in the same order as Shifts.
	DailyShifts map[string][]int

	// Dates lists every calendar date that has at least one shift, in
	// ascending order, deduplicated. Consumers that need calendar-adjacency
	// (rules 6 and 7) walk this instead of re-deriving it from Shifts.
	Dates []domain.Date

	// UnsatisfiableRequirements lists the requirement indices (into
	// Requirements) whose required specialty has zero qualified active
	// doctors in the snapshot.
	UnsatisfiableRequirements []int
}

// NumDoctors returns len(Doctors).
func (d *Dataset) NumDoctors() int { return len(d.Doctors) }

// NumShifts returns len(Shifts).
func (d *Dataset) NumShifts() int { return len(d.Shifts) }

// IsDoctorOnLeave reports whether doctorID has approved leave on date.
func (d *Dataset) IsDoctorOnLeave(doctorID string, date domain.Date) bool {
	days, ok := d.LeaveDates[doctorID]
	if !ok {
		return false
	}
	return days[date.String()]
}

// RequirementsFor returns the requirements whose scope matches shift.
func (d *Dataset) RequirementsFor(shift domain.Shift) []domain.ShiftRequirement {
	var out []domain.ShiftRequirement
	for _, r := range d.Requirements {
		if requirementMatches(r, shift) {
			out = append(out, r)
		}
	}
	return out
}

func requirementMatches(r domain.ShiftRequirement, shift domain.Shift) bool {
	switch r.AppliesTo {
	case domain.ScopeAll:
		return true
	case domain.ScopeDay:
		return shift.Kind == domain.ShiftDay
	case domain.ScopeNight:
		return shift.Kind == domain.ShiftNight
	case domain.ScopeWeekday:
		return !shift.Date.IsWeekend()
	case domain.ScopeWeekend:
		return shift.Date.IsWeekend()
	}
	return false
}

// Snapshot loads and indexes a Dataset for (month, year) from r. It is
// deterministic: identical store state always yields byte-identical
// ordering of Doctors, Shifts, and every derived index.
func Snapshot(ctx context.Context, r store.Reader, month, year int) (*Dataset, error) {
	if month < 1 || month > 12 || year < 2024 {
		return nil, fmt.Errorf("%w: month=%d year=%d", ErrInvalidPeriod, month, year)
	}

	cfg, err := r.ActiveConfiguration(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveConfiguration) {
			return nil, fmt.Errorf("%w", ErrNoActiveConfiguration)
		}
		return nil, fmt.Errorf("dataset: loading active configuration: %w", err)
	}

	monthRange := domain.MonthRange(year, time.Month(month))

	requirements, err := r.ShiftRequirements(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("dataset: loading shift requirements: %w", err)
	}

	doctors, err := r.ListActiveDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: loading active doctors: %w", err)
	}
	sort.SliceStable(doctors, func(i, j int) bool { return doctors[i].ID < doctors[j].ID })

	shifts, err := r.ListShifts(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("dataset: loading shifts: %w", err)
	}
	sort.SliceStable(shifts, func(i, j int) bool {
		if !shifts[i].Date.Equal(shifts[j].Date) {
			return shifts[i].Date.Before(shifts[j].Date)
		}
		return shifts[i].Kind.Before(shifts[j].Kind)
	})

	leave, err := r.ListApprovedLeave(ctx, monthRange.Start, monthRange.End)
	if err != nil {
		return nil, fmt.Errorf("dataset: loading approved leave: %w", err)
	}

	ds := &Dataset{
		Month:              month,
		Year:               year,
		Range:              monthRange,
		Configuration:      cfg,
		Requirements:       requirements,
		Doctors:            doctors,
		Shifts:             shifts,
		DoctorIndex:        make(map[string]int, len(doctors)),
		ShiftIndex:         make(map[string]int, len(shifts)),
		DoctorsBySpecialty: make(map[string][]int),
		LeaveDates:         make(map[string]map[string]bool),
		DailyShifts:        make(map[string][]int),
	}

	for i, d := range doctors {
		ds.DoctorIndex[d.ID] = i
		for _, spec := range d.Specialties {
			ds.DoctorsBySpecialty[spec] = append(ds.DoctorsBySpecialty[spec], i)
		}
	}
	for i, s := range shifts {
		ds.ShiftIndex[s.ID] = i
		key := s.Date.String()
		if _, seen := ds.DailyShifts[key]; !seen {
			ds.Dates = append(ds.Dates, s.Date)
		}
		ds.DailyShifts[key] = append(ds.DailyShifts[key], i)
	}

	for _, l := range leave {
		if l.Status != domain.LeaveApproved {
			continue
		}
		clipped := domain.DateRange{Start: l.Start, End: l.End}.Clip(monthRange)
		if clipped.Empty() {
			continue
		}
		days, ok := ds.LeaveDates[l.DoctorID]
		if !ok {
			days = make(map[string]bool)
			ds.LeaveDates[l.DoctorID] = days
		}
		for _, d := range clipped.Days() {
			days[d.String()] = true
		}
	}

	for i, req := range requirements {
		if req.RequiredSpecialty == "" || req.MinWithSpecialty <= 0 {
			continue
		}
		if len(ds.DoctorsBySpecialty[req.RequiredSpecialty]) == 0 {
			ds.UnsatisfiableRequirements = append(ds.UnsatisfiableRequirements, i)
		}
	}

	log.V(1).Infof("dataset: snapshot %d-%02d: %d doctors, %d shifts, %d requirements unsatisfiable",
		year, month, len(doctors), len(shifts), len(ds.UnsatisfiableRequirements))

	return ds, nil
}
