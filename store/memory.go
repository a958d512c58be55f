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

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/clinicalroster/roster-core/domain"
)

// ErrNoActiveConfiguration is returned when no Configuration is marked
// active.
var ErrNoActiveConfiguration = errors.New("store: no active configuration")

// schedule is the in-memory bookkeeping row for one (month, year).
type schedule struct {
	id          string
	month, year int
	status      string
	assignments []domain.Assignment
	violations  []domain.Violation
	meta        domain.ScheduleMetadata
}

// Memory is an in-process fake of the relational persistence collaborator.
// It is not a teaching aid for production use: production deployments wire
// Reader/Writer against the real database. Memory exists so the core's
// tests and the CLI's --memory demo mode have a real, deterministic
// implementation to run against.
type Memory struct {
	mu sync.Mutex

	doctors        []domain.Doctor
	shifts         []domain.Shift
	leave          []domain.LeaveInterval
	configurations []domain.Configuration
	activeConfigID string
	requirements   map[string][]domain.ShiftRequirement // configID -> requirements

	schedules map[string]*schedule // scheduleID -> schedule
	byPeriod  map[[2]int]string    // (month, year) -> scheduleID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		requirements: make(map[string][]domain.ShiftRequirement),
		schedules:    make(map[string]*schedule),
		byPeriod:     make(map[[2]int]string),
	}
}

// SeedDoctors replaces the doctor set.
func (m *Memory) SeedDoctors(doctors []domain.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors = append([]domain.Doctor(nil), doctors...)
}

// SeedShifts replaces the shift set.
func (m *Memory) SeedShifts(shifts []domain.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = append([]domain.Shift(nil), shifts...)
}

// SeedLeave replaces the leave request set.
func (m *Memory) SeedLeave(leave []domain.LeaveInterval) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave = append([]domain.LeaveInterval(nil), leave...)
}

// SeedConfiguration adds a configuration and, when active is true, marks it
// the single active configuration.
func (m *Memory) SeedConfiguration(cfg domain.Configuration, active bool, requirements []domain.ShiftRequirement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configurations = append(m.configurations, cfg)
	m.requirements[cfg.ID] = append([]domain.ShiftRequirement(nil), requirements...)
	if active {
		m.activeConfigID = cfg.ID
	}
}

// SeedFinalized marks (month, year) as an already-finalized schedule, for
// exercising the finalized-schedule guard in tests.
func (m *Memory) SeedFinalized(month, year int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.scheduleIDLocked(month, year)
	m.schedules[id].status = "finalized"
}

func (m *Memory) scheduleIDLocked(month, year int) string {
	key := [2]int{month, year}
	if id, ok := m.byPeriod[key]; ok {
		return id
	}
	id := uuid.NewString()
	m.byPeriod[key] = id
	m.schedules[id] = &schedule{id: id, month: month, year: year, status: "draft"}
	return id
}

func (m *Memory) ListActiveDoctors(ctx context.Context) ([]domain.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Doctor
	for _, d := range m.doctors {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) ListShifts(ctx context.Context, year, month int) ([]domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Shift
	for _, s := range m.shifts {
		if s.Date.Year() == year && int(s.Date.Month()) == month {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Kind.Before(out[j].Kind)
	})
	return out, nil
}

func (m *Memory) ListApprovedLeave(ctx context.Context, firstDay, lastDay domain.Date) ([]domain.LeaveInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	window := domain.DateRange{Start: firstDay, End: lastDay}
	var out []domain.LeaveInterval
	for _, l := range m.leave {
		if l.Status != domain.LeaveApproved {
			continue
		}
		if window.Overlaps(domain.DateRange{Start: l.Start, End: l.End}) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) ActiveConfiguration(ctx context.Context) (domain.Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configurations {
		if c.ID == m.activeConfigID {
			return c, nil
		}
	}
	return domain.Configuration{}, ErrNoActiveConfiguration
}

func (m *Memory) ShiftRequirements(ctx context.Context, configID string) ([]domain.ShiftRequirement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ShiftRequirement(nil), m.requirements[configID]...), nil
}

func (m *Memory) ScheduleStatus(ctx context.Context, month, year int) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPeriod[[2]int{month, year}]
	if !ok {
		return "", false, nil
	}
	return m.schedules[id].status, true, nil
}

func (m *Memory) ScheduleMonthYear(ctx context.Context, scheduleID string) (int, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleID]
	if !ok {
		return 0, 0, false, nil
	}
	return s.month, s.year, true, nil
}

func (m *Memory) ScheduleAssignments(ctx context.Context, scheduleID string) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleID]
	if !ok {
		return nil, fmt.Errorf("store: unknown schedule %q", scheduleID)
	}
	return append([]domain.Assignment(nil), s.assignments...), nil
}

// memoryTx is the Writer exposed inside WithTransaction; it buffers writes
// and only applies them to Memory on commit, giving rollback-on-error for
// free. UpsertSchedule participates in the same buffering: it only reserves
// an id and remembers whether that id is new, never touching
// m.byPeriod/m.schedules itself, so a schedule created mid-transaction does
// not become visible unless the transaction actually commits.
type memoryTx struct {
	store *Memory

	scheduleID  string
	newSchedule bool // true if scheduleID does not yet exist in the live store
	month, year int

	// Pending operations, applied in order on commit.
	ops []func(*schedule)
}

func (m *Memory) WithTransaction(ctx context.Context, fn func(Writer) error) error {
	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		return err // Nothing committed: rollback is simply "don't apply ops".
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sched, ok := m.schedules[tx.scheduleID]
	if !ok {
		if !tx.newSchedule {
			return fmt.Errorf("store: transaction committed without a schedule")
		}
		sched = &schedule{id: tx.scheduleID, month: tx.month, year: tx.year, status: "draft"}
		m.schedules[tx.scheduleID] = sched
		m.byPeriod[[2]int{tx.month, tx.year}] = tx.scheduleID
	}
	for _, op := range tx.ops {
		op(sched)
	}
	return nil
}

func (tx *memoryTx) UpsertSchedule(ctx context.Context, month, year int) (string, error) {
	tx.store.mu.Lock()
	id, exists := tx.store.byPeriod[[2]int{month, year}]
	tx.store.mu.Unlock()
	if !exists {
		id = uuid.NewString()
		tx.newSchedule = true
	}
	tx.scheduleID = id
	tx.month, tx.year = month, year
	return id, nil
}

func (tx *memoryTx) requireSchedule(scheduleID string) error {
	if tx.scheduleID == "" {
		tx.scheduleID = scheduleID
	} else if tx.scheduleID != scheduleID {
		return fmt.Errorf("store: transaction already bound to schedule %q", tx.scheduleID)
	}
	return nil
}

func (tx *memoryTx) DeleteAssignments(ctx context.Context, scheduleID string) error {
	if err := tx.requireSchedule(scheduleID); err != nil {
		return err
	}
	tx.ops = append(tx.ops, func(s *schedule) { s.assignments = nil })
	return nil
}

func (tx *memoryTx) InsertAssignments(ctx context.Context, scheduleID string, assignments []domain.Assignment) error {
	if err := tx.requireSchedule(scheduleID); err != nil {
		return err
	}
	cp := append([]domain.Assignment(nil), assignments...)
	tx.ops = append(tx.ops, func(s *schedule) { s.assignments = append(s.assignments, cp...) })
	return nil
}

func (tx *memoryTx) DeleteViolations(ctx context.Context, scheduleID string) error {
	if err := tx.requireSchedule(scheduleID); err != nil {
		return err
	}
	tx.ops = append(tx.ops, func(s *schedule) { s.violations = nil })
	return nil
}

func (tx *memoryTx) InsertViolations(ctx context.Context, scheduleID string, violations []domain.Violation) error {
	if err := tx.requireSchedule(scheduleID); err != nil {
		return err
	}
	cp := append([]domain.Violation(nil), violations...)
	tx.ops = append(tx.ops, func(s *schedule) { s.violations = append(s.violations, cp...) })
	return nil
}

func (tx *memoryTx) UpdateScheduleMetadata(ctx context.Context, scheduleID string, meta domain.ScheduleMetadata) error {
	if err := tx.requireSchedule(scheduleID); err != nil {
		return err
	}
	tx.ops = append(tx.ops, func(s *schedule) {
		s.meta = meta
		s.status = "draft"
	})
	return nil
}
