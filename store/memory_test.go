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
	"testing"
	"time"

	"github.com/clinicalroster/roster-core/domain"
)

func TestMemoryActiveConfiguration(t *testing.T) {
	m := NewMemory()
	if _, err := m.ActiveConfiguration(context.Background()); !errors.Is(err, ErrNoActiveConfiguration) {
		t.Fatalf("ActiveConfiguration() err = %v, want ErrNoActiveConfiguration", err)
	}

	cfg := domain.Configuration{ID: "cfg-1"}
	m.SeedConfiguration(cfg, true, nil)

	got, err := m.ActiveConfiguration(context.Background())
	if err != nil {
		t.Fatalf("ActiveConfiguration() err = %v, want nil", err)
	}
	if got.ID != cfg.ID {
		t.Errorf("ActiveConfiguration().ID = %q, want %q", got.ID, cfg.ID)
	}
}

func TestMemoryListShiftsOrdering(t *testing.T) {
	m := NewMemory()
	m.SeedShifts([]domain.Shift{
		{ID: "s3", Date: domain.NewDate(2026, time.March, 2), Kind: domain.ShiftNight},
		{ID: "s1", Date: domain.NewDate(2026, time.March, 1), Kind: domain.ShiftDay},
		{ID: "s2", Date: domain.NewDate(2026, time.March, 1), Kind: domain.ShiftNight},
		{ID: "other-month", Date: domain.NewDate(2026, time.April, 1), Kind: domain.ShiftDay},
	})

	got, err := m.ListShifts(context.Background(), 2026, 3)
	if err != nil {
		t.Fatalf("ListShifts() err = %v, want nil", err)
	}

	want := []string{"s1", "s2", "s3"}
	if len(got) != len(want) {
		t.Fatalf("ListShifts() returned %d shifts, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("ListShifts()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestMemoryListApprovedLeaveFiltersStatusAndOverlap(t *testing.T) {
	m := NewMemory()
	m.SeedLeave([]domain.LeaveInterval{
		{ID: "approved-overlap", DoctorID: "d1", Status: domain.LeaveApproved,
			Start: domain.NewDate(2026, time.March, 10), End: domain.NewDate(2026, time.March, 15)},
		{ID: "pending-overlap", DoctorID: "d2", Status: domain.LeavePending,
			Start: domain.NewDate(2026, time.March, 10), End: domain.NewDate(2026, time.March, 15)},
		{ID: "approved-no-overlap", DoctorID: "d3", Status: domain.LeaveApproved,
			Start: domain.NewDate(2026, time.April, 1), End: domain.NewDate(2026, time.April, 5)},
	})

	got, err := m.ListApprovedLeave(context.Background(), domain.NewDate(2026, time.March, 1), domain.NewDate(2026, time.March, 31))
	if err != nil {
		t.Fatalf("ListApprovedLeave() err = %v, want nil", err)
	}
	if len(got) != 1 || got[0].ID != "approved-overlap" {
		t.Errorf("ListApprovedLeave() = %+v, want only approved-overlap", got)
	}
}

func TestMemoryTransactionRollsBackOnError(t *testing.T) {
	m := NewMemory()
	wantErr := errors.New("boom")

	err := m.WithTransaction(context.Background(), func(w Writer) error {
		id, err := w.UpsertSchedule(context.Background(), 3, 2026)
		if err != nil {
			t.Fatalf("UpsertSchedule() err = %v, want nil", err)
		}
		if err := w.InsertAssignments(context.Background(), id, []domain.Assignment{{DoctorID: "d1", ShiftID: "s1"}}); err != nil {
			t.Fatalf("InsertAssignments() err = %v, want nil", err)
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithTransaction() err = %v, want %v", err, wantErr)
	}

	status, found, err := m.ScheduleStatus(context.Background(), 3, 2026)
	if err != nil {
		t.Fatalf("ScheduleStatus() err = %v, want nil", err)
	}
	if found {
		t.Errorf("ScheduleStatus() found = true, want false (transaction should have rolled back)")
	}
	_ = status
}

func TestMemoryTransactionCommits(t *testing.T) {
	m := NewMemory()
	var scheduleID string

	err := m.WithTransaction(context.Background(), func(w Writer) error {
		id, err := w.UpsertSchedule(context.Background(), 3, 2026)
		if err != nil {
			return err
		}
		scheduleID = id
		return w.InsertAssignments(context.Background(), id, []domain.Assignment{{DoctorID: "d1", ShiftID: "s1"}})
	})
	if err != nil {
		t.Fatalf("WithTransaction() err = %v, want nil", err)
	}

	assignments, err := m.ScheduleAssignments(context.Background(), scheduleID)
	if err != nil {
		t.Fatalf("ScheduleAssignments() err = %v, want nil", err)
	}
	if len(assignments) != 1 || assignments[0].DoctorID != "d1" {
		t.Errorf("ScheduleAssignments() = %+v, want one assignment for d1", assignments)
	}
}

func TestMemorySeedFinalizedGuardState(t *testing.T) {
	m := NewMemory()
	m.SeedFinalized(3, 2026)

	status, found, err := m.ScheduleStatus(context.Background(), 3, 2026)
	if err != nil {
		t.Fatalf("ScheduleStatus() err = %v, want nil", err)
	}
	if !found || status != "finalized" {
		t.Errorf("ScheduleStatus() = (%q, %v), want (\"finalized\", true)", status, found)
	}
}
