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

// Package store declares the persistence collaborator's read and write
// surfaces. The core never talks to a database directly; it only ever sees
// these interfaces, so the relational layer stays a true external
// collaborator.
package store

import (
	"context"

	"github.com/clinicalroster/roster-core/domain"
)

// Reader is the read-side persistence collaborator.
type Reader interface {
	// ListActiveDoctors returns every doctor with active=true, with their
	// specialty id sets populated.
	ListActiveDoctors(ctx context.Context) ([]domain.Doctor, error)

	// ListShifts returns every shift in (year, month), ordered by
	// (date, kind) with day before night.
	ListShifts(ctx context.Context, year int, month int) ([]domain.Shift, error)

	// ListApprovedLeave returns approved leave intervals overlapping
	// [firstDay, lastDay].
	ListApprovedLeave(ctx context.Context, firstDay, lastDay domain.Date) ([]domain.LeaveInterval, error)

	// ActiveConfiguration returns the single configuration marked active, or
	// ErrNoActiveConfiguration if none is.
	ActiveConfiguration(ctx context.Context) (domain.Configuration, error)

	// ShiftRequirements returns the requirements attached to configID.
	ShiftRequirements(ctx context.Context, configID string) ([]domain.ShiftRequirement, error)

	// ScheduleStatus returns the persisted status string for the schedule
	// matching (month, year), and whether one exists at all. Used to guard
	// against regenerating a finalized schedule.
	ScheduleStatus(ctx context.Context, month, year int) (status string, found bool, err error)

	// ScheduleMonthYear resolves a scheduleID back to its (month, year), for
	// `validate` to reconstruct the snapshot.
	ScheduleMonthYear(ctx context.Context, scheduleID string) (month, year int, found bool, err error)

	// ScheduleAssignments returns the persisted assignments for scheduleID,
	// for `validate` to re-check an existing schedule.
	ScheduleAssignments(ctx context.Context, scheduleID string) ([]domain.Assignment, error)
}

// Writer is the write-side persistence collaborator. Every method here is
// called from within a single atomic transaction opened by the caller (see
// ReadWriter.WithTransaction).
type Writer interface {
	UpsertSchedule(ctx context.Context, month, year int) (scheduleID string, err error)
	DeleteAssignments(ctx context.Context, scheduleID string) error
	InsertAssignments(ctx context.Context, scheduleID string, assignments []domain.Assignment) error
	DeleteViolations(ctx context.Context, scheduleID string) error
	InsertViolations(ctx context.Context, scheduleID string, violations []domain.Violation) error
	UpdateScheduleMetadata(ctx context.Context, scheduleID string, meta domain.ScheduleMetadata) error
}

// ReadWriter combines both surfaces and adds the transactional boundary:
// all write calls for one generation run execute inside one atomic
// transaction.
type ReadWriter interface {
	Reader

	// WithTransaction runs fn with a Writer scoped to a single atomic
	// transaction; if fn returns an error the transaction rolls back and no
	// partial state becomes visible.
	WithTransaction(ctx context.Context, fn func(Writer) error) error
}
