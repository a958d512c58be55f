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

// The roster command generates or validates a physician monthly shift
// schedule. It ships with a --memory demo mode that seeds a small
// in-process dataset, for trying the pipeline without a database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/golang/glog"

	"github.com/clinicalroster/roster-core/dataset"
	"github.com/clinicalroster/roster-core/domain"
	"github.com/clinicalroster/roster-core/generate"
	"github.com/clinicalroster/roster-core/store"
)

// Exit codes: 0 success-feasible, 2 success-infeasible, 64 invalid input,
// 70 internal error.
const (
	exitSuccessFeasible   = 0
	exitSuccessInfeasible = 2
	exitInvalidInput      = 64
	exitInternalError     = 70
)

func main() {
	month := flag.Int("month", 0, "target month (1-12)")
	year := flag.Int("year", 0, "target year")
	timeLimit := flag.Duration("time_limit", 30*time.Second, "solver time limit")
	workers := flag.Int("workers", 0, "solver worker count (0 lets the engine choose)")
	useMemory := flag.Bool("memory", false, "run against a seeded in-memory store instead of a real database")
	validateOnly := flag.String("validate_schedule_id", "", "re-validate an existing schedule id instead of generating")
	flag.Parse()

	if *month < 1 || *month > 12 || *year == 0 {
		fmt.Fprintln(os.Stderr, "roster: -month and -year are required (month 1-12)")
		os.Exit(exitInvalidInput)
	}
	if !*useMemory {
		fmt.Fprintln(os.Stderr, "roster: only -memory mode is wired in this build; a real database Reader/Writer must be constructed by the caller")
		os.Exit(exitInvalidInput)
	}

	ctx := context.Background()
	rw := seedDemoStore(*month, *year)

	if *validateOnly != "" {
		result, err := generate.Validate(ctx, rw, *validateOnly)
		if err != nil {
			log.Errorf("roster: validate: %v", err)
			os.Exit(exitInternalError)
		}
		fmt.Printf("violations: %d\n", result.ViolationCount)
		for _, v := range result.Violations {
			fmt.Println(v.String())
		}
		return
	}

	opts := generate.Options{
		TimeLimit:  *timeLimit,
		NumWorkers: *workers,
		Progress: func(step, detail string) {
			log.V(1).Infof("roster: %s %s", step, detail)
		},
	}

	result, err := generate.Generate(ctx, rw, *month, *year, opts)
	if err != nil {
		switch {
		case errors.Is(err, generate.ErrScheduleFinalized):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInput)
		case errors.Is(err, generate.ErrAlreadyRunning):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInput)
		case errors.Is(err, dataset.ErrInvalidPeriod), errors.Is(err, dataset.ErrNoActiveConfiguration):
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitInvalidInput)
		default:
			log.Errorf("roster: generate: %v", err)
			os.Exit(exitInternalError)
		}
	}

	fmt.Printf("status: %s\n", result.Status)
	fmt.Printf("schedule: %s\n", result.ScheduleID)
	fmt.Printf("assignments: %d\n", result.AssignmentCount)
	fmt.Printf("violations: %d\n", result.ViolationCount)
	fmt.Printf("objective: %d\n", result.ObjectiveValue)
	fmt.Printf("solver time: %.2fs\n", result.SolverTimeSeconds)

	if result.Status.IsFeasible() {
		os.Exit(exitSuccessFeasible)
	}
	os.Exit(exitSuccessInfeasible)
}

// seedDemoStore builds a small, internally consistent in-memory dataset for
// (month, year): one configuration, two specialties, a handful of doctors,
// a full day/night shift calendar, and no leave. It exists solely for
// -memory demo mode.
func seedDemoStore(month, year int) *store.Memory {
	m := store.NewMemory()

	cfg := domain.Configuration{
		ID:                        "cfg-demo",
		Name:                      "demo",
		MinShiftsPerDoctor:        4,
		MaxShiftsPerDoctor:        10,
		MaxConsecutiveShifts:      3,
		MinRestHoursBetweenShifts: 12,
		MaxConsecutiveDaysOff:     5,
		AvoidSingleDayOff:         true,
		DefaultMinDoctorsPerShift: 2,
	}
	m.SeedConfiguration(cfg, true, []domain.ShiftRequirement{
		{ID: "req-nights", AppliesTo: domain.ScopeNight, RequiredSpecialty: "cardiology", MinWithSpecialty: 1},
	})

	doctors := make([]domain.Doctor, 0, 8)
	for i := 1; i <= 8; i++ {
		specialties := []string{"general"}
		if i%3 == 0 {
			specialties = append(specialties, "cardiology")
		}
		doctors = append(doctors, domain.Doctor{
			ID:          fmt.Sprintf("doc-%02d", i),
			Name:        fmt.Sprintf("Doctor %d", i),
			Specialties: specialties,
			Active:      true,
		})
	}
	m.SeedDoctors(doctors)

	rng := domain.MonthRange(year, time.Month(month))
	var shifts []domain.Shift
	for _, d := range rng.Days() {
		shifts = append(shifts,
			domain.Shift{ID: fmt.Sprintf("shift-%s-day", d), Date: d, Kind: domain.ShiftDay},
			domain.Shift{ID: fmt.Sprintf("shift-%s-night", d), Date: d, Kind: domain.ShiftNight},
		)
	}
	m.SeedShifts(shifts)

	return m
}
