package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/persistence"
)

// seedDemoData populates an empty database with a small roster so the API is
// usable straight after first boot. It is a no-op when any account exists.
func seedDemoData(
	ctx context.Context,
	users persistence.UserRepository,
	destinations persistence.DestinationRepository,
	periods persistence.PeriodRepository,
	idGenerator func() string,
	logger *slog.Logger,
) error {
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("demo seeding skipped, accounts already exist", "count", len(existing))
		return nil
	}

	now := time.Now().UTC()
	hash, err := application.CreatePasswordHash("password", application.DefaultArgon2idParams)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	admin := persistence.User{
		ID:           idGenerator(),
		Email:        "admin@school.test",
		DisplayName:  "Demo Admin",
		PasswordHash: hash,
		Role:         string(application.RoleAdmin),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	teacher := persistence.User{
		ID:           idGenerator(),
		Email:        "teacher@school.test",
		DisplayName:  "Demo Teacher",
		PasswordHash: hash,
		Role:         string(application.RoleTeacher),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	student := persistence.User{
		ID:           idGenerator(),
		Email:        "student@school.test",
		DisplayName:  "Demo Student",
		PasswordHash: hash,
		Role:         string(application.RoleStudent),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, user := range []persistence.User{admin, teacher, student} {
		if err := users.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create %s: %w", user.Email, err)
		}
	}

	for _, destination := range []persistence.Destination{
		{ID: idGenerator(), Name: "Restroom", DefaultMinutes: 5, MaxConcurrent: -1, CreatedAt: now, UpdatedAt: now},
		{ID: idGenerator(), Name: "Library", DefaultMinutes: 15, MaxConcurrent: -1, CreatedAt: now, UpdatedAt: now},
		{ID: idGenerator(), Name: "Nurse", DefaultMinutes: 20, MaxConcurrent: -1, CreatedAt: now, UpdatedAt: now},
	} {
		if err := destinations.CreateDestination(ctx, destination); err != nil {
			return fmt.Errorf("failed to create destination %s: %w", destination.Name, err)
		}
	}

	period := persistence.SchedulePeriod{
		ID:        idGenerator(),
		Name:      "Period 1",
		TeacherID: teacher.ID,
		StartTime: "08:00",
		EndTime:   "08:50",
		DaysMask:  "1111100",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := periods.CreatePeriod(ctx, period); err != nil {
		return fmt.Errorf("failed to create period: %w", err)
	}
	enrollment := persistence.Enrollment{
		ID:        idGenerator(),
		StudentID: student.ID,
		PeriodID:  period.ID,
		Active:    true,
		CreatedAt: now,
	}
	if err := periods.AddEnrollment(ctx, enrollment); err != nil {
		return fmt.Errorf("failed to enroll demo student: %w", err)
	}

	logger.Info("demo data seeded", "admin", admin.Email, "teacher", teacher.Email, "student", student.Email)
	return nil
}
