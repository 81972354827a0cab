package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/hallpass/internal/persistence"
)

func setupTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hallpass.db")
	pool, err := NewConnectionPool(DefaultConfig(path))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return pool
}

func createTestUser(t *testing.T, pool *ConnectionPool, id, role string) {
	t.Helper()

	repo := NewUserRepository(pool)
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:           id,
		Email:        id + "@school.test",
		DisplayName:  "User " + id,
		PasswordHash: "hash-" + id,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", id, err)
	}
}

func createTestDestination(t *testing.T, pool *ConnectionPool, id string, minutes int) {
	t.Helper()

	repo := NewDestinationRepository(pool)
	err := repo.CreateDestination(context.Background(), persistence.Destination{
		ID:             id,
		Name:           "Destination " + id,
		DefaultMinutes: minutes,
		MaxConcurrent:  -1,
	})
	if err != nil {
		t.Fatalf("CreateDestination(%s) failed: %v", id, err)
	}
}

func createPendingPass(t *testing.T, repo *PassRepository, passID, studentID, destinationID, teacherID string) persistence.Pass {
	t.Helper()

	pass, err := repo.CreatePass(context.Background(),
		persistence.Pass{
			ID:            passID,
			StudentID:     studentID,
			DestinationID: destinationID,
			State:         "Pending",
		},
		persistence.PassAssignment{
			ID:        passID + "-assign",
			PassID:    passID,
			TeacherID: teacherID,
		},
		persistence.AuditEntry{
			ID:         passID + "-audit-request",
			ActorID:    &studentID,
			Action:     "pass.requested",
			TargetType: "pass",
			TargetID:   &passID,
		},
	)
	if err != nil {
		t.Fatalf("CreatePass failed: %v", err)
	}
	return pass
}

func TestPassRepository_CreatePass(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)

	pass := createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")

	if pass.State != "Pending" {
		t.Errorf("expected state Pending, got %s", pass.State)
	}
	if pass.IssuedAt != nil || pass.ExpiresAt != nil {
		t.Errorf("expected pending pass to carry no timer")
	}

	assignments, err := repo.ListAssignments(context.Background(), "pass1")
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 1 || assignments[0].TeacherID != "teacher1" {
		t.Fatalf("expected one assignment to teacher1, got %+v", assignments)
	}

	entries, err := NewAuditRepository(pool).ListEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "pass.requested" {
		t.Fatalf("expected one pass.requested audit entry, got %+v", entries)
	}
}

func TestPassRepository_CreatePass_UnknownDestination(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")

	_, err := repo.CreatePass(context.Background(),
		persistence.Pass{ID: "pass1", StudentID: "student1", DestinationID: "missing", State: "Pending"},
		persistence.PassAssignment{ID: "assign1", PassID: "pass1", TeacherID: "teacher1"},
		persistence.AuditEntry{ID: "audit1", Action: "pass.requested", TargetType: "pass"},
	)
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}
}

func TestPassRepository_ActivatePass(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)
	createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	expiresAt := issuedAt.Add(5 * time.Minute)
	teacherID := "teacher1"

	updated, err := repo.ActivatePass(context.Background(), "pass1", issuedAt, expiresAt,
		persistence.PassAssignment{ID: "assign2", PassID: "pass1", TeacherID: teacherID},
		persistence.AuditEntry{ID: "audit2", ActorID: &teacherID, Action: "pass.approved", TargetType: "pass"},
	)
	if err != nil {
		t.Fatalf("ActivatePass failed: %v", err)
	}

	if updated.State != "Active" {
		t.Errorf("expected state Active, got %s", updated.State)
	}
	if updated.IssuedAt == nil || !updated.IssuedAt.Equal(issuedAt) {
		t.Errorf("expected issued_at %v, got %v", issuedAt, updated.IssuedAt)
	}
	if updated.ExpiresAt == nil || !updated.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expected expires_at %v, got %v", expiresAt, updated.ExpiresAt)
	}

	// The assignment already existed, so no second row appears.
	assignments, err := repo.ListAssignments(context.Background(), "pass1")
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected one assignment, got %d", len(assignments))
	}
}

func TestPassRepository_ActivatePass_StaleState(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)
	createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")

	_, err := repo.TransitionPass(context.Background(), "pass1", []string{"Pending"}, "Cancelled",
		persistence.AuditEntry{ID: "audit-cancel", Action: "pass.cancelled", TargetType: "pass"})
	if err != nil {
		t.Fatalf("TransitionPass failed: %v", err)
	}

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	_, err = repo.ActivatePass(context.Background(), "pass1", issuedAt, issuedAt.Add(5*time.Minute),
		persistence.PassAssignment{ID: "assign2", PassID: "pass1", TeacherID: "teacher1"},
		persistence.AuditEntry{ID: "audit2", Action: "pass.approved", TargetType: "pass"},
	)
	if !errors.Is(err, persistence.ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
}

func TestPassRepository_ActivatePass_NotFound(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	_, err := repo.ActivatePass(context.Background(), "missing", issuedAt, issuedAt.Add(time.Minute),
		persistence.PassAssignment{ID: "assign1", PassID: "missing", TeacherID: "teacher1"},
		persistence.AuditEntry{ID: "audit1", Action: "pass.approved", TargetType: "pass"},
	)
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPassRepository_ExtendPass(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)
	createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	expiresAt := issuedAt.Add(5 * time.Minute)
	if _, err := repo.ActivatePass(context.Background(), "pass1", issuedAt, expiresAt,
		persistence.PassAssignment{ID: "assign2", PassID: "pass1", TeacherID: "teacher1"},
		persistence.AuditEntry{ID: "audit2", Action: "pass.approved", TargetType: "pass"},
	); err != nil {
		t.Fatalf("ActivatePass failed: %v", err)
	}

	newExpiry := expiresAt.Add(10 * time.Minute)
	reason := "nurse follow-up"
	updated, err := repo.ExtendPass(context.Background(), "pass1",
		persistence.Override{
			ID:                "override1",
			PassID:            "pass1",
			PerformedByID:     "teacher1",
			PreviousExpiresAt: expiresAt,
			NewExpiresAt:      newExpiry,
			Reason:            &reason,
		},
		persistence.AuditEntry{ID: "audit3", Action: "pass.extended", TargetType: "pass"},
	)
	if err != nil {
		t.Fatalf("ExtendPass failed: %v", err)
	}

	if updated.ExpiresAt == nil || !updated.ExpiresAt.Equal(newExpiry) {
		t.Errorf("expected expires_at %v, got %v", newExpiry, updated.ExpiresAt)
	}

	overrides, err := repo.ListOverrides(context.Background(), "pass1")
	if err != nil {
		t.Fatalf("ListOverrides failed: %v", err)
	}
	if len(overrides) != 1 {
		t.Fatalf("expected one override, got %d", len(overrides))
	}
	if !overrides[0].PreviousExpiresAt.Equal(expiresAt) || !overrides[0].NewExpiresAt.Equal(newExpiry) {
		t.Errorf("override does not record the deadline movement: %+v", overrides[0])
	}
	if overrides[0].Reason == nil || *overrides[0].Reason != reason {
		t.Errorf("expected reason %q, got %v", reason, overrides[0].Reason)
	}

	// A second extension against the already superseded deadline loses.
	_, err = repo.ExtendPass(context.Background(), "pass1",
		persistence.Override{
			ID:                "override2",
			PassID:            "pass1",
			PerformedByID:     "teacher1",
			PreviousExpiresAt: expiresAt,
			NewExpiresAt:      expiresAt.Add(20 * time.Minute),
		},
		persistence.AuditEntry{ID: "audit4", Action: "pass.extended", TargetType: "pass"},
	)
	if !errors.Is(err, persistence.ErrStaleState) {
		t.Fatalf("expected ErrStaleState for stale baseline, got %v", err)
	}
}

func TestPassRepository_ExpireOverdue(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "student2", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	for i, spec := range []struct {
		passID    string
		studentID string
		expiresIn time.Duration
	}{
		{passID: "pass1", studentID: "student1", expiresIn: 5 * time.Minute},
		{passID: "pass2", studentID: "student2", expiresIn: 30 * time.Minute},
	} {
		createPendingPass(t, repo, spec.passID, spec.studentID, "dest1", "teacher1")
		_, err := repo.ActivatePass(context.Background(), spec.passID, issuedAt, issuedAt.Add(spec.expiresIn),
			persistence.PassAssignment{ID: spec.passID + "-assign2", PassID: spec.passID, TeacherID: "teacher1"},
			persistence.AuditEntry{ID: spec.passID + "-audit-approve", Action: "pass.approved", TargetType: "pass"},
		)
		if err != nil {
			t.Fatalf("ActivatePass %d failed: %v", i, err)
		}
	}

	now := issuedAt.Add(10 * time.Minute)
	expired, err := repo.ExpireOverdue(context.Background(), now, func(pass persistence.Pass) persistence.AuditEntry {
		id := pass.ID
		return persistence.AuditEntry{
			ID:         "expire-" + pass.ID,
			Action:     "pass.expired",
			TargetType: "pass",
			TargetID:   &id,
		}
	})
	if err != nil {
		t.Fatalf("ExpireOverdue failed: %v", err)
	}

	if len(expired) != 1 || expired[0].ID != "pass1" {
		t.Fatalf("expected only pass1 to expire, got %+v", expired)
	}

	pass1, err := repo.GetPass(context.Background(), "pass1")
	if err != nil {
		t.Fatalf("GetPass failed: %v", err)
	}
	if pass1.State != "Expired" {
		t.Errorf("expected pass1 to be Expired, got %s", pass1.State)
	}

	pass2, err := repo.GetPass(context.Background(), "pass2")
	if err != nil {
		t.Fatalf("GetPass failed: %v", err)
	}
	if pass2.State != "Active" {
		t.Errorf("expected pass2 to remain Active, got %s", pass2.State)
	}

	// The sweep is idempotent for an unchanged clock.
	again, err := repo.ExpireOverdue(context.Background(), now, func(pass persistence.Pass) persistence.AuditEntry {
		return persistence.AuditEntry{ID: "expire-again-" + pass.ID, Action: "pass.expired", TargetType: "pass"}
	})
	if err != nil {
		t.Fatalf("second ExpireOverdue failed: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no passes on second sweep, got %+v", again)
	}
}

func TestPassRepository_ListPasses_Filters(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "student2", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestUser(t, pool, "teacher2", "Teacher")
	createTestDestination(t, pool, "dest1", 5)

	createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")
	createPendingPass(t, repo, "pass2", "student2", "dest1", "teacher2")

	mine, err := repo.ListPasses(context.Background(), persistence.PassFilter{StudentID: "student1"})
	if err != nil {
		t.Fatalf("ListPasses failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "pass1" {
		t.Fatalf("expected pass1 for student1, got %+v", mine)
	}

	queue, err := repo.ListPasses(context.Background(), persistence.PassFilter{
		States:            []string{"Pending"},
		AssignedTeacherID: "teacher2",
	})
	if err != nil {
		t.Fatalf("ListPasses failed: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != "pass2" {
		t.Fatalf("expected pass2 for teacher2 queue, got %+v", queue)
	}
}

func TestPassRepository_ListActiveBoard(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPassRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestDestination(t, pool, "dest1", 5)
	createPendingPass(t, repo, "pass1", "student1", "dest1", "teacher1")

	issuedAt := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	if _, err := repo.ActivatePass(context.Background(), "pass1", issuedAt, issuedAt.Add(5*time.Minute),
		persistence.PassAssignment{ID: "assign2", PassID: "pass1", TeacherID: "teacher1"},
		persistence.AuditEntry{ID: "audit2", Action: "pass.approved", TargetType: "pass"},
	); err != nil {
		t.Fatalf("ActivatePass failed: %v", err)
	}

	board, err := repo.ListActiveBoard(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListActiveBoard failed: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("expected one board row, got %d", len(board))
	}
	row := board[0]
	if row.StudentName != "User student1" {
		t.Errorf("expected student name, got %q", row.StudentName)
	}
	if row.DestinationName != "Destination dest1" {
		t.Errorf("expected destination name, got %q", row.DestinationName)
	}
	if len(row.ApproverNames) != 1 || row.ApproverNames[0] != "User teacher1" {
		t.Errorf("expected approver names, got %+v", row.ApproverNames)
	}
}
