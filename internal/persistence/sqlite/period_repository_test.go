package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/example/hallpass/internal/persistence"
)

func createTestPeriod(t *testing.T, repo *PeriodRepository, id, teacherID string, active bool) {
	t.Helper()

	err := repo.CreatePeriod(context.Background(), persistence.SchedulePeriod{
		ID:        id,
		Name:      "Period " + id,
		TeacherID: teacherID,
		Active:    active,
	})
	if err != nil {
		t.Fatalf("CreatePeriod(%s) failed: %v", id, err)
	}
}

func enrollTestStudent(t *testing.T, repo *PeriodRepository, id, studentID, periodID string, active bool) {
	t.Helper()

	err := repo.AddEnrollment(context.Background(), persistence.Enrollment{
		ID:        id,
		StudentID: studentID,
		PeriodID:  periodID,
		Active:    active,
	})
	if err != nil {
		t.Fatalf("AddEnrollment(%s) failed: %v", id, err)
	}
}

func TestPeriodRepository_ListActiveEnrolledPeriods(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPeriodRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestUser(t, pool, "teacher2", "Teacher")
	createTestUser(t, pool, "admin1", "Admin")

	createTestPeriod(t, repo, "period-a", "teacher1", true)
	createTestPeriod(t, repo, "period-b", "teacher2", true)
	createTestPeriod(t, repo, "period-c", "teacher1", false)
	createTestPeriod(t, repo, "period-d", "admin1", true)

	enrollTestStudent(t, repo, "e1", "student1", "period-a", true)
	enrollTestStudent(t, repo, "e2", "student1", "period-b", true)
	// Inactive period and inactive enrollment are both excluded.
	enrollTestStudent(t, repo, "e3", "student1", "period-c", true)
	enrollTestStudent(t, repo, "e4", "student1", "period-d", true)

	periods, err := repo.ListActiveEnrolledPeriods(context.Background(), "student1")
	if err != nil {
		t.Fatalf("ListActiveEnrolledPeriods failed: %v", err)
	}

	if len(periods) != 2 {
		t.Fatalf("expected two periods, got %d", len(periods))
	}
	if periods[0].ID != "period-a" || periods[1].ID != "period-b" {
		t.Errorf("expected deterministic ID order, got %s then %s", periods[0].ID, periods[1].ID)
	}
}

func TestPeriodRepository_ListApproverPeriodsForStudent(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPeriodRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestUser(t, pool, "teacher2", "Teacher")

	createTestPeriod(t, repo, "period-a", "teacher1", true)
	createTestPeriod(t, repo, "period-b", "teacher2", true)

	enrollTestStudent(t, repo, "e1", "student1", "period-a", true)
	enrollTestStudent(t, repo, "e2", "student1", "period-b", true)

	periods, err := repo.ListApproverPeriodsForStudent(context.Background(), "teacher1", "student1")
	if err != nil {
		t.Fatalf("ListApproverPeriodsForStudent failed: %v", err)
	}
	if len(periods) != 1 || periods[0].ID != "period-a" {
		t.Fatalf("expected only teacher1's period, got %+v", periods)
	}
}

func TestPeriodRepository_DuplicateEnrollmentRejected(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPeriodRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestPeriod(t, repo, "period-a", "teacher1", true)

	enrollTestStudent(t, repo, "e1", "student1", "period-a", true)

	err := repo.AddEnrollment(context.Background(), persistence.Enrollment{
		ID:        "e2",
		StudentID: "student1",
		PeriodID:  "period-a",
		Active:    true,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPeriodRepository_ActiveEnrollmentExists(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewPeriodRepository(pool)

	createTestUser(t, pool, "student1", "Student")
	createTestUser(t, pool, "teacher1", "Teacher")
	createTestPeriod(t, repo, "period-a", "teacher1", true)
	enrollTestStudent(t, repo, "e1", "student1", "period-a", false)

	exists, err := repo.ActiveEnrollmentExists(context.Background(), "student1", "period-a")
	if err != nil {
		t.Fatalf("ActiveEnrollmentExists failed: %v", err)
	}
	if exists {
		t.Fatalf("expected inactive enrollment to not count")
	}
}
