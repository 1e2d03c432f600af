package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const seedYAML = `members:
  - name: Мама
    role: owner
    pin: "1234"
  - name: Петя
    role: helper
    pin: "1111"
tasks:
  - title: Полить цветы
    frequency: weekly
    priority: medium
    assigned_to_all: true
  - title: Вынести мусор
    frequency: weekly
    priority: high
    assignees: [Петя]
  - title: Оплатить счета
    frequency: monthly
    priority: high
    assigned_to_all: true
    start_date: "2026-03-01"
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestParseSeedFile(t *testing.T) {
	seed, err := ParseSeedFile(writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	if len(seed.Members) != 2 || len(seed.Tasks) != 3 {
		t.Fatalf("parsed %d members and %d tasks, want 2 and 3", len(seed.Members), len(seed.Tasks))
	}
	if seed.Tasks[2].StartDate != "2026-03-01" {
		t.Errorf("start_date = %q", seed.Tasks[2].StartDate)
	}
}

func TestParseSeedFileRejectsBadRole(t *testing.T) {
	bad := "members:\n  - name: Кот\n    role: pet\n    pin: \"0\"\n"
	if _, err := ParseSeedFile(writeSeed(t, bad)); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestParseSeedFileRejectsBadFrequency(t *testing.T) {
	bad := "tasks:\n  - title: Дело\n    frequency: daily\n"
	if _, err := ParseSeedFile(writeSeed(t, bad)); err == nil {
		t.Fatal("expected error for unsupported frequency")
	}
}

func TestParseSeedFileRejectsBadAssignment(t *testing.T) {
	// Neither assigned_to_all nor an assignee list.
	orphan := "tasks:\n  - title: Ничьё дело\n    frequency: weekly\n"
	if _, err := ParseSeedFile(writeSeed(t, orphan)); err == nil {
		t.Fatal("expected error for a task with no assignment")
	}

	// Both at once.
	both := "tasks:\n  - title: Дело\n    frequency: weekly\n    assigned_to_all: true\n    assignees: [Петя]\n"
	if _, err := ParseSeedFile(writeSeed(t, both)); err == nil {
		t.Fatal("expected error for assigned_to_all combined with an assignee list")
	}
}

func TestSeedRejectsUnassignedTask(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	ctx := context.Background()
	users := NewUserRepository(db)
	tasks := NewTaskRepository(db)

	bad := seedYAML + "  - title: Ничьё дело\n    frequency: weekly\n"
	if err := SeedIfEmpty(ctx, writeSeed(t, bad), users, tasks); err == nil {
		t.Fatal("expected seed to reject an unassigned task")
	}

	// Nothing from the rejected file may reach the store.
	if count, _ := tasks.Count(ctx); count != 0 {
		t.Errorf("rejected seed left %d tasks in the store", count)
	}
}

func TestSeedIfEmptyIsIdempotent(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	ctx := context.Background()
	users := NewUserRepository(db)
	tasks := NewTaskRepository(db)
	path := writeSeed(t, seedYAML)

	if err := SeedIfEmpty(ctx, path, users, tasks); err != nil {
		t.Fatalf("first seed: %v", err)
	}

	userCount, _ := users.Count(ctx)
	taskCount, _ := tasks.Count(ctx)
	if userCount != 2 || taskCount != 3 {
		t.Fatalf("seeded %d users and %d tasks, want 2 and 3", userCount, taskCount)
	}

	// Second run against a populated store must change nothing.
	if err := SeedIfEmpty(ctx, path, users, tasks); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	userCount, _ = users.Count(ctx)
	taskCount, _ = tasks.Count(ctx)
	if userCount != 2 || taskCount != 3 {
		t.Errorf("repeat seed changed counts: %d users, %d tasks", userCount, taskCount)
	}
}

func TestSeedResolvesAssigneeNames(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	ctx := context.Background()
	users := NewUserRepository(db)
	tasks := NewTaskRepository(db)

	if err := SeedIfEmpty(ctx, writeSeed(t, seedYAML), users, tasks); err != nil {
		t.Fatalf("seed: %v", err)
	}

	helper, err := users.Authenticate(ctx, "петя", "1111")
	if err != nil {
		t.Fatalf("authenticate seeded helper: %v", err)
	}

	all, err := tasks.ListAll(ctx)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	found := false
	for _, task := range all {
		if task.Title != "Вынести мусор" {
			continue
		}
		found = true
		if len(task.Assignees) != 1 || task.Assignees[0] != helper.ID {
			t.Errorf("assignees = %v, want [%s]", task.Assignees, helper.ID)
		}
	}
	if !found {
		t.Fatal("seeded task not found")
	}
}

func TestSeedUnknownAssigneeFails(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	bad := seedYAML + "  - title: Загадка\n    frequency: weekly\n    assignees: [Никто]\n"
	err = SeedIfEmpty(context.Background(), writeSeed(t, bad), NewUserRepository(db), NewTaskRepository(db))
	if err == nil {
		t.Fatal("expected error for unknown assignee")
	}
}
