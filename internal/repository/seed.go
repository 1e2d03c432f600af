package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"chore-tracker/internal/model"
)

// SeedFile describes the first-run household bootstrap: members plus the
// initial set of chores.
type SeedFile struct {
	Members []SeedMember `yaml:"members"`
	Tasks   []SeedTask   `yaml:"tasks"`
}

type SeedMember struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
	PIN  string `yaml:"pin"`
}

type SeedTask struct {
	Title         string   `yaml:"title"`
	Description   string   `yaml:"description"`
	Frequency     string   `yaml:"frequency"`
	Priority      string   `yaml:"priority"`
	AssignedToAll bool     `yaml:"assigned_to_all"`
	Assignees     []string `yaml:"assignees"` // member names, resolved to ids
	StartDate     string   `yaml:"start_date"`
}

// ParseSeedFile reads and validates a YAML seed file.
func ParseSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, m := range seed.Members {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("seed member %d: name is required", i+1)
		}
		if m.Role != string(model.RoleOwner) && m.Role != string(model.RoleHelper) {
			return nil, fmt.Errorf("seed member %q: role must be owner or helper", m.Name)
		}
	}
	for i, t := range seed.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("seed task %d: title is required", i+1)
		}
		if t.Frequency != string(model.FrequencyWeekly) && t.Frequency != string(model.FrequencyMonthly) {
			return nil, fmt.Errorf("seed task %q: frequency must be weekly or monthly", t.Title)
		}
		// Same invariant TaskService enforces: all helpers or an explicit
		// non-empty list, never both.
		if t.AssignedToAll && len(t.Assignees) > 0 {
			return nil, fmt.Errorf("seed task %q: assigned_to_all excludes an assignee list", t.Title)
		}
		if !t.AssignedToAll && len(t.Assignees) == 0 {
			return nil, fmt.Errorf("seed task %q: needs assigned_to_all or at least one assignee", t.Title)
		}
	}

	return &seed, nil
}

// SeedIfEmpty loads members and chores from the seed file when the store has
// no users yet. Running it against a populated store is a no-op.
func SeedIfEmpty(ctx context.Context, path string, users *UserRepository, tasks *TaskRepository) error {
	count, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	seed, err := ParseSeedFile(path)
	if err != nil {
		return err
	}

	memberIDs := make(map[string]string, len(seed.Members))
	for _, m := range seed.Members {
		user := model.User{
			ID:   uuid.NewString(),
			Name: strings.TrimSpace(m.Name),
			Role: model.Role(m.Role),
			PIN:  strings.TrimSpace(m.PIN),
		}
		if err := users.Create(ctx, &user); err != nil {
			return err
		}
		memberIDs[strings.ToLower(user.Name)] = user.ID
	}

	for _, t := range seed.Tasks {
		task := model.Task{
			ID:            uuid.NewString(),
			Title:         strings.TrimSpace(t.Title),
			Description:   strings.TrimSpace(t.Description),
			Frequency:     model.Frequency(t.Frequency),
			Priority:      seedPriority(t.Priority),
			IsActive:      true,
			AssignedToAll: t.AssignedToAll,
		}
		if !t.AssignedToAll {
			for _, name := range t.Assignees {
				id, ok := memberIDs[strings.ToLower(strings.TrimSpace(name))]
				if !ok {
					return fmt.Errorf("seed task %q: unknown assignee %q", t.Title, name)
				}
				task.Assignees = append(task.Assignees, id)
			}
		}
		if t.StartDate != "" {
			parsed, err := time.Parse("2006-01-02", t.StartDate)
			if err != nil {
				return fmt.Errorf("seed task %q: bad start_date %q", t.Title, t.StartDate)
			}
			task.StartDate = &parsed
		}
		if err := tasks.Create(ctx, &task); err != nil {
			return err
		}
	}

	log.Printf("[info] seeded %d members and %d tasks from %s", len(seed.Members), len(seed.Tasks), path)
	return nil
}

func seedPriority(raw string) model.Priority {
	switch model.Priority(raw) {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		return model.Priority(raw)
	default:
		return model.PriorityMedium
	}
}
