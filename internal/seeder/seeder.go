// Package seeder generates fixture users and processes for development.
package seeder

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tramita-io/tramita/internal/models"
	"github.com/tramita-io/tramita/internal/repository"
)

// Config holds seeder settings.
type Config struct {
	Users     int      `yaml:"users"`
	Processes int      `yaml:"processes"`
	Sections  []string `yaml:"sections"`
}

// Fixtures is an optional YAML file with explicit records to create before
// the generated ones.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
}

// UserFixture is one explicit user record.
type UserFixture struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Section string `yaml:"section"`
}

// DefaultConfig returns seeder defaults.
func DefaultConfig() Config {
	return Config{
		Users:     25,
		Processes: 10,
		Sections:  []string{"Finance", "Legal", "Operations", "Engineering"},
	}
}

// LoadFixtures reads an explicit fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures file: %w", err)
	}

	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse fixtures file: %w", err)
	}
	return &fixtures, nil
}

// Runner executes the seeding process against a repository.
type Runner struct {
	repo repository.Repository
	cfg  Config
}

// NewRunner creates a seeder runner.
func NewRunner(repo repository.Repository, cfg Config) *Runner {
	return &Runner{repo: repo, cfg: cfg}
}

// Run creates fixture users and processes. Explicit fixtures are created
// first, then generated records fill the remaining counts.
func (r *Runner) Run(ctx context.Context, fixtures *Fixtures) error {
	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting seeder:")
	log.Printf("  Users: %d", r.cfg.Users)
	log.Printf("  Processes: %d", r.cfg.Processes)
	log.Printf("  Sections: %v", r.cfg.Sections)

	users := make([]models.User, 0, r.cfg.Users)

	if fixtures != nil {
		for _, f := range fixtures.Users {
			user := models.User{
				ID:        uuid.New().String(),
				Name:      f.Name,
				Email:     f.Email,
				Section:   f.Section,
				CreatedAt: time.Now().UTC(),
			}
			if err := r.repo.CreateUser(ctx, &user); err != nil {
				return fmt.Errorf("create fixture user %s: %w", f.Name, err)
			}
			users = append(users, user)
		}
		log.Printf("Created %d fixture users", len(fixtures.Users))
	}

	for len(users) < r.cfg.Users {
		section := ""
		if len(r.cfg.Sections) > 0 {
			section = r.cfg.Sections[rand.Intn(len(r.cfg.Sections))]
		}
		user := models.User{
			ID:        uuid.New().String(),
			Name:      gofakeit.Name(),
			Email:     gofakeit.Email(),
			Section:   section,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.repo.CreateUser(ctx, &user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}

	if len(users) == 0 && r.cfg.Processes > 0 {
		return fmt.Errorf("cannot seed processes without users")
	}

	for i := 0; i < r.cfg.Processes; i++ {
		holder := users[rand.Intn(len(users))]
		process := models.Process{
			ID:        uuid.New().String(),
			Title:     fmt.Sprintf("%s %s", gofakeit.BuzzWord(), gofakeit.NounAbstract()),
			HolderID:  &holder.ID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := r.repo.CreateProcess(ctx, &process); err != nil {
			return fmt.Errorf("create process: %w", err)
		}
	}

	log.Printf("Seeding complete: %d users, %d processes", len(users), r.cfg.Processes)
	return nil
}
