package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tramita-io/tramita/internal/repository"
	"github.com/tramita-io/tramita/internal/seeder"
)

var (
	seedUsers     int
	seedProcesses int
	seedSections  string
	seedFixtures  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed development data",
	Long: `Create fixture users and processes in the configured database.

Examples:
  # Seed with defaults
  tramitactl seed

  # Seed a specific shape
  tramitactl seed --users 100 --processes 40 --sections Finance,Legal

  # Create explicit records from a fixtures file first
  tramitactl seed --fixtures ./fixtures.yaml`,
	RunE: runSeed,
}

func init() {
	defaults := seeder.DefaultConfig()

	seedCmd.Flags().IntVar(&seedUsers, "users", defaults.Users, "number of users to create")
	seedCmd.Flags().IntVar(&seedProcesses, "processes", defaults.Processes, "number of processes to create")
	seedCmd.Flags().StringVar(&seedSections, "sections", strings.Join(defaults.Sections, ","), "comma-separated section names")
	seedCmd.Flags().StringVar(&seedFixtures, "fixtures", "", "path to a YAML fixtures file")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()

	var fixtures *seeder.Fixtures
	if seedFixtures != "" {
		fixtures, err = seeder.LoadFixtures(seedFixtures)
		if err != nil {
			return err
		}
	}

	runner := seeder.NewRunner(repo, seeder.Config{
		Users:     seedUsers,
		Processes: seedProcesses,
		Sections:  splitSections(seedSections),
	})

	return runner.Run(ctx, fixtures)
}

func splitSections(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	sections := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			sections = append(sections, trimmed)
		}
	}
	return sections
}
