package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/kitahara/bunko/internal/infrastructure/config"
	"github.com/kitahara/bunko/internal/infrastructure/database"
	"github.com/spf13/cobra"
)

const migrationsPathSuffix = "internal/infrastructure/database/migrations/postgres"

var envFlag string

func main() {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool for Bunko",
		Long: `Database migration tool for Bunko.
Manages PostgreSQL schema migrations using golang-migrate.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Up(); err != nil {
						if err == migrate.ErrNoChange {
							log.Println("No migrations to apply")
							return nil
						}
						return err
					}
					log.Println("Migrations applied")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Rollback migrations",
			Long:  `Rollback the specified number of migrations (default: 1).`,
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid step count %q", args[0])
					}
					steps = n
				}
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Steps(-steps); err != nil {
						if err == migrate.ErrNoChange {
							log.Println("No migrations to rollback")
							return nil
						}
						return err
					}
					log.Printf("Rolled back %d migration(s)", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Migrate(uint(v)); err != nil {
						if err == migrate.ErrNoChange {
							log.Printf("Already at version %d", v)
							return nil
						}
						return err
					}
					log.Printf("Migrated to version %d", v)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrate.Migrate) error {
					version, dirty, err := m.Version()
					if err == migrate.ErrNilVersion {
						log.Println("No migrations applied yet")
						return nil
					}
					if err != nil {
						return err
					}
					if dirty {
						log.Printf("Current version: %d (dirty, last migration may have failed)", version)
					} else {
						log.Printf("Current version: %d", version)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force set migration version (use with caution)",
			Long:  `Force set the migration version without running migrations. Use with caution.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Force(v); err != nil {
						return err
					}
					log.Printf("Forced version to %d", v)
					return nil
				})
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// withMigrator connects using the selected environment, builds a migrate
// instance over the project's migration files, and runs fn against it.
func withMigrator(fn func(*migrate.Migrate) error) error {
	log.Printf("Using environment: %s", envFlag)

	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()
	log.Printf("Connected to %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	root, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}
	m, err := pg.NewMigrator(filepath.Join(root, migrationsPathSuffix))
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}
