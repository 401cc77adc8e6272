package store

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand drives the migrate subcommand against the database at
// dbPath. It exits the process when the action fails.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		printMigrateHelp()
		os.Exit(1)
	}
	if args[0] == "help" {
		printMigrateHelp()
		return
	}

	if err := runMigrateAction(args, dbPath); err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
}

func runMigrateAction(args []string, dbPath string) error {
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("locate migrations: %w", err)
	}

	// The store opens without schema setup here; the migrations own it.
	s, err := NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	action := args[0]
	switch action {
	case "up":
		if err := s.MigrateUp(migrationsFS); err != nil {
			return err
		}
		log.Println("✓ migrations applied")
		reportSchemaVersion(s, migrationsFS)
		return nil

	case "down":
		if err := s.MigrateDown(migrationsFS); err != nil {
			return err
		}
		log.Println("✓ rolled back one migration")
		reportSchemaVersion(s, migrationsFS)
		return nil

	case "status":
		return printMigrateStatus(s, migrationsFS)

	case "version":
		target, err := migrateArgVersion(args)
		if err != nil {
			return err
		}
		if err := s.MigrateTo(migrationsFS, uint(target)); err != nil {
			return err
		}
		log.Printf("✓ now at version %d", target)
		return nil

	case "force":
		target, err := migrateArgVersion(args)
		if err != nil {
			return err
		}
		if !confirmForce(target) {
			log.Println("aborted")
			return nil
		}
		if err := s.MigrateForce(migrationsFS, target); err != nil {
			return err
		}
		log.Printf("✓ version stamp forced to %d", target)
		return nil

	case "baseline":
		target, err := migrateArgVersion(args)
		if err != nil {
			return err
		}
		if err := s.BaselineAtVersion(uint(target)); err != nil {
			return err
		}
		log.Printf("✓ baselined at version %d", target)
		return nil

	default:
		printMigrateHelp()
		return fmt.Errorf("unknown action %q", action)
	}
}

// migrateArgVersion parses the numeric version argument of an action.
func migrateArgVersion(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("a version number is required")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad version %q", args[1])
	}
	return n, nil
}

func reportSchemaVersion(s *Store, migrationsFS fs.FS) {
	if version, dirty, err := s.MigrateVersion(migrationsFS); err == nil {
		log.Printf("schema version %d (dirty: %v)", version, dirty)
	}
}

func printMigrateStatus(s *Store, migrationsFS fs.FS) error {
	version, dirty, err := s.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	status, err := s.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Printf("schema version:   %d\n", version)
	fmt.Printf("dirty:            %v\n", dirty)
	fmt.Printf("tracking table:   %v\n", status["schema_migrations_exists"])
	if latest, ok := status["latest_available"]; ok {
		fmt.Printf("latest available: %d\n", latest)
	}
	if dirty {
		fmt.Println("\nA migration died partway through. Inspect the database, repair")
		fmt.Println("what it left behind, then run: pathframe migrate force <version>")
	}
	return nil
}

// confirmForce asks before rewriting the version stamp, since force exists
// only to recover from a dirty migration state.
func confirmForce(version int) bool {
	fmt.Printf("Force the schema version stamp to %d without running migrations.\n", version)
	fmt.Print("Continue? [y/N]: ")
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

func printMigrateHelp() {
	fmt.Println(`Usage: pathframe migrate <action>

Actions:
  up              Apply every pending migration
  down            Roll back one migration
  status          Show schema version and migration state
  version <N>     Migrate up or down to version N
  force <N>       Stamp version N without running migrations (recovery)
  baseline <N>    Mark an existing schema as already at version N
  help            Show this help message

The database path comes from the -db flag (default: cycles.db).`)
}
