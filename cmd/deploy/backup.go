package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// Backup fetches the database, tuning config, and service unit from a host
// into a timestamped local directory.
type Backup struct {
	Exec      *deploy.Executor
	OutputDir string

	// now overrides the clock in tests.
	now func() time.Time
}

// Run performs the backup and returns the local directory it wrote.
func (b *Backup) Run() (string, error) {
	fmt.Println("Backing up pathframe...")
	fmt.Printf("Target: %s\n\n", targetLabel(b.Exec))

	clock := b.now
	if clock == nil {
		clock = time.Now
	}
	timestamp := clock().Format("20060102-150405")
	dest := filepath.Join(b.OutputDir, fmt.Sprintf("pathframe-backup-%s", timestamp))

	if !b.Exec.DryRun {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	files := []struct {
		src      string
		name     string
		required bool
	}{
		{dbPath, "cycles.db", true},
		{tuningPath, "tuning.json", false},
		{servicePath, serviceFile, false},
	}

	for _, f := range files {
		if err := b.fetch(f.src, filepath.Join(dest, f.name)); err != nil {
			if f.required {
				return "", fmt.Errorf("failed to fetch %s: %w", f.src, err)
			}
			fmt.Printf("  - Skipped %s (%v)\n", f.src, err)
			continue
		}
		fmt.Printf("  ✓ Fetched %s\n", f.src)
	}

	if err := b.writeMetadata(dest, timestamp); err != nil {
		return "", err
	}

	return dest, nil
}

// fetch stages the file in /tmp with sudo so the SSH user can read it, then
// copies it down and removes the staging copy.
func (b *Backup) fetch(src, dst string) error {
	staged := fmt.Sprintf("/tmp/pathframe-fetch-%d", time.Now().UnixNano())

	if _, err := b.Exec.RunSudo(fmt.Sprintf("cp %s %s && chmod 644 %s", src, staged, staged)); err != nil {
		return fmt.Errorf("staging failed: %w", err)
	}
	defer b.Exec.RunSudo(fmt.Sprintf("rm -f %s", staged))

	return b.Exec.FetchFile(staged, dst)
}

func (b *Backup) writeMetadata(dest, timestamp string) error {
	if b.Exec.DryRun {
		return nil
	}

	meta := fmt.Sprintf("target: %s\ntaken: %s\nversion: %s\n",
		targetLabel(b.Exec), timestamp, getInstalledVersion(b.Exec))

	path := filepath.Join(dest, "metadata.txt")
	if err := os.WriteFile(path, []byte(meta), 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
