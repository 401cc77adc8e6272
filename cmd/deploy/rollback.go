package main

import (
	"fmt"
	"strings"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// Rollback restores the most recent on-host binary backup taken by upgrade.
type Rollback struct {
	Exec *deploy.Executor
	Yes  bool
}

// Run finds the latest backup, confirms, and restores it.
func (r *Rollback) Run() error {
	fmt.Println("Rolling back pathframe...")
	fmt.Printf("Target: %s\n\n", targetLabel(r.Exec))

	backupDir, err := r.findLatestBackup()
	if err != nil {
		return err
	}

	backupVersion := r.backupVersion(backupDir)
	fmt.Printf("Latest backup: %s (%s)\n", backupDir, backupVersion)

	if !r.confirm(backupVersion) {
		fmt.Println("Rollback cancelled.")
		return nil
	}

	if err := r.restore(backupDir); err != nil {
		return err
	}

	fmt.Println("\nRollback complete!")
	fmt.Println("The database was not touched; migrations applied by the newer")
	fmt.Println("version remain in place.")
	return nil
}

func (r *Rollback) findLatestBackup() (string, error) {
	if r.Exec.DryRun {
		return backupsDir + "/<latest>", nil
	}

	output, err := r.Exec.Run(fmt.Sprintf("ls -1t %s 2>/dev/null | head -1", backupsDir))
	if err != nil {
		return "", fmt.Errorf("failed to list backups: %w", err)
	}

	latest := strings.TrimSpace(output)
	if latest == "" {
		return "", fmt.Errorf("no backups found in %s", backupsDir)
	}
	return backupsDir + "/" + latest, nil
}

func (r *Rollback) backupVersion(backupDir string) string {
	if r.Exec.DryRun {
		return "unknown (dry-run)"
	}

	output, err := r.Exec.Run(fmt.Sprintf("cat %s/version.txt 2>/dev/null", backupDir))
	version := strings.TrimSpace(output)
	if err != nil || version == "" {
		return "unknown version"
	}
	return version
}

func (r *Rollback) confirm(backupVersion string) bool {
	if r.Yes || r.Exec.DryRun {
		return true
	}

	fmt.Printf("\nRoll back to %s? [y/N] ", backupVersion)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (r *Rollback) restore(backupDir string) error {
	fmt.Printf("Stopping %s service...\n", serviceName)
	if _, err := r.Exec.RunSudo(fmt.Sprintf("systemctl stop %s", serviceName)); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	fmt.Println("Restoring binary...")
	cmd := fmt.Sprintf("cp %s/%s %s && chown root:root %s && chmod 0755 %s",
		backupDir, serviceName, installPath, installPath, installPath)
	if _, err := r.Exec.RunSudo(cmd); err != nil {
		return fmt.Errorf("failed to restore binary: %w", err)
	}

	fmt.Printf("Starting %s service...\n", serviceName)
	if _, err := r.Exec.RunSudo(fmt.Sprintf("systemctl start %s", serviceName)); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	r.Exec.Run("sleep 3")

	if err := verifyActive(r.Exec); err != nil {
		return fmt.Errorf("restored service failed to start: %w", err)
	}

	fmt.Println("  ✓ Service restored and running")
	return nil
}
