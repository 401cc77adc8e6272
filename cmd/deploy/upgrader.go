package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// Upgrader replaces the installed binary with a new build, backing up the
// old one on the host first.
type Upgrader struct {
	Exec       *deploy.Executor
	BinaryPath string
	SkipBackup bool
}

// Upgrade runs the full upgrade sequence.
func (u *Upgrader) Upgrade() error {
	fmt.Println("Upgrading pathframe...")
	fmt.Printf("Target: %s\n\n", targetLabel(u.Exec))

	if err := u.validateBinary(); err != nil {
		return err
	}

	installed, err := u.checkInstalled()
	if err != nil {
		return err
	}
	if !installed {
		return fmt.Errorf("pathframe is not installed; use 'pathframe-deploy install' first")
	}

	currentVersion := getInstalledVersion(u.Exec)
	fmt.Printf("Current version: %s\n", currentVersion)

	if !u.SkipBackup {
		if err := u.backupCurrent(currentVersion); err != nil {
			return err
		}
	}

	if err := u.stopService(); err != nil {
		return err
	}
	if err := u.installNewBinary(); err != nil {
		return err
	}
	if err := runMigrations(u.Exec); err != nil {
		return err
	}
	if err := u.startService(); err != nil {
		return err
	}

	fmt.Printf("\nUpgrade complete! Now running: %s\n", getInstalledVersion(u.Exec))
	return nil
}

func (u *Upgrader) validateBinary() error {
	info, err := os.Stat(u.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary not found: %s", u.BinaryPath)
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return fmt.Errorf("not an executable binary: %s", u.BinaryPath)
	}
	return nil
}

func (u *Upgrader) checkInstalled() (bool, error) {
	if u.Exec.DryRun {
		return true, nil
	}

	output, err := u.Exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) == "exists", nil
}

// backupCurrent snapshots the running binary and its version into a
// timestamped directory under the data dir, for rollback.
func (u *Upgrader) backupCurrent(currentVersion string) error {
	backupDir := fmt.Sprintf("%s/%s", backupsDir, time.Now().Format("20060102-150405"))
	fmt.Printf("Backing up current version to %s\n", backupDir)

	cmd := fmt.Sprintf("mkdir -p %s && cp %s %s/%s", backupDir, installPath, backupDir, serviceName)
	if _, err := u.Exec.RunSudo(cmd); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	if _, err := u.Exec.RunSudo(fmt.Sprintf("sh -c 'echo %q > %s/version.txt'", currentVersion, backupDir)); err != nil {
		return fmt.Errorf("failed to record backup version: %w", err)
	}

	fmt.Println("  ✓ Backup created")
	return nil
}

func (u *Upgrader) stopService() error {
	fmt.Printf("Stopping %s service...\n", serviceName)

	if _, err := u.Exec.RunSudo(fmt.Sprintf("systemctl stop %s", serviceName)); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}
	u.Exec.Run("sleep 2")

	fmt.Println("  ✓ Service stopped")
	return nil
}

func (u *Upgrader) installNewBinary() error {
	fmt.Printf("Installing new binary to %s...\n", installPath)

	if err := u.Exec.CopyFile(u.BinaryPath, installPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if _, err := u.Exec.RunSudo(fmt.Sprintf("chown root:root %s && chmod 0755 %s", installPath, installPath)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ Binary installed")
	return nil
}

func (u *Upgrader) startService() error {
	fmt.Printf("Starting %s service...\n", serviceName)

	if _, err := u.Exec.RunSudo(fmt.Sprintf("systemctl start %s", serviceName)); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	u.Exec.Run("sleep 3")

	if err := verifyActive(u.Exec); err != nil {
		return fmt.Errorf("%w; check 'journalctl -u %s -n 50', then 'pathframe-deploy rollback' if needed", err, serviceName)
	}

	fmt.Println("  ✓ Service started successfully")
	return nil
}
