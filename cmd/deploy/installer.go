package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// Installer performs a fresh install of the pathframe service.
type Installer struct {
	Exec       *deploy.Executor
	BinaryPath string
	TuningPath string
	SerialPort string
}

// Install runs the full installation sequence.
func (i *Installer) Install() error {
	fmt.Println("Installing pathframe...")
	fmt.Printf("Target: %s\n\n", targetLabel(i.Exec))

	if err := i.validateBinary(); err != nil {
		return err
	}

	installed, err := i.checkExisting()
	if err != nil {
		return err
	}
	if installed {
		return fmt.Errorf("pathframe is already installed; use 'pathframe-deploy upgrade' instead")
	}

	if err := i.createServiceUser(); err != nil {
		return err
	}
	if err := i.createDataDirectory(); err != nil {
		return err
	}
	if err := i.installBinary(); err != nil {
		return err
	}
	if err := i.installTuning(); err != nil {
		return err
	}
	if err := i.installService(); err != nil {
		return err
	}
	if err := i.initDatabase(); err != nil {
		return err
	}
	if err := i.startService(); err != nil {
		return err
	}

	fmt.Println("\nInstallation complete!")
	fmt.Printf("  Service:  sudo systemctl status %s\n", serviceName)
	fmt.Printf("  Logs:     sudo journalctl -u %s -f\n", serviceName)
	fmt.Printf("  API:      http://%s:%d/api/path\n", targetLabel(i.Exec), defaultAPIPort)
	return nil
}

func (i *Installer) validateBinary() error {
	fmt.Printf("Validating binary: %s\n", i.BinaryPath)

	info, err := os.Stat(i.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary not found: %s", i.BinaryPath)
	}
	if info.IsDir() {
		return fmt.Errorf("binary path is a directory: %s", i.BinaryPath)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("binary is not executable: %s", i.BinaryPath)
	}

	fmt.Println("  ✓ Binary validated")
	return nil
}

func (i *Installer) checkExisting() (bool, error) {
	fmt.Println("Checking for existing installation...")

	output, err := i.Exec.Run(fmt.Sprintf("test -f %s && echo 'exists' || echo 'not found'", servicePath))
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(output) == "exists" {
		return true, nil
	}

	fmt.Println("  ✓ No existing installation found")
	return false, nil
}

func (i *Installer) createServiceUser() error {
	fmt.Printf("Creating service user '%s'...\n", serviceUser)

	output, err := i.Exec.Run(fmt.Sprintf("id %s 2>/dev/null >/dev/null && echo 'exists' || echo 'not found'", serviceUser))
	if err != nil {
		return err
	}
	if strings.TrimSpace(output) == "exists" {
		fmt.Printf("  ✓ User '%s' already exists\n", serviceUser)
		return nil
	}

	if _, err := i.Exec.RunSudo(fmt.Sprintf("useradd --system --no-create-home --shell /usr/sbin/nologin %s", serviceUser)); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("  ✓ User '%s' created\n", serviceUser)
	return nil
}

func (i *Installer) createDataDirectory() error {
	fmt.Printf("Creating data directory: %s\n", dataDir)

	cmd := fmt.Sprintf("mkdir -p %s %s && chown -R %s:%s %s", dataDir, backupsDir, serviceUser, serviceUser, dataDir)
	if _, err := i.Exec.RunSudo(cmd); err != nil {
		return err
	}

	fmt.Println("  ✓ Data directory created")
	return nil
}

func (i *Installer) installBinary() error {
	fmt.Printf("Installing binary to %s...\n", installPath)

	if err := i.Exec.CopyFile(i.BinaryPath, installPath); err != nil {
		return fmt.Errorf("failed to copy binary: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("chown root:root %s && chmod 0755 %s", installPath, installPath)); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	fmt.Println("  ✓ Binary installed")
	return nil
}

func (i *Installer) installTuning() error {
	fmt.Printf("Installing tuning config to %s...\n", tuningPath)

	if i.TuningPath != "" {
		if _, err := os.Stat(i.TuningPath); err != nil {
			return fmt.Errorf("tuning file not found: %s", i.TuningPath)
		}
		if err := i.Exec.CopyFile(i.TuningPath, tuningPath); err != nil {
			return fmt.Errorf("failed to copy tuning file: %w", err)
		}
	} else {
		tempFile := "/tmp/pathframe-tuning.json"
		if err := i.Exec.WriteFile(tempFile, defaultTuning); err != nil {
			return fmt.Errorf("failed to write tuning file: %w", err)
		}
		if _, err := i.Exec.RunSudo(fmt.Sprintf("mv %s %s", tempFile, tuningPath)); err != nil {
			return fmt.Errorf("failed to install tuning file: %w", err)
		}
	}

	if _, err := i.Exec.RunSudo(fmt.Sprintf("chown %s:%s %s && chmod 0644 %s", serviceUser, serviceUser, tuningPath, tuningPath)); err != nil {
		return fmt.Errorf("failed to set tuning ownership: %w", err)
	}

	fmt.Println("  ✓ Tuning config installed")
	return nil
}

func (i *Installer) installService() error {
	fmt.Println("Installing systemd service...")

	tempFile := "/tmp/" + serviceFile
	if err := i.Exec.WriteFile(tempFile, serviceUnit(i.SerialPort)); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("mv %s %s", tempFile, servicePath)); err != nil {
		return fmt.Errorf("failed to install service file: %w", err)
	}
	if _, err := i.Exec.RunSudo("systemctl daemon-reload"); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	if _, err := i.Exec.RunSudo(fmt.Sprintf("systemctl enable %s", serviceName)); err != nil {
		return fmt.Errorf("failed to enable service: %w", err)
	}

	fmt.Println("  ✓ Service installed and enabled")
	return nil
}

func (i *Installer) initDatabase() error {
	fmt.Printf("Initialising database: %s\n", dbPath)

	if err := runMigrations(i.Exec); err != nil {
		return err
	}

	fmt.Println("  ✓ Database ready")
	return nil
}

func (i *Installer) startService() error {
	fmt.Printf("Starting %s service...\n", serviceName)

	if _, err := i.Exec.RunSudo(fmt.Sprintf("systemctl start %s", serviceName)); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	i.Exec.Run("sleep 2")

	if err := verifyActive(i.Exec); err != nil {
		return fmt.Errorf("service failed to start properly: %w", err)
	}

	fmt.Println("  ✓ Service started successfully")
	return nil
}
