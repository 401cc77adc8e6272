package main

import (
	"fmt"
	"strings"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// Installation layout on the target host.
const (
	serviceName = "pathframe"
	serviceFile = "pathframe.service"
	servicePath = "/etc/systemd/system/pathframe.service"
	installPath = "/usr/local/bin/pathframe"
	dataDir     = "/var/lib/pathframe"
	dbPath      = "/var/lib/pathframe/cycles.db"
	tuningPath  = "/var/lib/pathframe/tuning.json"
	backupsDir  = "/var/lib/pathframe/backups"
	serviceUser = "pathframe"

	defaultAPIPort = 8080
)

// defaultTuning is installed when no tuning file is supplied. An empty
// object keeps every parameter at its built-in default.
const defaultTuning = "{}\n"

// serviceUnit renders the systemd unit. A serial port adds the device flag
// and dialout group membership.
func serviceUnit(serialPort string) string {
	execStart := fmt.Sprintf("%s -listen :%d -db %s -config %s", installPath, defaultAPIPort, dbPath, tuningPath)
	groups := ""
	if serialPort != "" {
		execStart += " -serial " + serialPort
		groups = "SupplementaryGroups=dialout\n"
	}

	return fmt.Sprintf(`[Unit]
Description=Pathframe path service
After=network.target

[Service]
Type=simple
User=%s
Group=%s
%sExecStart=%s
WorkingDirectory=%s
Restart=on-failure
RestartSec=5
StandardOutput=journal
StandardError=journal
SyslogIdentifier=%s

[Install]
WantedBy=multi-user.target
`, serviceUser, serviceUser, groups, execStart, dataDir, serviceName)
}

// runMigrations applies database migrations as the service user. The binary
// takes its flags before the subcommand.
func runMigrations(exec *deploy.Executor) error {
	cmd := fmt.Sprintf("-u %s %s -db %s migrate up", serviceUser, installPath, dbPath)
	if output, err := exec.RunSudo(cmd); err != nil {
		return fmt.Errorf("migrations failed: %w, output: %s", err, output)
	}
	return nil
}

// verifyActive confirms the unit reports active. Dry runs skip the check
// since nothing was started.
func verifyActive(exec *deploy.Executor) error {
	if exec.DryRun {
		return nil
	}
	output, err := exec.RunSudo(fmt.Sprintf("systemctl is-active %s", serviceName))
	if err != nil || strings.TrimSpace(output) != "active" {
		return fmt.Errorf("service is not active: %s", strings.TrimSpace(output))
	}
	return nil
}

// getInstalledVersion asks the installed binary for its version, falling
// back to the binary's modification time when it predates the flag.
func getInstalledVersion(exec *deploy.Executor) string {
	if exec.DryRun {
		return "unknown (dry-run)"
	}
	output, err := exec.Run(installPath + " -version")
	if err == nil && strings.TrimSpace(output) != "" {
		return strings.TrimSpace(output)
	}

	output, err = exec.Run(fmt.Sprintf("stat -c %%y %s 2>/dev/null || stat -f %%Sm %s", installPath, installPath))
	if err != nil {
		return "unknown"
	}
	return "built " + strings.TrimSpace(output)
}

// targetLabel names the target for progress output.
func targetLabel(exec *deploy.Executor) string {
	if exec.IsLocal() {
		return "localhost"
	}
	return exec.Target
}
