package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pathframe/internal/deploy"
	"github.com/banshee-data/pathframe/internal/httputil"
)

// Monitor inspects a deployed pathframe service.
type Monitor struct {
	Exec    *deploy.Executor
	APIPort int

	// client overrides the HTTP client in tests.
	client httputil.Doer
}

// HealthStatus is the result of CheckHealth.
type HealthStatus struct {
	Healthy bool
	Message string
	Details []string
}

// journalErrorThreshold is how many errors in the recent journal turn the
// health check unhealthy.
const journalErrorThreshold = 5

// Status returns the systemd status output for the service.
func (m *Monitor) Status() (string, error) {
	// systemctl status exits non-zero for inactive units but still
	// prints the state, so the output wins over the exit code.
	output, err := m.Exec.RunSudo(fmt.Sprintf("systemctl status %s --no-pager", serviceName))
	if strings.TrimSpace(output) == "" && err != nil {
		return "", err
	}
	return strings.TrimRight(output, "\n"), nil
}

// CheckHealth runs the health checks: unit state, uptime, recent journal
// errors, the HTTP API, and the database file.
func (m *Monitor) CheckHealth() HealthStatus {
	health := HealthStatus{Healthy: true}

	m.checkUnit(&health)
	m.checkUptime(&health)
	m.checkJournal(&health)
	m.checkAPI(&health)
	m.checkDatabase(&health)

	if health.Healthy {
		health.Message = "healthy"
	} else {
		health.Message = "UNHEALTHY"
	}
	return health
}

func (m *Monitor) checkUnit(health *HealthStatus) {
	output, err := m.Exec.RunSudo(fmt.Sprintf("systemctl is-active %s", serviceName))
	state := strings.TrimSpace(output)
	if err != nil || state != "active" {
		if state == "" {
			state = "unknown"
		}
		health.fail(fmt.Sprintf("Service is %s", state))
		return
	}
	health.pass("Service is active")
}

func (m *Monitor) checkUptime(health *HealthStatus) {
	output, err := m.Exec.RunSudo(fmt.Sprintf("systemctl show %s -p ActiveEnterTimestamp --value", serviceName))
	started := strings.TrimSpace(output)
	if err != nil || started == "" || started == "n/a" {
		health.fail("No start time recorded")
		return
	}
	health.pass(fmt.Sprintf("Running since %s", started))
}

func (m *Monitor) checkJournal(health *HealthStatus) {
	// grep -c exits 1 on zero matches; that is a pass, not a failure.
	cmd := fmt.Sprintf("journalctl -u %s -n 50 --no-pager 2>/dev/null | grep -ci error || true", serviceName)
	output, err := m.Exec.RunSudo(cmd)
	if err != nil {
		health.fail("Could not read journal")
		return
	}

	count, convErr := strconv.Atoi(strings.TrimSpace(output))
	if convErr != nil {
		health.fail("Could not read journal")
		return
	}
	if count > journalErrorThreshold {
		health.fail(fmt.Sprintf("%d errors in recent journal", count))
		return
	}
	health.pass(fmt.Sprintf("Journal clean (%d recent errors)", count))
}

func (m *Monitor) checkAPI(health *HealthStatus) {
	client := m.client
	if client == nil {
		client = httputil.NewStandardClient(&http.Client{Timeout: 5 * time.Second})
	}

	url := fmt.Sprintf("http://%s:%d/api/version", m.apiHost(), m.APIPort)
	resp, err := client.Get(url)
	if err != nil {
		health.fail(fmt.Sprintf("API unreachable: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		health.fail(fmt.Sprintf("API returned %s", resp.Status))
		return
	}

	var info struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		health.fail("API returned malformed version info")
		return
	}
	health.pass(fmt.Sprintf("API serving version %s", info.Version))
}

func (m *Monitor) checkDatabase(health *HealthStatus) {
	cmd := fmt.Sprintf("test -f %s && du -h %s | cut -f1 || echo 'missing'", dbPath, dbPath)
	output, err := m.Exec.RunSudo(cmd)
	size := strings.TrimSpace(output)
	if err != nil || size == "missing" || size == "" {
		health.fail("Database file missing")
		return
	}
	health.pass(fmt.Sprintf("Database present (%s)", size))
}

// apiHost is the address health checks connect to. Local targets resolve
// to localhost; user@host targets drop the user.
func (m *Monitor) apiHost() string {
	if m.Exec.IsLocal() {
		return "localhost"
	}
	host := m.Exec.Target
	if at := strings.Index(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	return host
}

func (h *HealthStatus) pass(detail string) {
	h.Details = append(h.Details, "✓ "+detail)
}

func (h *HealthStatus) fail(detail string) {
	h.Healthy = false
	h.Details = append(h.Details, "✗ "+detail)
}
