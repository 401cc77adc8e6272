package main

import (
	"strings"
	"testing"

	"github.com/banshee-data/pathframe/internal/deploy"
)

// rollbackBuilder scripts a host with one backup in place.
func rollbackBuilder(overrides map[string]string) *deploy.MockCommandBuilder {
	merged := map[string]string{
		"ls -1t /var/lib/pathframe/backups": "20260820-101500\n",
		"cat /var/lib/pathframe/backups":    "pathframe v0.9.0\n",
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return scriptedBuilder(merged)
}

func TestRollback_DryRun(t *testing.T) {
	rollback := &Rollback{
		Exec: deploy.NewExecutor("testpi", "deploy", "", "", true),
	}

	if err := rollback.Run(); err != nil {
		t.Fatalf("Dry-run rollback failed: %v", err)
	}
}

func TestRollback_NoBackups(t *testing.T) {
	builder := rollbackBuilder(map[string]string{
		"ls -1t /var/lib/pathframe/backups": "\n",
	})
	rollback := &Rollback{Exec: remoteExecutor(builder), Yes: true}

	err := rollback.Run()
	if err == nil || !strings.Contains(err.Error(), "no backups found") {
		t.Errorf("Expected no backups found, got: %v", err)
	}
}

func TestRollback_FullSequence(t *testing.T) {
	builder := rollbackBuilder(nil)
	rollback := &Rollback{Exec: remoteExecutor(builder), Yes: true}

	if err := rollback.Run(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	assertSequence(t, commandLog(builder),
		"ls -1t /var/lib/pathframe/backups",
		"cat /var/lib/pathframe/backups/20260820-101500/version.txt",
		"systemctl stop pathframe",
		"cp /var/lib/pathframe/backups/20260820-101500/pathframe /usr/local/bin/pathframe && chown root:root",
		"systemctl start pathframe",
		"systemctl is-active pathframe",
	)
}

func TestRollback_FailedStart(t *testing.T) {
	builder := rollbackBuilder(map[string]string{
		"is-active": "failed\n",
	})
	rollback := &Rollback{Exec: remoteExecutor(builder), Yes: true}

	err := rollback.Run()
	if err == nil || !strings.Contains(err.Error(), "failed to start") {
		t.Errorf("Expected a start failure, got: %v", err)
	}
}
