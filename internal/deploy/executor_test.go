package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testLogger struct {
	logs []string
}

func (l *testLogger) Debugf(format string, args ...interface{}) {
	l.logs = append(l.logs, fmt.Sprintf(format, args...))
}

func TestNewExecutor(t *testing.T) {
	e := NewExecutor("host.example.com", "user", "/path/to/key", "/path/to/agent", false)

	if e.Target != "host.example.com" {
		t.Errorf("Expected target host.example.com, got %s", e.Target)
	}
	if e.SSHUser != "user" {
		t.Errorf("Expected user, got %s", e.SSHUser)
	}
	if e.SSHKey != "/path/to/key" {
		t.Errorf("Expected /path/to/key, got %s", e.SSHKey)
	}
	if e.IdentityAgent != "/path/to/agent" {
		t.Errorf("Expected /path/to/agent, got %s", e.IdentityAgent)
	}
	if e.DryRun {
		t.Error("Expected DryRun false")
	}
	if e.builder == nil {
		t.Error("Expected a default command builder")
	}
}

func TestExecutor_IsLocal(t *testing.T) {
	tests := []struct {
		target   string
		expected bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"", true},
		{"remote.example.com", false},
		{"192.168.1.100", false},
	}

	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			e := NewExecutor(tc.target, "", "", "", false)
			if e.IsLocal() != tc.expected {
				t.Errorf("IsLocal(%s) = %v, want %v", tc.target, e.IsLocal(), tc.expected)
			}
		})
	}
}

func TestExecutor_DryRun(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "deploy", "", "", true)
	e.SetBuilder(builder)

	output, err := e.Run("systemctl restart pathframe")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "[DRY-RUN]") || !strings.Contains(output, "systemctl restart pathframe") {
		t.Errorf("Unexpected dry-run output: %s", output)
	}

	output, err = e.RunSudo("mv /tmp/x /usr/local/bin/x")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "(sudo)") {
		t.Errorf("Expected sudo marker in dry-run output, got: %s", output)
	}

	if err := e.CopyFile("/tmp/a", "/usr/local/bin/a"); err != nil {
		t.Errorf("CopyFile in dry-run: %v", err)
	}
	if err := e.FetchFile("/var/lib/pathframe/cycles.db", "/tmp/b"); err != nil {
		t.Errorf("FetchFile in dry-run: %v", err)
	}
	if err := e.WriteFile("/etc/systemd/system/pathframe.service", "unit"); err != nil {
		t.Errorf("WriteFile in dry-run: %v", err)
	}

	if len(builder.Commands) != 0 {
		t.Errorf("Dry-run built %d commands, want 0: %v", len(builder.Commands), builder.Commands)
	}
}

func TestExecutor_RunLocal(t *testing.T) {
	builder := NewMockCommandBuilder()
	builder.SetNextExecutor(&MockCommandExecutor{Output: []byte("active\n")})

	e := NewExecutor("localhost", "", "", "", false)
	e.SetBuilder(builder)

	output, err := e.Run("systemctl is-active pathframe")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if output != "active\n" {
		t.Errorf("Expected scripted output, got %q", output)
	}

	cmd := builder.LastCommand()
	if cmd == nil || !cmd.IsShell {
		t.Fatalf("Expected a shell command, got %+v", cmd)
	}
	if cmd.Args[1] != "systemctl is-active pathframe" {
		t.Errorf("Unexpected shell command: %v", cmd.Args)
	}
}

func TestExecutor_RunSudoLocal(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("", "", "", "", false)
	e.SetBuilder(builder)

	if _, err := e.RunSudo("systemctl daemon-reload"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cmd := builder.LastCommand()
	if cmd == nil {
		t.Fatal("No command built")
	}
	if cmd.Args[1] != "sudo systemctl daemon-reload" {
		t.Errorf("Expected sudo prefix, got %q", cmd.Args[1])
	}
}

func TestExecutor_RunRemote(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "deploy", "/home/me/.ssh/id_ed25519", "/run/agent.sock", false)
	e.SetBuilder(builder)

	if _, err := e.Run("uptime"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	cmd := builder.LastCommand()
	if cmd == nil || cmd.Name != "ssh" {
		t.Fatalf("Expected an ssh command, got %+v", cmd)
	}

	joined := cmd.String()
	for _, want := range []string{
		"-i /home/me/.ssh/id_ed25519",
		"IdentityAgent=/run/agent.sock",
		"StrictHostKeyChecking=no",
		"UserKnownHostsFile=/dev/null",
		"deploy@pi.local",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("ssh command missing %q: %s", want, joined)
		}
	}
	if cmd.Args[len(cmd.Args)-1] != "uptime" {
		t.Errorf("Expected remote command last, got %v", cmd.Args)
	}
}

func TestExecutor_RunRemote_UserInTarget(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("admin@pi.local", "other", "", "", false)
	e.SetBuilder(builder)

	if _, err := e.Run("true"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	joined := builder.LastCommand().String()
	if !strings.Contains(joined, "admin@pi.local") {
		t.Errorf("Expected admin@pi.local in command: %s", joined)
	}
	if strings.Contains(joined, "other@") {
		t.Errorf("SSHUser must not override a user baked into the target: %s", joined)
	}
}

func TestExecutor_RemotePort(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "deploy", "", "", false)
	e.Port = "2222"
	e.SetBuilder(builder)

	if _, err := e.Run("uptime"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if joined := builder.LastCommand().String(); !strings.Contains(joined, "-p 2222") {
		t.Errorf("ssh command missing -p 2222: %s", joined)
	}

	// scp spells the flag differently.
	if err := e.CopyFile("./pathframe", "/home/deploy/pathframe"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	scp := builder.LastCommand()
	if scp.Name != "scp" {
		t.Fatalf("Expected scp, got %+v", scp)
	}
	if joined := scp.String(); !strings.Contains(joined, "-P 2222") {
		t.Errorf("scp command missing -P 2222: %s", joined)
	}
}

func TestExecutor_WriteFileLocal(t *testing.T) {
	e := NewExecutor("localhost", "", "", "", false)
	path := filepath.Join(t.TempDir(), "pathframe.service")

	if err := e.WriteFile(path, "[Unit]\nDescription=test\n"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Description=test") {
		t.Errorf("Unexpected file content: %s", data)
	}
}

func TestExecutor_WriteFileRemote(t *testing.T) {
	builder := NewMockCommandBuilder()
	executor := &MockCommandExecutor{}
	builder.SetNextExecutor(executor)

	e := NewExecutor("pi.local", "deploy", "", "", false)
	e.SetBuilder(builder)

	if err := e.WriteFile("/tmp/pathframe.service", "unit content"); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cmd := builder.LastCommand()
	if cmd == nil || cmd.Name != "ssh" {
		t.Fatalf("Expected ssh command, got %+v", cmd)
	}
	if cmd.Args[len(cmd.Args)-1] != "cat > /tmp/pathframe.service" {
		t.Errorf("Unexpected remote write command: %v", cmd.Args)
	}
	if string(executor.Stdin) != "unit content" {
		t.Errorf("Expected content on stdin, got %q", executor.Stdin)
	}
}

func TestExecutor_CopyFileRemote_SystemPath(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "deploy", "", "", false)
	e.SetBuilder(builder)

	if err := e.CopyFile("./pathframe", "/usr/local/bin/pathframe"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	if len(builder.Commands) != 2 {
		t.Fatalf("Expected scp then mv, got %d commands: %v", len(builder.Commands), builder.Commands)
	}

	scp := builder.Commands[0]
	if scp.Name != "scp" {
		t.Errorf("Expected scp first, got %s", scp.Name)
	}
	joined := scp.String()
	if !strings.Contains(joined, "./pathframe") || !strings.Contains(joined, "deploy@pi.local:/tmp/pathframe-copy-") {
		t.Errorf("Unexpected scp command: %s", joined)
	}

	mv := builder.Commands[1]
	mvCmd := mv.Args[len(mv.Args)-1]
	if !strings.HasPrefix(mvCmd, "sudo mv /tmp/pathframe-copy-") || !strings.HasSuffix(mvCmd, " /usr/local/bin/pathframe") {
		t.Errorf("Expected sudo mv to destination, got %q", mvCmd)
	}
}

func TestExecutor_CopyFileRemote_UserPath(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "", "", "", false)
	e.SetBuilder(builder)

	if err := e.CopyFile("./tuning.json", "/home/pi/tuning.json"); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	mv := builder.Commands[len(builder.Commands)-1]
	mvCmd := mv.Args[len(mv.Args)-1]
	if strings.HasPrefix(mvCmd, "sudo ") {
		t.Errorf("User path must not need sudo: %q", mvCmd)
	}
}

func TestExecutor_CopyFileLocal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("binary"), 0755); err != nil {
		t.Fatal(err)
	}

	e := NewExecutor("localhost", "", "", "", false)
	if err := e.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "binary" {
		t.Errorf("Copy did not preserve content: %q, %v", data, err)
	}
}

func TestExecutor_FetchFileRemote(t *testing.T) {
	builder := NewMockCommandBuilder()
	e := NewExecutor("pi.local", "deploy", "", "", false)
	e.SetBuilder(builder)

	if err := e.FetchFile("/tmp/cycles.db", "./backup/cycles.db"); err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}

	cmd := builder.LastCommand()
	if cmd == nil || cmd.Name != "scp" {
		t.Fatalf("Expected scp command, got %+v", cmd)
	}
	joined := cmd.String()
	if !strings.Contains(joined, "deploy@pi.local:/tmp/cycles.db") || !strings.HasSuffix(joined, "./backup/cycles.db") {
		t.Errorf("Unexpected fetch command: %s", joined)
	}
}

func TestNeedsSudo(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/usr/local/bin/pathframe", true},
		{"/etc/systemd/system/pathframe.service", true},
		{"/var/lib/pathframe/cycles.db", true},
		{"/var/folders/ab/tmpfile", false},
		{"/home/pi/waypoints.csv", false},
		{"/tmp/pathframe-copy-1", false},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if needsSudo(tc.path) != tc.expected {
				t.Errorf("needsSudo(%s) = %v, want %v", tc.path, !tc.expected, tc.expected)
			}
		})
	}
}

func TestExecutor_SetLogger(t *testing.T) {
	logger := &testLogger{}
	builder := NewMockCommandBuilder()

	e := NewExecutor("localhost", "", "", "", false)
	e.SetBuilder(builder)
	e.SetLogger(logger)

	if _, err := e.Run("true"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(logger.logs) == 0 {
		t.Error("Expected debug output")
	}

	// A nil logger must not clobber the existing one.
	e.SetLogger(nil)
	if e.Logger != logger {
		t.Error("SetLogger(nil) replaced the logger")
	}
}

func TestExecutor_RunError(t *testing.T) {
	builder := NewMockCommandBuilder()
	builder.SetNextExecutor(&MockCommandExecutor{
		Output: []byte("unit not found\n"),
		Err:    fmt.Errorf("exit status 4"),
	})

	logger := &testLogger{}
	e := NewExecutor("localhost", "", "", "", false)
	e.SetBuilder(builder)
	e.SetLogger(logger)

	output, err := e.Run("systemctl status nosuch")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.Contains(output, "unit not found") {
		t.Errorf("Expected command output on error, got %q", output)
	}

	found := false
	for _, l := range logger.logs {
		if strings.Contains(l, "Command failed") {
			found = true
		}
	}
	if !found {
		t.Error("Expected failure to be logged")
	}
}
