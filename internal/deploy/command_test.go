package deploy

import (
	"errors"
	"strings"
	"testing"
)

func TestRealCommandExecutor_Run(t *testing.T) {
	builder := NewRealCommandBuilder()

	output, err := builder.BuildCommand("echo", "hello").Run()
	if err != nil {
		t.Fatalf("echo failed: %v", err)
	}
	if strings.TrimSpace(string(output)) != "hello" {
		t.Errorf("Expected hello, got %q", output)
	}
}

func TestRealCommandBuilder_BuildShellCommand(t *testing.T) {
	builder := NewRealCommandBuilder()

	output, err := builder.BuildShellCommand("echo one && echo two").Run()
	if err != nil {
		t.Fatalf("shell command failed: %v", err)
	}
	if !strings.Contains(string(output), "one") || !strings.Contains(string(output), "two") {
		t.Errorf("Expected both lines, got %q", output)
	}
}

func TestRealCommandExecutor_SetStdin(t *testing.T) {
	builder := NewRealCommandBuilder()

	cmd := builder.BuildCommand("cat")
	cmd.SetStdin([]byte("piped content"))

	output, err := cmd.Run()
	if err != nil {
		t.Fatalf("cat failed: %v", err)
	}
	if string(output) != "piped content" {
		t.Errorf("Expected stdin echoed back, got %q", output)
	}
}

func TestMockCommandBuilder_Records(t *testing.T) {
	builder := NewMockCommandBuilder()

	builder.BuildCommand("ssh", "host", "uptime")
	builder.BuildShellCommand("systemctl is-active pathframe")

	if len(builder.Commands) != 2 {
		t.Fatalf("Expected 2 recorded commands, got %d", len(builder.Commands))
	}

	first := builder.Commands[0]
	if first.Name != "ssh" || first.IsShell {
		t.Errorf("Unexpected first command: %+v", first)
	}

	last := builder.LastCommand()
	if last == nil || !last.IsShell {
		t.Fatalf("Expected shell command last, got %+v", last)
	}
	if last.Args[1] != "systemctl is-active pathframe" {
		t.Errorf("Unexpected shell args: %v", last.Args)
	}
}

func TestMockCommandBuilder_NextExecutor(t *testing.T) {
	builder := NewMockCommandBuilder()
	scripted := &MockCommandExecutor{Output: []byte("exists")}
	builder.SetNextExecutor(scripted)

	output, err := builder.BuildCommand("test", "-f", "/etc/systemd/system/pathframe.service").Run()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(output) != "exists" {
		t.Errorf("Expected scripted output, got %q", output)
	}
	if !scripted.RunCalled {
		t.Error("Expected Run to be called on the scripted executor")
	}

	// The scripted executor is consumed; the next build gets a default.
	output, _ = builder.BuildCommand("true").Run()
	if len(output) != 0 {
		t.Errorf("Expected empty default output, got %q", output)
	}
}

func TestMockCommandBuilder_ExecutorFactory(t *testing.T) {
	builder := NewMockCommandBuilder()
	builder.ExecutorFactory = func(name string, args []string) *MockCommandExecutor {
		if name == "ssh" {
			return &MockCommandExecutor{Output: []byte("remote")}
		}
		return &MockCommandExecutor{Err: errors.New("unexpected command")}
	}

	output, err := builder.BuildCommand("ssh", "host", "true").Run()
	if err != nil || string(output) != "remote" {
		t.Errorf("Expected factory output for ssh, got %q, %v", output, err)
	}

	if _, err := builder.BuildCommand("scp", "a", "b").Run(); err == nil {
		t.Error("Expected factory error for scp")
	}
}

func TestMockCommandBuilder_Reset(t *testing.T) {
	builder := NewMockCommandBuilder()
	builder.BuildCommand("ssh", "host", "true")
	builder.SetNextExecutor(&MockCommandExecutor{})

	builder.Reset()

	if len(builder.Commands) != 0 {
		t.Error("Reset did not clear commands")
	}
	if builder.NextExecutor != nil {
		t.Error("Reset did not clear the scripted executor")
	}
	if builder.LastCommand() != nil {
		t.Error("LastCommand after Reset should be nil")
	}
}

func TestMockBuiltCommand_String(t *testing.T) {
	cmd := MockBuiltCommand{Name: "scp", Args: []string{"-i", "/key", "file", "host:/tmp/file"}}
	want := "scp -i /key file host:/tmp/file"
	if cmd.String() != want {
		t.Errorf("String() = %q, want %q", cmd.String(), want)
	}
}
