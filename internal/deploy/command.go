package deploy

import (
	"bytes"
	"os/exec"
)

// CommandExecutor runs a single prepared command.
type CommandExecutor interface {
	Run() ([]byte, error)
	SetStdin(stdin []byte)
}

// CommandBuilder prepares commands for execution. The Executor routes every
// process it spawns through a builder so tests can intercept them.
type CommandBuilder interface {
	BuildCommand(name string, args ...string) CommandExecutor
	BuildShellCommand(command string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command and returns its combined output.
func (r *RealCommandExecutor) Run() ([]byte, error) {
	return r.cmd.CombinedOutput()
}

// SetStdin attaches stdin data to the command.
func (r *RealCommandExecutor) SetStdin(stdin []byte) {
	r.cmd.Stdin = bytes.NewReader(stdin)
}

// RealCommandBuilder builds commands with exec.Command.
type RealCommandBuilder struct{}

// NewRealCommandBuilder returns a builder backed by the real exec package.
func NewRealCommandBuilder() *RealCommandBuilder {
	return &RealCommandBuilder{}
}

// BuildCommand prepares a command with explicit arguments.
func (b *RealCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.Command(name, args...)}
}

// BuildShellCommand prepares a command run through sh -c.
func (b *RealCommandBuilder) BuildShellCommand(command string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.Command("sh", "-c", command)}
}

// MockCommandExecutor is a scripted CommandExecutor for tests.
type MockCommandExecutor struct {
	// Output is returned from Run.
	Output []byte
	// Err is returned from Run.
	Err error
	// Stdin holds whatever SetStdin recorded.
	Stdin []byte
	// RunCalled reports whether Run was invoked.
	RunCalled bool
}

// Run returns the scripted output and error.
func (m *MockCommandExecutor) Run() ([]byte, error) {
	m.RunCalled = true
	return m.Output, m.Err
}

// SetStdin keeps the stdin bytes for assertions.
func (m *MockCommandExecutor) SetStdin(stdin []byte) {
	m.Stdin = stdin
}

// MockCommandBuilder records every command built and hands back scripted
// executors. Deployment tests drive whole install and upgrade flows
// through one of these.
type MockCommandBuilder struct {
	// Commands records all commands that were built, in order.
	Commands []MockBuiltCommand
	// NextExecutor, if set, is returned by the next Build call.
	NextExecutor *MockCommandExecutor
	// ExecutorFactory, if set, picks the executor per command.
	ExecutorFactory func(name string, args []string) *MockCommandExecutor
}

// MockBuiltCommand records one command the builder prepared.
type MockBuiltCommand struct {
	Name    string
	Args    []string
	IsShell bool
}

// String renders the command the way a shell would see it.
func (c MockBuiltCommand) String() string {
	out := c.Name
	for _, a := range c.Args {
		out += " " + a
	}
	return out
}

// NewMockCommandBuilder returns an empty mock builder.
func NewMockCommandBuilder() *MockCommandBuilder {
	return &MockCommandBuilder{}
}

// BuildCommand records the command and returns a scripted executor.
func (b *MockCommandBuilder) BuildCommand(name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: name, Args: args})
	return b.getExecutor(name, args)
}

// BuildShellCommand records a shell command and returns a scripted executor.
func (b *MockCommandBuilder) BuildShellCommand(command string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: "sh", Args: []string{"-c", command}, IsShell: true})
	return b.getExecutor("sh", []string{"-c", command})
}

func (b *MockCommandBuilder) getExecutor(name string, args []string) *MockCommandExecutor {
	if b.ExecutorFactory != nil {
		return b.ExecutorFactory(name, args)
	}
	if b.NextExecutor != nil {
		e := b.NextExecutor
		b.NextExecutor = nil
		return e
	}
	return &MockCommandExecutor{}
}

// SetNextExecutor scripts the executor for the next Build call.
func (b *MockCommandBuilder) SetNextExecutor(e *MockCommandExecutor) {
	b.NextExecutor = e
}

// LastCommand returns the most recently built command, or nil.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}

// Reset clears recorded commands and scripted executors.
func (b *MockCommandBuilder) Reset() {
	b.Commands = nil
	b.NextExecutor = nil
}
