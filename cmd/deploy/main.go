// Command pathframe-deploy installs, upgrades, and maintains the pathframe
// service on bench hosts and test vehicles, locally or over SSH.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/pathframe/internal/deploy"
	"github.com/banshee-data/pathframe/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "install":
		handleInstall(args)
	case "upgrade":
		handleUpgrade(args)
	case "status":
		handleStatus(args)
	case "health":
		handleHealth(args)
	case "backup":
		handleBackup(args)
	case "rollback":
		handleRollback(args)
	case "version":
		fmt.Printf("pathframe-deploy %s\n", version.String())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pathframe-deploy - Deployment manager for the pathframe service

Usage: pathframe-deploy <command> [options]

Commands:
  install    Install the pathframe service on a host
  upgrade    Upgrade pathframe to a newer build
  status     Show service status
  health     Run health checks against a running service
  backup     Fetch the database and configuration from a host
  rollback   Restore the previous binary from the on-host backup
  version    Show pathframe-deploy version
  help       Show this help message

Common Flags:
  --target <host>      Target host (default: localhost)
                       Hostname, IP, user@host, or SSH config alias
  --ssh-user <user>    SSH user for remote hosts
                       Defaults to ~/.ssh/config or the current user
  --ssh-key <path>     SSH private key path
                       Defaults to ~/.ssh/config
  --dry-run            Show what would be done without executing
  --debug              Log every command the tool runs

SSH Config Support:
  pathframe-deploy reads ~/.ssh/config. A host defined there contributes
  its HostName, User, IdentityFile, and IdentityAgent; command-line flags
  override config values.

Examples:
  # Install on this machine
  pathframe-deploy install --binary ./pathframe-linux-arm64

  # Install on a vehicle Pi with the GNSS receiver wired in
  pathframe-deploy install --target trackpi --binary ./pathframe-linux-arm64 --serial-port /dev/ttyUSB0

  # Upgrade a remote host
  pathframe-deploy upgrade --target trackpi --binary ./pathframe-linux-arm64

  # Health check
  pathframe-deploy health --target trackpi

  # Pull the cycle database and tuning file down for inspection
  pathframe-deploy backup --target trackpi --output ./backups

For more information, see: https://github.com/banshee-data/pathframe`)
}

// targetFlags holds the flags every subcommand shares.
type targetFlags struct {
	target  *string
	sshUser *string
	sshKey  *string
	dryRun  *bool
	debug   *bool
}

func addTargetFlags(fs *flag.FlagSet) *targetFlags {
	return &targetFlags{
		target:  fs.String("target", "localhost", "Target host"),
		sshUser: fs.String("ssh-user", "", "SSH user (defaults to ~/.ssh/config or current user)"),
		sshKey:  fs.String("ssh-key", "", "SSH private key path (defaults to ~/.ssh/config)"),
		dryRun:  fs.Bool("dry-run", false, "Show what would be done"),
		debug:   fs.Bool("debug", false, "Enable debug logging"),
	}
}

// executor resolves the target through ~/.ssh/config and builds an Executor.
// Resolution failures are fatal.
func (f *targetFlags) executor() *deploy.Executor {
	t, err := deploy.ResolveSSHTarget(*f.target, *f.sshUser, *f.sshKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve SSH config: %v\n", err)
		os.Exit(1)
	}
	if t.User == "" {
		t.User = os.Getenv("USER")
	}

	ex := deploy.NewExecutor(t.Host, t.User, t.KeyPath, t.IdentityAgent, *f.dryRun)
	ex.Port = t.Port
	if *f.debug {
		ex.SetLogger(stderrLogger{})
	}
	return ex
}

type stderrLogger struct{}

func (stderrLogger) Debugf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
}

func handleInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	tf := addTargetFlags(fs)
	binaryPath := fs.String("binary", "", "Path to the pathframe binary (required)")
	tuningPath := fs.String("tuning", "", "Tuning JSON file to install (optional)")
	serialPort := fs.String("serial-port", "", "GNSS serial device for the service (optional)")
	fs.Parse(args)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary is required")
		fs.Usage()
		os.Exit(1)
	}

	installer := &Installer{
		Exec:       tf.executor(),
		BinaryPath: *binaryPath,
		TuningPath: *tuningPath,
		SerialPort: *serialPort,
	}

	if err := installer.Install(); err != nil {
		fmt.Fprintf(os.Stderr, "\nInstallation failed: %v\n", err)
		os.Exit(1)
	}
}

func handleUpgrade(args []string) {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	tf := addTargetFlags(fs)
	binaryPath := fs.String("binary", "", "Path to the new pathframe binary (required)")
	skipBackup := fs.Bool("skip-backup", false, "Skip the on-host backup of the current version")
	fs.Parse(args)

	if *binaryPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --binary is required")
		fs.Usage()
		os.Exit(1)
	}

	upgrader := &Upgrader{
		Exec:       tf.executor(),
		BinaryPath: *binaryPath,
		SkipBackup: *skipBackup,
	}

	if err := upgrader.Upgrade(); err != nil {
		fmt.Fprintf(os.Stderr, "\nUpgrade failed: %v\n", err)
		os.Exit(1)
	}
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	tf := addTargetFlags(fs)
	fs.Parse(args)

	monitor := &Monitor{Exec: tf.executor(), APIPort: defaultAPIPort}

	output, err := monitor.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get status: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	tf := addTargetFlags(fs)
	apiPort := fs.Int("api-port", defaultAPIPort, "API port on the target")
	fs.Parse(args)

	monitor := &Monitor{Exec: tf.executor(), APIPort: *apiPort}

	health := monitor.CheckHealth()
	fmt.Printf("Health: %s\n\n", health.Message)
	for _, d := range health.Details {
		fmt.Printf("  %s\n", d)
	}
	if !health.Healthy {
		os.Exit(1)
	}
}

func handleBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	tf := addTargetFlags(fs)
	outputDir := fs.String("output", "./backups", "Local directory for the backup")
	fs.Parse(args)

	backup := &Backup{Exec: tf.executor(), OutputDir: *outputDir}

	dest, err := backup.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nBackup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nBackup written to %s\n", dest)
}

func handleRollback(args []string) {
	fs := flag.NewFlagSet("rollback", flag.ExitOnError)
	tf := addTargetFlags(fs)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	rollback := &Rollback{Exec: tf.executor(), Yes: *yes}

	if err := rollback.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nRollback failed: %v\n", err)
		os.Exit(1)
	}
}
