package deploy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SSHConfig holds the merged SSH configuration for one host.
type SSHConfig struct {
	Host          string
	HostName      string
	User          string
	IdentityFile  string
	IdentityAgent string
	Port          string
}

// SSHTarget is the fully resolved connection recipe for one deploy host.
type SSHTarget struct {
	Host          string
	User          string
	KeyPath       string
	IdentityAgent string
	Port          string
}

// ParseSSHConfig reads ~/.ssh/config for the given host. A missing config
// file is not an error; it returns nil.
func ParseSSHConfig(host string) (*SSHConfig, error) {
	return ParseSSHConfigFrom(host, "")
}

// ParseSSHConfigFrom parses an SSH config file for the given host. An empty
// configPath means ~/.ssh/config.
func ParseSSHConfigFrom(host, configPath string) (*SSHConfig, error) {
	// HOME is checked before os.UserHomeDir so tests can redirect it.
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir, _ = os.UserHomeDir()
	}
	if configPath == "" {
		if homeDir == "" {
			return nil, fmt.Errorf("cannot locate home directory for SSH config")
		}
		configPath = filepath.Join(homeDir, ".ssh", "config")
	}

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open SSH config: %w", err)
	}
	defer file.Close()

	return parseSSHConfigReader(host, file, homeDir)
}

func parseSSHConfigReader(host string, r io.Reader, homeDir string) (*SSHConfig, error) {
	config := &SSHConfig{Host: host}
	matching := false
	found := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		keyword := strings.ToLower(parts[0])
		value := strings.Join(parts[1:], " ")

		if keyword == "host" {
			matching = MatchHost(host, parts[1:]...)
			found = found || matching
			continue
		}
		if !matching {
			continue
		}

		// When several blocks match, ssh keeps the first value it saw, so
		// a catch-all block only fills what specific blocks left unset.
		switch keyword {
		case "hostname":
			setIfEmpty(&config.HostName, value)
		case "user":
			setIfEmpty(&config.User, value)
		case "port":
			setIfEmpty(&config.Port, value)
		case "identityfile":
			setIfEmpty(&config.IdentityFile, expandConfigPath(value, homeDir))
		case "identityagent":
			setIfEmpty(&config.IdentityAgent, expandConfigPath(value, homeDir))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SSH config: %w", err)
	}

	if !found {
		return nil, nil
	}
	return config, nil
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

// expandConfigPath strips quotes and expands a leading ~ to the home
// directory, the way ssh itself treats path values.
func expandConfigPath(value, homeDir string) string {
	value = strings.Trim(value, `"`)
	if strings.HasPrefix(value, "~/") && homeDir != "" {
		return filepath.Join(homeDir, value[2:])
	}
	return value
}

// MatchHost reports whether target matches any pattern from a Host line.
// Patterns use the ssh glob style: * matches any run of characters and ?
// exactly one. A !negated pattern knocks out the whole line even when
// another pattern on it matches.
func MatchHost(target string, patterns ...string) bool {
	matched := false
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		p = strings.TrimPrefix(p, "!")
		ok, err := path.Match(p, target)
		if err != nil || !ok {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}
	return matched
}

// ResolveSSHTarget resolves connection details for a target, layering
// ~/.ssh/config under any explicit flags. A user@host target splits first.
func ResolveSSHTarget(target, user, keyPath string) (SSHTarget, error) {
	resolved := SSHTarget{Host: target, User: user, KeyPath: keyPath}
	if at := strings.Index(target, "@"); at >= 0 {
		resolved.User = target[:at]
		resolved.Host = target[at+1:]
	}

	config, err := ParseSSHConfig(resolved.Host)
	if err != nil {
		return SSHTarget{}, fmt.Errorf("failed to parse SSH config: %w", err)
	}
	if config == nil {
		return resolved, nil
	}

	if config.HostName != "" {
		resolved.Host = config.HostName
	}
	setIfEmpty(&resolved.User, config.User)
	setIfEmpty(&resolved.KeyPath, config.IdentityFile)
	resolved.IdentityAgent = config.IdentityAgent
	resolved.Port = config.Port
	return resolved, nil
}
