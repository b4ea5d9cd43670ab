// Package register adds the serve subcommand to an MCP client config.
package register

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lexandro/define-pages-json/manifest"
)

// ErrUsage is returned for a malformed command line.
var ErrUsage = errors.New("invalid register arguments")

type mcpServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Run executes the register subcommand.
// serverName is the MCP server name (e.g. "define-pages").
// args is everything after "register".
func Run(serverName string, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}

	scope := args[0]
	if scope != "project" && scope != "user" {
		return fmt.Errorf("unknown scope %q (must be \"project\" or \"user\"): %w", scope, ErrUsage)
	}

	var directory string
	var extraArgs []string
	if scope == "project" {
		directory, extraArgs = parseProjectArgs(args[1:])
	} else {
		extraArgs = parseUserArgs(args[1:])
	}

	binaryPath, err := detectBinaryPath()
	if err != nil {
		return err
	}

	configPath, err := resolveConfigPath(scope, directory)
	if err != nil {
		return err
	}

	serverArgs, err := serveArgs(scope, directory, extraArgs)
	if err != nil {
		return err
	}

	if err := writeConfig(configPath, serverName, buildEntry(binaryPath, serverArgs)); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Registered %q in %s\n", serverName, configPath)
	return nil
}

// PrintUsage writes the register usage text.
func PrintUsage(w io.Writer) {
	binaryName := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s register project [directory]  # → <directory>/.mcp.json (default: .)\n", binaryName)
	fmt.Fprintf(w, "  %s register user                 # → ~/.claude.json\n", binaryName)
	fmt.Fprintf(w, "  %s register project . -- -flag   # forward flags to serve\n", binaryName)
}

// DeriveServerName extracts a server name from a binary path by stripping
// the .exe, -mcp and -json suffixes.
func DeriveServerName(binaryPath string) string {
	name := filepath.Base(binaryPath)
	name = strings.TrimSuffix(name, ".exe")
	name = strings.TrimSuffix(name, "-mcp")
	name = strings.TrimSuffix(name, "-json")
	return name
}

func parseProjectArgs(args []string) (directory string, serverArgs []string) {
	directory = "."
	for i, arg := range args {
		if arg == "--" {
			return directory, args[i+1:]
		}
		if i == 0 {
			directory = arg
		}
	}
	return directory, nil
}

func parseUserArgs(args []string) (serverArgs []string) {
	for i, arg := range args {
		if arg == "--" {
			return args[i+1:]
		}
	}
	return nil
}

// serveArgs builds the server command line. Project entries pin the
// project root unless a -root flag is forwarded.
func serveArgs(scope, directory string, extra []string) ([]string, error) {
	args := []string{"serve"}
	if scope == "project" && !hasFlag(extra, "root") {
		absDir, err := filepath.Abs(directory)
		if err != nil {
			return nil, fmt.Errorf("resolving directory %s: %w", directory, err)
		}
		args = append(args, "-root", absDir)
	}
	return append(args, extra...), nil
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		trimmed := strings.TrimLeft(arg, "-")
		if trimmed == arg {
			continue
		}
		if trimmed == name || strings.HasPrefix(trimmed, name+"=") {
			return true
		}
	}
	return false
}

func detectBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("getting executable path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks for %s: %w", exe, err)
	}
	return resolved, nil
}

func resolveConfigPath(scope string, directory string) (string, error) {
	if scope == "project" {
		absDir, err := filepath.Abs(directory)
		if err != nil {
			return "", fmt.Errorf("resolving directory %s: %w", directory, err)
		}
		return filepath.Join(absDir, ".mcp.json"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claude.json"), nil
}

func buildEntry(binaryPath string, serverArgs []string) mcpServerEntry {
	if runtime.GOOS == "windows" {
		args := []string{"/C", binaryPath}
		args = append(args, serverArgs...)
		return mcpServerEntry{Command: "cmd", Args: args}
	}
	return mcpServerEntry{Command: binaryPath, Args: serverArgs}
}

func writeConfig(configPath string, serverName string, entry mcpServerEntry) error {
	config := map[string]any{
		"mcpServers": map[string]any{},
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("parsing existing config %s: %w", configPath, err)
		}
	}

	servers, ok := config["mcpServers"]
	if !ok {
		servers = map[string]any{}
		config["mcpServers"] = servers
	}
	serversMap, ok := servers.(map[string]any)
	if !ok {
		return fmt.Errorf("mcpServers in %s is not an object", configPath)
	}
	serversMap[serverName] = entry

	output, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	output = append(output, '\n')

	return manifest.WriteFileAtomic(configPath, output)
}
