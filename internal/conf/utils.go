// conf/utils.go
package conf

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetDefaultConfigPaths returns a list of default configuration paths for
// the current operating system, following each OS's standard convention
// for storing application configuration files.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "priconne-watch"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "priconne-watch"),
			"/etc/priconne-watch",
		}
	}

	return configPaths, nil
}

// GetBasePath expands environment variables in the given path and ensures
// the resulting directory exists.
func GetBasePath(path string) string {
	expandedPath := os.ExpandEnv(path)
	basePath := filepath.Clean(expandedPath)

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o755); err != nil {
			fmt.Printf("failed to create directory '%s': %v\n", basePath, err)
		}
	}

	return basePath
}

// RunningInContainer checks if the program is running inside a container.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}
	if containerEnv, exists := os.LookupEnv("container"); exists && containerEnv != "" {
		return true
	}

	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") {
			return true
		}
	}

	return false
}

// validateSettings checks the minimal invariants the rest of the process
// relies on at startup. Config errors are fatal: this is called once from
// Load and its error propagated up to the CLI's exit code.
func validateSettings(s *Settings) error {
	if s.Mongo.ConnectionString == "" {
		return fmt.Errorf("mongo.connection_string is required")
	}
	if s.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if s.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	for name, rules := range s.Tags {
		if len(rules) == 0 {
			return fmt.Errorf("tags.%s has no patterns", name)
		}
	}
	return nil
}
