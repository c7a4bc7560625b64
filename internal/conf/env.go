// env.go - environment variable configuration and validation.
package conf

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for an environment variable binding.
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns every environment variable binding: a proxy
// fallback and a log-level override.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"client.proxy", "ALL_PROXY", nil},
		{"main.log.level", "LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation.
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToUpper(value) {
	case "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
		return nil
	default:
		return fmt.Errorf("must be one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL")
	}
}

// configureEnvironmentVariables sets up environment variable support for
// viper: automatic reading plus the explicit bindings above.
func configureEnvironmentVariables() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindEnvVars(); err != nil {
		// Log warnings but don't fail startup; the app continues with
		// config file/default values.
		log.Printf("environment variable validation warnings: %v", err)
	}
	return nil
}
