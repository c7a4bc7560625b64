package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"debug", "DEBUG", false},
		{"lowercase accepted", "debug", false},
		{"info", "INFO", false},
		{"warn", "WARN", false},
		{"error", "ERROR", false},
		{"fatal", "FATAL", false},
		{"trace", "TRACE", false},
		{"invalid", "VERBOSE", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvLogLevel(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvBindingsShape(t *testing.T) {
	bindings := getEnvBindings()
	require.Len(t, bindings, 2)

	assert.Equal(t, "client.proxy", bindings[0].ConfigKey)
	assert.Equal(t, "ALL_PROXY", bindings[0].EnvVar)
	assert.Nil(t, bindings[0].Validate)

	assert.Equal(t, "main.log.level", bindings[1].ConfigKey)
	assert.Equal(t, "LOG_LEVEL", bindings[1].EnvVar)
	require.NotNil(t, bindings[1].Validate)
	assert.NoError(t, bindings[1].Validate("INFO"))
	assert.Error(t, bindings[1].Validate("NOPE"))
}

func TestBindEnvVarsWarnsButNeverFails(t *testing.T) {
	t.Setenv("LOG_LEVEL", "NOT_A_LEVEL")
	err := bindEnvVars()
	assert.Error(t, err) // warnings are returned to the caller...
	assert.Contains(t, err.Error(), "LOG_LEVEL")

	err = configureEnvironmentVariables() // ...but configureEnvironmentVariables never propagates them
	assert.NoError(t, err)
}
