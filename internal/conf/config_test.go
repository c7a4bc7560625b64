package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int       { return &v }
func int32Ptr(v int32) *int32 { return &v }

func TestStrategyConfigForFallsBackToBase(t *testing.T) {
	cfg := StrategyConfig{Base: Strategy{FuseLimit: intPtr(10)}}
	assert.Equal(t, cfg.Base, cfg.For("unconfigured-source"))
}

func TestStrategyConfigForMergesOverrideFieldByField(t *testing.T) {
	cfg := StrategyConfig{
		Base: Strategy{FuseLimit: intPtr(10), IgnoreIDLt: int32Ptr(5)},
		Overrides: map[string]Strategy{
			"alice": {FuseLimit: intPtr(3)}, // only overrides FuseLimit
		},
	}

	resolved := cfg.For("alice")
	assert.Equal(t, 3, *resolved.FuseLimit)
	assert.Equal(t, int32(5), *resolved.IgnoreIDLt) // inherited from Base
}

func TestSortedTagNamesIsDeterministic(t *testing.T) {
	s := &Settings{Tags: map[string][]string{
		"zebra": {"z"},
		"apple": {"a"},
		"mango": {"m"},
	}}

	assert.Equal(t, []string{"apple", "mango", "zebra"}, s.SortedTagNames())
}

func TestValidateSettingsRequiresMongoAndTelegram(t *testing.T) {
	tests := []struct {
		name    string
		s       *Settings
		wantErr string
	}{
		{
			name:    "missing connection string",
			s:       &Settings{Mongo: MongoConfig{Database: "db"}, Telegram: TelegramConfig{Token: "t"}},
			wantErr: "connection_string",
		},
		{
			name:    "missing database",
			s:       &Settings{Mongo: MongoConfig{ConnectionString: "mongodb://x"}, Telegram: TelegramConfig{Token: "t"}},
			wantErr: "database",
		},
		{
			name: "missing telegram token",
			s: &Settings{
				Mongo: MongoConfig{ConnectionString: "mongodb://x", Database: "db"},
			},
			wantErr: "telegram.token",
		},
		{
			name: "empty tag rule list",
			s: &Settings{
				Mongo:    MongoConfig{ConnectionString: "mongodb://x", Database: "db"},
				Telegram: TelegramConfig{Token: "t"},
				Tags:     map[string][]string{"event": {}},
			},
			wantErr: "tags.event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSettings(tt.s)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateSettingsAcceptsMinimalValidConfig(t *testing.T) {
	s := &Settings{
		Mongo:    MongoConfig{ConnectionString: "mongodb://x", Database: "db"},
		Telegram: TelegramConfig{Token: "t"},
		Tags:     map[string][]string{"event": {"Event"}},
	}
	assert.NoError(t, validateSettings(s))
}
