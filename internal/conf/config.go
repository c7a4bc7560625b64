// conf/config.go
package conf

import (
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the fully unmarshaled configuration surface: tagging rules,
// HTTP behavior, the three external service configs (Mongo, Telegram,
// Telegraph), the fetch/schedule/strategy surface, and ambient logging.
type Settings struct {
	Debug bool // decoded from the "debug" key; no package reads it, and the log level comes from Main.Log.Level

	Main struct {
		Name string // decoded from "main.name"; not written to logs or audit rows
		Log  LogConfig
	}

	Tags map[string][]string // tag-name -> list of regex patterns

	Client ClientConfig
	Mongo  MongoConfig

	Telegram  TelegramConfig
	Telegraph TelegraphConfig

	Fetch FetchConfig
}

// ClientConfig controls outbound HTTP behavior shared by every upstream
// client and the archive-host uploader. The chat transport (shoutrrr)
// does not use it.
type ClientConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	Proxy     string
	NoProxy   string `mapstructure:"no_proxy"`
}

// MongoConfig names the store's backing database.
type MongoConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	Database         string
}

// RecipientConfig maps logical audiences to chat recipient identifiers.
type RecipientConfig struct {
	Debug   string
	Post    string
	Cartoon string
}

// TelegramConfig configures the chat transport. Silent lists title
// substrings that force silent delivery for matching posts.
type TelegramConfig struct {
	Token      string
	WebhookURL string `mapstructure:"webhook_url"`
	ListenAddr string `mapstructure:"listen_addr"`
	Recipient  RecipientConfig
	Silent     []string
}

// TelegraphConfig configures the archive-host uploader.
type TelegraphConfig struct {
	ShortName   string `mapstructure:"short_name"`
	AccessToken string `mapstructure:"access_token"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorURL   string `mapstructure:"author_url"`
}

// APIServer names one announcement-API upstream the fetch layer polls.
type APIServer struct {
	ID   string
	URL  string
	Name string
}

// ServerConfig names every upstream surface the scheduler can poll.
type ServerConfig struct {
	News string
	API  []APIServer
}

// StrategyConfig is a Strategy plus per-source overrides, keyed by the
// same source name used in Fetch.Schedule.
type StrategyConfig struct {
	Base      Strategy
	Overrides map[string]Strategy `mapstructure:",remain"`
}

// Strategy bounds how far a Fuse Comparator run reads into a listing
// before giving up on finding further new or updated items.
type Strategy struct {
	FuseLimit    *int       `mapstructure:"fuse_limit"`
	IgnoreIDLt   *int32     `mapstructure:"ignore_id_lt"`
	IgnoreTimeLt *time.Time `mapstructure:"ignore_time_lt"`
}

// For resolves the effective Strategy for a source name: the per-source
// override if one is configured, falling back to Base field-by-field.
func (s StrategyConfig) For(source string) Strategy {
	override, ok := s.Overrides[source]
	if !ok {
		return s.Base
	}
	resolved := s.Base
	if override.FuseLimit != nil {
		resolved.FuseLimit = override.FuseLimit
	}
	if override.IgnoreIDLt != nil {
		resolved.IgnoreIDLt = override.IgnoreIDLt
	}
	if override.IgnoreTimeLt != nil {
		resolved.IgnoreTimeLt = override.IgnoreTimeLt
	}
	return resolved
}

// FetchConfig names every source the scheduler drives, their cron
// expressions, and their fuse strategies.
type FetchConfig struct {
	Server   ServerConfig
	Schedule map[string][]string // source name -> cron expressions
	Strategy StrategyConfig
}

// SortedTagNames returns tag names in a stable order, since Go map
// iteration (and viper's YAML decoding into a map) gives no ordering
// guarantee and the tagger must evaluate rules in a deterministic order.
func (s *Settings) SortedTagNames() []string {
	names := make([]string, 0, len(s.Tags))
	for name := range s.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogConfig defines the configuration for a log file.
type LogConfig struct {
	Enabled     bool         // decoded from config; logging.Init opens the log file whatever its value
	Path        string       // Path to the log file
	Level       string       // slog level name; overridden by the LOG_LEVEL env var
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay time.Weekday // Day of the week for RotationWeekly
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a
// fresh Settings instance, validates it, and stores it as the process
// singleton.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(settings, decodeHook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// initViper initializes viper with default values and reads the
// configuration file, writing the embedded default if none is found.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return fmt.Errorf("error configuring environment variables: %w", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if stderrors.As(err, &notFound) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	log.Printf("using config file: %s", viper.ConfigFileUsed())
	return nil
}

// createDefaultConfig writes the embedded default config to the primary
// config path and reads it back in.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("created default config file at: %s", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded
// config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance, or nil if Load has
// never run.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it from disk on
// first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				log.Fatalf("error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
