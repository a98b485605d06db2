package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceConfig points the fetch layer at the proximity-map service.
type ServiceConfig struct {
	BaseURL        string `yaml:"base_url"` // custom endpoint; empty uses the production service
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	PageSize       int    `yaml:"page_size"`
}

// OutputConfig controls where and how artifacts accumulate.
type OutputConfig struct {
	// Dir holds the artifact files. Empty means <home>/artifacts.
	Dir string `yaml:"dir"`
	// Format is "csv" (one file per artifact) or "workbook" (one sheet
	// per artifact in a single xlsx file).
	Format string `yaml:"format"`
	// Workbook names the xlsx file used by the workbook format.
	Workbook string `yaml:"workbook"`
}

// DatasetsConfig narrows what a fetch run collects by default.
type DatasetsConfig struct {
	// Categories selects the dataset categories to fetch. Empty means
	// all of them.
	Categories []string `yaml:"categories"`
	// CellLines restricts expression datasets to named cell lines.
	// Empty keeps every cell line the service reports.
	CellLines []string `yaml:"cell_lines"`
	// MappingTTLHours expires cached symbol mappings. 0 keeps them
	// forever.
	MappingTTLHours int `yaml:"mapping_ttl_hours"`
}

type TelegramConfig struct {
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
	Enabled bool   `yaml:"enabled"`
}

// NotifyConfig selects which run outcomes get pushed to a channel.
type NotifyConfig struct {
	Telegram  TelegramConfig `yaml:"telegram"`
	OnSuccess bool           `yaml:"on_success"`
	OnFailure bool           `yaml:"on_failure"`
}

// OTelConfig configures trace and metric export.
type OTelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // OTLP HTTP endpoint, host:port
	Stdout   bool   `yaml:"stdout"`   // print spans to stdout instead of exporting
}

// StringDBConfig locates the inputs for the scores command.
type StringDBConfig struct {
	LinksPath string `yaml:"links_path"`
	PairsPath string `yaml:"pairs_path"`
}

// WatchConfig drives the symbols-file watcher.
type WatchConfig struct {
	SymbolsFile     string   `yaml:"symbols_file"`
	DebounceSeconds int      `yaml:"debounce_seconds"`
	Datasets        []string `yaml:"datasets"`
}

// ScheduleEntry defines one cron-driven fetch. Symbols come from an
// inline list, a file, or a named panel; at least one must be set.
type ScheduleEntry struct {
	Name        string   `yaml:"name"`
	Cron        string   `yaml:"cron"`
	Symbols     []string `yaml:"symbols"`
	SymbolsFile string   `yaml:"symbols_file"`
	Panel       string   `yaml:"panel"`
	Datasets    []string `yaml:"datasets"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	LogLevel string `yaml:"log_level"`
	Quiet    bool   `yaml:"quiet"`

	Service  ServiceConfig  `yaml:"service"`
	Output   OutputConfig   `yaml:"output"`
	Datasets DatasetsConfig `yaml:"datasets"`
	Notify   NotifyConfig   `yaml:"notify"`
	OTel     OTelConfig     `yaml:"otel"`
	StringDB StringDBConfig `yaml:"stringdb"`
	Watch    WatchConfig    `yaml:"watch"`

	// Schedules feed the schedule command.
	Schedules []ScheduleEntry `yaml:"schedules"`

	// Panels are named symbol lists, usable anywhere a symbol list is.
	Panels map[string][]string `yaml:"panels"`

	// NeedsInit is set when no config.yaml existed and defaults are in
	// effect.
	NeedsInit bool `yaml:"-"`
}

// Panel resolves a named symbol list.
func (c Config) Panel(name string) ([]string, bool) {
	symbols, ok := c.Panels[name]
	return symbols, ok
}

// MappingTTL returns the mapping cache expiry. Zero means entries
// never expire.
func (c Config) MappingTTL() time.Duration {
	if c.Datasets.MappingTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.Datasets.MappingTTLHours) * time.Hour
}

// OutputDir returns the artifact directory, defaulting under home.
func (c Config) OutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return filepath.Join(c.HomeDir, "artifacts")
}

// LedgerPath returns the run-ledger database path.
func (c Config) LedgerPath() string {
	return filepath.Join(c.HomeDir, "biofetch.db")
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// Fingerprint returns a stable hash of the settings that change what a
// run produces.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "url=%s|out=%s|fmt=%s|log=%s|cats=%v|lines=%v",
		c.Service.BaseURL, c.OutputDir(), c.Output.Format, c.LogLevel,
		c.Datasets.Categories, c.Datasets.CellLines)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Service: ServiceConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Output: OutputConfig{
			Format:   "csv",
			Workbook: "biofetch.xlsx",
		},
		Notify: NotifyConfig{
			OnFailure: true,
		},
		Watch: WatchConfig{
			DebounceSeconds: 2,
		},
	}
}

func HomeDir() string {
	if override := os.Getenv("BIOFETCH_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".biofetch")
}

func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create biofetch home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.NeedsInit = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validateSchedules(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Service.TimeoutSeconds <= 0 {
		cfg.Service.TimeoutSeconds = 30
	}
	if cfg.Service.MaxRetries <= 0 {
		cfg.Service.MaxRetries = 3
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Output.Format)) {
	case "workbook", "xlsx":
		cfg.Output.Format = "workbook"
	default:
		cfg.Output.Format = "csv"
	}
	if cfg.Output.Workbook == "" {
		cfg.Output.Workbook = "biofetch.xlsx"
	}
	if cfg.Watch.DebounceSeconds <= 0 {
		cfg.Watch.DebounceSeconds = 2
	}
}

// validateSchedules rejects schedules that could never fire: duplicate
// names, a missing cron expression, or no symbol source at all.
func validateSchedules(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Schedules))
	for i, s := range cfg.Schedules {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("schedule %d", i+1)
		}
		if s.Name != "" && seen[s.Name] {
			return fmt.Errorf("duplicate schedule name %q", s.Name)
		}
		seen[s.Name] = true
		if strings.TrimSpace(s.Cron) == "" {
			return fmt.Errorf("%s: missing cron expression", label)
		}
		if len(s.Symbols) == 0 && s.SymbolsFile == "" && s.Panel == "" {
			return fmt.Errorf("%s: needs symbols, symbols_file, or panel", label)
		}
		if s.Panel != "" {
			if _, ok := cfg.Panels[s.Panel]; !ok {
				return fmt.Errorf("%s: unknown panel %q", label, s.Panel)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("BIOFETCH_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("BIOFETCH_OUTPUT_DIR"); raw != "" {
		cfg.Output.Dir = raw
	}
	if raw := os.Getenv("BIOFETCH_SERVICE_URL"); raw != "" {
		cfg.Service.BaseURL = raw
	}
	if raw := os.Getenv("UMAP_API_KEY"); raw != "" {
		cfg.Service.APIKey = raw
	}
	if raw := os.Getenv("BIOFETCH_MAPPING_TTL_HOURS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.Datasets.MappingTTLHours = v
		}
	}
	if raw := os.Getenv("TELEGRAM_TOKEN"); raw != "" {
		cfg.Notify.Telegram.Token = raw
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Notify.Telegram.ChatID = v
		}
	}
}

// loadRawConfig reads config.yaml into a generic map, returning an empty map if the file doesn't exist.
func loadRawConfig(path string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}
	return raw, nil
}

// saveRawConfig marshals and writes a generic map back to config.yaml.
func saveRawConfig(path string, raw map[string]interface{}) error {
	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// SetAPIKey updates the service API key in config.yaml, preserving other settings.
func SetAPIKey(homeDir, value string) error {
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}
	service, _ := raw["service"].(map[string]interface{})
	if service == nil {
		service = make(map[string]interface{})
	}
	service["api_key"] = value
	raw["service"] = service
	return saveRawConfig(configPath, raw)
}

// SetOutputDir updates the artifact directory in config.yaml, preserving other settings.
func SetOutputDir(homeDir, dir string) error {
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}
	output, _ := raw["output"].(map[string]interface{})
	if output == nil {
		output = make(map[string]interface{})
	}
	output["dir"] = dir
	raw["output"] = output
	return saveRawConfig(configPath, raw)
}
