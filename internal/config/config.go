package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rollup service configuration.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Auth      AuthConfig       `yaml:"auth"`
	Logging   LoggingConfig    `yaml:"logging"`
	Storage   StorageConfig    `yaml:"storage"`
	Budget    BudgetConfig     `yaml:"budget"`
	Documents []DocumentConfig `yaml:"documents"`
	Records   []RecordConfig   `yaml:"records"`
	Rollup    RollupConfig     `yaml:"rollup"`
	Report    ReportConfig     `yaml:"report"`
	Schedule  ScheduleConfig   `yaml:"schedule"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds usage counter retention.
type StorageConfig struct {
	UsageDailyTTLHours  int `yaml:"usage_daily_ttl_hours"`
	UsageMonthlyTTLDays int `yaml:"usage_monthly_ttl_days"`
}

// BudgetConfig holds operation-unit limits and storage call prices.
type BudgetConfig struct {
	UnitsPerRun      int64       `yaml:"units_per_run"`
	DailyUnitLimit   int64       `yaml:"daily_unit_limit"`   // 0 = unlimited
	MonthlyUnitLimit int64       `yaml:"monthly_unit_limit"` // 0 = unlimited
	Costs            CostsConfig `yaml:"costs"`
}

// CostsConfig prices storage calls in units.
type CostsConfig struct {
	Read   int64 `yaml:"read"`
	Lookup int64 `yaml:"lookup"`
	Write  int64 `yaml:"write"`
	Search int64 `yaml:"search"`
}

// FieldConfig declares one document field.
type FieldConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // number, bool, text
	Mandatory bool   `yaml:"mandatory"`
}

// DocumentConfig declares the schema of one parent document type.
type DocumentConfig struct {
	Type     string                   `yaml:"type"`
	Body     []FieldConfig            `yaml:"body"`
	Sublists map[string][]FieldConfig `yaml:"sublists"`
}

// RecordConfig declares the filterable columns of one queryable record type.
type RecordConfig struct {
	Type     string   `yaml:"type"`
	Tags     []string `yaml:"tags"`
	Numerics []string `yaml:"numerics"`
}

// RollupConfig names the summary the event handler maintains.
type RollupConfig struct {
	RecordType  string `yaml:"record_type"`
	Sublist     string `yaml:"sublist"`
	LineField   string `yaml:"line_field"`
	TotalField  string `yaml:"total_field"`
	MarkerField string `yaml:"marker_field"`
}

// ReportConfig parameterises the pending-approval report.
type ReportConfig struct {
	RecordType   string  `yaml:"record_type"`
	Status       string  `yaml:"status"`
	LookbackDays int     `yaml:"lookback_days"`
	MinTotal     float64 `yaml:"min_total"`
	CurrencyType string  `yaml:"currency_type"`
	CurrencyCode string  `yaml:"currency_code"`
	PageSize     int     `yaml:"page_size"`
	Threshold    int64   `yaml:"threshold"`
	// ExcludeEntities lists entity ids left out of the report, e.g. internal test customers.
	ExcludeEntities []string `yaml:"exclude_entities"`
}

// ScheduleConfig controls the in-process report scheduler.
type ScheduleConfig struct {
	Enabled     bool `yaml:"enabled"`
	IntervalSec int  `yaml:"interval_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.UsageDailyTTLHours <= 0 {
		c.Storage.UsageDailyTTLHours = 48
	}
	if c.Storage.UsageMonthlyTTLDays <= 0 {
		c.Storage.UsageMonthlyTTLDays = 62
	}
	if c.Budget.UnitsPerRun <= 0 {
		c.Budget.UnitsPerRun = 10000
	}
	if c.Budget.Costs == (CostsConfig{}) {
		c.Budget.Costs = CostsConfig{Read: 5, Lookup: 1, Write: 10, Search: 5}
	}
	if len(c.Documents) == 0 {
		c.Documents = []DocumentConfig{defaultInvoice()}
	}
	if len(c.Records) == 0 {
		c.Records = []RecordConfig{{
			Type:     "sales_order",
			Tags:     []string{"status", "currency", "entity"},
			Numerics: []string{"trandate", "total"},
		}}
	}
	c.applyRollupDefaults()
	c.applyReportDefaults()
	if c.Schedule.IntervalSec <= 0 {
		c.Schedule.IntervalSec = 3600
	}
}

func defaultInvoice() DocumentConfig {
	return DocumentConfig{
		Type: "invoice",
		Body: []FieldConfig{
			{Name: "entity", Kind: "reference", Mandatory: true},
			{Name: "total_discount", Kind: "number"},
			{Name: "discount_processed", Kind: "bool"},
		},
		Sublists: map[string][]FieldConfig{
			"item": {
				{Name: "item", Kind: "text"},
				{Name: "quantity", Kind: "number"},
				{Name: "amount", Kind: "number"},
				{Name: "discount_amount", Kind: "number"},
			},
		},
	}
}

func (c *Config) applyRollupDefaults() {
	r := &c.Rollup
	if r.RecordType == "" {
		r.RecordType = "invoice"
	}
	if r.Sublist == "" {
		r.Sublist = "item"
	}
	if r.LineField == "" {
		r.LineField = "discount_amount"
	}
	if r.TotalField == "" {
		r.TotalField = "total_discount"
	}
	if r.MarkerField == "" {
		r.MarkerField = "discount_processed"
	}
}

func (c *Config) applyReportDefaults() {
	r := &c.Report
	if r.RecordType == "" {
		r.RecordType = "sales_order"
	}
	if r.Status == "" {
		r.Status = "SalesOrd:A"
	}
	if r.LookbackDays <= 0 {
		r.LookbackDays = 30
	}
	if r.MinTotal == 0 {
		r.MinTotal = 10000
	}
	if r.CurrencyType == "" {
		r.CurrencyType = "currency"
	}
	if r.CurrencyCode == "" {
		r.CurrencyCode = "GBP"
	}
	if r.PageSize <= 0 {
		r.PageSize = 4000
	}
	if r.Threshold <= 0 {
		r.Threshold = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Report.PageSize > 4000 {
		return fmt.Errorf("report.page_size must not exceed 4000, got %d", c.Report.PageSize)
	}
	if c.Budget.Costs.Read < 0 || c.Budget.Costs.Lookup < 0 || c.Budget.Costs.Write < 0 || c.Budget.Costs.Search < 0 {
		return fmt.Errorf("budget.costs must not be negative")
	}

	seen := make(map[string]bool, len(c.Documents))
	for i, d := range c.Documents {
		if d.Type == "" {
			return fmt.Errorf("documents[%d].type is required", i)
		}
		if seen[d.Type] {
			return fmt.Errorf("documents[%d]: duplicate type %q", i, d.Type)
		}
		seen[d.Type] = true
	}
	if !seen[c.Rollup.RecordType] {
		return fmt.Errorf("rollup.record_type %q has no documents entry", c.Rollup.RecordType)
	}

	hasReport := false
	for _, r := range c.Records {
		if r.Type == c.Report.RecordType {
			hasReport = true
		}
	}
	if !hasReport {
		return fmt.Errorf("report.record_type %q has no records entry", c.Report.RecordType)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
