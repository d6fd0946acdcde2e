// =============================================================================
// folio - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration. A
// single YAML file drives every import stage: header synonyms, optional
// fields, duplicate approval, user transforms and merge groups, settlement
// calendars and backups.
//
// LOADING ORDER:
//   1. Read config.yaml (a missing file is created from the defaults)
//   2. Apply defaults for unset keys
//   3. Apply environment overrides (.env file or process environment)
//   4. Validate
//
// The loaded *Config is passed explicitly to every stage. There is no global
// configuration object.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/folio/internal/txn"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// STORAGE SETTINGS
	// =========================================================================

	// DBPath is the SQLite database file holding the transaction table.
	// Default: "data/folio.db"
	DBPath string `yaml:"db_path"`

	// Table is the transaction table name.
	// Default: "Txns"
	Table string `yaml:"table"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error". Unknown values fall
	// back to the default.
	// Default: "error"
	LogLevel string `yaml:"log_level"`

	// LogFile is an optional log file. Empty means stderr.
	LogFile string `yaml:"log_file"`

	// =========================================================================
	// HEADER MAPPING
	// =========================================================================

	// HeaderKeywords maps each essential field to the incoming header
	// spellings that identify it. Matching is done on normalized text
	// (lowercase, only a-z, 0-9 and "$" kept).
	//
	// CUSTOMIZATION: Add the column names your broker uses.
	// Example:
	//   header_keywords:
	//     TxnDate: [trade date, date]
	HeaderKeywords map[string][]string `yaml:"header_keywords"`

	// HeaderIgnore lists incoming columns to drop before mapping. A column
	// that matches an essential keyword is never dropped.
	HeaderIgnore []string `yaml:"header_ignore"`

	// OptionalFields are non-essential canonical fields with a value type
	// and their own header synonyms.
	OptionalFields map[string]OptionalField `yaml:"optional_fields"`

	// =========================================================================
	// DUPLICATES
	// =========================================================================

	// DuplicateApproval names the column and sentinel value a user writes
	// into a file to force a flagged duplicate through.
	DuplicateApproval DuplicateApproval `yaml:"duplicate_approval"`

	// =========================================================================
	// TRANSFORMS
	// =========================================================================

	// Transforms holds user rewrite rules and merge groups.
	Transforms Transforms `yaml:"transforms"`

	// =========================================================================
	// FILE READING
	// =========================================================================

	// CSVSettings contains settings for reading CSV exports.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// Sheet is the default worksheet for Excel imports. Empty means the
	// first sheet.
	Sheet string `yaml:"sheet"`

	// =========================================================================
	// SETTLEMENT
	// =========================================================================

	// Settlement configures T+1 cutovers and trading calendars.
	Settlement Settlement `yaml:"settlement"`

	// =========================================================================
	// BACKUP
	// =========================================================================

	// Backup configures the pre-import database copy.
	Backup Backup `yaml:"backup"`
}

// OptionalField describes a non-essential canonical field.
type OptionalField struct {
	// Type is one of "date", "numeric", "currency", "action", "string".
	Type string `yaml:"type"`

	// Keywords are the header spellings that identify this field.
	Keywords []string `yaml:"keywords"`
}

// Optional field value types.
const (
	TypeDate     = "date"
	TypeNumeric  = "numeric"
	TypeCurrency = "currency"
	TypeAction   = "action"
	TypeString   = "string"
)

// DuplicateApproval configures the duplicate override column.
type DuplicateApproval struct {
	// ColumnName is the approval column. Default: "Duplicate"
	ColumnName string `yaml:"column_name"`

	// ApprovalValue is compared case-insensitively. Default: "OK"
	ApprovalValue string `yaml:"approval_value"`
}

// Transform stages.
const (
	StagePreFormat = "pre_format"
	StagePostDedup = "post_dedup"
)

// Transforms holds user rewrite rules and merge groups.
type Transforms struct {
	// Stage selects where the transform engine runs in the pipeline.
	//   - "pre_format": on mapped rows, before formatting (default). Rules
	//     and merge groups see the broker's own vocabulary.
	//   - "post_dedup": on formatted, deduplicated rows.
	Stage string `yaml:"stage"`

	// Rules are applied in order, after all merge groups.
	Rules []TransformRule `yaml:"rules"`

	// MergeGroups are applied in order, before any rule.
	MergeGroups []MergeGroup `yaml:"merge_groups"`

	// Invalid describes rules and merge groups that could not be decoded.
	// They are left out of Rules and MergeGroups instead of failing the
	// whole file.
	Invalid []string `yaml:"-"`
}

// UnmarshalYAML decodes rules and merge groups one entry at a time so a
// malformed entry only drops itself.
func (t *Transforms) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Stage       string    `yaml:"stage"`
		Rules       yaml.Node `yaml:"rules"`
		MergeGroups yaml.Node `yaml:"merge_groups"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	t.Stage = raw.Stage

	for i, item := range entries(&raw.Rules, "rules", &t.Invalid) {
		var r TransformRule
		if err := item.Decode(&r); err != nil {
			t.Invalid = append(t.Invalid, fmt.Sprintf("rules[%d]: %v", i+1, err))
			continue
		}
		t.Rules = append(t.Rules, r)
	}
	for i, item := range entries(&raw.MergeGroups, "merge_groups", &t.Invalid) {
		var g MergeGroup
		if err := item.Decode(&g); err != nil {
			t.Invalid = append(t.Invalid, fmt.Sprintf("merge_groups[%d]: %v", i+1, err))
			continue
		}
		t.MergeGroups = append(t.MergeGroups, g)
	}
	return nil
}

// entries returns the items of a sequence node. An absent or null node has
// none; any other kind is recorded as invalid.
func entries(node *yaml.Node, key string, invalid *[]string) []*yaml.Node {
	switch {
	case node.Kind == 0:
		return nil
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return nil
	case node.Kind == yaml.SequenceNode:
		return node.Content
	}
	*invalid = append(*invalid, fmt.Sprintf("%s: line %d: expected a list", key, node.Line))
	return nil
}

// TransformRule rewrites fields on rows matching every condition.
//
// Example:
//
//	- conditions:
//	    Action: [Dividend Reinvest]
//	  actions:
//	    Action: BUY
type TransformRule struct {
	// Conditions maps field -> acceptable values. A scalar is accepted as a
	// single-element list.
	Conditions map[string]StringList `yaml:"conditions"`

	// Actions maps field -> replacement. An empty replacement clears the
	// field.
	Actions map[string]string `yaml:"actions"`
}

// MergeGroup collapses related rows into one.
//
// Example:
//
//	- name: dividend_tax
//	  match_fields: [TxnDate, Ticker, Account]
//	  source_actions: [Dividends, Withholding Tax]
//	  target_action: DIVIDEND
//	  amount_field: Amount
//	  operations:
//	    Fee: "0"
type MergeGroup struct {
	Name          string            `yaml:"name"`
	MatchFields   []string          `yaml:"match_fields"`
	SourceActions []string          `yaml:"source_actions"`
	TargetAction  string            `yaml:"target_action"`
	AmountField   string            `yaml:"amount_field"`
	Operations    map[string]string `yaml:"operations"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the field separator.
	// Common values: ",", ";", "|", "\t" (or "tab")
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "Windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// Settlement configures the settlement calculator.
type Settlement struct {
	// TPlusOne maps currency -> first trade date settling T+1 (YYYY-MM-DD).
	// Trades before the cutover settle T+2.
	TPlusOne map[string]string `yaml:"t_plus_one"`

	// BufferBeforeDays / BufferAfterDays widen the trading schedule window
	// loaded around the batch's date range.
	BufferBeforeDays int `yaml:"calendar_buffer_before_days"`
	BufferAfterDays  int `yaml:"calendar_buffer_after_days"`

	// Holidays maps currency -> extra closed dates (YYYY-MM-DD) on top of
	// the built-in exchange rules.
	Holidays map[string][]string `yaml:"holidays"`
}

// Backup configures the pre-import database copy.
type Backup struct {
	// Enabled turns the backup on. Default: true
	Enabled *bool `yaml:"enabled"`

	// Dir is where copies are written. Default: "data/backups"
	Dir string `yaml:"dir"`
}

// IsEnabled reports whether backups should be taken.
func (b Backup) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// =============================================================================
// STRING LIST
// =============================================================================

// StringList accepts either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: condition values must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("line %d: expected a scalar or a list", node.Line)
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// defaultHeaderKeywords are the shipped header synonyms.
func defaultHeaderKeywords() map[string][]string {
	return map[string][]string{
		txn.Date:          {"txndate", "transaction date", "trade date", "date"},
		txn.ActionField:   {"action", "type", "activity"},
		txn.Amount:        {"amount", "value", "total", "net amount"},
		txn.CurrencyField: {"$", "currency", "curr"},
		txn.Price:         {"price", "unit price", "share price"},
		txn.Units:         {"units", "shares", "qty", "quantity"},
		txn.Ticker:        {"ticker", "symbol", "stock"},
	}
}

func defaultOptionalFields() map[string]OptionalField {
	return map[string]OptionalField{
		txn.Account:    {Type: TypeString, Keywords: []string{"account", "alias", "account id"}},
		txn.Fee:        {Type: TypeNumeric, Keywords: []string{"fee", "fees", "commission"}},
		txn.SettleDate: {Type: TypeDate, Keywords: []string{"settledate", "settle date", "settlement date"}},
	}
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "folio.db")
	}
	if cfg.Table == "" {
		cfg.Table = txn.Table
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "error"
	}

	// Header keywords: fill in any essential the file did not mention.
	if cfg.HeaderKeywords == nil {
		cfg.HeaderKeywords = map[string][]string{}
	}
	for field, words := range defaultHeaderKeywords() {
		if len(cfg.HeaderKeywords[field]) == 0 {
			cfg.HeaderKeywords[field] = words
		}
	}

	if cfg.OptionalFields == nil {
		cfg.OptionalFields = map[string]OptionalField{}
	}
	for name, field := range defaultOptionalFields() {
		if _, ok := cfg.OptionalFields[name]; !ok {
			cfg.OptionalFields[name] = field
		}
	}
	for name, field := range cfg.OptionalFields {
		if field.Type == "" {
			field.Type = TypeString
			cfg.OptionalFields[name] = field
		}
	}

	if cfg.DuplicateApproval.ColumnName == "" {
		cfg.DuplicateApproval.ColumnName = "Duplicate"
	}
	if cfg.DuplicateApproval.ApprovalValue == "" {
		cfg.DuplicateApproval.ApprovalValue = "OK"
	}

	if cfg.Transforms.Stage == "" {
		cfg.Transforms.Stage = StagePreFormat
	}
	for i := range cfg.Transforms.MergeGroups {
		if cfg.Transforms.MergeGroups[i].AmountField == "" {
			cfg.Transforms.MergeGroups[i].AmountField = txn.Amount
		}
	}

	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = ","
	}
	if cfg.CSVSettings.Encoding == "" {
		cfg.CSVSettings.Encoding = "UTF-8"
	}

	cfg.Settlement.TPlusOne = currencyKeys(cfg.Settlement.TPlusOne)
	if cfg.Settlement.TPlusOne == nil {
		cfg.Settlement.TPlusOne = map[string]string{}
	}
	for cur, date := range map[string]string{"USD": "2024-05-28", "CAD": "2024-05-27"} {
		if cfg.Settlement.TPlusOne[cur] == "" {
			cfg.Settlement.TPlusOne[cur] = date
		}
	}
	if len(cfg.Settlement.Holidays) > 0 {
		holidays := map[string][]string{}
		for cur, dates := range cfg.Settlement.Holidays {
			key := cur
			if c, err := txn.ParseCurrency(cur); err == nil {
				key = c.String()
			}
			holidays[key] = append(holidays[key], dates...)
		}
		cfg.Settlement.Holidays = holidays
	}
	if cfg.Settlement.BufferBeforeDays == 0 {
		cfg.Settlement.BufferBeforeDays = 10
	}
	if cfg.Settlement.BufferAfterDays == 0 {
		cfg.Settlement.BufferAfterDays = 30
	}

	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = filepath.Join("data", "backups")
	}
}

// currencyKeys rewrites currency keys ("usd", "US$") to their canonical
// code. An explicit canonical key wins over a synonym. Unknown keys are kept
// for validate to report.
func currencyKeys(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, v := range in {
		if c, err := txn.ParseCurrency(key); err == nil && c.String() != key {
			if _, ok := in[c.String()]; !ok {
				out[c.String()] = v
			}
			continue
		}
		out[key] = v
	}
	return out
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be read, parsed or validated.
//
// A missing file is not an error: the defaults are written to configPath
// and returned.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		applyEnv(cfg)
		if err := Save(configPath, Default()); err != nil {
			return nil, err
		}
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration bytes and applies defaults. It does not
// consult the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes a configuration file, creating its directory.
func Save(configPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Environment variables that override file settings.
const (
	EnvDBPath   = "FOLIO_DB_PATH"
	EnvLogLevel = "FOLIO_LOG_LEVEL"
)

// applyEnv loads a .env file when present and applies environment
// overrides on top of the file configuration.
func applyEnv(cfg *Config) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// validate checks the configuration. Unknown log levels are reset to the
// default instead of failing.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		cfg.LogLevel = "error"
	}

	for field := range cfg.HeaderKeywords {
		if !txn.IsEssential(field) {
			return fmt.Errorf("header_keywords: %q is not an essential field (use optional_fields)", field)
		}
	}

	for name, field := range cfg.OptionalFields {
		if txn.IsEssential(name) {
			return fmt.Errorf("optional_fields: %q is an essential field", name)
		}
		switch field.Type {
		case TypeDate, TypeNumeric, TypeCurrency, TypeAction, TypeString:
		default:
			return fmt.Errorf("optional_fields: %q has unknown type %q", name, field.Type)
		}
	}

	switch cfg.Transforms.Stage {
	case StagePreFormat, StagePostDedup:
	default:
		return fmt.Errorf("transforms.stage: unknown stage %q", cfg.Transforms.Stage)
	}

	for cur, date := range cfg.Settlement.TPlusOne {
		if _, err := txn.ParseCurrency(cur); err != nil {
			return fmt.Errorf("settlement.t_plus_one: %w", err)
		}
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return fmt.Errorf("settlement.t_plus_one[%s]: %w", cur, err)
		}
	}
	for cur, dates := range cfg.Settlement.Holidays {
		if _, err := txn.ParseCurrency(cur); err != nil {
			return fmt.Errorf("settlement.holidays: %w", err)
		}
		for _, d := range dates {
			if _, err := time.Parse(time.DateOnly, d); err != nil {
				return fmt.Errorf("settlement.holidays[%s]: %w", cur, err)
			}
		}
	}
	if cfg.Settlement.BufferBeforeDays < 0 || cfg.Settlement.BufferAfterDays < 0 {
		return fmt.Errorf("settlement: calendar buffers must not be negative")
	}

	return nil
}

// TPlusOneCutover returns the parsed T+1 cutover for a currency.
func (s Settlement) TPlusOneCutover(cur txn.Currency) (time.Time, bool) {
	raw, ok := s.TPlusOne[cur.String()]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t, err == nil
}
