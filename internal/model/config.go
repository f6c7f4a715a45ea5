package model

import "time"

// Config is the application configuration
type Config struct {
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Tables      TablesConfig      `yaml:"tables" mapstructure:"tables"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Assay       AssayConfig       `yaml:"assay" mapstructure:"assay"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// TablesConfig points at the JSON lookup tables
type TablesConfig struct {
	Attributes string `yaml:"attributes" mapstructure:"attributes"` // {keyword: attribute}
	Aliases    string `yaml:"aliases" mapstructure:"aliases"`       // {alias: entity}
	Entities   string `yaml:"entities" mapstructure:"entities"`     // [entity, ...]
	Tolerances string `yaml:"tolerances" mapstructure:"tolerances"` // {attribute: percent, default: percent}
	Policy     string `yaml:"policy" mapstructure:"policy"`         // promotion policy
}

// RecencyTiers maps evaluation age to a recency score
type RecencyTiers struct {
	Tier1Days  int `yaml:"tier1_days" mapstructure:"tier1_days"`
	Tier1Score int `yaml:"tier1_score" mapstructure:"tier1_score"`
	Tier2Days  int `yaml:"tier2_days" mapstructure:"tier2_days"`
	Tier2Score int `yaml:"tier2_score" mapstructure:"tier2_score"`
	Tier3Score int `yaml:"tier3_score" mapstructure:"tier3_score"`
}

// ScoringConfig holds evaluation scoring settings
type ScoringConfig struct {
	Recency               RecencyTiers `yaml:"recency" mapstructure:"recency"`
	Weights               Weights      `yaml:"weights" mapstructure:"weights"`
	DefaultConsensusScore int          `yaml:"default_consensus_score" mapstructure:"default_consensus_score"`

	// Used when a source domain has no curated metrics
	DefaultSourceTrust int      `yaml:"default_source_trust" mapstructure:"default_source_trust"`
	PrimaryTrust       int      `yaml:"primary_trust" mapstructure:"primary_trust"`
	SecondaryTrust     int      `yaml:"secondary_trust" mapstructure:"secondary_trust"`
	PrimaryDomains     []string `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains   []string `yaml:"secondary_domains" mapstructure:"secondary_domains"`
}

// AssayConfig configures live and fallback assays
type AssayConfig struct {
	Provider           string        `yaml:"provider" mapstructure:"provider"` // "" disables the live assay
	Model              string        `yaml:"model" mapstructure:"model"`
	APIKey             string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL            string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens          int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	AgreementThreshold float64       `yaml:"agreement_threshold" mapstructure:"agreement_threshold"`
	RequestsPerSecond  float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int           `yaml:"burst" mapstructure:"burst"`
	CacheDir           string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL           time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// HTTPConfig configures page fetching for verify --url
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers      int `yaml:"workers" mapstructure:"workers"`             // batch verification workers
	StorageReads int `yaml:"storage_reads" mapstructure:"storage_reads"` // concurrent consensus lookups
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	JSONLog bool `yaml:"json_log" mapstructure:"json_log"`
}

// DefaultConfig returns the built-in configuration rooted at dir
func DefaultConfig(dir string) *Config {
	return &Config{
		Database: DatabaseConfig{Path: dir + "/factgate.db"},
		Tables: TablesConfig{
			Attributes: dir + "/attributes.json",
			Aliases:    dir + "/aliases.json",
			Entities:   dir + "/entities.json",
			Tolerances: dir + "/tolerances.json",
			Policy:     dir + "/promotion-policy.json",
		},
		Scoring: ScoringConfig{
			Recency: RecencyTiers{
				Tier1Days:  30,
				Tier1Score: 100,
				Tier2Days:  365,
				Tier2Score: 50,
				Tier3Score: 10,
			},
			Weights:               DefaultWeights(),
			DefaultConsensusScore: 95,
			DefaultSourceTrust:    50,
			PrimaryTrust:          90,
			SecondaryTrust:        70,
			PrimaryDomains: []string{
				"imf.org", "worldbank.org", "un.org", "oecd.org", "census.gov",
				"europa.eu", "who.int",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "cia.gov",
			},
		},
		Assay: AssayConfig{
			Timeout:            30 * time.Second,
			MaxTokens:          300,
			AgreementThreshold: 0.7,
			RequestsPerSecond:  1,
			Burst:              2,
			CacheDir:           dir + "/cache",
			CacheTTL:           24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "factgate/0.1 (+https://github.com/ppiankov/factgate)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:      4,
			StorageReads: 8,
		},
	}
}
