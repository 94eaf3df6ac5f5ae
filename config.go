package cgrule

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the typed configuration surface covering every knob named
// in SPEC_FULL.md §6/§7B. Populated by cmd/cgrule-run via viper (YAML
// file, CGRULE_-prefixed env vars, flags, in that precedence) into this
// struct with yaml tags; cmd/cgrule-server uses DefaultConfig. This is the way
// the teacher keeps its own configuration as plain Go struct fields
// rather than a stringly-typed map. Each field also carries a
// matching mapstructure tag: viper.Unmarshal decodes by mapstructure
// tag (falling back to the lowercased field name otherwise), not by
// the yaml tag, so a snake_case file/env key would otherwise never
// bind.
type Config struct {
	ApplyMappings    bool `yaml:"apply_mappings" mapstructure:"apply_mappings"`
	ApplyCorrections bool `yaml:"apply_corrections" mapstructure:"apply_corrections"`
	Unsafe           bool `yaml:"unsafe" mapstructure:"unsafe"`

	Trace     bool `yaml:"trace" mapstructure:"trace"`
	TraceEncl bool `yaml:"trace_encl" mapstructure:"trace_encl"`

	Statistics bool `yaml:"statistics" mapstructure:"statistics"`

	NumWindows uint32 `yaml:"num_windows" mapstructure:"num_windows"`
	SoftLimit  int    `yaml:"soft_limit" mapstructure:"soft_limit"`
	HardLimit  int    `yaml:"hard_limit" mapstructure:"hard_limit"`

	// SectionMaxCount bounds iterations per section; 0 means unbounded
	// (the Open Question resolved in DESIGN.md in favor of the
	// unbounded-semantics reading).
	SectionMaxCount int `yaml:"section_max_count" mapstructure:"section_max_count"`

	DepDelimit         bool `yaml:"dep_delimit" mapstructure:"dep_delimit"`
	DepOriginal        bool `yaml:"dep_original" mapstructure:"dep_original"`
	HasRelations       bool `yaml:"has_relations" mapstructure:"has_relations"`
	ShowEndTags        bool `yaml:"show_end_tags" mapstructure:"show_end_tags"`
	UniqueTags         bool `yaml:"unique_tags" mapstructure:"unique_tags"`
	NoBeforeSections   bool `yaml:"no_before_sections" mapstructure:"no_before_sections"`
	NoSections         bool `yaml:"no_sections" mapstructure:"no_sections"`
	NoAfterSections    bool `yaml:"no_after_sections" mapstructure:"no_after_sections"`
	NoPassOrigin       bool `yaml:"no_pass_origin" mapstructure:"no_pass_origin"`
	AllowMagicReadings bool `yaml:"allow_magic_readings" mapstructure:"allow_magic_readings"`

	ValidRules []uint32 `yaml:"valid_rules" mapstructure:"valid_rules"`

	// Service-level additions (SPEC_FULL.md §7B).
	ListenAddr     string `yaml:"listen_addr" mapstructure:"listen_addr"`
	GrammarPath    string `yaml:"grammar_path" mapstructure:"grammar_path"`
	LogLevel       string `yaml:"log_level" mapstructure:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	WatchGrammar   bool   `yaml:"watch_grammar" mapstructure:"watch_grammar"`
}

// DefaultConfig returns the configuration used when no file/env/flag
// overrides anything, matching CG-3's own defaults: mappings and
// corrections allowed, nothing unsafe, one window of lookahead, no
// iteration cap.
func DefaultConfig() *Config {
	return &Config{
		ApplyMappings:    true,
		ApplyCorrections: true,
		NumWindows:       2,
		SectionMaxCount:  0,
		ListenAddr:       ":8080",
		LogLevel:         "info",
	}
}

// NewViper builds a *viper.Viper pre-loaded with DefaultConfig's values,
// CGRULE_-prefixed environment variable binding, and an optional config
// file path. File/env/flag precedence follows viper's own layering;
// callers (cmd/cgrule-run) bind pflag sets on top via v.BindPFlags
// before calling Load.
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CGRULE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("apply_mappings", def.ApplyMappings)
	v.SetDefault("apply_corrections", def.ApplyCorrections)
	v.SetDefault("num_windows", def.NumWindows)
	v.SetDefault("section_max_count", def.SectionMaxCount)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("log_level", def.LogLevel)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	}
	return v
}

// Load reads v's config file (the path given to NewViper, if any) and
// environment overrides into a fresh Config. A missing config file is
// not an error; missing flags/env vars simply leave the defaults set by
// NewViper.
func Load(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() != "" || v.GetString("config_file") != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
