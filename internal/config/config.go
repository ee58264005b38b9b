// Package config handles loading and parsing of configuration files
// for the application: the setup document and the transform rulesets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSetupPath      = "config/setup.json"
	defaultSourceKind     = "redcap"
	defaultRecordElement  = "item"
	defaultOutputDir      = "out"
	defaultArtifactPrefix = "artifact-"
	defaultWorkers        = 1
	defaultTimeout        = 2 * time.Minute
	defaultMongoDatabase  = "subjectmap"
	defaultMongoColl      = "run_reports"
)

// Source kinds.
const (
	SourceREDCap = "redcap"
	SourceSQL    = "sql"
	SourceFile   = "file"
)

// Setup holds all configuration for one run.
type Setup struct {
	REDCapURI string `mapstructure:"redcap_uri"`
	Token     string `mapstructure:"token"`

	Source SourceConfig `mapstructure:"source"`

	SourceSchemaFile string `mapstructure:"source_data_schema_file"`
	CleanRuleset     string `mapstructure:"clean_ruleset_file"`
	GroupRuleset     string `mapstructure:"group_ruleset_file"`
	SiteCatalog      string `mapstructure:"site_catalog_gsmi"`

	SystemLogFile string `mapstructure:"system_log_file"`
	LogLevel      string `mapstructure:"log_level"`

	OutputDir      string `mapstructure:"output_dir"`
	ArtifactPrefix string `mapstructure:"artifact_prefix"`

	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Report   ReportConfig   `mapstructure:"report"`
	Archive  ArchiveConfig  `mapstructure:"archive"`

	ConfigPath string `mapstructure:"-"`
}

type SourceConfig struct {
	Kind                string        `mapstructure:"kind"`
	File                string        `mapstructure:"file"`
	SQLConnectionString string        `mapstructure:"sql_connection_string"`
	SQLQuery            string        `mapstructure:"sql_query"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

type DispatchConfig struct {
	Workers               int           `mapstructure:"workers"`
	Timeout               time.Duration `mapstructure:"timeout"`
	KnownHosts            string        `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key"`
	AWSRegion             string        `mapstructure:"aws_region"`
}

type ReportConfig struct {
	File                  string `mapstructure:"file"`
	OutcomeLog            string `mapstructure:"outcome_log"`
	MongoConnectionString string `mapstructure:"mongo_connection_string"`
	MongoDatabase         string `mapstructure:"mongo_database"`
	MongoCollection       string `mapstructure:"mongo_collection"`
}

type ArchiveConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Load reads the setup document at path (JSON or YAML), applies SMI_*
// environment overrides and validates required parameters and files.
func Load(path string) (*Setup, error) {
	v := viper.New()
	v.SetEnvPrefix("SMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("source.kind", defaultSourceKind)
	v.SetDefault("source.timeout", time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("output_dir", defaultOutputDir)
	v.SetDefault("artifact_prefix", defaultArtifactPrefix)
	v.SetDefault("dispatch.workers", defaultWorkers)
	v.SetDefault("dispatch.timeout", defaultTimeout)
	v.SetDefault("dispatch.insecure_ignore_host_key", false)
	v.SetDefault("report.mongo_database", defaultMongoDatabase)
	v.SetDefault("report.mongo_collection", defaultMongoColl)
	v.SetDefault("archive.use_ssl", true)

	// AutomaticEnv only applies to keys viper knows about.
	for _, key := range []string{
		"redcap_uri", "token", "source.file", "source.sql_connection_string",
		"source.sql_query", "source_data_schema_file", "clean_ruleset_file",
		"group_ruleset_file", "site_catalog_gsmi", "system_log_file",
		"dispatch.known_hosts", "dispatch.aws_region", "report.file",
		"report.outcome_log", "report.mongo_connection_string",
		"archive.endpoint", "archive.bucket", "archive.access_key", "archive.secret_key",
	} {
		v.SetDefault(key, "")
	}

	if path == "" {
		path = DefaultSetupPath
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read setup file '%s': %w", path, err)
		}
	}

	var setup Setup
	if err := v.Unmarshal(&setup); err != nil {
		return nil, fmt.Errorf("failed to parse setup file '%s': %w", path, err)
	}
	setup.ConfigPath = v.ConfigFileUsed()

	if err := setup.Validate(); err != nil {
		return nil, err
	}
	return &setup, nil
}

// Validate checks required parameters and that the required files exist.
func (s *Setup) Validate() error {
	required := map[string]string{
		"clean_ruleset_file": s.CleanRuleset,
		"group_ruleset_file": s.GroupRuleset,
		"site_catalog_gsmi":  s.SiteCatalog,
	}
	switch s.Source.Kind {
	case SourceREDCap:
		required["redcap_uri"] = s.REDCapURI
		required["token"] = s.Token
	case SourceSQL:
		required["source.sql_connection_string"] = s.Source.SQLConnectionString
		required["source.sql_query"] = s.Source.SQLQuery
	case SourceFile:
		required["source.file"] = s.Source.File
	default:
		return fmt.Errorf("setup: unknown source.kind %q", s.Source.Kind)
	}

	var missing []string
	for name, val := range required {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("setup: required parameter(s) not set: %s", strings.Join(missing, ", "))
	}

	files := map[string]string{
		"clean_ruleset_file":      s.CleanRuleset,
		"group_ruleset_file":      s.GroupRuleset,
		"source_data_schema_file": s.SourceSchemaFile,
	}
	for name, p := range files {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("setup: %s file '%s' does not exist", name, p)
		}
	}

	if s.SystemLogFile != "" {
		if _, err := os.Stat(filepath.Dir(s.SystemLogFile)); err != nil {
			return fmt.Errorf("setup: system_log_file directory for '%s' does not exist", s.SystemLogFile)
		}
	}

	if s.Dispatch.Workers < 1 {
		s.Dispatch.Workers = defaultWorkers
	}
	if s.Dispatch.Timeout <= 0 {
		s.Dispatch.Timeout = defaultTimeout
	}
	return nil
}
