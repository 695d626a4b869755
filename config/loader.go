package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CAPACITY_"

// legacyEnv maps unprefixed variable names used by existing deployments.
var legacyEnv = map[string]string{
	"JIRA_URL":              "jira.url",
	"JIRA_EMAIL":            "jira.email",
	"JIRA_API_TOKEN":        "jira.api_token",
	"TEMPO_API_TOKEN":       "tempo.api_token",
	"DATABASE_URL":          "database_path",
	"SYNC_INTERVAL_MINUTES": "sync.interval_minutes",
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file: path, or CAPACITY_CONFIG when path is empty
//  3. legacy unprefixed env (JIRA_URL, ...)
//  4. env with prefix CAPACITY_; "__" separates nested keys (CAPACITY_JIRA__URL)
//
// A .env file in the working directory is read first if present; it never
// overrides variables already set in the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, err
	}

	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, err
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	cfg.DatabasePath = sqlitePath(cfg.DatabasePath)
	if cfg.Tempo.BaseURL == "" {
		cfg.Tempo.BaseURL = cfg.Jira.URL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sqlitePath accepts both a bare path and a sqlite:/// URL.
func sqlitePath(s string) string {
	return strings.TrimPrefix(s, "sqlite:///")
}
