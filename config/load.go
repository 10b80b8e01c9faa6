package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/docstore/store"
)

// EnvPrefix prefixes environment variables, e.g. DOCSTORE_ENDPOINT.
const EnvPrefix = "DOCSTORE"

// DefaultDotEnv is read by Load when no dotenv path is given.
const DefaultDotEnv = ".env"

var settingKeys = []string{
	KeyEndpoint,
	KeyKey,
	KeySecret,
	KeyDatabase,
	KeyPreferredRegions,
	KeySlowOperationThreshold,
	KeyTooManyRowsThreshold,
}

// Load reads settings from the YAML file at path (optional when empty), a
// dotenv file and DOCSTORE_* environment variables. Environment variables
// win over dotenv entries, which win over the file. preferred_regions may
// be given as a comma-separated list.
//
// The dotenv file is dotenv[0] if given, otherwise DefaultDotEnv when it
// exists. Its entries never modify the process environment.
func Load(path string, dotenv ...string) (store.Config, error) {
	v := viper.New()
	defaults := store.DefaultConfig()
	v.SetDefault(KeyEndpoint, "")
	v.SetDefault(KeyKey, "")
	v.SetDefault(KeySecret, "")
	v.SetDefault(KeyDatabase, "")
	v.SetDefault(KeyPreferredRegions, []string{})
	v.SetDefault(KeySlowOperationThreshold, defaults.SlowOperationThreshold)
	v.SetDefault(KeyTooManyRowsThreshold, defaults.TooManyRowsThreshold)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return store.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	env, err := readDotEnv(dotenv)
	if err != nil {
		return store.Config{}, err
	}
	for _, key := range settingKeys {
		name := envName(key)
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		if value, ok := env[name]; ok {
			v.Set(key, value)
		}
	}

	var cfg store.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return store.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.PreferredRegions = trimAll(cfg.PreferredRegions)
	return cfg, nil
}

func readDotEnv(paths []string) (map[string]string, error) {
	path := DefaultDotEnv
	explicit := len(paths) > 0 && paths[0] != ""
	if explicit {
		path = paths[0]
	}
	env, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dotenv %s: %w", path, err)
	}
	return env, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Redacted returns a copy of cfg safe to print.
func Redacted(cfg store.Config) store.Config {
	if cfg.Secret != "" {
		cfg.Secret = "********"
	}
	return cfg
}

// Marshal renders cfg as YAML with the secret redacted.
func Marshal(cfg store.Config) ([]byte, error) {
	out, err := yaml.Marshal(Redacted(cfg))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
