// Package config discovers and loads the server configuration file and the
// single-cluster environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/opensearch-mcp/opensearch"
	"github.com/petal-labs/opensearch-mcp/tool"
)

const (
	projectConfigName = "opensearch-mcp.yaml"
	homeConfigDir     = ".opensearch-mcp"
	homeConfigName    = "config.yaml"
)

// Environment variables read in single mode.
const (
	EnvURL       = "OPENSEARCH_URL"
	EnvUsername  = "OPENSEARCH_USERNAME"
	EnvPassword  = "OPENSEARCH_PASSWORD"
	EnvNoAuth    = "OPENSEARCH_NO_AUTH"
	EnvSSLVerify = "OPENSEARCH_SSL_VERIFY"
	EnvTimeout   = "OPENSEARCH_TIMEOUT"
)

// File is the shape of opensearch-mcp.yaml.
type File struct {
	Clusters     map[string]ClusterEntry   `yaml:"clusters"`
	Tools        map[string]map[string]any `yaml:"tools"`
	ToolCategory map[string][]string       `yaml:"tool_category"`
	ToolFilters  ToolFilters               `yaml:"tool_filters"`
}

// ClusterEntry declares one cluster for multi mode. String values support
// ${VAR} expansion.
type ClusterEntry struct {
	URL        string `yaml:"opensearch_url"`
	Username   string `yaml:"opensearch_username,omitempty"`
	Password   string `yaml:"opensearch_password,omitempty"`
	NoAuth     bool   `yaml:"opensearch_no_auth,omitempty"`
	SSLVerify  *bool  `yaml:"opensearch_ssl_verify,omitempty"`
	Timeout    int    `yaml:"timeout,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// ToolFilters is the tool_filters section.
type ToolFilters struct {
	EnabledTools       []string `yaml:"enabled_tools"`
	DisabledTools      []string `yaml:"disabled_tools"`
	EnabledCategories  []string `yaml:"enabled_categories"`
	DisabledCategories []string `yaml:"disabled_categories"`
}

// DiscoverPath resolves the config file with first-match semantics.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("config: resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("config: resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config: file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("config: checking %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads and parses path. An empty path yields an empty File.
func Load(path string) (File, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return File{}, nil
	}
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(clean)
	if err != nil {
		return File{}, fmt.Errorf("config: reading %q: %w", clean, err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("config: parsing %q: %w", clean, err)
	}
	return file, nil
}

// Overrides validates the tools section.
func (f File) Overrides() (map[string]tool.Override, error) {
	overrides, err := tool.DecodeOverrides(f.Tools)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return overrides, nil
}

// FilterRules converts tool_filters and tool_category into filter rules.
func (f File) FilterRules() tool.FilterRules {
	return tool.FilterRules{
		EnabledTools:       f.ToolFilters.EnabledTools,
		DisabledTools:      f.ToolFilters.DisabledTools,
		EnabledCategories:  f.ToolFilters.EnabledCategories,
		DisabledCategories: f.ToolFilters.DisabledCategories,
		Categories:         f.ToolCategory,
	}
}

// ClusterConfigs returns the clusters section sorted by name.
func (f File) ClusterConfigs() ([]opensearch.ClusterConfig, error) {
	names := make([]string, 0, len(f.Clusters))
	for name := range f.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]opensearch.ClusterConfig, 0, len(names))
	for _, name := range names {
		entry := f.Clusters[name]
		url := strings.TrimSpace(expandEnvValue(entry.URL))
		if url == "" {
			return nil, fmt.Errorf("config: cluster %q: opensearch_url is required", name)
		}
		if entry.Timeout < 0 {
			return nil, fmt.Errorf("config: cluster %q: timeout must not be negative", name)
		}
		sslVerify := true
		if entry.SSLVerify != nil {
			sslVerify = *entry.SSLVerify
		}
		out = append(out, opensearch.ClusterConfig{
			Name:      name,
			URL:       url,
			Username:  expandEnvValue(entry.Username),
			Password:  expandEnvValue(entry.Password),
			NoAuth:    entry.NoAuth,
			SSLVerify: sslVerify,
			Timeout:   time.Duration(entry.Timeout) * time.Second,
			Retry:     opensearch.RetryPolicy{MaxAttempts: entry.MaxRetries, Backoff: opensearch.DefaultRetryPolicy.Backoff},
		})
	}
	return out, nil
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set are kept.
func LoadDotEnv(path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return nil
	}
	if _, err := os.Stat(clean); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(clean); err != nil {
		return fmt.Errorf("config: loading %q: %w", clean, err)
	}
	return nil
}

// ClusterFromEnv builds the single-mode cluster from lookup, usually os.Getenv.
func ClusterFromEnv(lookup func(string) string) (opensearch.ClusterConfig, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	url := strings.TrimSpace(lookup(EnvURL))
	if url == "" {
		return opensearch.ClusterConfig{}, fmt.Errorf("config: %s is required in single mode", EnvURL)
	}

	noAuth, err := envBool(lookup, EnvNoAuth, false)
	if err != nil {
		return opensearch.ClusterConfig{}, err
	}
	sslVerify, err := envBool(lookup, EnvSSLVerify, true)
	if err != nil {
		return opensearch.ClusterConfig{}, err
	}
	var timeout time.Duration
	if raw := strings.TrimSpace(lookup(EnvTimeout)); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return opensearch.ClusterConfig{}, fmt.Errorf("config: %s must be a non-negative number of seconds, got %q", EnvTimeout, raw)
		}
		timeout = time.Duration(seconds) * time.Second
	}

	return opensearch.ClusterConfig{
		Name:      "default",
		URL:       url,
		Username:  lookup(EnvUsername),
		Password:  lookup(EnvPassword),
		NoAuth:    noAuth,
		SSLVerify: sslVerify,
		Timeout:   timeout,
	}, nil
}

func envBool(lookup func(string) string, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(lookup(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be true or false, got %q", key, raw)
	}
	return value, nil
}

func expandEnvValue(value string) string {
	return os.ExpandEnv(value)
}
