package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dkoosis/commitq/pkg/job"
)

// Constants for default values.
const (
	DefaultTestCommand      = "pytest tests/"
	DefaultTheme            = "default"
	DefaultFormat           = "auto"
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned when no config file can be located.
	ErrNotFound = errors.New("config file not found")
	// ErrInvalid is returned for unreadable, malformed or incomplete config.
	ErrInvalid = errors.New("invalid config")
)

// requiredKeys must be present and non-null in every config file.
var requiredKeys = []string{"ws_url", "repo_url", "user_id", "chat_id", "project_type", "commits"}

// Config is the resolved configuration for one run.
type Config struct {
	WSURL            string        `yaml:"ws_url"`
	RepoURL          string        `yaml:"repo_url"`
	UserID           job.ID        `yaml:"user_id"`
	ChatID           job.ID        `yaml:"chat_id"`
	ProjectType      string        `yaml:"project_type"`
	Commits          []string      `yaml:"commits"`
	TestCommand      string        `yaml:"-"`
	Theme            string        `yaml:"theme"`
	Format           string        `yaml:"format"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	Debug            bool          `yaml:"debug"`

	// Path is the file the config was read from.
	Path string `yaml:"-"`
}

// Template returns the request fields shared by every commit.
func (c *Config) Template() job.Template {
	return job.Template{
		UserID:      c.UserID,
		ChatID:      c.ChatID,
		RepoURL:     c.RepoURL,
		ProjectType: c.ProjectType,
		TestCommand: c.TestCommand,
	}
}

// LoadFile reads and validates the config file at path. Files ending in
// .json are always decoded as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, path, err)
	}
	parse := Parse
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parse = parseJSON
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes and validates config bytes. A document whose first
// non-space byte is '{' is read as JSON, anything else as YAML.
func Parse(data []byte) (*Config, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(data)
	}
	return parseYAML(data)
}

// jsonFile mirrors the config keys for encoding/json. Repeated keys resolve
// to the last occurrence.
type jsonFile struct {
	WSURL            string   `json:"ws_url"`
	RepoURL          string   `json:"repo_url"`
	UserID           job.ID   `json:"user_id"`
	ChatID           job.ID   `json:"chat_id"`
	ProjectType      string   `json:"project_type"`
	Commits          []string `json:"commits"`
	TestCommand      *string  `json:"test_command"`
	Theme            string   `json:"theme"`
	Format           string   `json:"format"`
	HandshakeTimeout string   `json:"handshake_timeout"`
	Debug            bool     `json:"debug"`
}

func parseJSON(data []byte) (*Config, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalid)
	}
	if err := checkRequired(func(k string) bool {
		raw, ok := fields[k]
		return ok && string(bytes.TrimSpace(raw)) != "null"
	}); err != nil {
		return nil, err
	}

	var f jsonFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := &Config{
		WSURL:            f.WSURL,
		RepoURL:          f.RepoURL,
		UserID:           f.UserID,
		ChatID:           f.ChatID,
		ProjectType:      f.ProjectType,
		Commits:          f.Commits,
		Theme:            DefaultTheme,
		Format:           DefaultFormat,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Debug:            f.Debug,
		TestCommand:      DefaultTestCommand,
	}
	if f.Theme != "" {
		cfg.Theme = f.Theme
	}
	if f.Format != "" {
		cfg.Format = f.Format
	}
	if f.HandshakeTimeout != "" {
		d, err := time.ParseDuration(f.HandshakeTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: handshake_timeout: %v", ErrInvalid, err)
		}
		cfg.HandshakeTimeout = d
	}
	if _, ok := fields["test_command"]; ok {
		cfg.TestCommand = ""
		if f.TestCommand != nil {
			cfg.TestCommand = *f.TestCommand
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseYAML(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalid)
	}
	keys := mappingKeys(root.Content[0])
	if err := checkRequired(func(k string) bool {
		n, ok := keys[k]
		return ok && !isNull(n)
	}); err != nil {
		return nil, err
	}

	cfg := &Config{
		Theme:            DefaultTheme,
		Format:           DefaultFormat,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	if err := root.Content[0].Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg.TestCommand = DefaultTestCommand
	if n, ok := keys["test_command"]; ok {
		cfg.TestCommand = ""
		if !isNull(n) {
			if err := n.Decode(&cfg.TestCommand); err != nil {
				return nil, fmt.Errorf("%w: test_command: %v", ErrInvalid, err)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkRequired reports every required key for which present is false.
func checkRequired(present func(key string) bool) error {
	var missing []string
	for _, k := range requiredKeys {
		if !present(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validate() error {
	if err := validateWSURL(c.WSURL); err != nil {
		return err
	}
	for i, commit := range c.Commits {
		if strings.TrimSpace(commit) == "" {
			return fmt.Errorf("%w: commits[%d] is empty", ErrInvalid, i)
		}
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout must be positive", ErrInvalid)
	}
	return nil
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: ws_url: %v", ErrInvalid, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: ws_url must use ws:// or wss://, got %q", ErrInvalid, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: ws_url has no host", ErrInvalid)
	}
	return nil
}

func mappingKeys(m *yaml.Node) map[string]*yaml.Node {
	keys := make(map[string]*yaml.Node, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		keys[m.Content[i].Value] = m.Content[i+1]
	}
	return keys
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// candidatePaths lists the config locations tried when no path is given,
// in order.
func candidatePaths() []string {
	paths := []string{"config.json", ".commitq.yaml"}
	configHome, err := os.UserConfigDir()
	if err == nil && configHome != "" && configHome != "/" {
		paths = append(paths, filepath.Join(configHome, "commitq", "config.yaml"))
	}
	return paths
}

// findConfigPath returns the first existing candidate, or "".
func findConfigPath() string {
	for _, p := range candidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
