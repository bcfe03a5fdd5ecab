package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/holyfata/mermaid-grammer-inspector-mcp/internal/logging"

	"github.com/adrg/xdg"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const AppName = "mermaid-inspector" // application name used for config and cache directories

const (
	DefaultPort          = 3000
	DefaultHost          = "0.0.0.0"
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 4

	schemaURL = "https://mermaid-inspector.local/config.schema.json"
)

// Environment overrides, applied on top of the config file.
const (
	EnvRenderer = "MERMAID_INSPECTOR_RENDERER"
	EnvWorkDir  = "MERMAID_INSPECTOR_WORK_DIR"
	EnvTimeout  = "MERMAID_INSPECTOR_TIMEOUT"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

//go:embed config.schema.json
var schemaJSON []byte

// Config holds the server configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Renderer RendererConfig `yaml:"renderer"`
	// Timeout bounds one renderer run; zero disables it.
	Timeout Duration `yaml:"timeout"`
	// WorkDir holds stage directories and, in debug mode, nothing else.
	WorkDir       string     `yaml:"work_dir"`
	KeepArtifacts bool       `yaml:"keep_artifacts"`
	MaxConcurrent int        `yaml:"max_concurrent"`
	HTTP          HTTPConfig `yaml:"http"`
}

// RendererConfig names the Mermaid CLI invocation.
type RendererConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// Argv returns the command followed by its leading arguments.
func (r RendererConfig) Argv() []string {
	return append([]string{r.Command}, r.Args...)
}

// ParseRenderer splits a command line such as "npx -y mmdc" on whitespace.
func ParseRenderer(raw string) (RendererConfig, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return RendererConfig{}, false
	}
	return RendererConfig{Command: fields[0], Args: fields[1:]}, true
}

// HTTPConfig configures the streamable HTTP transport.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Duration is a time.Duration written as "60s" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ParsePort parses a port flag value, falling back to DefaultPort when the
// value is not a positive integer.
func ParsePort(raw string) int {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || port <= 0 || port > 65535 {
		return DefaultPort
	}
	return port
}

// DefaultWorkDir returns the default working directory in the user's cache.
func DefaultWorkDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1.0",
		Renderer: RendererConfig{
			Command: "npx",
			Args:    []string{"mmdc"},
		},
		Timeout:       Duration(DefaultTimeout),
		WorkDir:       DefaultWorkDir(),
		MaxConcurrent: DefaultMaxConcurrent,
		HTTP: HTTPConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// StageDir is where per-check stage directories are created.
func (c *Config) StageDir() string {
	return filepath.Join(c.WorkDir, "stage")
}

// ConfigPath returns the standard config file path for the current platform
func ConfigPath() string {
	configPath := filepath.Join(xdg.ConfigHome, AppName, "config.yaml")

	logging.Debug("Determined config path", "path", configPath)
	return configPath
}

// FindConfigFile returns the path to the config file, and whether it exists.
func FindConfigFile() (string, bool) {
	primary := ConfigPath()
	if _, err := os.Stat(primary); err == nil {
		logging.Debug("Config found at primary path", "path", primary)
		return primary, true
	}
	return primary, false
}

// Load loads the config from the standard location. A missing file is not an
// error; the defaults are returned instead.
func Load() (*Config, error) {
	configPath, exists := FindConfigFile()
	if !exists {
		logging.Debug("No config file, using defaults", "path", configPath)
		cfg := DefaultConfig()
		return &cfg, nil
	}
	return LoadFrom(configPath)
}

// LoadFrom loads config from a specific path. Fields missing from the file
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	logging.Debug("Reading config file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// validateDocument checks the raw YAML against the embedded JSON Schema.
func validateDocument(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if doc == nil {
		// empty file
		return nil
	}

	// Round-trip through JSON so numbers and maps have the shapes the validator expects.
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to read config schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to load config schema: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	return schema, nil
}

// ApplyEnv overrides fields from MERMAID_INSPECTOR_* environment variables.
func (c *Config) ApplyEnv() error {
	if raw := strings.TrimSpace(os.Getenv(EnvRenderer)); raw != "" {
		if r, ok := ParseRenderer(raw); ok {
			c.Renderer = r
		}
	}
	if dir := strings.TrimSpace(os.Getenv(EnvWorkDir)); dir != "" {
		c.WorkDir = dir
	}
	if raw := strings.TrimSpace(os.Getenv(EnvTimeout)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvTimeout, err)
		}
		c.Timeout = Duration(d)
	}
	return nil
}

// Validate checks invariants that the schema cannot see, such as values set by flags.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Renderer.Command) == "" {
		return fmt.Errorf("%w: renderer command cannot be empty", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("%w: max_concurrent cannot be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return fmt.Errorf("%w: work_dir cannot be empty", ErrInvalidConfig)
	}
	return nil
}

// Save writes the config to the standard location
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to a specific path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
