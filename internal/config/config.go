package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// LLM contains connection settings for the refinement model.
type LLM struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	MaxOutputTokens int    `toml:"max_output_tokens"`
}

// Terminology controls the cross-batch terminology pass.
type Terminology struct {
	Enabled       bool    `toml:"enabled"`
	MergePolicy   string  `toml:"merge_policy"`
	MinConfidence float64 `toml:"min_confidence"`
}

// Memory controls the size and compression of the cross-batch memory.
type Memory struct {
	BudgetTokens        int `toml:"budget_tokens"`
	MaxLearned          int `toml:"max_learned"`
	CompressKeepEntries int `toml:"compress_keep_entries"`
}

// Batching selects and tunes the batch splitting policy.
type Batching struct {
	Mode         string `toml:"mode"`
	Count        int    `toml:"count"`
	SoftLimit    int    `toml:"soft_limit"`
	SafetyMargin int    `toml:"safety_margin"`
}

// Pricing holds per-1k-token prices used for the cost report. Zero disables
// cost estimation.
type Pricing struct {
	PromptPer1K     float64 `toml:"prompt_per_1k"`
	CompletionPer1K float64 `toml:"completion_per_1k"`
}

// Styles names the ASS styles holding source and target dialogue.
type Styles struct {
	Source string `toml:"source"`
	Target string `toml:"target"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Prompt points at the optional template and instruction files.
type Prompt struct {
	TemplatePath     string `toml:"template_path"`
	InstructionsPath string `toml:"instructions_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values.
type Config struct {
	LLM         LLM         `toml:"llm"`
	Terminology Terminology `toml:"terminology"`
	Memory      Memory      `toml:"memory"`
	Batching    Batching    `toml:"batching"`
	Pricing     Pricing     `toml:"pricing"`
	Styles      Styles      `toml:"styles"`
	Paths       Paths       `toml:"paths"`
	Prompt      Prompt      `toml:"prompt"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subfix/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment fallbacks applied and path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("subfix.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data directory used for logs and the
// checkpoint database.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if err := os.MkdirAll(c.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.DataDir, err)
	}
	return nil
}

// CheckpointPath returns the checkpoint database location.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Paths.DataDir, "checkpoint.db")
}

// LogPath returns the log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.DataDir, "subfix.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
