package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTerminology(); err != nil {
		return err
	}
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateBatching(); err != nil {
		return err
	}
	if err := c.validateStyles(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/subfix/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set SUBFIX_API_KEY env var or edit %s (create with 'subfix config init')", defaultPath)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.MaxOutputTokens < 0 {
		return errors.New("llm.max_output_tokens must not be negative")
	}
	return nil
}

func (c *Config) validateTerminology() error {
	if !c.Terminology.Enabled {
		return nil
	}
	if c.Terminology.MergePolicy != "lock" {
		return fmt.Errorf("terminology.merge_policy: unsupported value %q (only \"lock\" is available)", c.Terminology.MergePolicy)
	}
	if c.Terminology.MinConfidence < 0 || c.Terminology.MinConfidence > 1 {
		return errors.New("terminology.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.BudgetTokens < 0 {
		return errors.New("memory.budget_tokens must not be negative")
	}
	if c.Memory.MaxLearned < 0 {
		return errors.New("memory.max_learned must not be negative")
	}
	if c.Memory.CompressKeepEntries < 0 {
		return errors.New("memory.compress_keep_entries must not be negative")
	}
	return nil
}

func (c *Config) validateBatching() error {
	switch c.Batching.Mode {
	case "fixed":
		if c.Batching.Count <= 0 {
			return errors.New("batching.count must be positive when batching.mode is \"fixed\"")
		}
	case "token":
		if c.Batching.SoftLimit <= 0 {
			return errors.New("batching.soft_limit must be positive when batching.mode is \"token\"")
		}
		if c.Batching.SafetyMargin < 0 {
			return errors.New("batching.safety_margin must not be negative")
		}
		if c.Batching.SafetyMargin >= c.Batching.SoftLimit {
			return errors.New("batching.safety_margin must be smaller than batching.soft_limit")
		}
	default:
		return fmt.Errorf("batching.mode: unsupported value %q (use \"fixed\" or \"token\")", c.Batching.Mode)
	}
	return nil
}

func (c *Config) validateStyles() error {
	if c.Styles.Source == "" {
		return errors.New("styles.source must be set")
	}
	if c.Styles.Target == "" {
		return errors.New("styles.target must be set")
	}
	return nil
}

func (c *Config) validatePricing() error {
	if c.Pricing.PromptPer1K < 0 || c.Pricing.CompletionPer1K < 0 {
		return errors.New("pricing values must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use \"console\" or \"json\")", c.Logging.Format)
	}
	return nil
}
