package config

import (
	"os"
	"strings"
)

// normalize applies environment fallbacks and expands path fields. Runs
// before Validate so validation sees final values.
func (c *Config) normalize() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		if value, ok := os.LookupEnv("SUBFIX_API_KEY"); ok {
			c.LLM.APIKey = value
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = value
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Terminology.MergePolicy = strings.ToLower(strings.TrimSpace(c.Terminology.MergePolicy))
	c.Batching.Mode = strings.ToLower(strings.TrimSpace(c.Batching.Mode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	for _, field := range []*string{
		&c.Paths.DataDir,
		&c.Prompt.TemplatePath,
		&c.Prompt.InstructionsPath,
	} {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}
