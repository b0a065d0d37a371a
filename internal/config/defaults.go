package config

const (
	defaultDataDir             = "~/.local/share/subfix"
	defaultBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel               = "deepseek/deepseek-chat"
	defaultTimeoutSeconds      = 240
	defaultMergePolicy         = "lock"
	defaultMinConfidence       = 0.6
	defaultMemoryBudget        = 4000
	defaultMaxLearned          = 100
	defaultCompressKeepEntries = 30
	defaultBatchMode           = "fixed"
	defaultBatchCount          = 50
	defaultSoftLimit           = 60000
	defaultSafetyMargin        = 1000
	defaultSourceStyle         = "english"
	defaultTargetStyle         = "chinese"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LLM: LLM{
			BaseURL:        defaultBaseURL,
			Model:          defaultModel,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Terminology: Terminology{
			Enabled:       true,
			MergePolicy:   defaultMergePolicy,
			MinConfidence: defaultMinConfidence,
		},
		Memory: Memory{
			BudgetTokens:        defaultMemoryBudget,
			MaxLearned:          defaultMaxLearned,
			CompressKeepEntries: defaultCompressKeepEntries,
		},
		Batching: Batching{
			Mode:         defaultBatchMode,
			Count:        defaultBatchCount,
			SoftLimit:    defaultSoftLimit,
			SafetyMargin: defaultSafetyMargin,
		},
		Styles: Styles{
			Source: defaultSourceStyle,
			Target: defaultTargetStyle,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
