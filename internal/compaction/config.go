package compaction

// Settings holds memory summarization configuration. Values are
// supplied at summarizer construction and immutable afterwards.
type Settings struct {
	// EnableSummarization toggles periodic compaction.
	// Default: true
	EnableSummarization bool `json:"enable_summarization" mapstructure:"enable_summarization"`

	// SummarizeEveryNSteps is the step cadence between compactions.
	// Must be positive. Default: 10
	SummarizeEveryNSteps int `json:"summarize_every_n_steps" mapstructure:"summarize_every_n_steps"`
}

// DefaultSettings returns Settings with default values.
func DefaultSettings() Settings {
	return Settings{
		EnableSummarization:  true,
		SummarizeEveryNSteps: 10,
	}
}

// Validate checks that the cadence is positive.
func (s Settings) Validate() error {
	if s.SummarizeEveryNSteps <= 0 {
		return ErrInvalidCadence
	}
	return nil
}
