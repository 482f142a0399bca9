package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"strider/internal/history"
	"strider/internal/provider"
)

const summaryInstruction = `You are compressing the execution history of an autonomous browser agent into a memory summary.

Write a concise summary of the agent's work from step %d to step %d. The summary must preserve:

1. The task objective the agent is pursuing
2. Progress made so far and what remains
3. Concrete facts discovered: URLs, identifiers, figures, extracted data
4. The sequence of actions taken, in order
5. Errors encountered and how the agent responded
6. The current page and operational context

Keep exact figures, URLs and error text unchanged. Keep events in chronological order. Output only the summary and nothing else.`

const summaryRequest = "Generate a summary of the above agent execution history."

// HistoryManager is the slice of the message manager the summarizer
// needs: a consistent read of the history, the shared token counter,
// and the single rewrite entry point.
type HistoryManager interface {
	Messages() []history.ManagedMessage
	CurrentTokens() int
	CountTokens(msg provider.Message) int
	Rewrite(messages []history.ManagedMessage, tokens int) error
}

// Summarizer periodically replaces the accumulated step messages of
// one agent's history with a single model-written summary. It is
// driven synchronously by the agent loop, once per completed step;
// nothing here is safe for concurrent use against the same history.
type Summarizer struct {
	settings Settings
	manager  HistoryManager
	provider provider.Provider
	model    string
	log      zerolog.Logger
}

// NewSummarizer creates a Summarizer bound to one history manager.
func NewSummarizer(settings Settings, manager HistoryManager, prov provider.Provider, model string, log zerolog.Logger) (*Summarizer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if manager == nil {
		return nil, ErrNoManager
	}
	if prov == nil {
		return nil, ErrNoProvider
	}
	return &Summarizer{
		settings: settings,
		manager:  manager,
		provider: prov,
		model:    model,
		log:      log,
	}, nil
}

// SummarizeIfDue compacts the step history into one memory entry when
// currentStep lands on the configured cadence. Step 0 never triggers.
// Any failure leaves the history untouched; the next cadence is the
// retry.
func (s *Summarizer) SummarizeIfDue(ctx context.Context, currentStep int) {
	if !s.settings.EnableSummarization {
		return
	}
	if currentStep <= 0 || currentStep%s.settings.SummarizeEveryNSteps != 0 {
		return
	}

	if err := s.Summarize(ctx, currentStep); err != nil {
		switch {
		case errors.Is(err, ErrNothingToSummarize):
			s.log.Debug().
				Int("step", currentStep).
				Msg("skipping summarization, not enough step messages")
		case errors.Is(err, history.ErrTokenMismatch):
			s.log.Error().
				Err(err).
				Int("step", currentStep).
				Msg("history rewrite rejected, keeping full history")
		default:
			s.log.Warn().
				Err(err).
				Int("step", currentStep).
				Msg("summarization failed, keeping full history")
		}
	}
}

// Summarize folds all eligible step entries into a single memory entry
// regardless of cadence. The agent loop uses this directly to recover
// when the model reports its context window exceeded.
func (s *Summarizer) Summarize(ctx context.Context, currentStep int) error {
	retained, eligible := partition(s.manager.Messages())
	if len(eligible) <= 1 {
		return ErrNothingToSummarize
	}

	summary, err := s.createSummary(ctx, eligible, currentStep)
	if err != nil {
		return err
	}

	if err := s.apply(retained, eligible, summary); err != nil {
		return err
	}

	s.log.Info().
		Int("step", currentStep).
		Int("summarized", len(eligible)).
		Int("current_tokens", s.manager.CurrentTokens()).
		Msg("compacted step history into memory summary")
	return nil
}

// partition splits entries into retained (init and memory) and
// eligible (everything else), preserving original order on both sides.
func partition(entries []history.ManagedMessage) (retained, eligible []history.ManagedMessage) {
	for _, entry := range entries {
		if entry.Metadata.Type.Retained() {
			retained = append(retained, entry)
		} else {
			eligible = append(eligible, entry)
		}
	}
	return retained, eligible
}

// createSummary asks the backend to compress the eligible window into
// a single narrative. One round trip; no retry within a trigger.
func (s *Summarizer) createSummary(ctx context.Context, eligible []history.ManagedMessage, currentStep int) (string, error) {
	from := currentStep - s.settings.SummarizeEveryNSteps

	msgs := make([]provider.Message, 0, len(eligible)+2)
	msgs = append(msgs, provider.Message{
		Role:    provider.RoleSystem,
		Content: fmt.Sprintf(summaryInstruction, from, currentStep),
	})
	for _, entry := range eligible {
		msgs = append(msgs, entry.Message)
	}
	msgs = append(msgs, provider.Message{
		Role:    provider.RoleUser,
		Content: summaryRequest,
	})

	resp, err := s.provider.Chat(ctx, provider.ChatRequest{
		Model:    s.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("compaction: summary call: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptySummary
	}
	return resp.Content, nil
}

// apply replaces the eligible window with a single memory entry. The
// summary is costed with the manager's own counter and the running
// total is updated by exact arithmetic; the manager cross-checks the
// total against the new list and rejects the rewrite on drift.
func (s *Summarizer) apply(retained, eligible []history.ManagedMessage, summary string) error {
	msg := provider.Message{Role: provider.RoleUser, Content: summary}
	entry := history.ManagedMessage{
		Message:  msg,
		Metadata: history.Metadata{Tokens: s.manager.CountTokens(msg), Type: history.TypeMemory},
	}

	removed := 0
	for _, e := range eligible {
		removed += e.Metadata.Tokens
	}

	next := make([]history.ManagedMessage, 0, len(retained)+1)
	next = append(next, retained...)
	next = append(next, entry)

	total := s.manager.CurrentTokens() - removed + entry.Metadata.Tokens
	return s.manager.Rewrite(next, total)
}
