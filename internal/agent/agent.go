// Package agent runs the browse loop: observe the page, ask the model
// for one action, perform it, and let the compactor fold old steps
// into summary memories at each step boundary.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strider/internal/browser"
	"strider/internal/compaction"
	"strider/internal/history"
	"strider/internal/profile"
	"strider/internal/provider"
	"strider/internal/storage"
)

// Agent executes one browse run against a single driver and history.
// The history is seeded at run start, so create a fresh Agent and
// history manager for every run; nothing here is safe for concurrent
// use.
type Agent struct {
	config     Config
	provider   provider.Provider
	driver     browser.Driver
	history    *history.Manager
	summarizer *compaction.Summarizer
	log        zerolog.Logger

	// Optional components
	profile *profile.Store
	db      *storage.DB
}

// RunResult is the final outcome of a run.
type RunResult struct {
	RunID   string `json:"run_id,omitempty"`
	Task    string `json:"task"`
	Status  string `json:"status"`
	Outcome string `json:"outcome"`
	Steps   int    `json:"steps"`
	Usage   Usage  `json:"usage"`
}

// New creates an Agent from its required collaborators.
func New(cfg Config, prov provider.Provider, driver browser.Driver, hist *history.Manager, summarizer *compaction.Summarizer, log zerolog.Logger) *Agent {
	return &Agent{
		config:     cfg.withDefaults(),
		provider:   prov,
		driver:     driver,
		history:    hist,
		summarizer: summarizer,
		log:        log,
	}
}

// SetProfile enables profile recall at the start of each run.
func (a *Agent) SetProfile(store *profile.Store) {
	a.profile = store
}

// SetStore enables run recording in the database.
func (a *Agent) SetStore(db *storage.DB) {
	a.db = db
}

// Run starts the browse loop for task and streams events until the
// run finishes. It returns the run ID so callers can route events
// before the first one arrives. The channel is closed when the run
// ends.
func (a *Agent) Run(ctx context.Context, task string) (string, <-chan Event, error) {
	if a.provider == nil {
		return "", nil, ErrNoProvider
	}
	if a.driver == nil {
		return "", nil, ErrNoDriver
	}

	runID := ""
	if a.db != nil {
		run, err := a.db.CreateRun(task)
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to record run start")
		} else {
			runID = run.ID
		}
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)
		defer func() {
			if rec := recover(); rec != nil {
				a.log.Error().Interface("panic", rec).Msg("panic in browse loop")
				events <- NewErrorEvent(fmt.Errorf("internal error: %v", rec))
			}
		}()
		a.runLoop(ctx, task, runID, events)
	}()

	return runID, events, nil
}

// RunSync runs the loop to completion and returns the final result.
func (a *Agent) RunSync(ctx context.Context, task string) (*RunResult, error) {
	_, events, err := a.Run(ctx, task)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Task: task, Status: storage.RunStatusFailed}
	var runErr error
	for ev := range events {
		switch ev.Type {
		case EventTypeStep:
			result.Steps = ev.Step
		case EventTypeDone:
			result.RunID = ev.RunID
			result.Status = storage.RunStatusCompleted
			result.Outcome = ev.Content
			if ev.Usage != nil {
				result.Usage = *ev.Usage
			}
		case EventTypeError:
			result.RunID = ev.RunID
			runErr = ev.Error
		}
	}

	return result, runErr
}

// runLoop drives the step cycle for one run.
func (a *Agent) runLoop(ctx context.Context, task, runID string, events chan<- Event) {
	a.seedHistory(task)

	var usage Usage
	outcome := ""
	finished := false
	steps := 0

	for step := 1; step <= a.config.MaxSteps; step++ {
		steps = step

		done, answer, err := a.step(ctx, step, runID, events, &usage)
		if err != nil {
			a.log.Error().Err(err).Int("step", step).Msg("browse step failed")
			a.recordRun(runID, storage.RunStatusFailed, err.Error(), step, usage)
			emit(events, runID, NewErrorEvent(err))
			return
		}
		if done {
			outcome = answer
			finished = true
			break
		}

		// Step boundary: fold old steps into a summary memory when the
		// cadence is due. The loop only learns a compaction happened
		// from the shrinking token counter.
		before := a.history.CurrentTokens()
		a.summarizer.SummarizeIfDue(ctx, step)
		if after := a.history.CurrentTokens(); after < before {
			emit(events, runID, NewCompactionEvent(step, before, after))
		}
	}

	if !finished {
		outcome = fmt.Sprintf("stopped after %d steps without a final answer", a.config.MaxSteps)
	}

	a.recordRun(runID, storage.RunStatusCompleted, outcome, steps, usage)
	emit(events, runID, NewDoneEvent(steps, outcome, &usage))
}

// step executes one observe, decide, act cycle. It reports done=true
// with the final answer when the model finished the task.
func (a *Agent) step(ctx context.Context, step int, runID string, events chan<- Event, usage *Usage) (bool, string, error) {
	state, err := a.driver.State(ctx)
	if err != nil {
		return false, "", fmt.Errorf("read page state: %w", err)
	}
	emit(events, runID, NewStepEvent(step, state.URL))

	a.appendStep(provider.RoleUser, buildObservation(step, state))

	resp, err := a.chat(ctx)
	if err != nil && provider.IsContextWindowExceeded(err) {
		a.log.Warn().Int("step", step).Msg("context window exceeded, compacting history")
		if serr := a.summarizer.Summarize(ctx, step); serr == nil {
			// The observation was folded into the summary, so restate
			// it before the retry.
			a.appendStep(provider.RoleUser, buildObservation(step, state))
			resp, err = a.chat(ctx)
		}
	}
	if err != nil {
		return false, "", fmt.Errorf("model call: %w", err)
	}
	usage.add(resp.Usage)

	a.appendStep(provider.RoleAssistant, resp.Content)

	action, err := ParseAction(resp.Content)
	if err != nil {
		a.log.Debug().Err(err).Int("step", step).Msg("unparseable model reply")
		a.appendStep(provider.RoleUser, fmt.Sprintf("Your reply could not be used: %v. Reply with exactly one JSON action object.", err))
		return false, "", nil
	}
	emit(events, runID, NewActionEvent(step, action))

	if action.Type == browser.ActionDone {
		return true, action.Result, nil
	}

	start := time.Now()
	result, err := a.driver.Perform(ctx, *action)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		a.appendStep(provider.RoleUser, fmt.Sprintf("Action %s failed: %v", action.Type, err))
		emit(events, runID, NewActionResultEvent(step, action.Type, err.Error(), true, elapsed))
		return false, "", nil
	}

	output := result.Content
	if output == "" {
		output = "OK"
	}
	a.appendStep(provider.RoleUser, fmt.Sprintf("Action %s succeeded: %s", action.Type, output))
	emit(events, runID, NewActionResultEvent(step, action.Type, output, false, elapsed))

	return false, "", nil
}

// seedHistory installs the retained opening messages for a run.
func (a *Agent) seedHistory(task string) {
	system := a.config.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	a.history.Append(provider.Message{Role: provider.RoleSystem, Content: system}, history.TypeInit)

	var facts []*profile.Memory
	if a.profile != nil {
		recalled, err := a.profile.Search(task, 5)
		if err != nil {
			a.log.Warn().Err(err).Msg("profile recall failed")
		} else {
			facts = recalled
		}
	}
	a.history.Append(provider.Message{Role: provider.RoleUser, Content: buildTaskMessage(task, facts)}, history.TypeInit)
}

func (a *Agent) appendStep(role, content string) {
	a.history.Append(provider.Message{Role: role, Content: content}, history.TypeStep)
}

func (a *Agent) chat(ctx context.Context) (*provider.ChatResponse, error) {
	return a.provider.Chat(ctx, provider.ChatRequest{
		Model:       a.config.Model,
		Messages:    a.history.ModelMessages(),
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	})
}

func (a *Agent) recordRun(runID, status, outcome string, steps int, usage Usage) {
	if a.db == nil || runID == "" {
		return
	}
	if err := a.db.FinishRun(runID, status, outcome, steps, usage.PromptTokens, usage.CompletionTokens); err != nil {
		a.log.Warn().Err(err).Str("run_id", runID).Msg("failed to record run end")
	}
}

func (u *Usage) add(pu *provider.Usage) {
	if pu == nil {
		return
	}
	u.PromptTokens += pu.PromptTokens
	u.CompletionTokens += pu.CompletionTokens
	u.TotalTokens += pu.TotalTokens
}

func emit(events chan<- Event, runID string, ev Event) {
	ev.RunID = runID
	events <- ev
}
