package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"strider/internal/browser"
	"strider/internal/compaction"
	"strider/internal/history"
	"strider/internal/provider"
	"strider/internal/storage"
)

const (
	navReply     = `{"action": "navigate", "url": "https://shop.test/"}`
	clickReply   = `{"action": "click", "selector": "a.pricing"}`
	extractReply = `{"action": "extract"}`
	doneReply    = `{"action": "done", "result": "The basic plan costs $10/month."}`
)

// scriptedProvider feeds a fixed sequence of action replies and
// answers compaction requests separately.
type scriptedProvider struct {
	replies      []string
	actionCalls  int
	summaryCalls int

	// failAt makes the Nth action call fail once with failErr.
	failAt  int
	failErr error
	failed  bool
}

func (p *scriptedProvider) Name() string {
	return "scripted"
}

func (p *scriptedProvider) Chat(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	last := req.Messages[len(req.Messages)-1]
	if strings.Contains(last.Content, "Generate a summary") {
		p.summaryCalls++
		return &provider.ChatResponse{Content: "Summary of the steps so far."}, nil
	}

	p.actionCalls++
	if p.failAt > 0 && p.actionCalls == p.failAt && !p.failed {
		p.failed = true
		return nil, p.failErr
	}

	if len(p.replies) == 0 {
		return &provider.ChatResponse{Content: doneReply}, nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return &provider.ChatResponse{
		Content: reply,
		Usage:   &provider.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func testPages() map[string]*browser.Page {
	return map[string]*browser.Page{
		"https://shop.test/": {
			Title:   "Shop",
			Content: "Welcome to the shop. See the pricing page.",
			Links:   map[string]string{"a.pricing": "https://shop.test/pricing"},
		},
		"https://shop.test/pricing": {
			Title:   "Pricing",
			Content: "Basic plan: $10/month. Pro plan: $30/month.",
		},
	}
}

type testRig struct {
	agent *Agent
	mgr   *history.Manager
	prov  *scriptedProvider
}

func newTestRig(t *testing.T, cfg Config, cadence int, replies ...string) *testRig {
	t.Helper()

	mgr := history.NewManager(history.Config{}, zerolog.Nop())
	prov := &scriptedProvider{replies: replies}

	settings := compaction.Settings{EnableSummarization: true, SummarizeEveryNSteps: cadence}
	summarizer, err := compaction.NewSummarizer(settings, mgr, prov, "test-model", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	driver := browser.NewScriptedDriver(testPages())
	return &testRig{
		agent: New(cfg, prov, driver, mgr, summarizer, zerolog.Nop()),
		mgr:   mgr,
		prov:  prov,
	}
}

func assertTokenInvariant(t *testing.T, mgr *history.Manager) {
	t.Helper()
	sum := 0
	for _, e := range mgr.Messages() {
		sum += e.Metadata.Tokens
	}
	if got := mgr.CurrentTokens(); got != sum {
		t.Errorf("CurrentTokens = %d, metadata sums to %d", got, sum)
	}
}

func TestRunCompletesTask(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, navReply, clickReply, extractReply, doneReply)

	result, err := rig.agent.RunSync(context.Background(), "find the basic plan price")
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if result.Status != storage.RunStatusCompleted {
		t.Errorf("status = %q, want %q", result.Status, storage.RunStatusCompleted)
	}
	if result.Outcome != "The basic plan costs $10/month." {
		t.Errorf("outcome = %q", result.Outcome)
	}
	if result.Steps != 4 {
		t.Errorf("steps = %d, want 4", result.Steps)
	}
	if rig.prov.actionCalls != 4 {
		t.Errorf("action calls = %d, want 4", rig.prov.actionCalls)
	}
	if result.Usage.PromptTokens != 40 || result.Usage.CompletionTokens != 20 {
		t.Errorf("usage = %+v", result.Usage)
	}
	assertTokenInvariant(t, rig.mgr)
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, navReply, doneReply)

	runID, events, err := rig.agent.Run(context.Background(), "open the shop")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runID == "" {
		t.Error("Run returned an empty run ID")
	}

	var types []EventType
	for ev := range events {
		if ev.RunID != runID {
			t.Errorf("event run ID = %q, want %q", ev.RunID, runID)
		}
		types = append(types, ev.Type)
	}

	want := []EventType{
		EventTypeStep, EventTypeAction, EventTypeActionResult,
		EventTypeStep, EventTypeAction,
		EventTypeDone,
	}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestRunParseFailureRecovers(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, "Let me think about what to do next.", doneReply)

	result, err := rig.agent.RunSync(context.Background(), "do something")
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if result.Status != storage.RunStatusCompleted {
		t.Errorf("status = %q, want completed", result.Status)
	}
	if result.Steps != 2 {
		t.Errorf("steps = %d, want 2", result.Steps)
	}
	if rig.prov.actionCalls != 2 {
		t.Errorf("action calls = %d, want 2", rig.prov.actionCalls)
	}
}

func TestRunActionFailureFeedsBack(t *testing.T) {
	badNav := `{"action": "navigate", "url": "https://nowhere.invalid/"}`
	rig := newTestRig(t, Config{}, 10, badNav, doneReply)

	_, events, err := rig.agent.Run(context.Background(), "go somewhere")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sawFailedResult := false
	sawDone := false
	for ev := range events {
		if ev.Type == EventTypeActionResult && ev.Result != nil && ev.Result.IsError {
			sawFailedResult = true
		}
		if ev.Type == EventTypeDone {
			sawDone = true
		}
	}

	if !sawFailedResult {
		t.Error("expected a failed action_result event")
	}
	if !sawDone {
		t.Error("expected the run to finish after the failed action")
	}
}

func TestRunMaxStepsStops(t *testing.T) {
	rig := newTestRig(t, Config{MaxSteps: 2}, 10, navReply, extractReply, extractReply, extractReply)

	result, err := rig.agent.RunSync(context.Background(), "wander forever")
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if result.Steps != 2 {
		t.Errorf("steps = %d, want 2", result.Steps)
	}
	if !strings.Contains(result.Outcome, "stopped after 2 steps") {
		t.Errorf("outcome = %q", result.Outcome)
	}
}

func TestRunCompactsOnCadence(t *testing.T) {
	rig := newTestRig(t, Config{}, 2, navReply, clickReply, extractReply, extractReply, doneReply)

	_, events, err := rig.agent.Run(context.Background(), "find the basic plan price")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	compactions := 0
	for ev := range events {
		if ev.Type == EventTypeCompaction {
			compactions++
			if ev.Compaction.TokensAfter >= ev.Compaction.TokensBefore {
				t.Errorf("compaction did not shrink history: %+v", ev.Compaction)
			}
		}
	}

	// Cadence 2 over four non-final steps lands on steps 2 and 4.
	if rig.prov.summaryCalls != 2 {
		t.Errorf("summary calls = %d, want 2", rig.prov.summaryCalls)
	}
	if compactions != 2 {
		t.Errorf("compaction events = %d, want 2", compactions)
	}

	memories := 0
	for _, e := range rig.mgr.Messages() {
		if e.Metadata.Type == history.TypeMemory {
			memories++
		}
	}
	if memories != 2 {
		t.Errorf("memory entries = %d, want 2", memories)
	}
	assertTokenInvariant(t, rig.mgr)
}

func TestRunDisabledCompactionNeverSummarizes(t *testing.T) {
	mgr := history.NewManager(history.Config{}, zerolog.Nop())
	prov := &scriptedProvider{replies: []string{navReply, clickReply, extractReply, extractReply, doneReply}}

	settings := compaction.Settings{EnableSummarization: false, SummarizeEveryNSteps: 1}
	summarizer, err := compaction.NewSummarizer(settings, mgr, prov, "test-model", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	a := New(Config{}, prov, browser.NewScriptedDriver(testPages()), mgr, summarizer, zerolog.Nop())
	if _, err := a.RunSync(context.Background(), "anything"); err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if prov.summaryCalls != 0 {
		t.Errorf("summary calls = %d, want 0", prov.summaryCalls)
	}
}

func TestRunProviderErrorAborts(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, navReply)
	rig.prov.failAt = 2
	rig.prov.failErr = errors.New("upstream unavailable")

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rig.agent.SetStore(db)

	result, err := rig.agent.RunSync(context.Background(), "doomed task")
	if err == nil {
		t.Fatal("expected an error from RunSync")
	}
	if result.Status != storage.RunStatusFailed {
		t.Errorf("status = %q, want failed", result.Status)
	}

	runs, err := db.ListRuns(0, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if runs[0].Status != storage.RunStatusFailed {
		t.Errorf("recorded status = %q, want failed", runs[0].Status)
	}
}

func TestRunContextWindowRecovery(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, navReply, extractReply, doneReply)
	rig.prov.failAt = 2
	rig.prov.failErr = provider.NewProviderError(
		provider.ErrCodeContextWindowExceeded, "context window exceeded", "scripted", false,
	)

	result, err := rig.agent.RunSync(context.Background(), "long task")
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	if result.Status != storage.RunStatusCompleted {
		t.Errorf("status = %q, want completed", result.Status)
	}
	if rig.prov.summaryCalls != 1 {
		t.Errorf("summary calls = %d, want 1", rig.prov.summaryCalls)
	}

	memories := 0
	for _, e := range rig.mgr.Messages() {
		if e.Metadata.Type == history.TypeMemory {
			memories++
		}
	}
	if memories != 1 {
		t.Errorf("memory entries = %d, want 1", memories)
	}
	assertTokenInvariant(t, rig.mgr)
}

func TestRunRecordsRunInStore(t *testing.T) {
	rig := newTestRig(t, Config{}, 10, navReply, doneReply)

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rig.agent.SetStore(db)

	result, err := rig.agent.RunSync(context.Background(), "open the shop")
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("result has no run ID")
	}

	run, err := db.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != storage.RunStatusCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}
	if run.Steps != 2 {
		t.Errorf("steps = %d, want 2", run.Steps)
	}
	if run.PromptTokens != 20 || run.CompletionTokens != 10 {
		t.Errorf("tokens = %d/%d, want 20/10", run.PromptTokens, run.CompletionTokens)
	}
}

func TestRunValidatesWiring(t *testing.T) {
	mgr := history.NewManager(history.Config{}, zerolog.Nop())
	prov := &scriptedProvider{}
	summarizer, err := compaction.NewSummarizer(compaction.DefaultSettings(), mgr, prov, "m", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	noProv := New(Config{}, nil, browser.NewScriptedDriver(nil), mgr, summarizer, zerolog.Nop())
	if _, _, err := noProv.Run(context.Background(), "task"); !errors.Is(err, ErrNoProvider) {
		t.Errorf("error = %v, want ErrNoProvider", err)
	}

	noDriver := New(Config{}, prov, nil, mgr, summarizer, zerolog.Nop())
	if _, _, err := noDriver.Run(context.Background(), "task"); !errors.Is(err, ErrNoDriver) {
		t.Errorf("error = %v, want ErrNoDriver", err)
	}
}
