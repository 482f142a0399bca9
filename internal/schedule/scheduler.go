package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"strider/internal/storage"
)

const (
	// reloadDebounce collapses editor write bursts into one reload.
	reloadDebounce = 500 * time.Millisecond

	// runTimeout is the hard deadline for one scheduled run.
	runTimeout = 30 * time.Minute

	// stampPrefix keys last run stamps in the KV store.
	stampPrefix = "schedule:last_run:"
)

// Launcher runs a browsing task to completion and returns the run ID.
// The scheduler holds a task's slot until its launcher call returns,
// so overlapping firings of the same task are suppressed.
type Launcher func(ctx context.Context, task string) (string, error)

// Notify is called after a scheduled run finishes.
type Notify func(task Task, runID string)

// Scheduler registers tasks from a YAML file with a cron runner and
// reloads them when the file changes.
type Scheduler struct {
	path     string
	launcher Launcher
	log      zerolog.Logger

	cron    *cron.Cron
	entries map[string]cron.EntryID
	tasks   map[string]Task

	db     *storage.DB
	notify Notify

	watcher *fsnotify.Watcher
	stopCh  chan struct{}

	mu      sync.RWMutex
	running bool

	// Track currently executing tasks to prevent overlapping runs.
	executing sync.Map

	// Track active runs for graceful shutdown.
	wg sync.WaitGroup

	reloadMu sync.Mutex
	reload   *time.Timer
}

// NewScheduler creates a scheduler for the tasks file at path.
func NewScheduler(path string, launcher Launcher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		path:     path,
		launcher: launcher,
		log:      log,
		cron:     cron.New(cron.WithSeconds()),
		entries:  make(map[string]cron.EntryID),
		tasks:    make(map[string]Task),
		stopCh:   make(chan struct{}),
	}
}

// SetStore enables last run stamps in the database.
func (s *Scheduler) SetStore(db *storage.DB) {
	s.db = db
}

// SetNotify sets the callback invoked when a scheduled run finishes.
func (s *Scheduler) SetNotify(fn Notify) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Start loads the tasks file, registers its tasks, and begins watching
// it for changes.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("schedule: scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.Reload(); err != nil {
		return err
	}

	s.cron.Start()

	if err := s.watch(); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("tasks file watch unavailable, edits need a restart")
	}

	s.log.Info().Str("path", s.path).Int("tasks", s.TaskCount()).Msg("schedule started")
	return nil
}

// Stop stops the scheduler and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	if s.watcher != nil {
		s.watcher.Close()
	}

	s.reloadMu.Lock()
	if s.reload != nil {
		s.reload.Stop()
	}
	s.reloadMu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.log.Info().Msg("schedule stopped")
}

// Reload re-reads the tasks file and replaces all registered entries.
func (s *Scheduler) Reload() error {
	tasks, err := LoadTasks(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.tasks = make(map[string]Task, len(tasks))

	registered := 0
	for _, task := range tasks {
		s.tasks[task.Name] = task
		if task.Disabled {
			continue
		}

		name := task.Name
		id, err := s.cron.AddFunc(normalizeCron(task.Cron), func() {
			s.execute(name)
		})
		if err != nil {
			s.log.Error().Err(err).Str("task", name).Msg("failed to register task")
			continue
		}
		s.entries[name] = id
		registered++
	}

	s.log.Debug().Int("tasks", len(tasks)).Int("registered", registered).Msg("tasks loaded")
	return nil
}

// watch follows the tasks file for changes. The parent directory is
// watched because editors replace the file on save.
func (s *Scheduler) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case <-s.stopCh:
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					s.scheduleReload()
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Error().Err(err).Msg("tasks file watcher error")
			}
		}
	}()

	return nil
}

// scheduleReload debounces file events into one Reload call.
func (s *Scheduler) scheduleReload() {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.reload != nil {
		s.reload.Stop()
	}
	s.reload = time.AfterFunc(reloadDebounce, func() {
		if err := s.Reload(); err != nil {
			s.log.Error().Err(err).Str("path", s.path).Msg("tasks file reload failed, keeping previous schedule")
			return
		}
		s.log.Info().Str("path", s.path).Msg("tasks file reloaded")
	})
}

// RunNow fires a task immediately, outside its cron schedule. The run
// proceeds in the background.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	_, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	if _, running := s.executing.Load(name); running {
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}

	go s.execute(name)
	return nil
}

// execute runs one firing of a task.
func (s *Scheduler) execute(name string) {
	if _, loaded := s.executing.LoadOrStore(name, time.Now()); loaded {
		s.log.Warn().Str("task", name).Msg("skipping firing, previous run still active")
		return
	}
	defer s.executing.Delete(name)

	// Look the definition up again so edits apply to the next firing.
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok || task.Disabled {
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.launch(task); err != nil {
		s.log.Error().Err(err).Str("task", name).Msg("scheduled run failed")
	}
}

// launch runs the task to completion, stamps it, and notifies
// listeners.
func (s *Scheduler) launch(task Task) error {
	if s.launcher == nil {
		return errors.New("schedule: no launcher configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// Stop cancels in-flight runs so shutdown does not wait out the
	// run timeout.
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.log.Info().Str("task", task.Name).Msg("launching scheduled run")

	runID, err := s.launcher(ctx, task.Task)
	if err != nil {
		return err
	}

	s.stamp(task.Name, runID)

	s.mu.RLock()
	notify := s.notify
	s.mu.RUnlock()
	if notify != nil {
		notify(task, runID)
	}

	s.log.Info().Str("task", task.Name).Str("run_id", runID).Msg("scheduled run finished")
	return nil
}

// runStamp records the most recent firing of a task.
type runStamp struct {
	At    time.Time `json:"at"`
	RunID string    `json:"run_id"`
}

// stamp stores the last run marker for a task.
func (s *Scheduler) stamp(name, runID string) {
	if s.db == nil {
		return
	}

	data, err := json.Marshal(runStamp{At: time.Now(), RunID: runID})
	if err != nil {
		return
	}
	if err := s.db.KVSet(stampPrefix+name, string(data), 0); err != nil {
		s.log.Warn().Err(err).Str("task", name).Msg("failed to stamp run")
	}
}

// lastRun reads the last run marker for a task.
func (s *Scheduler) lastRun(name string) (time.Time, string) {
	if s.db == nil {
		return time.Time{}, ""
	}

	value, err := s.db.KVGet(stampPrefix + name)
	if err != nil {
		return time.Time{}, ""
	}

	var stamp runStamp
	if err := json.Unmarshal([]byte(value), &stamp); err != nil {
		return time.Time{}, ""
	}
	return stamp.At, stamp.RunID
}

// TaskStatus is one task with its runtime state.
type TaskStatus struct {
	Task
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	Running   bool       `json:"running"`
}

// Tasks returns every configured task with its runtime state, sorted
// by name.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]TaskStatus, 0, len(s.tasks))
	for name, task := range s.tasks {
		status := TaskStatus{Task: task}

		if id, ok := s.entries[name]; ok {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		if at, runID := s.lastRun(name); !at.IsZero() {
			status.LastRun = &at
			status.LastRunID = runID
		}
		_, status.Running = s.executing.Load(name)

		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// TaskCount returns the number of configured tasks.
func (s *Scheduler) TaskCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
