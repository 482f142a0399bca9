// Package schedule runs browsing tasks on cron expressions. Tasks live
// in a YAML file that is reloaded whenever it changes on disk.
package schedule

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicateTask indicates two tasks in the file share a name.
	ErrDuplicateTask = errors.New("schedule: duplicate task name")

	// ErrUnknownTask indicates the named task is not in the file.
	ErrUnknownTask = errors.New("schedule: unknown task")

	// ErrTaskRunning indicates the task has a run in flight.
	ErrTaskRunning = errors.New("schedule: task already running")
)

// Task is one scheduled browsing task.
type Task struct {
	// Name identifies the task in logs and run stamps.
	Name string `yaml:"name" json:"name"`
	// Cron is the schedule expression, five or six fields.
	Cron string `yaml:"cron" json:"cron"`
	// Task is the browsing instruction handed to the agent.
	Task string `yaml:"task" json:"task"`
	// Disabled skips the task without removing it from the file.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Validate checks the task definition.
func (t *Task) Validate() error {
	if t.Name == "" {
		return errors.New("schedule: task name is required")
	}
	if t.Cron == "" {
		return fmt.Errorf("schedule: task %q has no cron expression", t.Name)
	}
	if t.Task == "" {
		return fmt.Errorf("schedule: task %q has no instruction", t.Name)
	}
	if err := ValidateCron(t.Cron); err != nil {
		return fmt.Errorf("schedule: task %q: %w", t.Name, err)
	}
	return nil
}

// ValidateCron checks a cron expression in five or six field form.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(expr); err != nil {
		if _, err2 := cron.ParseStandard(expr); err2 != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	}
	return nil
}

// normalizeCron returns expr in the six field form the scheduler runs
// with, prepending a seconds field to five field expressions.
func normalizeCron(expr string) string {
	if strings.HasPrefix(expr, "@") {
		return expr
	}
	if len(strings.Fields(expr)) == 5 {
		return "0 " + expr
	}
	return expr
}

type tasksFile struct {
	Tasks []Task `yaml:"tasks"`
}

// LoadTasks reads the task definitions from path. A missing file is an
// empty schedule, not an error.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("schedule: read tasks file: %w", err)
	}

	var file tasksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("schedule: parse tasks file: %w", err)
	}

	seen := make(map[string]bool, len(file.Tasks))
	for i := range file.Tasks {
		t := &file.Tasks[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
		seen[t.Name] = true
	}

	return file.Tasks, nil
}
