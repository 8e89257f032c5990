package workflows

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	flow "github.com/noneback/go-taskflow"
)

// TaskFlow wraps go-taskflow's TaskFlow with steps that can fail. Once a
// step fails, every step that has not started yet is skipped.
type TaskFlow struct {
	*flow.TaskFlow

	mu   sync.Mutex
	errs []error
}

// NewTaskFlow creates a new custom TaskFlow
func NewTaskFlow(name string) *TaskFlow {
	return &TaskFlow{
		TaskFlow: flow.NewTaskFlow(name),
	}
}

// NewStep adds a task running fn. Its error is recorded and returned by Err.
func (tf *TaskFlow) NewStep(name string, fn func() error) *flow.Task {
	return tf.NewTask(name, func() {
		if tf.failed() {
			log.Debug("Skipping step after earlier failure", "step", name)
			return
		}

		if err := fn(); err != nil {
			log.Error("Step failed", "step", name, "error", err)
			tf.fail(fmt.Errorf("%s: %w", name, err))
			return
		}

		log.Debug("Step completed", "step", name)
	})
}

// Run executes the flow and waits for it to finish.
func (tf *TaskFlow) Run() error {
	flow.NewExecutor(10).Run(tf.TaskFlow).Wait()
	return tf.Err()
}

// Err returns the errors of every failed step.
func (tf *TaskFlow) Err() error {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return errors.Join(tf.errs...)
}

func (tf *TaskFlow) failed() bool {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.errs) > 0
}

func (tf *TaskFlow) fail(err error) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.errs = append(tf.errs, err)
}
