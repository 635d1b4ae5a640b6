package wifi

import (
	"context"
	"os/exec"
	"time"
)

// realExecutor implements CommandExecutor using actual shell commands.
type realExecutor struct{}

// NewExecutor returns a CommandExecutor that runs real driver commands.
func NewExecutor() CommandExecutor {
	return &realExecutor{}
}

func (e *realExecutor) Execute(name string, args ...string) ([]byte, error) {
	// Output (rather than CombinedOutput) so that ExitError.Stderr carries
	// the driver's error text for failure classification.
	return exec.Command(name, args...).Output()
}

func (e *realExecutor) ExecuteWithTimeout(timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout <= 0 {
		return e.Execute(name, args...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return out, &TimeoutError{Op: name, After: timeout}
	}
	return out, err
}
