package recovery

import (
	"log/slog"
	"sync"
	"time"
)

// Status is the user-visible connection error state.
type Status struct {
	Failed bool
	Err    error
	Since  time.Time
}

// StatusNotifier keeps a single persistent error state, replacing it on
// every new failure, until the connection recovers or the user dismisses it.
type StatusNotifier struct {
	logger   *slog.Logger
	onChange func(Status)

	mu     sync.Mutex
	status Status
	retry  func()
}

// NewStatusNotifier creates a StatusNotifier. onChange, if non-nil, is
// called after every state change.
func NewStatusNotifier(logger *slog.Logger, onChange func(Status)) *StatusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusNotifier{
		logger:   logger,
		onChange: onChange,
	}
}

// ConnectionFailed raises the error state.
func (n *StatusNotifier) ConnectionFailed(err error, retry func()) {
	n.mu.Lock()
	n.status = Status{Failed: true, Err: err, Since: time.Now()}
	n.retry = retry
	status := n.status
	n.mu.Unlock()

	n.logger.Error("error connecting to server", "error", err)
	n.changed(status)
}

// ConnectionRecovered clears the error state.
func (n *StatusNotifier) ConnectionRecovered() {
	n.clear()
}

// Dismiss clears the error state without reconnecting.
func (n *StatusNotifier) Dismiss() {
	n.clear()
}

// Retry reconnects if an error is raised. The state stays raised until the
// connection recovers. Returns false when there is nothing to retry.
func (n *StatusNotifier) Retry() bool {
	n.mu.Lock()
	retry := n.retry
	failed := n.status.Failed
	n.mu.Unlock()

	if !failed || retry == nil {
		return false
	}

	n.logger.Info("retrying connection")
	retry()
	return true
}

// Status returns the current state.
func (n *StatusNotifier) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *StatusNotifier) clear() {
	n.mu.Lock()
	wasFailed := n.status.Failed
	n.status = Status{}
	n.retry = nil
	n.mu.Unlock()

	if wasFailed {
		n.changed(Status{})
	}
}

func (n *StatusNotifier) changed(s Status) {
	if n.onChange != nil {
		n.onChange(s)
	}
}
