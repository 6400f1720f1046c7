package watcher

import (
	"context"
	"time"

	"github.com/ritzau/mfa-dashboard/pkg/logging"
)

// Debouncer collapses bursts of change events into one, so a save triggers a single reload
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer that emits after quietPeriod of silence, or at most maxWait after the first event
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 4),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  *ChangeEvent
		count    int
		quiet    <-chan time.Time
		deadline <-chan time.Time
	)

	flush := func() {
		if pending != nil {
			logging.Debug("flushing debounced workbook events", "count", count, "type", pending.Type.String())
			pending.Timestamp = time.Now()
			select {
			case d.output <- *pending:
			case <-ctx.Done():
			}
		}
		pending, count = nil, 0
		quiet, deadline = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			count++
			if pending == nil {
				pending = &ChangeEvent{Type: event.Type}
				deadline = time.After(d.maxWait)
			}
			// The latest type wins: remove followed by create is an atomic save
			pending.Type = event.Type
			pending.Paths = append(pending.Paths, event.Paths...)
			quiet = time.After(d.quietPeriod)

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
