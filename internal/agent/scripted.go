package agent

import (
	"context"
	"strings"
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// ScriptedRunner replays a fixed event sequence. It backs stream-order
// and cancellation tests, and doubles as a stub backend for local runs
// without model credentials.
type ScriptedRunner struct {
	// Events are sent in order, one per Delay tick.
	Events []models.RunnerEvent
	// Delay between events. Zero sends as fast as the consumer reads.
	Delay time.Duration
	// Err, when set, is emitted as an error event after Events.
	Err error
}

// Run streams the scripted events. Cancellation stops the stream
// between events.
func (r *ScriptedRunner) Run(ctx context.Context, a *Agent, req Request) (<-chan models.RunnerEvent, error) {
	out := make(chan models.RunnerEvent)
	go func() {
		defer close(out)
		for _, event := range r.Events {
			if r.Delay > 0 {
				select {
				case <-time.After(r.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
		if r.Err != nil {
			select {
			case out <- models.RunnerEvent{Type: models.RunnerEventError, Err: r.Err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// EchoRunner answers every prompt by echoing it back word by word,
// prefixed with the agent name. Useful for end-to-end smoke runs.
type EchoRunner struct{}

// Run streams the echo response.
func (EchoRunner) Run(ctx context.Context, a *Agent, req Request) (<-chan models.RunnerEvent, error) {
	words := strings.Fields(req.Prompt)
	out := make(chan models.RunnerEvent)
	go func() {
		defer close(out)
		chunks := append([]string{a.Name + " says:"}, words...)
		for i, word := range chunks {
			text := word
			if i < len(chunks)-1 {
				text += " "
			}
			select {
			case out <- models.RunnerEvent{Type: models.RunnerEventText, Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
