package agent

import (
	"context"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// Request carries one user turn into a runner.
type Request struct {
	SessionID   string
	UserKey     string
	Prompt      string
	History     []*models.Message
	Attachments []models.Attachment
}

// Runner executes an agent turn and streams events back. The returned
// channel is closed when the turn ends; an error event, when one
// occurs, is the last event before close. Runners must stop promptly
// when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, a *Agent, req Request) (<-chan models.RunnerEvent, error)
}
