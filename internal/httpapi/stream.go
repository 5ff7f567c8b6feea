package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/derailed-dash/rickbot/pkg/models"
)

// defaultHeartbeatInterval is how often a comment frame keeps idle
// streams alive through proxies.
const defaultHeartbeatInterval = 15 * time.Second

// sanitizedAgentError is what clients see in an error frame. Upstream
// detail stays in the logs.
const sanitizedAgentError = "The agent encountered a problem. Please try again."

// sseFrame is one unit written to the stream: either a data payload or
// a comment (heartbeat).
type sseFrame struct {
	data    []byte
	comment bool
}

func dataFrame(v any) (sseFrame, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return sseFrame{}, err
	}
	return sseFrame{data: payload}, nil
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, f sseFrame) {
	if f.comment {
		fmt.Fprint(w, ": heartbeat\n\n")
	} else {
		fmt.Fprintf(w, "data: %s\n\n", f.data)
	}
	flusher.Flush()
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	turn := s.prepareChat(w, r)
	if turn == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// The session id goes out before the runner produces anything so
	// the client can reconnect or resume immediately.
	first, _ := dataFrame(map[string]string{"session_id": turn.session.ID})
	writeFrame(w, flusher, first)

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), turn.agent.Timeout)
	defer cancel()

	events, err := s.runner.Run(ctx, turn.agent, turn.request)
	if err != nil {
		s.logger.Error("agent run failed", "personality", turn.personality.Name, "error", err)
		s.metrics.ChatCounter.WithLabelValues(turn.personality.Name, "stream", "error").Inc()
		frame, _ := dataFrame(map[string]string{"error": sanitizedAgentError})
		writeFrame(w, flusher, frame)
		writeFrame(w, flusher, mustDoneFrame())
		return
	}

	var (
		reply  strings.Builder
		failed bool
	)

	out := make(chan sseFrame)
	var wg sync.WaitGroup
	wg.Add(2)

	// Drain the runner into frames. Cancels the heartbeat when the
	// upstream ends so the multiplexer can close.
	go func() {
		defer wg.Done()
		defer cancel()
		for event := range events {
			frame, ok := s.eventFrame(event, &reply, &failed, turn)
			if !ok {
				continue
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Heartbeat, multiplexed over the same channel so writes never
	// interleave.
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case out <- sseFrame{comment: true}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	// Sole writer. Ends only after both producers have stopped, so a
	// client disconnect never leaks a goroutine mid-stream.
	for frame := range out {
		writeFrame(w, flusher, frame)
	}

	writeFrame(w, flusher, mustDoneFrame())

	if failed {
		s.metrics.ChatCounter.WithLabelValues(turn.personality.Name, "stream", "error").Inc()
		return
	}
	s.recordReply(r.Context(), turn, reply.String())
	s.metrics.ChatCounter.WithLabelValues(turn.personality.Name, "stream", "ok").Inc()
}

// eventFrame translates one runner event to its wire frame. Text is
// accumulated for the session transcript as a side effect.
func (s *Server) eventFrame(event models.RunnerEvent, reply *strings.Builder, failed *bool, turn *chatTurn) (sseFrame, bool) {
	switch event.Type {
	case models.RunnerEventText:
		reply.WriteString(event.Text)
		frame, err := dataFrame(map[string]string{"chunk": event.Text})
		return frame, err == nil
	case models.RunnerEventToolCall:
		if event.Tool == nil {
			return sseFrame{}, false
		}
		frame, err := dataFrame(map[string]any{"tool_call": event.Tool})
		return frame, err == nil
	case models.RunnerEventToolResult:
		if event.Tool == nil {
			return sseFrame{}, false
		}
		frame, err := dataFrame(map[string]any{"tool_response": map[string]string{"name": event.Tool.Name}})
		return frame, err == nil
	case models.RunnerEventTransfer:
		frame, err := dataFrame(map[string]string{"agent_transfer": event.Transfer})
		return frame, err == nil
	case models.RunnerEventError:
		*failed = true
		s.logger.Error("agent stream failed",
			"personality", turn.personality.Name,
			"session", turn.session.ID,
			"error", event.Err)
		frame, err := dataFrame(map[string]string{"error": sanitizedAgentError})
		return frame, err == nil
	default:
		return sseFrame{}, false
	}
}

func mustDoneFrame() sseFrame {
	frame, _ := dataFrame(map[string]bool{"done": true})
	return frame
}
