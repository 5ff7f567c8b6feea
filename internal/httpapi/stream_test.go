package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/pkg/models"
)

// multipartChatBody builds a multipart form with fields and one file
// part per entry in files.
func multipartChatBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for name, contents := range files {
		part, err := mw.CreateFormFile("attachments", name)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		part.Write([]byte(contents))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// parseSSE returns the decoded data frames in order, skipping comments.
func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()

	var frames []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame %q: %v", line, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestStreamFrameOrder(t *testing.T) {
	runner := &agent.ScriptedRunner{Events: []models.RunnerEvent{
		{Type: models.RunnerEventText, Text: "I have "},
		{Type: models.RunnerEventToolCall, Tool: &models.ToolPayload{Name: "search", Args: json.RawMessage(`{"q":"portals"}`)}},
		{Type: models.RunnerEventToolResult, Tool: &models.ToolPayload{Name: "search"}},
		{Type: models.RunnerEventTransfer, Transfer: "Morty"},
		{Type: models.RunnerEventText, Text: "an answer."},
	}}
	f := newFixture(t, runner, nil)

	rec := f.postForm(t, "/chat_stream", mockToken, url.Values{"prompt": {"go"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Error("missing X-Accel-Buffering header")
	}

	frames := parseSSE(t, rec.Body.String())
	if len(frames) != 7 {
		t.Fatalf("got %d frames, want 7: %+v", len(frames), frames)
	}
	if _, ok := frames[0]["session_id"]; !ok {
		t.Errorf("first frame = %+v, want session_id", frames[0])
	}
	if frames[1]["chunk"] != "I have " {
		t.Errorf("frame 1 = %+v", frames[1])
	}
	if tool, ok := frames[2]["tool_call"].(map[string]any); !ok || tool["name"] != "search" {
		t.Errorf("frame 2 = %+v", frames[2])
	}
	if tr, ok := frames[3]["tool_response"].(map[string]any); !ok || tr["name"] != "search" {
		t.Errorf("frame 3 = %+v", frames[3])
	}
	if frames[4]["agent_transfer"] != "Morty" {
		t.Errorf("frame 4 = %+v", frames[4])
	}
	if frames[5]["chunk"] != "an answer." {
		t.Errorf("frame 5 = %+v", frames[5])
	}
	if frames[6]["done"] != true {
		t.Errorf("last frame = %+v, want done", frames[6])
	}
}

func TestStreamRecordsReply(t *testing.T) {
	runner := &agent.ScriptedRunner{Events: []models.RunnerEvent{
		{Type: models.RunnerEventText, Text: "two "},
		{Type: models.RunnerEventText, Text: "chunks"},
	}}
	f := newFixture(t, runner, nil)

	rec := f.postForm(t, "/chat_stream", mockToken, url.Values{"prompt": {"go"}})
	frames := parseSSE(t, rec.Body.String())
	sessionID, _ := frames[0]["session_id"].(string)

	history, err := f.sessions.History(context.Background(), "rickbot", "mock:42", sessionID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[1].Text != "two chunks" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestStreamHeartbeatsInterleave(t *testing.T) {
	runner := &agent.ScriptedRunner{
		Events: []models.RunnerEvent{
			{Type: models.RunnerEventText, Text: "slow "},
			{Type: models.RunnerEventText, Text: "reply"},
		},
		Delay: 80 * time.Millisecond,
	}
	f := newFixture(t, runner, func(opts *Options) {
		opts.HeartbeatInterval = 20 * time.Millisecond
	})

	rec := f.postForm(t, "/chat_stream", mockToken, url.Values{"prompt": {"go"}})
	body := rec.Body.String()

	if !strings.Contains(body, ": heartbeat\n\n") {
		t.Fatal("no heartbeat emitted during a slow stream")
	}

	// Heartbeats never precede the session id or follow the done frame,
	// and never displace content frames.
	sessionIdx := strings.Index(body, `"session_id"`)
	doneIdx := strings.Index(body, `"done"`)
	firstBeat := strings.Index(body, ": heartbeat")
	lastBeat := strings.LastIndex(body, ": heartbeat")
	if firstBeat < sessionIdx {
		t.Error("heartbeat emitted before the session id frame")
	}
	if lastBeat > doneIdx {
		t.Error("heartbeat emitted after the done frame")
	}

	frames := parseSSE(t, body)
	if len(frames) != 4 {
		t.Fatalf("got %d data frames, want 4: %+v", len(frames), frames)
	}
	if frames[1]["chunk"] != "slow " || frames[2]["chunk"] != "reply" {
		t.Errorf("content frames displaced: %+v", frames)
	}
	if frames[3]["done"] != true {
		t.Errorf("last frame = %+v, want done", frames[3])
	}
}

func TestStreamSanitizesUpstreamError(t *testing.T) {
	runner := &agent.ScriptedRunner{
		Events: []models.RunnerEvent{{Type: models.RunnerEventText, Text: "partial"}},
		Err:    context.DeadlineExceeded,
	}
	f := newFixture(t, runner, nil)

	rec := f.postForm(t, "/chat_stream", mockToken, url.Values{"prompt": {"go"}})
	frames := parseSSE(t, rec.Body.String())
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4: %+v", len(frames), frames)
	}
	if frames[2]["error"] != sanitizedAgentError {
		t.Errorf("error frame = %+v", frames[2])
	}
	if frames[3]["done"] != true {
		t.Errorf("last frame = %+v, want done", frames[3])
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Error("upstream error detail leaked into the stream")
	}
}

func TestStreamGatedPersonaDenied(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.postForm(t, "/chat_stream", mockToken, url.Values{"prompt": {"hi"}, "personality": {"The Bartender"}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

// cancelAwareRunner blocks mid-stream until its context is cancelled,
// then signals how it exited.
type cancelAwareRunner struct {
	cancelled chan struct{}
}

func (r *cancelAwareRunner) Run(ctx context.Context, a *agent.Agent, req agent.Request) (<-chan models.RunnerEvent, error) {
	out := make(chan models.RunnerEvent)
	go func() {
		defer close(out)
		select {
		case out <- models.RunnerEvent{Type: models.RunnerEventText, Text: "first"}:
		case <-ctx.Done():
			close(r.cancelled)
			return
		}
		<-ctx.Done()
		close(r.cancelled)
	}()
	return out, nil
}

func TestStreamClientDisconnectCancelsRunner(t *testing.T) {
	runner := &cancelAwareRunner{cancelled: make(chan struct{})}
	f := newFixture(t, runner, nil)

	srv := httptest.NewServer(f.server)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	form := url.Values{"prompt": {"go"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/chat_stream", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+mockToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	// Read the first frame, then hang up.
	buf := make([]byte, 1)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	cancel()

	select {
	case <-runner.cancelled:
	case <-time.After(3 * time.Second):
		t.Fatal("runner context not cancelled after client disconnect")
	}
}
