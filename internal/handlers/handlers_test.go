package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/queue"
	"github.com/codebuildervaibhav/audio-captions/internal/storage"
	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

type fakeQueue struct {
	runs []*queue.Run
	err  error
}

func (f *fakeQueue) Enqueue(run *queue.Run) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, run)
	return nil
}

type fakeRuns map[string]types.Run

func (f fakeRuns) GetRun(ctx context.Context, id string) (types.Run, error) {
	run, ok := f[id]
	if !ok {
		return types.Run{}, storage.ErrNotFound
	}
	return run, nil
}

type fakeIndex struct {
	tracks map[string][]types.CaptionTrack
}

func (f *fakeIndex) ListCaptions(ctx context.Context, documentID string) ([]types.CaptionTrack, error) {
	return f.tracks[documentID], nil
}

func (f *fakeIndex) GetCaption(ctx context.Context, documentID, language string) (types.CaptionTrack, error) {
	for _, t := range f.tracks[documentID] {
		if t.LanguageCode == language {
			return t, nil
		}
	}
	return types.CaptionTrack{}, storage.ErrNotFound
}

type fakeFiles map[string]string

func (f fakeFiles) ReadCaption(ref string) ([]byte, error) {
	body, ok := f[ref]
	if !ok {
		return nil, errors.New("missing")
	}
	return []byte(body), nil
}

type testServer struct {
	app   *fiber.App
	queue *fakeQueue
}

func newTestServer() *testServer {
	q := &fakeQueue{}
	runs := fakeRuns{
		"run-1": {ID: "run-1", DocumentID: "doc", Status: types.StatusFailed, ErrorKind: types.ErrAlignmentMismatch},
	}
	index := &fakeIndex{tracks: map[string][]types.CaptionTrack{
		"doc": {
			{LanguageCode: "en", ArtifactRef: "doc.en.vtt"},
			{LanguageCode: "es", ArtifactRef: "doc.es.vtt"},
		},
	}}
	files := fakeFiles{"doc.es.vtt": "WEBVTT\n\n1\n00:00:00.000 --> 00:00:00.500\nhola!\n"}

	runsHandler := NewRunsHandler(q, runs, []string{"es", "fr"}, []string{"en-US", "de-DE"})
	captionsHandler := NewCaptionsHandler(q, index, files, []string{"es", "fr"})

	app := fiber.New()
	app.Post("/runs", runsHandler.Create)
	app.Get("/runs/:id", runsHandler.Get)
	app.Post("/documents/:id/captions", captionsHandler.Recaption)
	app.Get("/documents/:id/captions", captionsHandler.List)
	app.Get("/documents/:id/captions/:lang", captionsHandler.VTT)
	return &testServer{app: app, queue: q}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

// TestCreateRun verifies a valid request is queued with the default targets.
func TestCreateRun(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodPost, "/runs", `{"document_id":"doc","audio_location":"s3://media/talk.mp3","languages":["en-US"]}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", code, body)
	}

	if len(s.queue.runs) != 1 {
		t.Fatalf("queued %d runs", len(s.queue.runs))
	}
	run := s.queue.runs[0]
	if run.Source != types.SourceAudio || run.Request.AudioLocation != "s3://media/talk.mp3" {
		t.Fatalf("run = %+v", run)
	}
	if strings.Join(run.Request.Targets, ",") != "es,fr" || strings.Join(run.Request.Languages, ",") != "en-US" {
		t.Fatalf("request = %+v", run.Request)
	}

	var resp struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID != run.ID || resp.Status != types.StatusQueued {
		t.Fatalf("response = %+v", resp)
	}
}

// TestCreateRunDefaultLanguages verifies the configured transcription languages apply when none are requested.
func TestCreateRunDefaultLanguages(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodPost, "/runs", `{"document_id":"doc","audio_location":"s3://media/talk.mp3","languages":[" ",""]}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	if got := strings.Join(s.queue.runs[0].Request.Languages, ","); got != "en-US,de-DE" {
		t.Fatalf("languages = %s, want en-US,de-DE", got)
	}
}

// TestCreateRunExistingJob verifies requested targets override the defaults.
func TestCreateRunExistingJob(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodPost, "/runs", `{"document_id":"doc","job_name":"captions-1","targets":[" de ",""]}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	run := s.queue.runs[0]
	if run.Source != types.SourceJob || run.Request.JobName != "captions-1" || strings.Join(run.Request.Targets, ",") != "de" {
		t.Fatalf("run = %+v", run)
	}
}

func TestCreateRunValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{`, "ERR_INVALID_BODY"},
		{"no document", `{"audio_location":"s3://a/b.mp3"}`, "ERR_NO_DOCUMENT"},
		{"no source", `{"document_id":"doc"}`, "ERR_NO_SOURCE"},
		{"bad scheme", `{"document_id":"doc","audio_location":"ftp://a/b.mp3"}`, "ERR_INVALID_LOCATION"},
		{"bad format", `{"document_id":"doc","audio_location":"s3://a/b.txt"}`, "ERR_INVALID_LOCATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			code, body := s.do(t, http.MethodPost, "/runs", tt.body)
			if code != http.StatusBadRequest || !strings.Contains(body, tt.code) {
				t.Fatalf("status = %d, body = %s", code, body)
			}
			if len(s.queue.runs) != 0 {
				t.Fatal("invalid request was queued")
			}
		})
	}
}

func TestCreateRunQueueFull(t *testing.T) {
	s := newTestServer()
	s.queue.err = queue.ErrQueueFull
	code, body := s.do(t, http.MethodPost, "/runs", `{"document_id":"doc","job_name":"captions-1"}`)
	if code != http.StatusServiceUnavailable || !strings.Contains(body, "ERR_QUEUE_UNAVAILABLE") {
		t.Fatalf("status = %d, body = %s", code, body)
	}
}

func TestGetRun(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodGet, "/runs/run-1", "")
	if code != http.StatusOK || !strings.Contains(body, `"error_kind":"AlignmentMismatch"`) {
		t.Fatalf("status = %d, body = %s", code, body)
	}

	if code, _ := s.do(t, http.MethodGet, "/runs/missing", ""); code != http.StatusNotFound {
		t.Fatalf("missing run status = %d", code)
	}
}

// TestRecaption verifies a recaption run is queued for the document.
func TestRecaption(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodPost, "/documents/doc/captions", `{"targets":["it"]}`)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	run := s.queue.runs[0]
	if run.Source != types.SourceRecaption || run.Request.DocumentID != "doc" || strings.Join(run.Request.Targets, ",") != "it" {
		t.Fatalf("run = %+v", run)
	}

	// No body falls back to the configured targets.
	if code, _ := s.do(t, http.MethodPost, "/documents/doc/captions", ""); code != http.StatusAccepted {
		t.Fatalf("status = %d", code)
	}
	if got := strings.Join(s.queue.runs[1].Request.Targets, ","); got != "es,fr" {
		t.Fatalf("targets = %s", got)
	}
}

func TestListCaptions(t *testing.T) {
	s := newTestServer()
	code, body := s.do(t, http.MethodGet, "/documents/doc/captions", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var resp struct {
		Captions []types.CaptionTrack `json:"captions"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Captions) != 2 || resp.Captions[0].LanguageCode != "en" || resp.Captions[1].ArtifactRef != "doc.es.vtt" {
		t.Fatalf("captions = %+v", resp.Captions)
	}

	_, body = s.do(t, http.MethodGet, "/documents/none/captions", "")
	if !strings.Contains(body, `"captions":[]`) {
		t.Fatalf("empty body = %s", body)
	}
}

func TestCaptionVTT(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/documents/doc/captions/es", nil)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/vtt") {
		t.Fatalf("status = %d, content type = %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "hola!") {
		t.Fatalf("body = %s", body)
	}

	if code, _ := s.do(t, http.MethodGet, "/documents/doc/captions/de", ""); code != http.StatusNotFound {
		t.Fatalf("unknown language status = %d", code)
	}
	// Indexed but unreadable artifact.
	if code, _ := s.do(t, http.MethodGet, "/documents/doc/captions/en", ""); code != http.StatusInternalServerError {
		t.Fatalf("unreadable artifact status = %d", code)
	}
}
