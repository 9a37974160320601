package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/audio-captions/internal/types"
)

type fakeMedia struct {
	names []string
	body  string
	err   error
}

func (f *fakeMedia) PutAudio(ctx context.Context, name string, r io.ReadSeeker, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	f.names = append(f.names, name)
	f.body = string(b)
	return "s3://media/" + name, nil
}

// uploadRequest builds a multipart request with an audio file and form fields
func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newUploadApp(media *fakeMedia, q *fakeQueue, maxSizeMB int) *fiber.App {
	app := fiber.New()
	app.Post("/upload", NewUploadHandler(q, media, maxSizeMB, []string{"es"}, []string{"fr-FR"}).Handle)
	return app
}

// TestUpload verifies the audio is stored and a run is queued for its location.
func TestUpload(t *testing.T) {
	media, q := &fakeMedia{}, &fakeQueue{}
	app := newUploadApp(media, q, 10)

	req := uploadRequest(t, "Talk.MP3", "ID3audio", map[string]string{
		"document_id": "doc",
		"targets":     "de, it",
		"languages":   "en-US",
	})
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	if len(media.names) != 1 || !strings.HasSuffix(media.names[0], ".mp3") || media.body != "ID3audio" {
		t.Fatalf("stored = %v (%q)", media.names, media.body)
	}
	run := q.runs[0]
	if run.Source != types.SourceAudio || run.Request.AudioLocation != "s3://media/"+media.names[0] {
		t.Fatalf("run = %+v", run)
	}
	if strings.Join(run.Request.Targets, ",") != "de,it" || strings.Join(run.Request.Languages, ",") != "en-US" {
		t.Fatalf("request = %+v", run.Request)
	}
}

// TestUploadDefaults verifies the configured targets and languages fill in missing fields.
func TestUploadDefaults(t *testing.T) {
	media, q := &fakeMedia{}, &fakeQueue{}
	app := newUploadApp(media, q, 10)

	resp, err := app.Test(uploadRequest(t, "talk.wav", "RIFF", map[string]string{"document_id": "doc"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	req := q.runs[0].Request
	if strings.Join(req.Targets, ",") != "es" || strings.Join(req.Languages, ",") != "fr-FR" {
		t.Fatalf("request = %+v", req)
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		code     string
	}{
		{"no file", "", "", map[string]string{"document_id": "doc"}, "ERR_NO_FILE"},
		{"no document", "a.mp3", "x", nil, "ERR_NO_DOCUMENT"},
		{"bad format", "notes.txt", "x", map[string]string{"document_id": "doc"}, "ERR_INVALID_FORMAT"},
		{"too large", "a.wav", strings.Repeat("x", 2*1024*1024), map[string]string{"document_id": "doc"}, "ERR_FILE_TOO_LARGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, q := &fakeMedia{}, &fakeQueue{}
			app := newUploadApp(media, q, 1)

			resp, err := app.Test(uploadRequest(t, tt.filename, tt.content, tt.fields))
			if err != nil {
				t.Fatal(err)
			}
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), tt.code) {
				t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
			}
			if len(media.names) != 0 || len(q.runs) != 0 {
				t.Fatal("invalid upload was stored or queued")
			}
		})
	}
}

func TestUploadStoreFailure(t *testing.T) {
	media, q := &fakeMedia{err: errors.New("AccessDenied")}, &fakeQueue{}
	app := newUploadApp(media, q, 10)

	resp, err := app.Test(uploadRequest(t, "a.mp3", "x", map[string]string{"document_id": "doc"}))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError || len(q.runs) != 0 {
		t.Fatalf("status = %d, runs = %d", resp.StatusCode, len(q.runs))
	}
}
