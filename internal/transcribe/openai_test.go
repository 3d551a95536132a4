package transcribe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/chaz8081/sbobinator/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAITranscriberSendsForm(t *testing.T) {
	var gotPath, gotModel, gotLanguage, gotFormat, gotFilename, gotPayload, gotAuth string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		gotFormat = r.FormValue("response_format")

		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotFilename = hdr.Filename
		b, _ := io.ReadAll(f)
		gotPayload = string(b)

		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "Buongiorno a tutti.\n")
	})

	tr := NewOpenAITranscriber(client, "")
	text, err := tr.Transcribe(context.Background(), Request{
		Audio:    strings.NewReader("ID3-fake-mp3"),
		Filename: "split_1.mp3",
		Language: "it",
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if text != "Buongiorno a tutti." {
		t.Errorf("Transcribe() = %q, want %q", text, "Buongiorno a tutti.")
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Errorf("path = %q, want /v1/audio/transcriptions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotModel != "whisper-1" {
		t.Errorf("model = %q, want whisper-1", gotModel)
	}
	if gotLanguage != "it" {
		t.Errorf("language = %q, want it", gotLanguage)
	}
	if gotFormat != "text" {
		t.Errorf("response_format = %q, want text", gotFormat)
	}
	if gotFilename != "split_1.mp3" {
		t.Errorf("filename = %q, want split_1.mp3", gotFilename)
	}
	if gotPayload != "ID3-fake-mp3" {
		t.Errorf("payload = %q, want %q", gotPayload, "ID3-fake-mp3")
	}
}

func TestOpenAITranscriberAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
	})

	tr := NewOpenAITranscriber(client, "whisper-1")
	_, err := tr.Transcribe(context.Background(), Request{Audio: strings.NewReader("x"), Filename: "split_1.mp3"})
	if err == nil {
		t.Fatal("Transcribe() should fail on a 500 response")
	}
	if !strings.Contains(err.Error(), "split_1.mp3") {
		t.Errorf("error %q should name the chunk", err)
	}
}

func TestNew(t *testing.T) {
	client := openai.NewClient("test-key")

	tr, err := New(&config.TranscribeConfig{Backend: "openai", Model: "whisper-1"}, client)
	if err != nil {
		t.Fatalf("New(openai) error = %v", err)
	}
	if _, ok := tr.(*OpenAITranscriber); !ok {
		t.Errorf("New(openai) returned %T, want *OpenAITranscriber", tr)
	}

	if _, err := New(&config.TranscribeConfig{Backend: "openai"}, nil); err == nil {
		t.Error("New(openai) without a client should return error")
	}
	if _, err := New(&config.TranscribeConfig{Backend: "parakeet"}, client); err == nil {
		t.Error("New() with unknown backend should return error")
	}
}
