package refine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/sbobinator/internal/config"
)

// upperCompleter uppercases the fragment between the prompt delimiters.
type upperCompleter struct {
	reqs   []Request
	failAt int // 1-based call number that fails; 0 never fails
}

func (u *upperCompleter) Complete(_ context.Context, req Request) (string, error) {
	u.reqs = append(u.reqs, req)
	if u.failAt == len(u.reqs) {
		return "", errors.New("rate limited")
	}
	user := req.Messages[len(req.Messages)-1].Content
	start := strings.Index(user, fragmentOpen)
	end := strings.Index(user, fragmentClose)
	if start < 0 || end < start {
		return "", errors.New("no delimited fragment in prompt")
	}
	return strings.ToUpper(user[start+len(fragmentOpen) : end]), nil
}

// wordEncoder yields one token per whitespace-separated word.
type wordEncoder struct{}

func (wordEncoder) Encode(text string) []int {
	return make([]int, len(strings.Fields(text)))
}

func testRefineConfig() *config.RefineConfig {
	cfg := config.Default().Refine
	return &cfg
}

func TestRefineUppercaseStub(t *testing.T) {
	stub := &upperCompleter{}
	r := NewRefiner(testRefineConfig(), stub, wordEncoder{})

	got, err := r.Refine(context.Background(), []string{"Hello world.", "Goodbye."})
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if got != "HELLO WORLD. GOODBYE." {
		t.Errorf("Refine() = %q, want %q", got, "HELLO WORLD. GOODBYE.")
	}
	if len(stub.reqs) != 2 {
		t.Fatalf("made %d calls, want 2", len(stub.reqs))
	}
}

func TestRefineDecodingSettings(t *testing.T) {
	stub := &upperCompleter{}
	cfg := testRefineConfig()
	r := NewRefiner(cfg, stub, nil)

	if _, err := r.Refine(context.Background(), []string{"uno"}); err != nil {
		t.Fatalf("Refine() error = %v", err)
	}

	req := stub.reqs[0]
	if req.Model != cfg.Model {
		t.Errorf("Model = %q, want %q", req.Model, cfg.Model)
	}
	if req.Temperature != 0.001 {
		t.Errorf("Temperature = %v, want 0.001", req.Temperature)
	}
	if req.Seed == nil || *req.Seed != 42 {
		t.Errorf("Seed = %v, want 42", req.Seed)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem || req.Messages[1].Role != RoleUser {
		t.Errorf("Messages = %+v, want system + user", req.Messages)
	}
}

func TestRefineEmpty(t *testing.T) {
	stub := &upperCompleter{}
	r := NewRefiner(testRefineConfig(), stub, nil)

	got, err := r.Refine(context.Background(), nil)
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	if got != "" || len(stub.reqs) != 0 {
		t.Errorf("Refine(nil) = %q with %d calls, want empty with none", got, len(stub.reqs))
	}
}

func TestRefineUnsupportedModelFailsBeforeCalls(t *testing.T) {
	stub := &upperCompleter{}
	cfg := testRefineConfig()
	cfg.Model = "llama-3-70b"
	r := NewRefiner(cfg, stub, wordEncoder{})

	_, err := r.Refine(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("Refine() error = %v, want ErrUnsupportedModel", err)
	}
	var ume *UnsupportedModelError
	if !errors.As(err, &ume) || ume.Model != "llama-3-70b" {
		t.Errorf("errors.As() = %v, want model llama-3-70b", ume)
	}
	if len(stub.reqs) != 0 {
		t.Errorf("made %d calls, want 0", len(stub.reqs))
	}
}

func TestRefineAbortsOnFailure(t *testing.T) {
	stub := &upperCompleter{failAt: 2}
	r := NewRefiner(testRefineConfig(), stub, nil)

	got, err := r.Refine(context.Background(), []string{"a", "b", "c"})
	if err == nil {
		t.Fatal("Refine() should fail when a fragment fails")
	}
	if got != "" {
		t.Errorf("Refine() = %q, want empty on failure", got)
	}
	if len(stub.reqs) != 2 {
		t.Errorf("made %d calls, want 2", len(stub.reqs))
	}
}

func TestRefineDriftCheck(t *testing.T) {
	tests := []struct {
		name         string
		maxDriftRate float64
		wantMeasured int
	}{
		{"disabled", 0, 0},
		{"enabled", 0.5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRefineConfig()
			cfg.MaxDriftRate = tt.maxDriftRate
			r := NewRefiner(cfg, &upperCompleter{}, nil)

			measured := 0
			r.measure = func(raw, refined string) Drift {
				measured++
				return MeasureDrift(raw, refined)
			}

			if _, err := r.Refine(context.Background(), []string{"Hello world.", "Goodbye."}); err != nil {
				t.Fatalf("Refine() error = %v", err)
			}
			if measured != tt.wantMeasured {
				t.Errorf("measured %d fragments, want %d", measured, tt.wantMeasured)
			}
		})
	}
}

func TestPrepareMessages(t *testing.T) {
	msgs := PrepareMessages("", "ciao")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != DefaultSystemPrompt {
		t.Error("empty system prompt should use DefaultSystemPrompt")
	}
	want := "\n\nTRANSCRIPT CHUNK:\n\n<<<ciao>>>\n\nPROCESSED TRANSCRIPT CHUNK:"
	if msgs[1].Content != want {
		t.Errorf("user content = %q, want %q", msgs[1].Content, want)
	}

	custom := PrepareMessages("be brief", "x")
	if custom[0].Content != "be brief" {
		t.Errorf("system content = %q, want %q", custom[0].Content, "be brief")
	}
}

func TestTextRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final", "processed_text.json")
	text := "## Introduzione\n\nBuongiorno a tutti. \"Citazione\" finale."

	if err := SaveText(path, text); err != nil {
		t.Fatalf("SaveText() error = %v", err)
	}
	got, err := LoadText(path)
	if err != nil {
		t.Fatalf("LoadText() error = %v", err)
	}
	if got != text {
		t.Errorf("LoadText() = %q, want %q", got, text)
	}
}

func TestLoadTextMissing(t *testing.T) {
	if _, err := LoadText(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("LoadText() should fail for a missing file")
	}
}
