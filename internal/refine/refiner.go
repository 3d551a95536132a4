package refine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chaz8081/sbobinator/internal/artifact"
	"github.com/chaz8081/sbobinator/internal/config"
)

// Refiner sends each transcript fragment through a Completer.
type Refiner struct {
	completer Completer
	encoder   Encoder // nil disables prompt estimates

	// Registry resolves token costs for the configured model.
	Registry *Registry

	model           string
	systemPrompt    string
	temperature     float32
	seed            int
	maxPromptTokens int
	maxDriftRate    float64 // 0 skips the drift check

	measure func(raw, refined string) Drift
}

// NewRefiner creates a Refiner from the refine config section.
func NewRefiner(cfg *config.RefineConfig, completer Completer, encoder Encoder) *Refiner {
	return &Refiner{
		completer:       completer,
		encoder:         encoder,
		Registry:        DefaultRegistry(),
		model:           cfg.Model,
		systemPrompt:    cfg.SystemPrompt,
		temperature:     cfg.Temperature,
		seed:            cfg.Seed,
		maxPromptTokens: cfg.MaxPromptTokens,
		maxDriftRate:    cfg.MaxDriftRate,
		measure:         MeasureDrift,
	}
}

// Refine refines every fragment in order and joins the outputs with single
// spaces. Any failure aborts the whole run.
func (r *Refiner) Refine(ctx context.Context, fragments []string) (string, error) {
	cost, resolved, err := r.Registry.Lookup(r.model)
	if err != nil {
		return "", err
	}

	out := make([]string, 0, len(fragments))
	for i, fragment := range fragments {
		msgs := PrepareMessages(r.systemPrompt, fragment)

		if r.encoder != nil {
			n := cost.Count(msgs, r.encoder)
			slog.Debug("prompt estimate", "fragment", i+1, "tokens", n, "cost_model", resolved)
			if r.maxPromptTokens > 0 && n > r.maxPromptTokens {
				slog.Warn("prompt exceeds token budget", "fragment", i+1, "tokens", n, "max", r.maxPromptTokens)
			}
		}

		slog.Info("refining fragment", "fragment", fmt.Sprintf("%d/%d", i+1, len(fragments)), "model", r.model)
		seed := r.seed
		text, err := r.completer.Complete(ctx, Request{
			Model:       r.model,
			Messages:    msgs,
			Temperature: r.temperature,
			Seed:        &seed,
		})
		if err != nil {
			return "", fmt.Errorf("refine: fragment %d: %w", i+1, err)
		}

		if r.maxDriftRate > 0 {
			r.checkDrift(i+1, fragment, text)
		}
		out = append(out, text)
	}
	return strings.Join(out, " "), nil
}

func (r *Refiner) checkDrift(n int, raw, refined string) {
	d := r.measure(raw, refined)
	slog.Debug("fragment drift", "fragment", n, "rate", fmt.Sprintf("%.3f", d.Rate()),
		"sub", d.Substitutions, "ins", d.Insertions, "del", d.Deletions)
	if d.Rate() > r.maxDriftRate {
		slog.Warn("refined fragment strays from the transcript", "fragment", n,
			"rate", fmt.Sprintf("%.3f", d.Rate()), "max", r.maxDriftRate, "deleted_words", d.Deletions)
	}
}

// SaveText persists the refined document as a JSON string.
func SaveText(path, text string) error {
	return artifact.WriteJSON(path, text)
}

// LoadText reads a document written by SaveText.
func LoadText(path string) (string, error) {
	var text string
	if err := artifact.ReadJSON(path, &text); err != nil {
		return "", fmt.Errorf("refine: %w", err)
	}
	return text, nil
}
