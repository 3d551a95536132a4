package refine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// ErrUnsupportedModel is matched by errors.Is for any *UnsupportedModelError.
var ErrUnsupportedModel = errors.New("unsupported model")

// UnsupportedModelError reports a model the registry has no token
// accounting for.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("refine: token counting is not implemented for model %q", e.Model)
}

// Is reports whether target is ErrUnsupportedModel.
func (e *UnsupportedModelError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

// CostModel is the per-model overhead of the chat message format.
type CostModel struct {
	TokensPerMessage int
	TokensPerName    int // added when a message carries a name; may be negative
	ReplyPriming     int // every reply is primed with <|start|>assistant<|message|>
}

// Encoder turns text into model tokens.
type Encoder interface {
	Encode(text string) []int
}

type family struct {
	match    string
	fallback string
}

// Registry maps model identifiers to cost models. Pinned model names match
// exactly; families match by substring and resolve to a pinned fallback.
type Registry struct {
	pinned   map[string]CostModel
	families []family
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pinned: make(map[string]CostModel)}
}

// DefaultRegistry returns the cost models of the OpenAI chat models.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	current := CostModel{TokensPerMessage: 3, TokensPerName: 1, ReplyPriming: 3}
	for _, m := range []string{
		"gpt-3.5-turbo-0613",
		"gpt-3.5-turbo-16k-0613",
		"gpt-4-0314",
		"gpt-4-32k-0314",
		"gpt-4-0613",
		"gpt-4-32k-0613",
	} {
		r.Register(m, current)
	}
	// <|start|>{role/name}\n{content}<|end|>\n; a name replaces the role.
	r.Register("gpt-3.5-turbo-0301", CostModel{TokensPerMessage: 4, TokensPerName: -1, ReplyPriming: 3})

	r.RegisterFamily("gpt-3.5-turbo", "gpt-3.5-turbo-0613")
	r.RegisterFamily("gpt-4", "gpt-4-0613")
	return r
}

// Register adds or replaces a pinned model.
func (r *Registry) Register(model string, cost CostModel) {
	r.pinned[model] = cost
}

// RegisterFamily maps every model containing match to the pinned fallback.
// Families are tried in registration order.
func (r *Registry) RegisterFamily(match, fallback string) {
	r.families = append(r.families, family{match: match, fallback: fallback})
}

// Lookup returns the cost model for model and the pinned name it resolved to.
func (r *Registry) Lookup(model string) (CostModel, string, error) {
	if c, ok := r.pinned[model]; ok {
		return c, model, nil
	}
	for _, f := range r.families {
		if !strings.Contains(model, f.match) {
			continue
		}
		c, ok := r.pinned[f.fallback]
		if !ok {
			return CostModel{}, "", fmt.Errorf("refine: family %q falls back to unregistered model %q", f.match, f.fallback)
		}
		slog.Warn("model may update over time, assuming pinned token costs", "model", model, "assumed", f.fallback)
		return c, f.fallback, nil
	}
	return CostModel{}, "", &UnsupportedModelError{Model: model}
}

// Estimate returns the prompt token count of messages under model.
func (r *Registry) Estimate(model string, messages []Message, enc Encoder) (int, error) {
	cost, _, err := r.Lookup(model)
	if err != nil {
		return 0, err
	}
	return cost.Count(messages, enc), nil
}

// Count applies the cost model to messages.
func (c CostModel) Count(messages []Message, enc Encoder) int {
	n := 0
	for _, m := range messages {
		n += c.TokensPerMessage
		n += len(enc.Encode(m.Role))
		n += len(enc.Encode(m.Content))
		if m.Name != "" {
			n += len(enc.Encode(m.Name))
			n += c.TokensPerName
		}
	}
	return n + c.ReplyPriming
}

// Models returns the pinned model names, sorted.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.pinned))
	for m := range r.pinned {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

const fallbackEncoding = "cl100k_base"

// TiktokenEncoder counts tokens with the model's BPE ranks.
type TiktokenEncoder struct {
	tke *tiktoken.Tiktoken
}

// NewTiktokenEncoder returns the encoding for model, or cl100k_base when
// the model is not known to tiktoken.
func NewTiktokenEncoder(model string) (*TiktokenEncoder, error) {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Warn("model not found, using fallback encoding", "model", model, "encoding", fallbackEncoding)
		tke, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("refine: loading %s encoding: %w", fallbackEncoding, err)
		}
	}
	return &TiktokenEncoder{tke: tke}, nil
}

// Encode returns the token ids of text, treating special tokens as text.
func (e *TiktokenEncoder) Encode(text string) []int {
	return e.tke.Encode(text, nil, nil)
}
