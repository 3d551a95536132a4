// Package pipeline runs the lecture-to-document stages in order, skipping
// every stage the checkpoint manifest reports as already completed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/chaz8081/sbobinator/internal/audio"
	"github.com/chaz8081/sbobinator/internal/checkpoint"
	"github.com/chaz8081/sbobinator/internal/config"
	"github.com/chaz8081/sbobinator/internal/refine"
	"github.com/chaz8081/sbobinator/internal/render"
	"github.com/chaz8081/sbobinator/internal/transcribe"
)

// Deps are the collaborators a run talks to. They are constructed once per
// run by the caller.
type Deps struct {
	Codec       audio.Codec
	Transcriber transcribe.Transcriber
	Completer   refine.Completer
	Encoder     refine.Encoder // optional; enables prompt token estimates
	PDF         render.PDFConverter
	Manifest    *checkpoint.Manifest
}

// Artifacts are the on-disk outputs of each stage.
type Artifacts struct {
	Chunks      string // directory of split_<n> files
	Transcripts string
	RawHTML     string
	Refined     string
	HTML        string
	PDF         string
}

// ArtifactPaths derives the artifact locations from the configured dirs.
func ArtifactPaths(cfg *config.Config) Artifacts {
	return Artifacts{
		Chunks:      cfg.Paths.ProcessedDir,
		Transcripts: filepath.Join(cfg.Paths.FinalDir, "transcripts.json"),
		RawHTML:     filepath.Join(cfg.Paths.OutDir, "raw_transcript.html"),
		Refined:     filepath.Join(cfg.Paths.FinalDir, "processed_text.json"),
		HTML:        filepath.Join(cfg.Paths.OutDir, "transcript.html"),
		PDF:         filepath.Join(cfg.Paths.OutDir, "transcript.pdf"),
	}
}

// Step is one stage and the artifact that marks it complete.
type Step struct {
	Stage    checkpoint.Stage
	Artifact string
	run      func(ctx context.Context) error
}

// Pipeline sequences the stages for one configuration.
type Pipeline struct {
	cfg       *config.Config
	deps      Deps
	artifacts Artifacts
}

// New creates a Pipeline. Dependencies are checked when the stage that
// needs them actually runs, so a fully completed run needs none of them.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, deps: deps, artifacts: ArtifactPaths(cfg)}
}

// Steps returns the enabled stages in execution order.
func (p *Pipeline) Steps() []Step {
	a := p.artifacts
	steps := []Step{
		{Stage: checkpoint.StageChunk, Artifact: a.Chunks, run: p.splitAudio},
		{Stage: checkpoint.StageTranscribe, Artifact: a.Transcripts, run: p.transcribeChunks},
		{Stage: checkpoint.StageRenderRaw, Artifact: a.RawHTML, run: p.renderRaw},
		{Stage: checkpoint.StageRefine, Artifact: a.Refined, run: p.refineText},
		{Stage: checkpoint.StageRenderHTML, Artifact: a.HTML, run: p.renderHTML},
	}
	if p.cfg.Render.PDF {
		steps = append(steps, Step{Stage: checkpoint.StageRenderPDF, Artifact: a.PDF, run: p.renderPDF})
	}
	return steps
}

// Run executes every stage not yet completed. Once a stage runs, every later
// stage runs too, since its input changed. The first failing stage stops the
// run and later stages do not start.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.deps.Manifest == nil {
		return errors.New("pipeline: no checkpoint manifest")
	}

	slog.Info("pipeline starting", "run_id", p.deps.Manifest.RunID())
	start := time.Now()
	stale := false
	for _, s := range p.Steps() {
		ran, err := p.runStep(ctx, s, stale)
		if err != nil {
			return err
		}
		stale = stale || ran
	}
	slog.Info("pipeline done", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// runStep reports whether the stage actually ran.
func (p *Pipeline) runStep(ctx context.Context, s Step, stale bool) (bool, error) {
	if stale {
		slog.Info("upstream stage re-ran", "stage", s.Stage)
	} else {
		done, err := p.deps.Manifest.Completed(ctx, s.Stage, s.Artifact)
		if err != nil {
			return false, fmt.Errorf("pipeline: %s: checking checkpoint: %w", s.Stage, err)
		}
		if done {
			slog.Info("stage already completed, skipping", "stage", s.Stage, "artifact", s.Artifact)
			return false, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("pipeline: %s: %w", s.Stage, err)
	}

	slog.Info("stage starting", "stage", s.Stage)
	start := time.Now()
	if err := s.run(ctx); err != nil {
		return false, fmt.Errorf("pipeline: %s: %w", s.Stage, err)
	}
	if err := p.deps.Manifest.MarkDone(ctx, s.Stage, s.Artifact); err != nil {
		return false, fmt.Errorf("pipeline: %s: recording checkpoint: %w", s.Stage, err)
	}
	slog.Info("stage done", "stage", s.Stage, "elapsed", time.Since(start).Round(time.Millisecond))
	return true, nil
}

func (p *Pipeline) splitAudio(ctx context.Context) error {
	if p.deps.Codec == nil {
		return errors.New("no audio codec configured")
	}
	chunker := audio.NewChunker(p.deps.Codec, p.cfg.Audio.Format)
	chunks, err := chunker.Split(ctx, p.cfg.Paths.RawDir, p.artifacts.Chunks, p.cfg.Audio.MaxChunkSizeMB*audio.MB)
	if err != nil {
		return err
	}
	slog.Info("chunks written", "count", len(chunks), "dir", p.artifacts.Chunks)
	return nil
}

func (p *Pipeline) transcribeChunks(ctx context.Context) error {
	if p.deps.Transcriber == nil {
		return errors.New("no transcriber configured")
	}
	fragments, err := transcribe.TranscribeChunks(ctx, p.deps.Transcriber, p.artifacts.Chunks, p.cfg.Transcribe.Language)
	if err != nil {
		return err
	}
	return transcribe.SaveTranscripts(p.artifacts.Transcripts, transcribe.Texts(fragments))
}

func (p *Pipeline) renderRaw(_ context.Context) error {
	texts, err := transcribe.LoadTranscripts(p.artifacts.Transcripts)
	if err != nil {
		return err
	}
	return render.WriteHTML(strings.Join(texts, " "), p.artifacts.RawHTML, "Raw transcript")
}

func (p *Pipeline) refineText(ctx context.Context) error {
	if p.deps.Completer == nil {
		return errors.New("no chat completer configured")
	}
	texts, err := transcribe.LoadTranscripts(p.artifacts.Transcripts)
	if err != nil {
		return err
	}
	refiner := refine.NewRefiner(&p.cfg.Refine, p.deps.Completer, p.deps.Encoder)
	text, err := refiner.Refine(ctx, texts)
	if err != nil {
		return err
	}
	return refine.SaveText(p.artifacts.Refined, text)
}

func (p *Pipeline) renderHTML(_ context.Context) error {
	text, err := refine.LoadText(p.artifacts.Refined)
	if err != nil {
		return err
	}
	return render.WriteHTML(text, p.artifacts.HTML, "Transcript")
}

func (p *Pipeline) renderPDF(ctx context.Context) error {
	if p.deps.PDF == nil {
		return errors.New("no pdf converter configured")
	}
	return p.deps.PDF.Convert(ctx, p.artifacts.HTML, p.artifacts.PDF)
}
