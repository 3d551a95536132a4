package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// Recorder captures a lecture from the default microphone into a float32
// buffer so it can be saved as the pipeline's source recording.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32

	mu        sync.Mutex
	buf       []float32
	recording bool
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing capture context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Start begins capturing audio from the default microphone.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return fmt.Errorf("audio: already recording")
	}
	r.buf = r.buf[:0]
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.setRecording(false)
		return fmt.Errorf("audio: initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.setRecording(false)
		return fmt.Errorf("audio: starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

// Stop ends the capture and returns a copy of the recorded samples, or nil
// if nothing was being recorded.
func (r *Recorder) Stop() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}

	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false

	result := make([]float32, len(r.buf))
	copy(result, r.buf)
	return result
}

// Record captures until ctx is done and returns the samples.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	if err := r.Start(); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for r.IsRecording() {
		select {
		case <-ctx.Done():
			return r.Stop(), nil
		case <-ticker.C:
			slog.Info("recording", "captured", r.captured().Round(time.Second))
		}
	}
	// Close ran while capturing.
	return nil, fmt.Errorf("audio: capture stopped before the recording ended")
}

// captured is the length of audio buffered so far.
func (r *Recorder) captured() time.Duration {
	r.mu.Lock()
	n := len(r.buf)
	r.mu.Unlock()
	frames := n / int(r.channels)
	return time.Duration(frames) * time.Second / time.Duration(r.sampleRate)
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.device != nil {
		r.device.Uninit()
		r.device = nil
	}
	r.recording = false
	r.mu.Unlock()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing capture context: %w", err)
		}
		r.ctx.Free()
	}
	return nil
}

func (r *Recorder) setRecording(v bool) {
	r.mu.Lock()
	r.recording = v
	r.mu.Unlock()
}

// SaveRecording writes samples into dir as lecture-<timestamp>.wav and returns
// the path. dir is created if needed.
func SaveRecording(dir string, samples []float32, sampleRate, channels uint32, now time.Time) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("audio: nothing was recorded")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("audio: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "lecture-"+now.Format("20060102-150405")+".wav")
	if err := WriteWAV(path, samples, int(sampleRate), int(channels)); err != nil {
		return "", err
	}
	return path, nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured audio frames as raw bytes (float32 format).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := bytesToFloat32(pSample, frameCount*r.channels)

	r.mu.Lock()
	r.buf = append(r.buf, samples...)
	r.mu.Unlock()
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
