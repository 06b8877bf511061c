package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipwatch/internal/boundary"
	"clipwatch/internal/logging"
)

// Mode selects how segments are cut.
type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeBoundary Mode = "boundary"
)

// Segment length bounds for fixed mode.
const (
	MinSegmentLength     = time.Second
	MaxSegmentLength     = 60 * time.Second
	DefaultSegmentLength = 10 * time.Second
)

// Uploader hands a finished segment file to the gateway.
type Uploader interface {
	UploadSegment(ctx context.Context, path string) (Upload, error)
}

// Upload is what the gateway reported for a segment.
type Upload struct {
	Segment    string
	StoredPath string
	RequestIDs []string
}

// Options configures a Recorder.
type Options struct {
	Mode          Mode
	SegmentLength time.Duration
	WorkDir       string
	// ResetOnExit clears the session's uploads whenever the detector leaves a
	// reference run, starting a new logical unit.
	ResetOnExit bool
	// KeepSegments leaves local files in WorkDir after a successful upload.
	KeepSegments bool
}

// Recorder owns the encoder lifecycle.
type Recorder struct {
	opts     Options
	encoder  Encoder
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current string
	seq     int
	status  string
	uploads []Upload

	uploadWG sync.WaitGroup
}

// New builds a recorder. SegmentLength is clamped to 1..60s.
func New(opts Options, encoder Encoder, uploader Uploader, logger *slog.Logger) *Recorder {
	switch {
	case opts.SegmentLength <= 0:
		opts.SegmentLength = DefaultSegmentLength
	case opts.SegmentLength < MinSegmentLength:
		opts.SegmentLength = MinSegmentLength
	case opts.SegmentLength > MaxSegmentLength:
		opts.SegmentLength = MaxSegmentLength
	}
	if opts.Mode == "" {
		opts.Mode = ModeFixed
	}
	return &Recorder{
		opts:     opts,
		encoder:  encoder,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "recorder"),
		now:      time.Now,
		status:   "idle",
	}
}

// Status is the operator-facing state line.
func (r *Recorder) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Uploads returns the uploads recorded since the last reset.
func (r *Recorder) Uploads() []Upload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Upload(nil), r.uploads...)
}

// Recording reports whether a segment is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != ""
}

// StartSegment opens a new segment. Errors abort the cycle and are reflected
// in Status; they are not retried.
func (r *Recorder) StartSegment(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != "" {
		return ErrEncoderBusy
	}
	if err := os.MkdirAll(r.opts.WorkDir, 0o755); err != nil {
		return r.failLocked("start", fmt.Errorf("create work dir: %w", err))
	}
	r.seq++
	dst := filepath.Join(r.opts.WorkDir, fmt.Sprintf("segment_%04d_%d.webm", r.seq, r.now().UnixMilli()))
	if err := r.encoder.Start(ctx, dst); err != nil {
		return r.failLocked("start", err)
	}
	r.current = dst
	r.status = fmt.Sprintf("recording segment %d", r.seq)
	r.logger.Debug("segment started", logging.String(logging.FieldSourcePath, dst))
	return nil
}

// StopSegment closes the open segment and queues it for upload. It returns
// the finished file path.
func (r *Recorder) StopSegment(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == "" {
		return "", ErrEncoderIdle
	}
	path := r.current
	r.current = ""
	if err := r.encoder.Stop(ctx); err != nil {
		return "", r.failLocked("stop", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		r.status = fmt.Sprintf("segment %d empty, discarded", r.seq)
		_ = os.Remove(path)
		return "", nil
	}
	r.status = fmt.Sprintf("segment %d saved, uploading", r.seq)
	r.uploadWG.Add(1)
	go r.upload(context.WithoutCancel(ctx), path)
	return path, nil
}

// Wait blocks until queued uploads finish.
func (r *Recorder) Wait() {
	r.uploadWG.Wait()
}

func (r *Recorder) upload(ctx context.Context, path string) {
	defer r.uploadWG.Done()
	if r.uploader == nil {
		return
	}
	res, err := r.uploader.UploadSegment(ctx, path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status = fmt.Sprintf("upload failed: %v", err)
		logging.WarnWithContext(r.logger, "segment upload failed", "segment_upload_failed",
			logging.String(logging.FieldSourcePath, path),
			logging.String(logging.FieldErrorHint, "check the gateway is reachable; the segment was kept locally"),
			logging.String(logging.FieldImpact, "segment not ingested"),
			logging.Error(err),
		)
		return
	}
	res.Segment = path
	r.uploads = append(r.uploads, res)
	r.status = fmt.Sprintf("uploaded %s", filepath.Base(path))
	r.logger.Info("segment uploaded",
		logging.String(logging.FieldSourcePath, path),
		logging.String("stored_path", res.StoredPath),
	)
	if !r.opts.KeepSegments {
		_ = os.Remove(path)
	}
}

func (r *Recorder) failLocked(op string, err error) error {
	r.status = fmt.Sprintf("%s error: %v", op, err)
	logging.ErrorWithContext(r.logger, "encoder "+op+" failed", "encoder_"+op+"_failed",
		logging.String(logging.FieldErrorHint, "re-trigger the recorder once the capture source is available"),
		logging.Error(err),
	)
	return fmt.Errorf("encoder %s: %w", op, err)
}

// RunFixed records back-to-back segments of SegmentLength until ctx is done.
// The open segment is flushed and uploaded on exit. A start or stop error ends
// the run.
func (r *Recorder) RunFixed(ctx context.Context) error {
	if err := r.StartSegment(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(r.opts.SegmentLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_, err := r.StopSegment(context.WithoutCancel(ctx))
			r.setStatus("stopped")
			return err
		case <-ticker.C:
			if _, err := r.StopSegment(ctx); err != nil {
				return err
			}
			if err := r.StartSegment(ctx); err != nil {
				return err
			}
		}
	}
}

// HandleTransition cuts segments on detector transitions: entering a
// reference run closes the content segment and leaving one opens the next.
// Errors only update Status so the next transition can re-trigger.
func (r *Recorder) HandleTransition(ctx context.Context, obs boundary.Observation) {
	switch obs.Transition {
	case boundary.Entered:
		if r.Recording() {
			if _, err := r.StopSegment(ctx); err != nil {
				return
			}
		}
		r.setStatus("reference detected, paused")
	case boundary.Exited:
		if r.opts.ResetOnExit {
			r.mu.Lock()
			r.uploads = nil
			r.mu.Unlock()
		}
		if !r.Recording() {
			_ = r.StartSegment(ctx)
		}
	}
}

// RunBoundary records content between reference runs reported by sampler.
// Recording starts immediately since the feed begins outside any reference.
func (r *Recorder) RunBoundary(ctx context.Context, sampler *boundary.Sampler) error {
	if sampler == nil || sampler.Detector == nil || !sampler.Detector.Enabled() {
		return errors.New("boundary mode needs at least one reference signature")
	}
	sampler.OnTransition = r.HandleTransition
	if err := r.StartSegment(ctx); err != nil {
		return err
	}
	err := sampler.Run(ctx)
	if r.Recording() {
		_, _ = r.StopSegment(context.WithoutCancel(ctx))
	}
	r.setStatus("stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run dispatches on the configured mode. In boundary mode a nil sampler or one
// without references falls back to fixed segmentation.
func (r *Recorder) Run(ctx context.Context, sampler *boundary.Sampler) error {
	if r.opts.Mode == ModeBoundary {
		if sampler != nil && sampler.Detector != nil && sampler.Detector.Enabled() {
			return r.RunBoundary(ctx, sampler)
		}
		logging.WarnWithContext(r.logger, "boundary detection unavailable, using fixed segments", "boundary_fallback",
			logging.String(logging.FieldErrorHint, "add reference clips to the template directory"),
			logging.String(logging.FieldImpact, "segments are cut on a timer"),
		)
	}
	err := r.RunFixed(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Recorder) setStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}
