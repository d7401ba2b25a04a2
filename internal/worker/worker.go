// Package worker implements the single-worker phase state machine that
// drives one job at a time from dequeue to completion (spec.md §4.6).
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/media"
	"github.com/gwlsn/pipeline/internal/metrics"
	"github.com/gwlsn/pipeline/internal/model"
	"github.com/gwlsn/pipeline/internal/notify"
	"github.com/gwlsn/pipeline/internal/transcode"
)

// Queue is the narrow subset of *queue.Queue the worker needs, seamed for
// testing with an in-memory fake.
type Queue interface {
	Dequeue(ctx context.Context) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	Complete(ctx context.Context, job *model.Job) error
	Retry(ctx context.Context, job *model.Job) error
	DeadLetter(ctx context.Context, job *model.Job) error
}

// Notifier is the narrow subset of *notify.DiscordNotifier the worker
// needs.
type Notifier interface {
	NotifyEncodeSuccess(ctx context.Context, job *model.Job) error
	NotifyEncodeFailure(ctx context.Context, job *model.Job) error
	NotifyDeadLetter(ctx context.Context, job *model.Job) error
}

var (
	_ Notifier = (*notify.DiscordNotifier)(nil)
	_ Notifier = (*notify.AuditedNotifier)(nil)
)

// The adapter interfaces below mirror the concrete transcode/media
// adapters method-for-method, letting tests substitute fakes instead of
// spawning real subprocesses — the same seam Queue and Notifier give the
// store and webhook sink.
type ProbeAdapter interface {
	Probe(ctx context.Context, path string) (*media.MediaInfo, error)
}

type EncodeAdapter interface {
	Encode(ctx context.Context, p transcode.EncodeParams, progressCh chan<- transcode.Progress) error
}

type AudioMuxAdapter interface {
	Mux(ctx context.Context, input, outputPath string, decisions []media.AudioDecision) error
}

type SubtitleExtractAdapter interface {
	Extract(ctx context.Context, input, tempDir string, streams []media.SubtitleStream, decisions []media.SubtitleDecision) []transcode.SubtitleSidecar
}

type BurnInAdapter interface {
	Apply(ctx context.Context, videoPath string, subtitleSourceIndex int, originalInput, outputPath string) error
}

type ContainerMuxAdapter interface {
	Mux(ctx context.Context, videoPath, audioPath string, subs []transcode.SubtitleSidecar, destPath string) error
}

var (
	_ ProbeAdapter           = (*media.Prober)(nil)
	_ EncodeAdapter          = (*transcode.VideoEncoder)(nil)
	_ AudioMuxAdapter        = (*transcode.AudioMuxer)(nil)
	_ SubtitleExtractAdapter = (*transcode.SubtitleExtractor)(nil)
	_ BurnInAdapter          = (*transcode.BurnIn)(nil)
	_ ContainerMuxAdapter    = (*transcode.ContainerMuxer)(nil)
)

// Worker runs the sequential phase pipeline for one job at a time. There
// is exactly one worker and therefore at most one active encoding
// pipeline, per spec.md §5.
type Worker struct {
	Queue          Queue
	Prober         ProbeAdapter
	Encoder        EncodeAdapter
	AudioMuxer     AudioMuxAdapter
	SubExtract     SubtitleExtractAdapter
	BurnIn         BurnInAdapter
	ContainerMuxer ContainerMuxAdapter
	Notifier       Notifier

	IdleSleep   time.Duration
	ErrorSleep  time.Duration
	MaxAttempts int
	TempRoot    string

	// Progress forwards every [10,80]%-scaled encode update for the
	// in-flight job; nil is a valid no-op sink.
	Progress chan<- JobProgress

	// ProfileLookup resolves a job's profile for per-profile settings
	// (encoder, target quality, audio/subtitle config) at dequeue time.
	ProfileLookup func(name string) (config.Profile, bool)
}

// JobProgress is one [10,80]-scaled percent update for a given job.
type JobProgress struct {
	JobID   string
	Percent float64
}

// Run loops dequeue -> process until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.Queue.Dequeue(ctx)
		if err != nil {
			logging.Error("dequeue failed", "error", err)
			sleepOrDone(ctx, w.errorSleep())
			continue
		}
		if job == nil {
			sleepOrDone(ctx, w.idleSleep())
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) idleSleep() time.Duration {
	if w.IdleSleep > 0 {
		return w.IdleSleep
	}
	return 5 * time.Second
}

func (w *Worker) errorSleep() time.Duration {
	if w.ErrorSleep > 0 {
		return w.ErrorSleep
	}
	return 10 * time.Second
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// process drives one job through every phase (spec.md §4.6), handling
// failure at any phase boundary via retry-or-dead-letter routing.
func (w *Worker) process(ctx context.Context, job *model.Job) {
	profile, ok := w.ProfileLookup(job.ProfileName)
	if !ok {
		w.fail(ctx, job, fmt.Sprintf("unknown profile %q", job.ProfileName))
		return
	}

	now := time.Now()
	job.Start(now)
	if err := w.Queue.Update(ctx, job); err != nil {
		logging.Error("failed to persist job start", "job_id", job.ID, "error", err)
	}

	tempDir, err := os.MkdirTemp(w.TempRoot, "pipeline-"+job.ID+"-")
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("create temp dir: %v", err))
		return
	}
	defer os.RemoveAll(tempDir)

	startClock := time.Now()

	info, err := w.Prober.Probe(ctx, job.SourcePath)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("probe: %v", err))
		return
	}

	audioDecisions := media.DecideAudio(info.Audio, profile.Audio)
	subtitleDecisions := media.DowngradeExtraBurnIns(media.DecideSubtitles(info.Subtitle, profile.Subtitles))

	job.Phase = model.PhaseExtractingSubs
	_ = w.Queue.Update(ctx, job)
	sidecars := w.SubExtract.Extract(ctx, job.SourcePath, tempDir, info.Subtitle, subtitleDecisions)

	videoPath := filepath.Join(tempDir, "video.mkv")
	job.Phase = model.PhaseEncodingVideo
	_ = w.Queue.Update(ctx, job)

	rawProgress := make(chan transcode.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range rawProgress {
			if p.Percent == nil {
				continue
			}
			scaled := 10 + (*p.Percent)*0.70
			job.SetProgress(scaled)
			w.emitProgress(job.ID, scaled)
		}
	}()

	encodeErr := w.Encoder.Encode(ctx, transcode.EncodeParams{
		Input:         job.SourcePath,
		Output:        videoPath,
		TempDir:       tempDir,
		EncoderName:   profile.Encoder,
		TargetQuality: profile.TargetQuality,
		WorkerCount:   profile.WorkerCountHint,
	}, rawProgress)
	close(rawProgress)
	<-done

	if encodeErr != nil {
		w.fail(ctx, job, fmt.Sprintf("encode: %v", encodeErr))
		return
	}

	burnIn := firstBurnIn(subtitleDecisions)
	if burnIn != nil {
		job.Phase = model.PhaseBurningIn
		_ = w.Queue.Update(ctx, job)
		burnedPath := filepath.Join(tempDir, "video_burned.mkv")
		if err := w.BurnIn.Apply(ctx, videoPath, burnIn.SourceIndex, job.SourcePath, burnedPath); err != nil {
			w.fail(ctx, job, fmt.Sprintf("burn_in: %v", err))
			return
		}
		videoPath = burnedPath
	}

	job.Phase = model.PhaseProcessingAudio
	_ = w.Queue.Update(ctx, job)
	audioPath := filepath.Join(tempDir, "audio.mka")
	if err := w.AudioMuxer.Mux(ctx, job.SourcePath, audioPath, audioDecisions); err != nil {
		w.fail(ctx, job, fmt.Sprintf("audio_mux: %v", err))
		return
	}

	job.Phase = model.PhaseMuxing
	_ = w.Queue.Update(ctx, job)
	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0o755); err != nil {
		w.fail(ctx, job, fmt.Sprintf("create output directory: %v", err))
		return
	}
	muxSubs := nonBurnInSidecars(sidecars, subtitleDecisions)
	if err := w.ContainerMuxer.Mux(ctx, videoPath, audioPath, muxSubs, job.DestPath); err != nil {
		w.fail(ctx, job, fmt.Sprintf("mux: %v", err))
		return
	}

	job.Phase = model.PhaseVerifying
	_ = w.Queue.Update(ctx, job)
	outInfo, err := w.Prober.Probe(ctx, job.DestPath)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("verify probe: %v", err))
		return
	}
	if len(outInfo.Video) == 0 {
		w.fail(ctx, job, (&model.VerificationError{Reason: "output has zero video streams"}).Error())
		return
	}

	encodeDuration := time.Since(startClock)
	var speed float64
	if encodeDuration > 0 {
		speed = outInfo.Container.Duration.Seconds() / encodeDuration.Seconds()
	}
	result := model.ResultMetadata{
		InputBytes:     info.Container.Size,
		OutputBytes:    outInfo.Container.Size,
		EncodeDuration: encodeDuration,
		VideoDuration:  outInfo.Container.Duration,
		EncodingSpeed:  speed,
	}
	job.Complete(time.Now(), result)
	if err := w.Queue.Complete(ctx, job); err != nil {
		logging.Error("failed to persist job completion", "job_id", job.ID, "error", err)
	}

	metrics.EncodesTotal.WithLabelValues("success").Inc()
	metrics.EncodeDuration.Observe(result.EncodeDuration.Seconds())
	if ratio := result.CompressionRatio(); ratio > 0 {
		metrics.SizeReductionRatio.Observe(1 / ratio)
	}
	if result.QualityScore != nil {
		metrics.QualityScore.Observe(*result.QualityScore)
	}

	if w.Notifier != nil {
		if err := w.Notifier.NotifyEncodeSuccess(ctx, job); err != nil {
			logging.Warn("encode-success notification failed", "job_id", job.ID, "error", err)
		}
	}
	logging.Info("job completed", "job_id", job.ID, "source", job.SourcePath, "dest", job.DestPath)
}

// fail applies the §4.6 failure-handling policy: retry while attempts
// remain, else dead-letter with the "Exhausted N attempts" message.
func (w *Worker) fail(ctx context.Context, job *model.Job, msg string) {
	now := time.Now()
	job.Fail(now, msg)
	logging.Warn("job phase failed", "job_id", job.ID, "attempt", job.AttemptCount, "error", msg)

	if job.AttemptCount < w.maxAttempts() {
		job.ResetForRetry(now)
		if err := w.Queue.Retry(ctx, job); err != nil {
			logging.Error("failed to requeue job for retry", "job_id", job.ID, "error", err)
		}
		metrics.EncodesTotal.WithLabelValues("failure").Inc()
		if w.Notifier != nil {
			if nerr := w.Notifier.NotifyEncodeFailure(ctx, job); nerr != nil {
				logging.Warn("encode-failure notification failed", "job_id", job.ID, "error", nerr)
			}
		}
		return
	}

	reason := fmt.Sprintf("Exhausted %d attempts. Last error: %s", job.AttemptCount, msg)
	job.DeadLetter(now, reason)
	if err := w.Queue.DeadLetter(ctx, job); err != nil {
		logging.Error("failed to dead-letter job", "job_id", job.ID, "error", err)
	}
	metrics.EncodesTotal.WithLabelValues("dead_letter").Inc()
	if w.Notifier != nil {
		if nerr := w.Notifier.NotifyDeadLetter(ctx, job); nerr != nil {
			logging.Warn("dead-letter notification failed", "job_id", job.ID, "error", nerr)
		}
	}
}

func (w *Worker) maxAttempts() int {
	if w.MaxAttempts > 0 {
		return w.MaxAttempts
	}
	return 3
}

func (w *Worker) emitProgress(jobID string, percent float64) {
	if w.Progress == nil {
		return
	}
	select {
	case w.Progress <- JobProgress{JobID: jobID, Percent: percent}:
	default:
	}
}

// firstBurnIn returns the first (and, after DowngradeExtraBurnIns, only)
// burn-in subtitle decision, or nil.
func firstBurnIn(decisions []media.SubtitleDecision) *media.SubtitleDecision {
	for i := range decisions {
		if decisions[i].Action == media.SubtitleBurnIn {
			return &decisions[i]
		}
	}
	return nil
}

// nonBurnInSidecars filters out the sidecar of the track consumed by
// burn-in: Extract writes a sidecar for every non-exclude decision, the
// burn-in one included, and that track is already rendered into the video.
func nonBurnInSidecars(sidecars []transcode.SubtitleSidecar, decisions []media.SubtitleDecision) []transcode.SubtitleSidecar {
	burnInIndex := -1
	if bi := firstBurnIn(decisions); bi != nil {
		burnInIndex = bi.SourceIndex
	}
	out := make([]transcode.SubtitleSidecar, 0, len(sidecars))
	for _, s := range sidecars {
		if s.SourceIndex == burnInIndex {
			continue
		}
		out = append(out, s)
	}
	return out
}
