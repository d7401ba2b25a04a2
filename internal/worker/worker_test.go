package worker

import (
	"context"
	"testing"
	"time"

	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/media"
	"github.com/gwlsn/pipeline/internal/model"
	"github.com/gwlsn/pipeline/internal/transcode"
)

type fakeQueue struct {
	jobs        []*model.Job
	updates     []*model.Job
	completed   []*model.Job
	retried     []*model.Job
	deadLettered []*model.Job
}

func (f *fakeQueue) Dequeue(ctx context.Context) (*model.Job, error) {
	if len(f.jobs) == 0 {
		return nil, nil
	}
	j := f.jobs[0]
	f.jobs = f.jobs[1:]
	return j, nil
}
func (f *fakeQueue) Update(ctx context.Context, job *model.Job) error {
	f.updates = append(f.updates, job)
	return nil
}
func (f *fakeQueue) Complete(ctx context.Context, job *model.Job) error {
	f.completed = append(f.completed, job)
	return nil
}
func (f *fakeQueue) Retry(ctx context.Context, job *model.Job) error {
	f.retried = append(f.retried, job)
	f.jobs = append(f.jobs, job)
	return nil
}
func (f *fakeQueue) DeadLetter(ctx context.Context, job *model.Job) error {
	f.deadLettered = append(f.deadLettered, job)
	return nil
}

type fakeNotifier struct {
	successes, failures, deadLetters int
}

func (f *fakeNotifier) NotifyEncodeSuccess(ctx context.Context, job *model.Job) error {
	f.successes++
	return nil
}
func (f *fakeNotifier) NotifyEncodeFailure(ctx context.Context, job *model.Job) error {
	f.failures++
	return nil
}
func (f *fakeNotifier) NotifyDeadLetter(ctx context.Context, job *model.Job) error {
	f.deadLetters++
	return nil
}

type fakeProber struct {
	info *media.MediaInfo
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type fakeEncoder struct {
	err error
}

func (f *fakeEncoder) Encode(ctx context.Context, p transcode.EncodeParams, progressCh chan<- transcode.Progress) error {
	return f.err
}

type fakeAudioMux struct{ err error }

func (f *fakeAudioMux) Mux(ctx context.Context, input, outputPath string, decisions []media.AudioDecision) error {
	return f.err
}

type fakeSubExtract struct{}

func (f *fakeSubExtract) Extract(ctx context.Context, input, tempDir string, streams []media.SubtitleStream, decisions []media.SubtitleDecision) []transcode.SubtitleSidecar {
	return nil
}

type fakeBurnIn struct{ err error }

func (f *fakeBurnIn) Apply(ctx context.Context, videoPath string, subtitleSourceIndex int, originalInput, outputPath string) error {
	return f.err
}

type fakeContainerMux struct{ err error }

func (f *fakeContainerMux) Mux(ctx context.Context, videoPath, audioPath string, subs []transcode.SubtitleSidecar, destPath string) error {
	return f.err
}

func testProfile() config.Profile {
	return config.Profile{
		Name:          "default",
		Encoder:       config.EncoderSvtAv1,
		TargetQuality: 93,
		Audio:         config.AudioConfig{Fallback: config.FallbackPassthrough},
		Subtitles:     config.SubtitleConfig{Fallback: config.FallbackExclude, ImageSubs: config.ImageSubsCopy},
	}
}

func newTestWorker(t *testing.T, q *fakeQueue, n *fakeNotifier, encodeErr, muxErr, containerErr error) *Worker {
	t.Helper()
	info := &media.MediaInfo{
		Container: media.ContainerInfo{Size: 1000, Duration: 10 * time.Second},
		Video:     []media.VideoStream{{Index: 0, Codec: "h264"}},
	}
	return &Worker{
		Queue:          q,
		Prober:         &fakeProber{info: info},
		Encoder:        &fakeEncoder{err: encodeErr},
		AudioMuxer:     &fakeAudioMux{err: muxErr},
		SubExtract:     &fakeSubExtract{},
		BurnIn:         &fakeBurnIn{},
		ContainerMuxer: &fakeContainerMux{err: containerErr},
		Notifier:       n,
		MaxAttempts:    2,
		TempRoot:       t.TempDir(),
		ProfileLookup: func(name string) (config.Profile, bool) {
			return testProfile(), true
		},
	}
}

func TestProcessHappyPathCompletesJob(t *testing.T) {
	q := &fakeQueue{}
	n := &fakeNotifier{}
	outDir := t.TempDir()
	job := model.NewJob("job-1", "/in/a.mkv", outDir+"/nested/a.mkv", "default", time.Now())
	q.jobs = []*model.Job{job}

	w := newTestWorker(t, q, n, nil, nil, nil)
	w.process(context.Background(), job)

	if len(q.completed) != 1 {
		t.Fatalf("expected job completed, got completed=%d retried=%d dl=%d", len(q.completed), len(q.retried), len(q.deadLettered))
	}
	if job.Status != model.StatusCompleted {
		t.Errorf("expected status completed, got %s", job.Status)
	}
	if n.successes != 1 {
		t.Errorf("expected 1 success notification, got %d", n.successes)
	}
}

func TestProcessEncodeFailureRetriesWithinAttemptBudget(t *testing.T) {
	q := &fakeQueue{}
	n := &fakeNotifier{}
	job := model.NewJob("job-1", "/in/a.mkv", "/out/a.mkv", "default", time.Now())

	w := newTestWorker(t, q, n, errFakeEncode, nil, nil)
	w.process(context.Background(), job)

	if len(q.retried) != 1 {
		t.Fatalf("expected retry, got retried=%d dl=%d", len(q.retried), len(q.deadLettered))
	}
	if job.Status != model.StatusPending {
		t.Errorf("expected status pending after retry reset, got %s", job.Status)
	}
	if n.failures != 1 {
		t.Errorf("expected 1 failure notification, got %d", n.failures)
	}
}

func TestProcessDeadLettersAfterMaxAttempts(t *testing.T) {
	q := &fakeQueue{}
	n := &fakeNotifier{}
	job := model.NewJob("job-1", "/in/a.mkv", "/out/a.mkv", "default", time.Now())
	job.AttemptCount = 1 // already attempted once; MaxAttempts=2 means this attempt is the last

	w := newTestWorker(t, q, n, errFakeEncode, nil, nil)
	w.process(context.Background(), job)

	if len(q.deadLettered) != 1 {
		t.Fatalf("expected dead-letter, got retried=%d dl=%d", len(q.retried), len(q.deadLettered))
	}
	if job.Status != model.StatusDeadLetter {
		t.Errorf("expected status dead_letter, got %s", job.Status)
	}
	wantPrefix := "Exhausted 2 attempts."
	if len(job.ErrorMessage) < len(wantPrefix) || job.ErrorMessage[:len(wantPrefix)] != wantPrefix {
		t.Errorf("expected error message to start with %q, got %q", wantPrefix, job.ErrorMessage)
	}
	if n.deadLetters != 1 {
		t.Errorf("expected 1 dead-letter notification, got %d", n.deadLetters)
	}
}

func TestProcessUnknownProfileDeadLettersImmediately(t *testing.T) {
	q := &fakeQueue{}
	n := &fakeNotifier{}
	job := model.NewJob("job-1", "/in/a.mkv", "/out/a.mkv", "missing-profile", time.Now())
	job.AttemptCount = 99 // force the fail path straight to dead-letter

	w := newTestWorker(t, q, n, nil, nil, nil)
	w.ProfileLookup = func(name string) (config.Profile, bool) { return config.Profile{}, false }
	w.process(context.Background(), job)

	if len(q.deadLettered) != 1 {
		t.Fatalf("expected dead-letter for unknown profile, got %+v", q)
	}
}

var errFakeEncode = &model.EncoderError{Kind: model.ErrEncoderFailed, ExitCode: 1, Stderr: "boom"}
