// Package supervisor wires the folder watchers, stability tracker, worker,
// metrics endpoint, and config-reload watcher together and runs them until
// a shutdown signal arrives (spec.md §4.7).
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/gwlsn/pipeline/internal/auditstore"
	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/media"
	"github.com/gwlsn/pipeline/internal/metrics"
	"github.com/gwlsn/pipeline/internal/model"
	"github.com/gwlsn/pipeline/internal/notify"
	"github.com/gwlsn/pipeline/internal/queue"
	"github.com/gwlsn/pipeline/internal/transcode"
	"github.com/gwlsn/pipeline/internal/watch"
	"github.com/gwlsn/pipeline/internal/worker"
)

// Options configures a single supervisor run.
type Options struct {
	ConfigWatcher   *config.Watcher
	Queue           *queue.Queue
	Notifier        *notify.DiscordNotifier
	AuditStore      *auditstore.Store
	DryRun          bool
	ProcessExisting bool
}

// Supervisor owns every long-running task: one folder watcher per
// profile, the stability-tracker tick, the worker loop, the metrics
// endpoint, and the config-reload watcher.
type Supervisor struct {
	opts Options

	detected chan watch.DetectedFile
	ready    chan watch.ReadyEvent
}

func New(opts Options) *Supervisor {
	return &Supervisor{
		opts:     opts,
		detected: make(chan watch.DetectedFile, 64),
		ready:    make(chan watch.ReadyEvent, 64),
	}
}

// Run starts every task and blocks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg := s.opts.ConfigWatcher.Get()

	if reconciled, err := s.opts.Queue.ReconcileInFlight(ctx); err != nil {
		logging.Error("startup reconciliation failed", "error", err)
	} else if reconciled > 0 {
		logging.Info("reconciled stuck in-flight jobs at startup", "count", reconciled)
	}

	s.auditConfig(cfg)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	tracker := watch.NewStabilityTracker(time.Duration(cfg.Global.Stability.StabilityDuration), s.ready)

	for _, profile := range cfg.Profiles {
		profile := profile
		fw := watch.NewFolderWatcher(profile.Name, profile.InputPath, profile.Recursive, profile.FilePatterns, s.detected)

		if s.opts.ProcessExisting {
			if err := fw.ScanExisting(); err != nil {
				logging.Warn("scan_existing failed", "profile", profile.Name, "error", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fw.Run(stop); err != nil {
				logging.Error("folder watcher failed, profile disabled", "profile", profile.Name, "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.trackDetections(stop, tracker)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickStability(stop, tracker, time.Duration(cfg.Global.Stability.PollInterval))
	}()

	jobCh := make(chan *model.Job, 64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.enqueueReady(ctx, stop, jobCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case job, ok := <-jobCh:
				if !ok {
					return
				}
				if s.opts.DryRun {
					logging.Info("dry_run: would enqueue job", "job_id", job.ID, "source", job.SourcePath, "dest", job.DestPath)
					continue
				}
				if err := s.opts.Queue.Enqueue(ctx, job); err != nil {
					logging.Error("enqueue failed", "source", job.SourcePath, "error", err)
				}
			}
		}
	}()

	if !s.opts.DryRun {
		w := s.buildWorker(cfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	if cfg.Global.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Global.Prometheus.Addr); err != nil {
				logging.Error("metrics server stopped", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pollQueueMetrics(ctx, stop)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.opts.ConfigWatcher.Run(stop); err != nil {
			logging.Error("config reload watcher stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchConfigAudit(stop)
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (s *Supervisor) trackDetections(stop <-chan struct{}, tracker *watch.StabilityTracker) {
	for {
		select {
		case <-stop:
			return
		case d := <-s.detected:
			tracker.Track(d.Path, d.ProfileName)
		}
	}
}

func (s *Supervisor) tickStability(stop <-chan struct{}, tracker *watch.StabilityTracker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			tracker.CheckAll(now)
		}
	}
}

// enqueueReady translates a stability ReadyEvent into a new pending job,
// deriving its destination path from the owning profile.
func (s *Supervisor) enqueueReady(ctx context.Context, stop <-chan struct{}, jobCh chan<- *model.Job) {
	for {
		select {
		case <-stop:
			return
		case ev := <-s.ready:
			cfg := s.opts.ConfigWatcher.Get()
			profile, ok := findProfile(cfg, ev.ProfileName)
			if !ok {
				logging.Warn("ready event for unknown profile, dropping", "profile", ev.ProfileName, "path", ev.Path)
				continue
			}
			dest := DerivePath(ev.Path, profile)
			job := model.NewJob(uuid.NewString(), ev.Path, dest, profile.Name, time.Now())
			select {
			case jobCh <- job:
			case <-stop:
				return
			}
		}
	}
}

// pollQueueMetrics periodically samples the queue's depth accessors and
// drives the corresponding Prometheus gauges (spec.md §6).
func (s *Supervisor) pollQueueMetrics(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n, err := s.opts.Queue.PendingDepth(ctx); err == nil {
				metrics.QueueDepth.Set(float64(n))
			} else {
				logging.Warn("queue_depth sample failed", "error", err)
			}
			if n, err := s.opts.Queue.DeadLetterDepth(ctx); err == nil {
				metrics.DeadLetterDepth.Set(float64(n))
			} else {
				logging.Warn("dead_letter_depth sample failed", "error", err)
			}
			if n, err := s.opts.Queue.InFlightCount(ctx); err == nil {
				metrics.InProgress.Set(float64(n))
			} else {
				logging.Warn("in_progress sample failed", "error", err)
			}
		}
	}
}

// watchConfigAudit records a fresh config-hash/last-validated audit entry
// every time the config watcher successfully reloads (spec.md §6).
func (s *Supervisor) watchConfigAudit(stop <-chan struct{}) {
	if s.opts.AuditStore == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		case err, ok := <-s.opts.ConfigWatcher.ReloadEvents:
			if !ok {
				return
			}
			if err == nil {
				s.auditConfig(s.opts.ConfigWatcher.Get())
			}
		}
	}
}

// auditConfig records the current config's content hash and the time it
// was last validated (spec.md §6 keys: config:current, config:hash,
// config:last_validated).
func (s *Supervisor) auditConfig(cfg *config.Config) {
	if s.opts.AuditStore == nil {
		return
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		logging.Warn("config audit marshal failed", "error", err)
		return
	}
	if err := s.opts.AuditStore.RecordConfigSnapshot(raw, time.Now()); err != nil {
		logging.Warn("config audit write failed", "error", err)
	}
}

func findProfile(cfg *config.Config, name string) (config.Profile, bool) {
	for _, p := range cfg.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return config.Profile{}, false
}

func (s *Supervisor) buildWorker(cfg *config.Config) *worker.Worker {
	var notifier worker.Notifier = s.opts.Notifier
	if s.opts.AuditStore != nil {
		notifier = &notify.AuditedNotifier{Notifier: s.opts.Notifier, Ledger: s.opts.AuditStore}
	}

	return &worker.Worker{
		Queue:          s.opts.Queue,
		Prober:         media.NewProber(cfg.Global.ProbePath),
		Encoder:        transcode.NewVideoEncoder(cfg.Global.EncoderPath),
		AudioMuxer:     transcode.NewAudioMuxer(cfg.Global.EncoderPath),
		SubExtract:     transcode.NewSubtitleExtractor(cfg.Global.EncoderPath),
		BurnIn:         transcode.NewBurnIn(cfg.Global.EncoderPath),
		ContainerMuxer: transcode.NewContainerMuxer(cfg.Global.EncoderPath),
		Notifier:       notifier,
		IdleSleep:      time.Duration(cfg.Global.IdleSleep),
		ErrorSleep:     time.Duration(cfg.Global.ErrorSleep),
		MaxAttempts:    cfg.Global.Retry.MaxAttempts,
		TempRoot:       cfg.Global.TempDir,
		ProfileLookup: func(name string) (config.Profile, bool) {
			return findProfile(s.opts.ConfigWatcher.Get(), name)
		},
	}
}
