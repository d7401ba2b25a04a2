package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwlsn/pipeline/internal/auditstore"
	"github.com/gwlsn/pipeline/internal/config"
	"github.com/gwlsn/pipeline/internal/logging"
	"github.com/gwlsn/pipeline/internal/notify"
	"github.com/gwlsn/pipeline/internal/queue"
	"github.com/gwlsn/pipeline/internal/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	var configFlag string
	var verbosity int
	top := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	top.StringVar(&configFlag, "config", "", "path to pipeline.yaml")
	top.StringVar(&configFlag, "c", "", "path to pipeline.yaml (shorthand)")
	top.BoolFunc("v", "increase verbosity (repeatable)", func(string) error { verbosity++; return nil })
	top.BoolFunc("vv", "debug verbosity", func(string) error { verbosity = 1; return nil })

	if err := top.Parse(args); err != nil {
		return 1
	}
	if top.NArg() == 0 {
		printUsage()
		return 1
	}
	sub := top.Arg(0)
	rest := top.Args()[1:]

	logging.Init(logging.VerbosityToLevel(verbosity))

	path := config.ResolvePath(configFlag)

	switch sub {
	case "run":
		return cmdRun(path, rest)
	case "config-validate":
		return cmdConfigValidate(path)
	case "config-show":
		return cmdConfigShow(path)
	case "queue-list":
		return cmdQueueList(path)
	case "queue-clear":
		return cmdQueueClear(path)
	case "retry-dead-letter":
		return cmdRetryDeadLetter(path, rest)
	default:
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: pipeline [--config path] [-v|-vv] <command> [args]

commands:
  run [--dry-run] [--process-existing]   start the supervisor
  config-validate                         validate the config file
  config-show                             print the resolved config
  queue-list                              list pending and dead-letter jobs
  queue-clear                             clear the pending queue
  retry-dead-letter <job-id>              requeue one dead-lettered job`)
}

func cmdRun(path string, rest []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "detect files and log the jobs that would be enqueued, but never enqueue or encode")
	processExisting := fs.Bool("process-existing", false, "scan profile input paths for pre-existing files at startup")
	if err := fs.Parse(rest); err != nil {
		return 1
	}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		logging.Error("config load failed", "error", err)
		return 1
	}
	cfg := watcher.Get()

	q := queue.New(queue.NewRedisClient(cfg.Global.Redis.Addr, cfg.Global.Redis.Password, cfg.Global.Redis.DB))
	notifier := notify.NewDiscordNotifier(cfg.Global.Notifications.Discord)

	store, err := auditstore.Open(cfg.Global.AuditDBPath)
	if err != nil {
		logging.Error("audit store open failed", "error", err)
		return 1
	}
	defer store.Close()

	sup := supervisor.New(supervisor.Options{
		ConfigWatcher:   watcher,
		Queue:           q,
		Notifier:        notifier,
		AuditStore:      store,
		DryRun:          *dryRun,
		ProcessExisting: *processExisting,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info("pipeline starting", "config", path, "dry_run", *dryRun)
	if err := sup.Run(ctx); err != nil {
		logging.Error("supervisor stopped with error", "error", err)
		return 1
	}
	logging.Info("pipeline stopped")
	return 0
}

func cmdConfigValidate(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		var verr *config.ConfigValidationError
		if errors.As(err, &verr) {
			fmt.Fprint(os.Stderr, config.Report(verr))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}

	if store, err := auditstore.Open(cfg.Global.AuditDBPath); err != nil {
		logging.Warn("audit store open failed", "error", err)
	} else {
		if raw, err := yaml.Marshal(cfg); err != nil {
			logging.Warn("config audit marshal failed", "error", err)
		} else if err := store.RecordConfigSnapshot(raw, time.Now()); err != nil {
			logging.Warn("config audit write failed", "error", err)
		}
		store.Close()
	}

	fmt.Println("config is valid")
	return 0
}

func cmdConfigShow(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return 1
	}
	fmt.Printf("%+v\n", cfg)
	return 0
}

func cmdQueueList(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return 1
	}
	q := queue.New(queue.NewRedisClient(cfg.Global.Redis.Addr, cfg.Global.Redis.Password, cfg.Global.Redis.DB))
	ctx := context.Background()

	pending, err := q.ListPending(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list_pending failed: %v\n", err)
		return 1
	}
	deadLetter, err := q.ListDeadLetter(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list_dead_letter failed: %v\n", err)
		return 1
	}

	fmt.Printf("pending (%d):\n", len(pending))
	for _, j := range pending {
		fmt.Printf("  %s  %s  attempt=%d\n", j.ID, j.SourcePath, j.AttemptCount)
	}
	fmt.Printf("dead_letter (%d):\n", len(deadLetter))
	for _, j := range deadLetter {
		fmt.Printf("  %s  %s  %s\n", j.ID, j.SourcePath, j.ErrorMessage)
	}
	return 0
}

func cmdQueueClear(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return 1
	}
	q := queue.New(queue.NewRedisClient(cfg.Global.Redis.Addr, cfg.Global.Redis.Password, cfg.Global.Redis.DB))
	n, err := q.ClearPending(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "clear_pending failed: %v\n", err)
		return 1
	}
	fmt.Printf("cleared %d pending job(s)\n", n)
	return 0
}

func cmdRetryDeadLetter(path string, rest []string) int {
	if len(rest) != 1 {
		fmt.Fprintln(os.Stderr, "usage: pipeline retry-dead-letter <job-id>")
		return 1
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return 1
	}
	q := queue.New(queue.NewRedisClient(cfg.Global.Redis.Addr, cfg.Global.Redis.Password, cfg.Global.Redis.DB))
	if err := q.RetryDeadLetter(context.Background(), rest[0]); err != nil {
		fmt.Fprintf(os.Stderr, "retry_dead_letter failed: %v\n", err)
		return 1
	}
	fmt.Printf("requeued %s\n", rest[0])
	return 0
}

