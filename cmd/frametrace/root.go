package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-glx/tasks/config"
	"github.com/go-glx/tasks/frame"
	"github.com/go-glx/tasks/internal/logging"
	"github.com/go-glx/tasks/internal/trace"
	"github.com/go-glx/tasks/sched"
)

type options struct {
	configPath   string
	duration     time.Duration
	frameLatency time.Duration
	targetFPS    int
	out          string
	logLevel     string
	logFormat    string
	debug        bool
	workload     workloadConfig
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "frametrace",
		Short: "Run a synthetic frame loop against the task scheduler",
		Long: `frametrace drives a frame loop for a fixed time while a synthetic
workload submits deferred, timed, recurring and background tasks.
It prints scheduler stats and can draw the frame timeline as PNG.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to scheduler settings YAML")
	f.DurationVar(&opts.duration, "duration", 2*time.Second, "How long to run the frame loop")
	f.DurationVar(&opts.frameLatency, "frame-latency", 8*time.Millisecond, "Simulated render time per frame")
	f.IntVar(&opts.targetFPS, "fps", 0, "Target FPS (overrides settings)")
	f.StringVarP(&opts.out, "out", "o", "", "Write frame timeline PNG to this path")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")
	f.BoolVar(&opts.debug, "debug", false, "Shorthand for --log-level=debug")

	f.IntVar(&opts.workload.chunks, "chunks", 64, "Number of chunks requesting mesh rebuilds")
	f.IntVar(&opts.workload.rebuildsPerFrame, "rebuilds", 8, "Mesh rebuild requests per frame")
	f.DurationVar(&opts.workload.rebuildCost, "rebuild-cost", 300*time.Microsecond, "Simulated mesh rebuild time")
	f.DurationVar(&opts.workload.generateCost, "generate-cost", 20*time.Millisecond, "Simulated background terrain generation time")
	f.IntVar(&opts.workload.generateEvery, "generate-every", 10, "Submit a background generation every N frames")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	settings := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}

		settings = loaded
	}

	if opts.targetFPS > 0 {
		settings.SetTargetFPS(opts.targetFPS)
	}

	if opts.logLevel != "" {
		settings.LogLevel = opts.logLevel
	}

	if opts.debug {
		settings.LogLevel = "debug"
	}

	if opts.logFormat != "" {
		settings.LogFormat = opts.logFormat
	}

	logger := logging.NewLogger(logging.ParseLevel(settings.LogLevel), settings.LogFormat)

	scheduler := sched.New(
		sched.WithSettings(settings),
		sched.WithLogger(logger),
	)
	defer scheduler.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	w := newWorkload(scheduler, opts.workload, logger)
	if err := w.start(); err != nil {
		return err
	}
	defer w.stop()

	timeline := trace.Timeline{
		Title: fmt.Sprintf("Frame: { lat:%s, target: %d/s }  Tasks: { max:%s, count:%d }",
			opts.frameLatency, settings.TargetFPS, settings.MaxTickTime, settings.MaxTasksPerTick),
		FrameLimit: time.Second / time.Duration(settings.TargetFPS),
	}

	var last frame.Stats
	executor := frame.NewExecutor(scheduler,
		frame.WithTargetFPS(settings.TargetFPS),
		frame.WithLogger(logger),
		frame.WithFrameErrorHandleBehavior(frame.ErrBehaviorLog),
		frame.WithTask(frame.NewDefaultTaskGarbageCollect()),
		frame.WithStats(func(s frame.Stats) {
			if timeline.StartAt.IsZero() {
				timeline.StartAt = s.Execute.StartAt
			}

			timeline.Add(trace.BlockFrame, s.Frame.StartAt, s.Frame.Duration)
			timeline.Add(trace.BlockTasks, s.Tasks.StartAt, s.Tasks.Duration)
			timeline.Add(trace.BlockThrottle, s.Tasks.StartAt.Add(s.Tasks.Duration), s.ThrottleTime)

			logger.Debug("frame",
				"id", s.CurrentFrame,
				"fps", s.CurrentFPS,
				"tasks", s.TasksReport.Invoked(),
				"pending", s.Pending,
				"throttle", s.ThrottleTime,
			)

			last = s
		}),
	)

	err := executor.Execute(ctx, func() error {
		time.Sleep(opts.frameLatency)
		return w.frame()
	})
	if err != nil {
		return fmt.Errorf("frame loop: %w", err)
	}

	printSummary(cmd, scheduler.Stats(), last, w)

	if opts.out != "" {
		if err := trace.SavePNG(timeline, opts.out); err != nil {
			return err
		}

		logger.Info("trace written", slog.String("path", opts.out))
	}

	return nil
}

func printSummary(cmd *cobra.Command, st sched.Stats, last frame.Stats, w *workload) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer tw.Flush()

	_, _ = fmt.Fprintf(tw, "frames\t%d\n", last.CurrentFrame)
	_, _ = fmt.Fprintf(tw, "fps\t%d/%d\n", last.CurrentFPS, last.FrameTargetFPS)
	_, _ = fmt.Fprintf(tw, "ticks\t%d\n", st.Ticks)
	_, _ = fmt.Fprintf(tw, "invoked\t%d\n", st.Invoked)
	_, _ = fmt.Fprintf(tw, "failed\t%d\n", st.Failed)
	_, _ = fmt.Fprintf(tw, "duplicates dropped\t%d\n", st.Duplicates)
	_, _ = fmt.Fprintf(tw, "pending\t%d\n", st.Pending)
	_, _ = fmt.Fprintf(tw, "async launched\t%d\n", st.Async)
	_, _ = fmt.Fprintf(tw, "async failed\t%d\n", st.AsyncFail)
	_, _ = fmt.Fprintf(tw, "meshes rebuilt\t%d\n", w.rebuilt())
	_, _ = fmt.Fprintf(tw, "terrain generated\t%d\n", w.generated())
}
