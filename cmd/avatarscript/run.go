package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/avatarscript/internal/avatar"
	"github.com/dshills/avatarscript/internal/script"
)

type runOptions struct {
	ticks    int
	frames   int
	name     string
	owner    string
	watch    bool
	interval time.Duration
	overlay  bool
}

func newRunCmd(c *cli) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Load an avatar and drive its tick and render phases",
		Long: `Load the avatar in dir (default: avatar.dir from the config), run its
init phase, then drive a fixed number of ticks with render frames in
between. Printed text goes to stdout; script faults are logged.

With --watch the avatar is ticked until interrupted and reloaded whenever
its files change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.Avatar.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			if !cmd.Flags().Changed("watch") {
				opts.watch = c.cfg.Avatar.Watch
			}
			return c.run(cmd, dir, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.ticks, "ticks", "t", 20, "Number of ticks to run")
	cmd.Flags().IntVar(&opts.frames, "frames", 1, "Render frames per tick")
	cmd.Flags().StringVar(&opts.name, "name", "Player", "Name of the entity the avatar is attached to")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "Owner UUID (default: random)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and reload on file changes")
	cmd.Flags().DurationVar(&opts.interval, "interval", 50*time.Millisecond, "Tick interval with --watch")
	cmd.Flags().BoolVar(&opts.overlay, "overlay", true, "Print instruction counts when done")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, dir string, opts runOptions) error {
	id := uuid.New()
	if opts.owner != "" {
		parsed, err := uuid.Parse(opts.owner)
		if err != nil {
			return fmt.Errorf("invalid owner %q: %w", opts.owner, err)
		}
		id = parsed
	}
	if opts.frames < 1 {
		opts.frames = 1
	}

	out := cmd.OutOrStdout()
	faults := &faultCounter{Channel: &script.LogChannel{Logger: c.logger, Writer: out}}
	m := avatar.NewManager(c.cfg.Limits,
		avatar.WithManagerChannel(faults),
		avatar.WithManagerLogger(c.logger),
		avatar.WithQueueSize(c.cfg.Runtime.ExecutorQueue),
	)

	ctx := cmd.Context()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(runCtx)
	}()
	defer func() {
		_ = m.UnloadAll(ctx)
		_ = m.Close()
		cancel()
		<-done
	}()

	entity := &cliEntity{id: id, name: opts.name}
	if err := m.LoadDir(ctx, id, dir, entity); err != nil {
		return err
	}

	if opts.watch {
		if err := m.Watch(ctx, id, c.cfg.Avatar.Debounce()); err != nil {
			return err
		}
		c.logger.Info("watching avatar", "dir", dir)

		loopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		err := watchLoop(loopCtx, m, opts)
		stop()
		if err != nil {
			return err
		}
	} else {
		for i := 0; i < opts.ticks; i++ {
			if err := step(ctx, m, opts.frames); err != nil {
				return err
			}
		}
	}

	if opts.overlay {
		if err := printOverlay(ctx, m, id, out); err != nil {
			return err
		}
	}
	if n := faults.Count(); n > 0 {
		return fmt.Errorf("%d script fault(s)", n)
	}
	return nil
}

// step runs one tick followed by frames render frames.
func step(ctx context.Context, m *avatar.Manager, frames int) error {
	if err := m.Tick(ctx); err != nil {
		return err
	}
	for f := 1; f <= frames; f++ {
		if err := m.Render(ctx, float64(f)/float64(frames)); err != nil {
			return err
		}
	}
	return nil
}

// watchLoop steps the avatar every interval until ctx is cancelled.
func watchLoop(ctx context.Context, m *avatar.Manager, opts runOptions) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := step(ctx, m, opts.frames); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

func printOverlay(ctx context.Context, m *avatar.Manager, id uuid.UUID, out io.Writer) error {
	return m.Do(ctx, id, func(a *avatar.Avatar) error {
		lines := a.OverlayLines()
		if lines == nil {
			if a.HasScriptError() {
				fmt.Fprintln(out, "Script error: runtime discarded")
			}
			return nil
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		return nil
	})
}

// faultCounter counts diagnostics passing through to Channel.
type faultCounter struct {
	script.Channel
	n atomic.Int32
}

func (f *faultCounter) Fault(d script.Diagnostic) {
	f.n.Add(1)
	f.Channel.Fault(d)
}

func (f *faultCounter) Count() int {
	return int(f.n.Load())
}

// cliEntity is the entity avatars run against from the command line.
type cliEntity struct {
	id   uuid.UUID
	name string
}

func (e *cliEntity) UUID() uuid.UUID                       { return e.id }
func (e *cliEntity) Name() string                          { return e.name }
func (e *cliEntity) Type() string                          { return "avatarscript:cli" }
func (e *cliEntity) Position() (float64, float64, float64) { return 0, 0, 0 }
