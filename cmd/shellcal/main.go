// Command shellcal shows the calendar popup's month grid and agenda in
// a terminal or as a Waybar module. Events come from the calendar
// server on the session bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/djwarf/shellcal/internal/config"
	"github.com/djwarf/shellcal/internal/log"
	"github.com/djwarf/shellcal/internal/loop"
	"github.com/djwarf/shellcal/internal/render"
	"github.com/djwarf/shellcal/pkg/calendar"
	"github.com/djwarf/shellcal/pkg/providers/shell"
	"github.com/djwarf/shellcal/pkg/settings"
)

const clearScreen = "\x1b[H\x1b[2J"

type options struct {
	configPath string
	watch      bool
	waybar     bool
	date       string
	timeout    time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to config.yaml")
	flag.BoolVar(&opts.watch, "watch", false, "keep running and redraw on every change")
	flag.BoolVar(&opts.waybar, "waybar", false, "print Waybar JSON instead of text")
	flag.StringVar(&opts.date, "date", "", "day to select, as YYYY-MM-DD (default today)")
	flag.DurationVar(&opts.timeout, "timeout", 3*time.Second, "how long to wait for events before printing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Error("shellcal failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Error("failed to load config, using defaults", err, "path", opts.configPath)
		cfg = config.DefaultConfig()
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))

	var selected time.Time
	if opts.date != "" {
		selected, err = time.ParseInLocation(time.DateOnly, opts.date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid -date %q: %w", opts.date, err)
		}
	}

	prefs := openSettings(ctx, cfg)
	if c, ok := prefs.(io.Closer); ok {
		defer c.Close()
	}

	l := loop.New()
	src := openSource(l)

	popup := calendar.NewPopup(src, prefs.Current(), time.Now)
	defer popup.Close()
	if !selected.IsZero() {
		popup.Month.SetDate(selected)
	}

	theme := render.DefaultTheme()
	if opts.waybar {
		theme = render.PlainTheme()
	}
	d := &drawer{
		out:    out,
		r:      render.New(theme),
		popup:  popup,
		source: src,
		waybar: opts.waybar,
		clear:  opts.watch && !opts.waybar,
	}

	if !opts.watch {
		return runOnce(ctx, l, src, d, opts.timeout)
	}

	unsubscribe := prefs.Subscribe(func(s calendar.Settings) {
		l.Post(func() { popup.SetSettings(s) })
	})
	defer unsubscribe()

	popup.Month.Subscribe(calendar.NotifyGrid, func() { d.schedule(l) })
	popup.Agenda.Subscribe(calendar.NotifyAgenda, func() { d.schedule(l) })
	src.Subscribe(calendar.NotifyLoading, func() { d.schedule(l) })
	scheduleMidnight(l, popup)
	d.schedule(l)

	return ignoreCanceled(l.Run(ctx))
}

// ignoreCanceled treats an interrupt as a normal exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runOnce prints as soon as the first fetch lands, or after timeout.
func runOnce(ctx context.Context, l *loop.Loop, src calendar.EventSource, d *drawer, timeout time.Duration) error {
	var (
		err  error
		done bool
	)
	finish := func() {
		if done {
			return
		}
		done = true
		err = d.draw()
		l.Quit()
	}

	if src.IsDummy() {
		l.Post(finish)
	} else {
		src.Subscribe(calendar.NotifyChanged, finish)
		l.AfterFunc(timeout, func() {
			log.Debug("no events before timeout, printing what is known")
			finish()
		})
	}

	if runErr := ignoreCanceled(l.Run(ctx)); runErr != nil && err == nil {
		err = runErr
	}
	return err
}

// openSettings follows the desktop through the settings portal when
// configured to, falling back to the config file alone.
func openSettings(ctx context.Context, cfg *config.Config) settings.Source {
	if !cfg.FollowDesktop {
		return settings.NewStatic(cfg.Settings())
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.Info("session bus unavailable, using configured settings", "err", err)
		return settings.NewStatic(cfg.Settings())
	}

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	p, err := settings.NewPortal(pctx, conn, calendar.DefaultSettings(), cfg.Overrides())
	if err != nil {
		conn.Close()
		log.Error("failed to follow desktop settings", err)
		return settings.NewStatic(cfg.Settings())
	}
	return &portalSettings{Portal: p, conn: conn}
}

// portalSettings closes the private connection with the portal.
type portalSettings struct {
	*settings.Portal
	conn *dbus.Conn
}

func (p *portalSettings) Close() error {
	p.Portal.Close()
	return p.conn.Close()
}

// openSource connects to the calendar server. Without a session bus the
// popup still works, just without events.
func openSource(l *loop.Loop) calendar.EventSource {
	client, err := shell.Dial()
	if err != nil {
		log.Error("calendar server unreachable, showing an empty calendar", err)
		return calendar.NewEmptySource()
	}
	return calendar.NewRemoteSource(client, l, calendar.RemoteOptions{})
}

// scheduleMidnight ticks the popup just after every midnight so the
// today highlight and the agenda buckets move on.
func scheduleMidnight(l *loop.Loop, popup *calendar.Popup) {
	now := time.Now()
	next := calendar.BeginningOfDay(now).AddDate(0, 0, 1).Add(time.Second)
	l.AfterFunc(next.Sub(now), func() {
		popup.Tick()
		scheduleMidnight(l, popup)
	})
}

type drawer struct {
	out    io.Writer
	r      *render.Renderer
	popup  *calendar.Popup
	source calendar.EventSource
	waybar bool
	clear  bool

	pending bool
}

// schedule coalesces bursts of notifications into one redraw.
func (d *drawer) schedule(l *loop.Loop) {
	if d.pending {
		return
	}
	d.pending = true
	l.Post(func() {
		d.pending = false
		if err := d.draw(); err != nil {
			log.Error("failed to draw", err)
		}
	})
}

func (d *drawer) draw() error {
	periods := d.popup.Agenda.Periods()
	if d.waybar {
		if d.source.IsDummy() {
			return render.Unavailable(d.popup.Month.Selected()).Encode(d.out)
		}
		return d.r.Waybar(d.popup.Month.Selected(), periods, d.source.IsLoading()).Encode(d.out)
	}

	text := d.r.Popup(d.popup.Month.Grid(), periods)
	if d.clear {
		text = clearScreen + text
	}
	_, err := fmt.Fprintln(d.out, text)
	return err
}
