// Package app wires salespop's components from the config file: the
// delivery engine for `watch`, the storefront feed for `serve`, and the
// shared logging, Telegram, event bus and hot-reload plumbing.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/config"
	"github.com/mishka20003-proger/live-sales-notifications/internal/cycle"
	"github.com/mishka20003-proger/live-sales-notifications/internal/eventbus"
	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/feedapi"
	"github.com/mishka20003-proger/live-sales-notifications/internal/proxy"
	"github.com/mishka20003-proger/live-sales-notifications/internal/render"
	"github.com/mishka20003-proger/live-sales-notifications/internal/runtime/supervisor"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	"github.com/mishka20003-proger/live-sales-notifications/internal/storage"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

type mode string

const (
	modeWatch mode = "watch"
	modeServe mode = "serve"
)

// Polling job names.
const (
	pollSettings = "settings"
	pollOrders   = "orders"
)

// recorderLimit bounds the headless surface's op history.
const recorderLimit = 256

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor
	mode mode

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	bot  *render.TelegramBot
	out  io.Writer

	// watch
	widget   Widget
	runner   *cycle.Runner
	pollers  *cycle.Pollers
	console  *render.Console
	recorder *render.Recorder
	jobs     map[string]func(context.Context)

	// serve
	store storage.Store
	ln    net.Listener
}

type Option func(*App)

// WithOutput sets where the console surface draws. Default os.Stdout.
func WithOutput(w io.Writer) Option { return func(a *App) { a.out = w } }

// WithListener makes serve use ln instead of listening on server.addr.
func WithListener(ln net.Listener) Option { return func(a *App) { a.ln = ln } }

// New loads the config file and sets up logging and the optional Telegram
// bot. Components are built by StartWatch or StartServe.
func New(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// Bootstrap without the chat sink; it is enabled once the bot exists.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logSvc, log := logx.New(bootCfg, nil)

	a := &App{
		cfgm: cfgm,
		log:  log.With(logx.String("comp", "app")),
		logs: logSvc,
		bus:  eventbus.New(),
		out:  os.Stdout,
		jobs: map[string]func(context.Context){},
	}
	for _, o := range opts {
		o(a)
	}

	if tok := strings.TrimSpace(cfg.Telegram.Token); tok != "" {
		bot, err := render.NewTelegramBot(tok)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		a.bot = bot
		logSvc.SetSender(bot)
	}
	logSvc.Apply(logCfg)
	return a, nil
}

// Logger returns the app's logger.
func (a *App) Logger() logx.Logger { return a.log }

// Config returns the live config.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Bus exposes lifecycle events (notification shown/hidden, cycle state).
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) begin(ctx context.Context, m mode) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.mode = m
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.logs.Logger().With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	return nil
}

// StartWatch runs the delivery engine against the configured feed.
func (a *App) StartWatch(ctx context.Context) error {
	cfg := a.cfgm.Get()
	w, err := mapWidgetConfig(cfg)
	if err != nil {
		return err
	}
	if err := w.requireFeed(); err != nil {
		return err
	}
	if err := a.begin(ctx, modeWatch); err != nil {
		return err
	}
	a.widget = w

	var surface cycle.Surface
	switch w.Surface {
	case SurfaceNone:
		a.recorder = render.NewRecorder(nil)
		a.recorder.SetLimit(recorderLimit)
		surface = a.recorder
	default:
		a.console = render.NewConsole(a.out, w.Columns, nil)
		surface = a.console
	}

	a.runner = cycle.NewRunner(surface, a.bus, a.logs.Logger().With(logx.String("comp", "cycle")))
	client := feedapi.NewClient(w.BaseURL, w.Shop, w.RequestTimeout)
	syncer := settings.NewSynchronizer(client, a.runner.Settings, a.logs.Logger().With(logx.String("comp", "settings")))
	poller := feed.NewPoller(client, a.runner.Orders, a.logs.Logger().With(logx.String("comp", "feed")))
	a.jobs[pollSettings] = syncer.Poll
	a.jobs[pollOrders] = poller.Poll

	a.pollers = cycle.NewPollers(a.logs.Logger().With(logx.String("comp", "pollers")))
	if err := a.schedulePolls(w); err != nil {
		return err
	}
	a.runner.Viewport(w.Narrow())

	a.sup.Go("cycle.runner", a.runner.Run)
	a.sup.Go0("cycle.pollers", func(c context.Context) {
		a.pollers.Start(c)
		<-c.Done()
		a.pollers.Stop()
	})
	a.startCommon()

	a.log.Info("watch started",
		logx.String("shop", w.Shop),
		logx.String("feed", w.BaseURL),
		logx.Duration("settings_poll", w.SettingsPoll),
		logx.Duration("orders_poll", w.OrdersPoll),
		logx.Bool("narrow", w.Narrow()),
		logx.String("surface", w.Surface),
	)
	return nil
}

func (a *App) schedulePolls(w Widget) error {
	if err := a.pollers.Schedule(pollSettings, w.SettingsPoll, a.jobs[pollSettings]); err != nil {
		return err
	}
	return a.pollers.Schedule(pollOrders, w.OrdersPoll, a.jobs[pollOrders])
}

// StartServe runs the storefront feed. A storage section is required.
func (a *App) StartServe(ctx context.Context) error {
	cfg := a.cfgm.Get()
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if !enabled {
		return errors.New("serve needs a storage section (driver file, sqlite or postgres)")
	}
	pc, err := mapServerConfig(cfg)
	if err != nil {
		return err
	}
	if err := a.begin(ctx, modeServe); err != nil {
		return err
	}

	store, err := storage.Open(a.sup.Context(), sc, a.logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	gen := synth.NewGenerator(nil, nil)
	if seed := cfg.Synth.Seed; seed != 0 {
		gen = synth.Seeded(seed, nil)
	}
	srv, err := proxy.New(pc, store, a.logs.Logger(), proxy.WithGenerator(gen))
	if err != nil {
		return err
	}
	a.sup.Go("proxy.http", func(c context.Context) error {
		if a.ln != nil {
			return srv.Serve(c, a.ln)
		}
		return srv.Run(c)
	})
	a.startCommon()

	a.log.Info("serve started", logx.String("addr", pc.Addr), logx.String("storage", sc.Driver))
	return nil
}

// startCommon starts what both modes share: the Telegram mirror, the event
// logger and config hot reload.
func (a *App) startCommon() {
	cfg := a.cfgm.Get()
	if cfg.Telegram.Mirror {
		switch {
		case a.bot == nil:
			a.log.Warn("telegram.mirror is set but telegram.token is empty")
		case cfg.Telegram.ChatID == 0:
			a.log.Warn("telegram.mirror is set but telegram.chat_id is empty")
		default:
			m := render.NewMirror(a.bot, cfg.Telegram.ChatID, a.logs.Logger().With(logx.String("comp", "mirror")))
			a.sup.GoRestart("telegram.mirror", func(c context.Context) error { return m.Run(c, a.bus) },
				supervisor.WithRestartBackoff(time.Second, 30*time.Second))
		}
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *config.Config) error { return validateConfig(c) })
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case cycle.StateChanged:
		a.log.Info("cycle state", logx.String("from", d.From.String()), logx.String("to", d.To.String()))
	case cycle.Shown:
		a.log.Debug("notification shown", logx.String("id", d.Event.ID), logx.String("order", d.Event.OrderNumber))
	case cycle.Hidden:
		if d.ID == "" {
			a.log.Debug("notifications cleared")
		} else {
			a.log.Debug("notification hidden", logx.String("id", d.ID))
		}
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

// applyConfig applies what can change live and warns about the rest.
func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLoggingConfig(next))

	restart := make([]string, 0, 3)
	for _, s := range sections {
		switch s {
		case "storage", "synth", "server":
			if a.mode == modeServe {
				restart = append(restart, s)
			}
		case "telegram":
			restart = append(restart, s)
		case "widget":
			if a.mode == modeWatch {
				restart = append(restart, a.applyWidget(next)...)
			}
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.Strings("keys", restart))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// applyWidget re-schedules polls and updates the viewport live. It returns
// the keys that only take effect after a restart.
func (a *App) applyWidget(cfg *config.Config) []string {
	w, err := mapWidgetConfig(cfg)
	if err != nil {
		a.log.Warn("invalid widget config; keeping previous", logx.Err(err))
		return nil
	}
	prev := a.widget
	var restart []string
	if w.Shop != prev.Shop {
		restart = append(restart, "widget.shop")
	}
	if w.BaseURL != prev.BaseURL {
		restart = append(restart, "widget.base_url")
	}
	if w.RequestTimeout != prev.RequestTimeout {
		restart = append(restart, "widget.request_timeout")
	}
	if w.Surface != prev.Surface {
		restart = append(restart, "widget.surface")
	}
	// Keep the identity the running components were built with.
	w.Shop, w.BaseURL, w.RequestTimeout, w.Surface = prev.Shop, prev.BaseURL, prev.RequestTimeout, prev.Surface

	if err := a.schedulePolls(w); err != nil {
		a.log.Warn("re-schedule polls failed", logx.Err(err))
	}
	if w.Narrow() != prev.Narrow() {
		a.runner.Viewport(w.Narrow())
	}
	if a.console != nil && w.Columns != prev.Columns {
		a.console.SetColumns(w.Columns)
	}
	a.widget = w
	return restart
}

// Snapshot returns the delivery engine's state. Only valid in watch mode.
func (a *App) Snapshot(ctx context.Context) (cycle.Snapshot, error) {
	if a.runner == nil {
		return cycle.Snapshot{}, errors.New("not running in watch mode")
	}
	return a.runner.Snapshot(ctx)
}

// Recorder returns the headless surface, or nil when drawing to a console.
func (a *App) Recorder() *render.Recorder { return a.recorder }

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	if a.runner != nil {
		sctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		if snap, err := a.runner.Snapshot(sctx); err == nil {
			a.log.Debug("final cycle state",
				logx.String("state", snap.State.String()),
				logx.Int("working_set", len(snap.WorkingSet)),
				logx.Int("guard", snap.GuardSize),
			)
		}
		cancel()
	}

	a.sup.Cancel()
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	if a.store != nil {
		a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	for _, st := range a.sup.Snapshot() {
		if st.LastErr != "" || st.Panics > 0 {
			a.log.Debug("task summary", logx.Any("task", st))
		}
	}

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by limit and the caller's deadline. A
// step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
