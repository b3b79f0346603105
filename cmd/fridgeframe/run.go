package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fridgeframe/internal/api"
	"fridgeframe/internal/config"
	"fridgeframe/internal/history"
	"fridgeframe/internal/media"
	"fridgeframe/internal/player"
	"fridgeframe/internal/playlog"
	"fridgeframe/internal/slideshow"
	"fridgeframe/internal/source"
	"fridgeframe/internal/thermal"
	"fridgeframe/internal/ui"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	signalBuffer   = 16
	recorderBuffer = 64
)

// newSource picks the batch source the configuration names.
func newSource(cfg config.Config, logger func(string)) slideshow.BatchSource {
	if cfg.SourceURL != "" {
		return source.NewHTTPSource(cfg.SourceURL,
			source.WithRawURLs(cfg.SourceRawURLs),
			source.WithHTTPLogger(logger),
		)
	}
	return source.NewDirSource(cfg.SourceDir, cfg.Filter(), cfg.BatchCount, time.Now().UnixNano(), logger)
}

// initialBatch returns the batch cached by the previous run, or an empty
// batch so the controller fetches straight away.
func initialBatch(store *playlog.Store, logger func(string)) media.Batch {
	b, err := store.LoadBatch()
	switch {
	case errors.Is(err, playlog.ErrNotFound):
		return media.Batch{}
	case err != nil:
		logger("ignoring cached batch: " + err.Error())
		return media.Batch{}
	}
	logger("starting from cached album " + b.Album())
	return b
}

// runFrame runs the kiosk until the window closes or the process is told
// to stop. The Fyne loop owns the calling goroutine.
func runFrame(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logf := cliLogger
	logger := func(msg string) { logf(msg) }

	store, err := playlog.Open(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	signals := make(chan slideshow.Signal, signalBuffer)
	video := player.New(player.Config{
		Command:    cfg.PlayerCommand,
		Sound:      cfg.VideoSound,
		Fullscreen: cfg.Fullscreen,
	}, signals, logger)

	kiosk := ui.NewKiosk(app.NewWithID(ui.AppID), ui.Config{Fullscreen: cfg.Fullscreen}, nil, video, signals, cliLogger)
	logf = kiosk.Logger()

	recent := history.NewRecent(cfg.HistorySize)
	recorder := playlog.NewRecorder(store, recorderBuffer)
	src := playlog.NewCachingSource(newSource(cfg, logger), store)

	rt := slideshow.NewRuntime(ctx, cfg.Slideshow(), src, kiosk, slideshow.RuntimeOptions{
		Observer:     slideshow.Observers{recent, recorder},
		Logger:       logger,
		FetchTimeout: cfg.FetchTimeout,
	})
	kiosk.OnRefresh = func() {
		if _, err := rt.Refresh(ctx); err != nil {
			logger("refresh: " + err.Error())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Run(gctx, initialBatch(store, logger), signals) })
	g.Go(func() error { return recorder.Run(gctx) })

	deps := api.Deps{Slideshow: rt, Recents: recent, PlayLog: store, Session: store.Session()}
	if cfg.ThermalEnabled {
		mon := thermal.NewMonitor(cfg.Thermal(), thermal.SysfsReader{Path: cfg.ThermalPath}, rt, logger)
		mon.OnChange = func(hot bool, c float64) { kiosk.Notify(ui.ThermalNotice(hot, c)) }
		deps.Thermal = mon
		g.Go(func() error { return mon.Run(gctx) })
	}
	if cfg.APIEnabled {
		srv := api.NewServer(cfg.APIAddr, deps)
		g.Go(func() error { return srv.Run(gctx) })
		logger("status API on http://" + cfg.APIAddr)
	}

	logger("session " + store.Session() + " started")
	kiosk.Run(gctx)
	cancel()
	video.Stop()
	return g.Wait()
}
