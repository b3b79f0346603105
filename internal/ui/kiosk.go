// Package ui is the full-screen Fyne window that renders the slideshow.
package ui

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"sync"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/slideshow"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	AppID       = "com.fridgeframe.kiosk"
	clockFormat = "15:04"

	// NoticeDuration is how long a Notify message stays on screen.
	NoticeDuration = 6 * time.Second
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

// VideoPlayer plays a video out of process; player.Player satisfies it.
type VideoPlayer interface {
	Play(url string, seq uint64)
	Stop()
}

// Config holds window options.
type Config struct {
	Fullscreen bool
	Title      string
}

// Kiosk implements slideshow.Presenter on a Fyne window. Presenter calls
// arrive from the slideshow loop; widget updates are handed to fyne.Do.
type Kiosk struct {
	app     fyne.App
	window  fyne.Window
	loader  *Loader
	video   VideoPlayer
	signals chan<- slideshow.Signal
	logger  LoggerFunc
	logs    *LogUIManager

	// OnRefresh is called when the refresh key is pressed.
	OnRefresh func()

	image     *canvas.Image
	playing   *widget.Label
	errorText *widget.Label
	errorCard *fyne.Container
	overlay   *widget.Label
	progress  *widget.ProgressBar
	clock     *widget.Label
	notice    *widget.Label

	mu         sync.Mutex
	cancelLoad context.CancelFunc
	noticeGen  uint64
}

var _ slideshow.Presenter = (*Kiosk)(nil)

// NewKiosk builds the window. Outcome signals for shown items go to signals.
func NewKiosk(a fyne.App, cfg Config, loader *Loader, video VideoPlayer, signals chan<- slideshow.Signal, logger LoggerFunc) *Kiosk {
	if loader == nil {
		loader = NewLoader(nil)
	}
	if cfg.Title == "" {
		cfg.Title = "FridgeFrame"
	}
	a.Settings().SetTheme(NewKioskTheme(theme.DefaultTheme()))

	k := &Kiosk{
		app:     a,
		window:  a.NewWindow(cfg.Title),
		loader:  loader,
		video:   video,
		signals: signals,
	}

	diag := widget.NewLabel("")
	diag.Truncation = fyne.TextTruncateEllipsis
	diag.Hide()
	k.logs = NewLogUIManager(diag, DefaultMaxLogMessages, logger)
	k.logger = k.logs.AddLogMessage

	k.image = canvas.NewImageFromImage(nil)
	k.image.FillMode = canvas.ImageFillContain
	k.image.ScaleMode = canvas.ImageScaleSmooth

	k.playing = widget.NewLabelWithStyle("▶", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	k.playing.Hide()

	k.errorText = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	k.errorText.Wrapping = fyne.TextWrapWord
	cardBg := canvas.NewRectangle(color.NRGBA{R: 0x5a, G: 0x10, B: 0x10, A: 0xff})
	cardBg.CornerRadius = 12
	k.errorCard = container.NewCenter(container.NewStack(cardBg, container.NewPadded(k.errorText)))
	k.errorCard.Hide()

	k.overlay = widget.NewLabel("")
	k.overlay.Wrapping = fyne.TextWrapWord
	k.progress = widget.NewProgressBar()
	k.progress.TextFormatter = func() string { return "" }
	k.clock = widget.NewLabelWithStyle(time.Now().Format(clockFormat), fyne.TextAlignTrailing, fyne.TextStyle{Bold: true})

	k.notice = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	k.notice.Hide()

	hud := container.NewBorder(
		container.NewVBox(k.clock, k.notice),
		container.NewVBox(k.overlay, k.progress, diag),
		nil, nil,
	)
	content := container.NewStack(
		canvas.NewRectangle(color.Black),
		k.image,
		container.NewCenter(k.playing),
		k.errorCard,
		hud,
	)
	k.window.SetContent(content)
	k.window.SetPadded(false)
	k.window.Resize(fyne.NewSize(1280, 800))
	if cfg.Fullscreen {
		k.window.SetFullScreen(true)
	}
	k.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) { k.handleKey(keyAction(ev.Name)) })
	k.window.SetCloseIntercept(func() { go k.quit() })
	return k
}

// quit stops playback off the main goroutine, then ends the app.
func (k *Kiosk) quit() {
	k.Clear()
	fyne.Do(k.app.Quit)
}

// Logger returns the logger that also feeds the diagnostics line.
func (k *Kiosk) Logger() LoggerFunc { return k.logger }

func (k *Kiosk) logMessage(format string, args ...interface{}) {
	if k.logger != nil {
		k.logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[ui] "+format, args...)
}

// Run shows the window and blocks in the Fyne main loop until the app
// quits or ctx is cancelled.
func (k *Kiosk) Run(ctx context.Context) {
	clockCtx, stop := context.WithCancel(ctx)
	defer stop()
	go k.runClock(clockCtx)
	go func() {
		<-clockCtx.Done()
		if ctx.Err() != nil {
			fyne.Do(k.app.Quit)
		}
	}()
	k.window.ShowAndRun()
	k.Clear()
}

func (k *Kiosk) runClock(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			text := now.Format(clockFormat)
			fyne.Do(func() { k.clock.SetText(text) })
		}
	}
}

// Show implements slideshow.Presenter.
func (k *Kiosk) Show(item media.Item, seq uint64) {
	switch item.Kind {
	case media.KindPhoto:
		k.showPhoto(item, seq)
	case media.KindVideo:
		fyne.Do(func() {
			k.errorCard.Hide()
			k.image.Hide()
			k.playing.Show()
		})
		if k.video == nil {
			go k.emit(context.Background(), slideshow.Signal{Seq: seq, Type: slideshow.SignalLoadFailed, Err: fmt.Errorf("no video player configured")})
			return
		}
		k.video.Play(item.SourceRef, seq)
	case media.KindError:
		msg := item.Message
		fyne.Do(func() {
			k.image.Hide()
			k.playing.Hide()
			k.errorText.SetText("⚠ " + msg)
			k.errorCard.Show()
		})
	}
}

func (k *Kiosk) showPhoto(item media.Item, seq uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	k.mu.Lock()
	if k.cancelLoad != nil {
		k.cancelLoad()
	}
	k.cancelLoad = cancel
	k.mu.Unlock()

	go func() {
		img, err := k.loader.Load(ctx, item.SourceRef)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			k.logMessage("Error loading %s: %v", item.Label(), err)
			k.emit(ctx, slideshow.Signal{Seq: seq, Type: slideshow.SignalLoadFailed, Err: err})
			return
		}
		fyne.Do(func() {
			if ctx.Err() != nil {
				return
			}
			k.errorCard.Hide()
			k.playing.Hide()
			k.image.Image = img
			k.image.Show()
			k.image.Refresh()
		})
		k.emit(ctx, slideshow.Signal{Seq: seq, Type: slideshow.SignalLoaded})
	}()
}

func (k *Kiosk) emit(ctx context.Context, sig slideshow.Signal) {
	select {
	case k.signals <- sig:
	case <-ctx.Done():
	}
}

// Notify shows text over the slideshow for NoticeDuration. A newer notice
// replaces an older one and restarts the timer.
func (k *Kiosk) Notify(text string) {
	k.mu.Lock()
	k.noticeGen++
	gen := k.noticeGen
	k.mu.Unlock()

	fyne.Do(func() {
		k.notice.SetText(text)
		k.notice.Show()
	})
	time.AfterFunc(NoticeDuration, func() {
		k.mu.Lock()
		stale := gen != k.noticeGen
		k.mu.Unlock()
		if stale {
			return
		}
		fyne.Do(k.notice.Hide)
	})
}

// ThermalNotice is the on-screen text for a change of the heat guard.
func ThermalNotice(hot bool, celsius float64) string {
	if hot {
		return fmt.Sprintf("CPU at %.0f°C: photos only until it cools down", celsius)
	}
	return fmt.Sprintf("CPU back to %.0f°C: media filter restored", celsius)
}

// UpdateOverlay implements slideshow.Presenter.
func (k *Kiosk) UpdateOverlay(text string) {
	fyne.Do(func() { k.overlay.SetText(text) })
}

// UpdateProgress implements slideshow.Presenter.
func (k *Kiosk) UpdateProgress(fraction float64) {
	fyne.Do(func() { k.progress.SetValue(fraction) })
}

// Clear implements slideshow.Presenter. It abandons a pending photo load
// and stops any video.
func (k *Kiosk) Clear() {
	k.mu.Lock()
	if k.cancelLoad != nil {
		k.cancelLoad()
		k.cancelLoad = nil
	}
	k.mu.Unlock()
	if k.video != nil {
		k.video.Stop()
	}
	fyne.Do(func() {
		k.playing.Hide()
		k.errorCard.Hide()
	})
}
