package slideshow

import (
	"errors"
	"fmt"
	"log"
	"time"

	"fridgeframe/internal/media"
	"fridgeframe/internal/scheduler"
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

const (
	defaultPhotoDuration  = 30 * time.Second
	defaultVideoCeiling   = 60 * time.Second
	defaultLoadGrace      = 2 * time.Second
	defaultVideoWatchdog  = 5 * time.Second
	defaultRetryCooldown  = 5 * time.Minute
	defaultTickInterval   = time.Second
	fallbackAlbumForError = "Error"
)

// Config holds the session-static timing policy.
type Config struct {
	PhotoDuration time.Duration // how long a photo stays up
	VideoCeiling  time.Duration // longest a video may play
	Filter        media.Filter
	LoadGrace     time.Duration // pause after a load failure before skipping
	VideoWatchdog time.Duration // how long a video may take to show progress
	RetryCooldown time.Duration // minimum gap between a failed fetch and the retry
	TickInterval  time.Duration // photo progress tick
}

// DefaultConfig returns the stock kiosk timings.
func DefaultConfig() Config {
	return Config{
		PhotoDuration: defaultPhotoDuration,
		VideoCeiling:  defaultVideoCeiling,
		Filter:        media.AllKinds(),
		LoadGrace:     defaultLoadGrace,
		VideoWatchdog: defaultVideoWatchdog,
		RetryCooldown: defaultRetryCooldown,
		TickInterval:  defaultTickInterval,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PhotoDuration <= 0 {
		c.PhotoDuration = d.PhotoDuration
	}
	if c.VideoCeiling <= 0 {
		c.VideoCeiling = d.VideoCeiling
	}
	if c.LoadGrace <= 0 {
		c.LoadGrace = d.LoadGrace
	}
	if c.VideoWatchdog <= 0 {
		c.VideoWatchdog = d.VideoWatchdog
	}
	if c.RetryCooldown <= 0 {
		c.RetryCooldown = d.RetryCooldown
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}

// State is the controller's tagged state.
type State int

const (
	StateIdle State = iota
	StateShowing
	StateAwaitingBatch
	StateShowingError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateShowing:
		return "showing"
	case StateAwaitingBatch:
		return "awaiting-batch"
	case StateShowingError:
		return "showing-error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// slot names the purpose of the single armed timer.
type slot int

const (
	slotNone slot = iota
	slotPhotoTick
	slotVideoWatchdog
	slotVideoCap
	slotLoadGrace
	slotRetry
)

func (s slot) String() string {
	switch s {
	case slotPhotoTick:
		return "photo-tick"
	case slotVideoWatchdog:
		return "video-watchdog"
	case slotVideoCap:
		return "video-cap"
	case slotLoadGrace:
		return "load-grace"
	case slotRetry:
		return "retry"
	default:
		return "none"
	}
}

// Controller is the slideshow state machine. Every method except Snapshot
// must be called from the owning Loop.
type Controller struct {
	cfg       Config
	sched     scheduler.Scheduler
	fetcher   Fetcher
	presenter Presenter
	observer  Observer
	logger    LoggerFunc

	state     State
	batch     media.Batch
	item      media.Item
	startedAt time.Time
	seq       uint64

	timer     scheduler.Handle
	timerSlot slot

	elapsed      time.Duration // photo time shown so far
	progressSeen bool          // video playback observed
	loadFailed   bool          // grace delay running for the current item

	fetchInFlight  bool
	fetchGen       uint64
	retryNotBefore time.Time
	manual         *media.Filter // operator override
	thermal        *media.Filter // heat guard override, wins over manual
	lastError      string
	closed         bool

	snap snapshotBox
}

// NewController wires the collaborators. observer and logger may be nil.
func NewController(cfg Config, sched scheduler.Scheduler, fetcher Fetcher, presenter Presenter, observer Observer, logger LoggerFunc) *Controller {
	c := &Controller{
		cfg:       cfg.withDefaults(),
		sched:     sched,
		fetcher:   fetcher,
		presenter: presenter,
		observer:  observer,
		logger:    logger,
		state:     StateIdle,
	}
	c.publish()
	return c
}

func (c *Controller) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[slideshow] "+format, args...)
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Start seeds the controller with an already available batch, or, when the
// batch is empty, enters AwaitingBatch and issues a fetch.
func (c *Controller) Start(initial media.Batch) {
	if c.closed || c.state != StateIdle {
		c.logf("start ignored in state %s", c.state)
		return
	}
	if initial.Empty() {
		c.logf("starting without a bootstrap batch")
		c.requestBatch("startup")
		return
	}
	c.logf("starting with bootstrap batch %q (%d items)", initial.Album(), initial.Len())
	c.beginBatch(initial)
}

// Advance moves to the next displayable item, or requests a new batch when
// the current one is exhausted. While an error card is up the retry timer is
// the only way forward, so Advance is ignored there.
func (c *Controller) Advance() {
	switch c.state {
	case StateShowing:
	case StateShowingError:
		c.logf("advance ignored while showing error; retry pending")
		return
	default:
		c.logf("advance ignored in state %s", c.state)
		return
	}
	c.cancelTimer()
	c.nextItem()
}

// OnBatchReady replaces the batch and starts from its first item.
func (c *Controller) OnBatchReady(b media.Batch) {
	if c.closed {
		return
	}
	c.fetchInFlight = false
	c.cancelTimer()
	c.retryNotBefore = time.Time{}
	c.lastError = ""
	c.logf("batch ready: %q (%d items)", b.Album(), b.Len())
	c.beginBatch(b)
}

// OnBatchFetchFailed shows a synthesized error card and schedules a single
// retry after the cool-down.
func (c *Controller) OnBatchFetchFailed(reason string) {
	if c.closed {
		return
	}
	c.fetchInFlight = false
	c.failWith(media.ErrorBatch(fallbackAlbumForError, reason))
}

// HandleSignal routes a presenter event. Stale signals are dropped.
func (c *Controller) HandleSignal(sig Signal) {
	if c.closed || c.state != StateShowing || sig.Seq != c.seq {
		return
	}
	if c.loadFailed {
		// Already skipping this item.
		return
	}
	switch sig.Type {
	case SignalLoaded:
		if c.item.Kind == media.KindPhoto {
			c.logf("photo loaded: %s", c.item.Label())
		}
	case SignalLoadFailed:
		c.onMediaLoadFailed(sig.Err)
	case SignalStarted:
		if c.item.Kind == media.KindVideo {
			c.onVideoProgress("started")
		}
	case SignalMetadata:
		if c.item.Kind == media.KindVideo {
			if sig.Duration > c.cfg.VideoCeiling {
				c.logf("video runs %s, capping at %s", sig.Duration, c.cfg.VideoCeiling)
			}
			c.onVideoProgress("metadata")
		}
	case SignalEnded:
		if c.item.Kind == media.KindVideo {
			c.logf("video ended naturally after %s", c.sched.Now().Sub(c.startedAt))
			c.cancelTimer()
			c.nextItem()
		}
	}
}

// Refresh requests a new batch now. It is refused while a fetch is already
// outstanding or a failure cool-down is still running.
func (c *Controller) Refresh() bool {
	if c.closed || c.state == StateIdle {
		return false
	}
	if c.fetchInFlight {
		c.logf("refresh ignored: fetch already in flight")
		return false
	}
	if wait := c.retryNotBefore.Sub(c.sched.Now()); wait > 0 {
		c.logf("refresh ignored: cool-down has %s left", wait)
		return false
	}
	return c.requestBatch("manual refresh")
}

// SetFilterOverride restricts subsequent items to kind, overriding the
// configured filter. The item on screen is not interrupted. A thermal
// override still takes precedence.
func (c *Controller) SetFilterOverride(kind media.Kind) {
	f := media.Only(kind)
	c.manual = &f
	c.logf("filter override set: %s (effective %s)", f, c.effectiveFilter())
	c.publish()
}

// ClearFilterOverride drops the manual override. It leaves a thermal
// override in place.
func (c *Controller) ClearFilterOverride() {
	if c.manual == nil {
		return
	}
	c.manual = nil
	c.logf("filter override cleared, effective %s", c.effectiveFilter())
	c.publish()
}

// SetThermalOverride restricts subsequent items to kind until
// ClearThermalOverride, regardless of any manual override.
func (c *Controller) SetThermalOverride(kind media.Kind) {
	f := media.Only(kind)
	c.thermal = &f
	c.logf("thermal override set: %s", f)
	c.publish()
}

// ClearThermalOverride lifts the thermal override.
func (c *Controller) ClearThermalOverride() {
	if c.thermal == nil {
		return
	}
	c.thermal = nil
	c.logf("thermal override cleared, effective %s", c.effectiveFilter())
	c.publish()
}

// Close cancels the live timer and drops any outstanding fetch result.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.cancelTimer()
	c.closed = true
	c.fetchGen++
	c.fetchInFlight = false
	c.state = StateIdle
	c.logf("controller closed")
	c.publish()
}

func (c *Controller) effectiveFilter() media.Filter {
	switch {
	case c.thermal != nil:
		return *c.thermal
	case c.manual != nil:
		return *c.manual
	}
	return c.cfg.Filter
}

// beginBatch installs b with the cursor at 0 and shows its first
// displayable item.
func (c *Controller) beginBatch(b media.Batch) {
	fresh := media.NewBatch(b.Album(), b.Items())
	if fresh.Empty() {
		c.failWith(media.ErrorBatch(fallbackAlbumForError, media.ErrNoMedia.Error()))
		return
	}
	filter := c.effectiveFilter()
	if fresh.CountMatching(filter) == 0 {
		c.failWith(media.ErrorBatch(fallbackAlbumForError,
			fmt.Sprintf("no %s items in album %q", filter, fresh.Album())))
		return
	}
	c.batch = fresh
	first, _ := c.batch.Current()
	if !filter.Allows(first) {
		c.logf("skipping %s (%s): filter is %s", first.Label(), first.Kind, filter)
		c.nextItem()
		return
	}
	c.show(first)
}

// nextItem walks forward past filtered items. The walk is bounded by the
// batch length; running off the end requests a new batch.
func (c *Controller) nextItem() {
	filter := c.effectiveFilter()
	for {
		it, ok := c.batch.TryAdvance()
		if !ok {
			c.requestBatch("batch exhausted")
			return
		}
		if filter.Allows(it) {
			c.show(it)
			return
		}
		c.logf("skipping %s (%s): filter is %s", it.Label(), it.Kind, filter)
	}
}

func (c *Controller) show(it media.Item) {
	c.cancelTimer()
	c.seq++
	seq := c.seq
	c.item = it
	c.startedAt = c.sched.Now()
	c.elapsed = 0
	c.progressSeen = false
	c.loadFailed = false

	c.presenter.Clear()
	switch it.Kind {
	case media.KindError:
		c.state = StateShowingError
		c.lastError = it.Message
		c.retryNotBefore = c.startedAt.Add(c.cfg.RetryCooldown)
		c.presenter.Show(it, seq)
		c.presenter.UpdateOverlay(it.Message)
		c.logf("showing error card: %s; retry in %s", it.Message, c.cfg.RetryCooldown)
		c.arm(slotRetry, c.cfg.RetryCooldown, false, c.onRetryDue)
	case media.KindVideo:
		c.state = StateShowing
		c.presenter.Show(it, seq)
		c.presenter.UpdateOverlay(OverlayText(it, c.batch.Album(), c.batch.Remaining()))
		c.presenter.UpdateProgress(1)
		c.logf("showing video %d/%d: %s", c.batch.Cursor()+1, c.batch.Len(), it.Label())
		c.arm(slotVideoWatchdog, c.cfg.VideoWatchdog, false, func() { c.onVideoWatchdog(seq) })
	default:
		c.state = StateShowing
		c.presenter.Show(it, seq)
		c.presenter.UpdateOverlay(OverlayText(it, c.batch.Album(), c.batch.Remaining()))
		c.presenter.UpdateProgress(1)
		c.logf("showing photo %d/%d: %s", c.batch.Cursor()+1, c.batch.Len(), it.Label())
		c.arm(slotPhotoTick, c.cfg.TickInterval, true, func() { c.onPhotoTick(seq) })
	}
	if c.observer != nil {
		c.observer.Displayed(it, c.batch.Album(), c.startedAt)
	}
	c.publish()
}

func (c *Controller) onPhotoTick(seq uint64) {
	if seq != c.seq || c.state != StateShowing {
		return
	}
	c.elapsed += c.cfg.TickInterval
	if c.elapsed > c.cfg.PhotoDuration {
		c.elapsed = c.cfg.PhotoDuration
	}
	c.presenter.UpdateProgress(1 - float64(c.elapsed)/float64(c.cfg.PhotoDuration))
	if c.elapsed >= c.cfg.PhotoDuration {
		c.cancelTimer()
		c.nextItem()
	}
}

func (c *Controller) onVideoWatchdog(seq uint64) {
	if seq != c.seq || c.state != StateShowing || c.progressSeen {
		return
	}
	c.timer, c.timerSlot = 0, slotNone
	c.logf("video showed no progress within %s, skipping: %s", c.cfg.VideoWatchdog, c.item.Label())
	c.nextItem()
}

// onVideoProgress hands off from the start watchdog to the ceiling cap.
func (c *Controller) onVideoProgress(what string) {
	if c.progressSeen {
		return
	}
	c.progressSeen = true
	seq := c.seq
	c.logf("video %s, cap at %s", what, c.cfg.VideoCeiling)
	c.arm(slotVideoCap, c.cfg.VideoCeiling, false, func() { c.onVideoCap(seq) })
	c.publish()
}

func (c *Controller) onVideoCap(seq uint64) {
	if seq != c.seq || c.state != StateShowing {
		return
	}
	c.timer, c.timerSlot = 0, slotNone
	c.logf("video reached the %s ceiling: %s", c.cfg.VideoCeiling, c.item.Label())
	c.nextItem()
}

func (c *Controller) onMediaLoadFailed(err error) {
	c.loadFailed = true
	if err != nil {
		c.logf("failed to load %s: %v; skipping in %s", c.item.Label(), err, c.cfg.LoadGrace)
	} else {
		c.logf("failed to load %s; skipping in %s", c.item.Label(), c.cfg.LoadGrace)
	}
	seq := c.seq
	c.arm(slotLoadGrace, c.cfg.LoadGrace, false, func() {
		if seq != c.seq || c.state != StateShowing {
			return
		}
		c.timer, c.timerSlot = 0, slotNone
		c.nextItem()
	})
	c.publish()
}

func (c *Controller) onRetryDue() {
	if c.state != StateShowingError {
		return
	}
	c.timer, c.timerSlot = 0, slotNone
	c.requestBatch("retry after cool-down")
}

// requestBatch enters AwaitingBatch and issues a fetch unless one is
// already outstanding. A fetch is never issued inside a failure cool-down;
// the retry timer is re-armed for the remainder instead.
func (c *Controller) requestBatch(why string) bool {
	if wait := c.retryNotBefore.Sub(c.sched.Now()); wait > 0 {
		c.logf("%s: fetch deferred, cool-down has %s left", why, wait)
		c.arm(slotRetry, wait, false, c.onRetryDue)
		c.publish()
		return false
	}
	c.cancelTimer()
	c.state = StateAwaitingBatch
	if c.fetchInFlight {
		c.logf("%s: fetch already in flight", why)
		c.publish()
		return false
	}
	c.fetchInFlight = true
	c.fetchGen++
	gen := c.fetchGen
	c.logf("%s: requesting new batch", why)
	c.publish()
	c.fetcher.Fetch(func(b media.Batch, err error) { c.onFetchResult(gen, b, err) })
	return true
}

func (c *Controller) onFetchResult(gen uint64, b media.Batch, err error) {
	if c.closed || gen != c.fetchGen {
		return
	}
	if err == nil {
		c.OnBatchReady(b)
		return
	}
	c.logf("batch fetch failed: %v", err)
	var fe *media.FetchError
	if errors.As(err, &fe) {
		if placeholders, ok := fe.PlaceholderBatch(); ok {
			c.fetchInFlight = false
			c.failWith(placeholders)
			return
		}
	}
	c.OnBatchFetchFailed(err.Error())
}

// failWith replaces the batch with error placeholders; showing the first
// one arms the cool-down retry.
func (c *Controller) failWith(b media.Batch) {
	c.cancelTimer()
	c.batch = b
	first, _ := c.batch.Current()
	c.show(first)
}

// arm replaces whatever timer is live; the controller never holds two.
func (c *Controller) arm(s slot, d time.Duration, repeat bool, fn func()) {
	c.cancelTimer()
	c.timer = c.sched.Arm(d, repeat, fn)
	c.timerSlot = s
}

func (c *Controller) cancelTimer() {
	if c.timer != 0 {
		c.sched.Cancel(c.timer)
	}
	c.timer = 0
	c.timerSlot = slotNone
}
