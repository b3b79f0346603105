// Package player plays videos in an external mpv process and reports the
// playback outcome as slideshow signals.
package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"fridgeframe/internal/slideshow"
)

const durationMarker = "fridgeframe-duration="

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

// Config describes how to start the player.
type Config struct {
	Command    string // program plus fixed leading arguments, e.g. "mpv"
	Sound      bool
	Fullscreen bool
}

// Player runs at most one playback process at a time.
type Player struct {
	cfg     Config
	signals chan<- slideshow.Signal
	logger  LoggerFunc

	mu  sync.Mutex
	cur *playback
}

type playback struct {
	seq    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a player that reports on signals.
func New(cfg Config, signals chan<- slideshow.Signal, logger LoggerFunc) *Player {
	if strings.TrimSpace(cfg.Command) == "" {
		cfg.Command = "mpv"
	}
	return &Player{cfg: cfg, signals: signals, logger: logger}
}

func (p *Player) logMessage(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[player] "+format, args...)
}

// Args returns the full command line used for url.
func (p *Player) Args(url string) []string {
	fields := strings.Fields(p.cfg.Command)
	args := append([]string{}, fields...)
	args = append(args,
		"--no-terminal",
		"--really-quiet",
		"--mute="+yesNo(!p.cfg.Sound),
		"--term-playing-msg="+durationMarker+"${duration}",
	)
	if p.cfg.Fullscreen {
		args = append(args, "--fs")
	}
	return append(args, url)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Play stops any current playback and starts url. Outcome signals carry seq.
func (p *Player) Play(url string, seq uint64) {
	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{seq: seq, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	p.mu.Lock()
	p.cur = pb
	p.mu.Unlock()

	args := p.Args(url)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		p.logMessage("failed to start %s: %v", args[0], err)
		go func() {
			defer close(pb.done)
			p.emit(pb, slideshow.Signal{Seq: seq, Type: slideshow.SignalLoadFailed, Err: err})
		}()
		return
	}
	go p.watch(ctx, pb, cmd, stdout)
}

func (p *Player) watch(ctx context.Context, pb *playback, cmd *exec.Cmd, stdout io.Reader) {
	defer close(pb.done)
	scanner := bufio.NewScanner(stdout)
	started := false
	for scanner.Scan() {
		d, ok := ParseDurationLine(scanner.Text())
		if !ok || started {
			continue
		}
		started = true
		p.emit(pb, slideshow.Signal{Seq: pb.seq, Type: slideshow.SignalStarted})
		p.emit(pb, slideshow.Signal{Seq: pb.seq, Type: slideshow.SignalMetadata, Duration: d})
	}
	err := cmd.Wait()
	if ctx.Err() != nil {
		// Stopped on purpose; the controller has already moved on.
		return
	}
	if err != nil {
		p.logMessage("player exited: %v", err)
		p.emit(pb, slideshow.Signal{Seq: pb.seq, Type: slideshow.SignalLoadFailed, Err: err})
		return
	}
	p.emit(pb, slideshow.Signal{Seq: pb.seq, Type: slideshow.SignalEnded})
}

// emit delivers sig unless pb has been stopped in the meantime. A stop
// also releases a send blocked on a full channel.
func (p *Player) emit(pb *playback, sig slideshow.Signal) {
	p.mu.Lock()
	current := p.cur == pb
	p.mu.Unlock()
	if !current {
		return
	}
	select {
	case p.signals <- sig:
	case <-pb.ctx.Done():
	}
}

// Stop kills the current playback, if any, and waits for it to exit.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.cur
	p.cur = nil
	p.mu.Unlock()
	if pb == nil {
		return
	}
	pb.cancel()
	select {
	case <-pb.done:
	case <-time.After(3 * time.Second):
		p.logMessage("player for show %d did not exit in time", pb.seq)
	}
}

// ParseDurationLine extracts the duration printed by --term-playing-msg.
// Streams of unknown length report no duration.
func ParseDurationLine(line string) (time.Duration, bool) {
	i := strings.Index(line, durationMarker)
	if i < 0 {
		return 0, false
	}
	v := strings.TrimSpace(line[i+len(durationMarker):])
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, true
	}
	return time.Duration(secs * float64(time.Second)), true
}
