// Package thermal watches the CPU temperature and restricts the slideshow to
// photos while the board runs hot, since video decoding is what heats it.
package thermal

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fridgeframe/internal/media"
)

const (
	DefaultPath     = "/sys/class/thermal/thermal_zone0/temp"
	DefaultWarning  = 65.0
	DefaultRecovery = 60.0
	DefaultInterval = 10 * time.Second

	keepReadings = 30
)

// LoggerFunc receives one formatted log line.
type LoggerFunc func(message string)

// Reader returns the current temperature in degrees Celsius.
type Reader interface {
	Read() (float64, error)
}

// SysfsReader reads a Linux thermal zone file holding millidegrees.
type SysfsReader struct {
	Path string
}

// Read implements Reader.
func (r SysfsReader) Read() (float64, error) {
	path := r.Path
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse temperature %q: %w", strings.TrimSpace(string(data)), err)
	}
	return float64(milli) / 1000, nil
}

// Target receives the override changes; slideshow.Runtime satisfies it.
// The thermal override is held apart from any manual one, so clearing a
// manual override never lifts it.
type Target interface {
	SetThermalOverride(kind media.Kind) error
	ClearThermalOverride() error
}

// Config holds the guard thresholds.
type Config struct {
	Warning  float64       // at or above: photos only
	Recovery float64       // at or below: back to the configured filter
	Interval time.Duration // sampling period
}

// Reading is one temperature sample.
type Reading struct {
	Celsius float64   `json:"celsius"`
	At      time.Time `json:"at"`
	Err     string    `json:"error,omitempty"`
}

// Status is the guard state reported by the status API.
type Status struct {
	Hot      bool      `json:"hot"`
	Warning  float64   `json:"warning"`
	Recovery float64   `json:"recovery"`
	Last     *Reading  `json:"last,omitempty"`
	Readings []Reading `json:"readings"`
}

// Monitor samples a Reader and flips the photo-only override on threshold
// crossings only.
type Monitor struct {
	cfg    Config
	reader Reader
	target Target
	logger LoggerFunc
	now    func() time.Time

	// OnChange, when set before Run, is called after each crossing with the
	// new state and the reading that caused it.
	OnChange func(hot bool, celsius float64)

	mu       sync.Mutex
	hot      bool
	readings []Reading
}

// NewMonitor creates a guard. Zero thresholds take the defaults.
func NewMonitor(cfg Config, reader Reader, target Target, logger LoggerFunc) *Monitor {
	if cfg.Warning == 0 {
		cfg.Warning = DefaultWarning
	}
	if cfg.Recovery == 0 {
		cfg.Recovery = DefaultRecovery
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Monitor{cfg: cfg, reader: reader, target: target, logger: logger, now: time.Now}
}

func (m *Monitor) logMessage(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger(fmt.Sprintf(format, args...))
		return
	}
	log.Printf("[thermal] "+format, args...)
}

// Check takes one sample and applies it.
func (m *Monitor) Check() Reading {
	c, err := m.reader.Read()
	r := Reading{Celsius: c, At: m.now()}
	if err != nil {
		r.Err = err.Error()
	}

	m.mu.Lock()
	m.readings = append(m.readings, r)
	if len(m.readings) > keepReadings {
		m.readings = m.readings[len(m.readings)-keepReadings:]
	}
	if err != nil {
		m.mu.Unlock()
		m.logMessage("temperature unavailable: %v", err)
		return r
	}
	var change string
	switch {
	case !m.hot && c >= m.cfg.Warning:
		m.hot = true
		change = "set"
	case m.hot && c <= m.cfg.Recovery:
		m.hot = false
		change = "clear"
	}
	m.mu.Unlock()

	switch change {
	case "set":
		m.logMessage("CPU at %.1f°C (warning %.1f°C): photos only", c, m.cfg.Warning)
		if err := m.target.SetThermalOverride(media.KindPhoto); err != nil {
			m.logMessage("could not apply override: %v", err)
		}
	case "clear":
		m.logMessage("CPU back to %.1f°C (recovery %.1f°C): restoring media filter", c, m.cfg.Recovery)
		if err := m.target.ClearThermalOverride(); err != nil {
			m.logMessage("could not clear override: %v", err)
		}
	}
	if change != "" && m.OnChange != nil {
		m.OnChange(change == "set", c)
	}
	return r
}

// Run samples immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check()
		}
	}
}

// Hot reports whether the override is active.
func (m *Monitor) Hot() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hot
}

// Status returns a copy of the guard state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Hot:      m.hot,
		Warning:  m.cfg.Warning,
		Recovery: m.cfg.Recovery,
		Readings: append([]Reading(nil), m.readings...),
	}
	if n := len(m.readings); n > 0 {
		last := m.readings[n-1]
		s.Last = &last
	}
	return s
}
