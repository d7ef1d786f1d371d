// Package anomaly runs pluggable behavioral detectors against every logged
// security event. Detectors are grouped into four families, each of which
// can be enabled and configured on its own.
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/khanghh/donorshield/internal/security"
)

type Family string

const (
	FamilyTimeOfDay   Family = "time_of_day"
	FamilyGeolocation Family = "geolocation"
	FamilyFrequency   Family = "frequency"
	FamilyPattern     Family = "pattern"
)

var Families = []Family{
	FamilyTimeOfDay,
	FamilyGeolocation,
	FamilyFrequency,
	FamilyPattern,
}

func (f Family) Valid() bool {
	switch f {
	case FamilyTimeOfDay, FamilyGeolocation, FamilyFrequency, FamilyPattern:
		return true
	}
	return false
}

// Options are detector specific settings, passed through untouched.
type Options map[string]any

type FamilyConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Options Options `mapstructure:"options"`
}

// Config enables families by name. A family without an entry is disabled.
type Config map[Family]FamilyConfig

type Detector interface {
	Detect(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error)
}

type DetectorFunc func(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error)

func (f DetectorFunc) Detect(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error) {
	return f(ctx, ev, opts)
}

// Hook implements security.AnomalyHook on top of the registered detectors.
type Hook struct {
	logger *slog.Logger

	mu        sync.RWMutex
	config    Config
	detectors map[Family][]Detector
}

func (h *Hook) Register(family Family, detector Detector) error {
	if !family.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if detector == nil {
		return ErrNilDetector
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detectors[family] = append(h.detectors[family], detector)
	return nil
}

func (h *Hook) SetConfig(config Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = config
}

func (h *Hook) Enabled(family Family) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config[family].Enabled
}

type job struct {
	family   Family
	detector Detector
	opts     Options
}

func (h *Hook) jobs() []job {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var jobs []job
	for _, family := range Families {
		cfg := h.config[family]
		if !cfg.Enabled {
			continue
		}
		for _, detector := range h.detectors[family] {
			jobs = append(jobs, job{family: family, detector: detector, opts: cfg.Options})
		}
	}
	return jobs
}

func runDetector(ctx context.Context, j job, ev security.Event) (results []security.AnomalyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s detector panicked: %v", j.family, r)
		}
	}()
	results, err = j.detector.Detect(ctx, ev, j.opts)
	if err != nil {
		err = fmt.Errorf("%s detector: %w", j.family, err)
	}
	for i := range results {
		if results[i].Type == "" {
			results[i].Type = string(j.family)
		}
	}
	return results, err
}

// DetectAnomalies runs every detector of the enabled families concurrently.
// A failing detector does not hide the results of the others; its error is
// joined into the returned error.
func (h *Hook) DetectAnomalies(ctx context.Context, ev security.Event) ([]security.AnomalyResult, error) {
	jobs := h.jobs()
	if len(jobs) == 0 {
		return nil, nil
	}

	type outcome struct {
		results []security.AnomalyResult
		err     error
	}
	outcomes := make([]outcome, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := runDetector(ctx, j, ev)
			outcomes[i] = outcome{results, err}
		}()
	}
	wg.Wait()

	var (
		results []security.AnomalyResult
		errs    []error
	)
	for _, o := range outcomes {
		results = append(results, o.results...)
		if o.err != nil {
			h.logger.Debug("Anomaly detector failed", "event", ev.ID, "error", o.err)
			errs = append(errs, o.err)
		}
	}
	return results, errors.Join(errs...)
}

func NewHook(config Config, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		logger:    logger,
		config:    config,
		detectors: make(map[Family][]Detector),
	}
}
