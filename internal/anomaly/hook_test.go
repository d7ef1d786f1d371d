package anomaly

import (
	"context"
	"errors"
	"testing"

	"github.com/khanghh/donorshield/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ security.AnomalyHook = (*Hook)(nil)

func detected(score float64) DetectorFunc {
	return func(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error) {
		return []security.AnomalyResult{{Detected: true, Severity: security.SeverityMedium, Score: score}}, nil
	}
}

func TestHook_OnlyEnabledFamiliesRun(t *testing.T) {
	hook := NewHook(Config{
		FamilyFrequency: {Enabled: true},
		FamilyPattern:   {Enabled: false},
	}, nil)
	require.NoError(t, hook.Register(FamilyFrequency, detected(0.8)))
	require.NoError(t, hook.Register(FamilyPattern, detected(0.9)))
	require.NoError(t, hook.Register(FamilyGeolocation, detected(0.7)))

	results, err := hook.DetectAnomalies(context.Background(), security.Event{ID: "1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "frequency", results[0].Type)
	assert.Equal(t, 0.8, results[0].Score)
}

func TestHook_OptionsArePassed(t *testing.T) {
	hook := NewHook(Config{
		FamilyTimeOfDay: {Enabled: true, Options: Options{"startHour": 8}},
	}, nil)
	var got Options
	require.NoError(t, hook.Register(FamilyTimeOfDay, DetectorFunc(func(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error) {
		got = opts
		return nil, nil
	})))
	_, err := hook.DetectAnomalies(context.Background(), security.Event{})
	require.NoError(t, err)
	assert.Equal(t, 8, got["startHour"])
}

func TestHook_FailuresAreJoined(t *testing.T) {
	hook := NewHook(Config{
		FamilyFrequency:   {Enabled: true},
		FamilyPattern:     {Enabled: true},
		FamilyGeolocation: {Enabled: true},
	}, nil)
	lookupErr := errors.New("geoip database missing")
	require.NoError(t, hook.Register(FamilyGeolocation, DetectorFunc(func(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error) {
		return nil, lookupErr
	})))
	require.NoError(t, hook.Register(FamilyPattern, DetectorFunc(func(ctx context.Context, ev security.Event, opts Options) ([]security.AnomalyResult, error) {
		panic("bad regexp")
	})))
	require.NoError(t, hook.Register(FamilyFrequency, detected(0.5)))

	results, err := hook.DetectAnomalies(context.Background(), security.Event{})
	require.Error(t, err)
	assert.ErrorIs(t, err, lookupErr)
	assert.Contains(t, err.Error(), "pattern detector panicked")
	require.Len(t, results, 1)
	assert.Equal(t, "frequency", results[0].Type)
}

func TestHook_Register(t *testing.T) {
	hook := NewHook(nil, nil)
	assert.ErrorIs(t, hook.Register("weather", detected(1)), ErrUnknownFamily)
	assert.ErrorIs(t, hook.Register(FamilyPattern, nil), ErrNilDetector)

	results, err := hook.DetectAnomalies(context.Background(), security.Event{})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestHook_SetConfig(t *testing.T) {
	hook := NewHook(nil, nil)
	require.NoError(t, hook.Register(FamilyPattern, detected(1)))
	assert.False(t, hook.Enabled(FamilyPattern))

	hook.SetConfig(Config{FamilyPattern: {Enabled: true}})
	assert.True(t, hook.Enabled(FamilyPattern))
	results, err := hook.DetectAnomalies(context.Background(), security.Event{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
