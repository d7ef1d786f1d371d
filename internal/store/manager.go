package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/khanghh/donorshield/params"
	"github.com/redis/go-redis/v9"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// DialFunc creates a client for the given options. The client is not
// expected to be connected yet.
type DialFunc func(opts *redis.Options) redis.UniversalClient

type Config struct {
	URL                 string
	PoolSize            int
	ConnectTimeout      time.Duration
	MaxAttempts         int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	HealthCheckInterval time.Duration
}

func applyDefaults(conf Config) Config {
	if conf.ConnectTimeout <= 0 {
		conf.ConnectTimeout = params.StoreConnectTimeout
	}
	if conf.MaxAttempts <= 0 {
		conf.MaxAttempts = params.StoreMaxConnectAttempts
	}
	if conf.InitialBackoff <= 0 {
		conf.InitialBackoff = params.StoreInitialBackoff
	}
	if conf.MaxBackoff <= 0 {
		conf.MaxBackoff = params.StoreMaxBackoff
	}
	if conf.HealthCheckInterval <= 0 {
		conf.HealthCheckInterval = params.StoreHealthCheckInterval
	}
	return conf
}

// connectAttempt is shared by every caller waiting for the same connection.
type connectAttempt struct {
	done   chan struct{}
	client redis.UniversalClient
	err    error
}

// Manager owns the single shared Redis connection of the process. It is
// created disconnected and connects lazily on the first GetClient call.
type Manager struct {
	config  Config
	opts    *redis.Options
	dial    DialFunc
	logger  *slog.Logger
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	state   State
	client  redis.UniversalClient
	pending *connectAttempt
	closed  bool
}

type ManagerOption func(*Manager)

func WithDialer(dial DialFunc) ManagerOption {
	return func(m *Manager) {
		m.dial = dial
	}
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func defaultDial(opts *redis.Options) redis.UniversalClient {
	return redis.NewClient(opts)
}

// NewManager validates the configuration without connecting. A missing or
// malformed URL is a configuration error.
func NewManager(config Config, options ...ManagerOption) (*Manager, error) {
	if config.URL == "" {
		return nil, ErrMissingURL
	}
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	config = applyDefaults(config)
	opts.DialTimeout = config.ConnectTimeout
	opts.MaxRetries = -1
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}

	m := &Manager{
		config:  config,
		opts:    opts,
		dial:    defaultDial,
		logger:  slog.Default(),
		closeCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetClient returns the live client, joining the in-flight connection
// attempt if there is one. Once an attempt has exhausted its retries the
// error is returned to every waiter and the next call starts over.
func (m *Manager) GetClient(ctx context.Context) (redis.UniversalClient, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if m.client != nil {
		client := m.client
		m.mu.Unlock()
		return client, nil
	}
	attempt := m.pending
	if attempt == nil {
		attempt = &connectAttempt{done: make(chan struct{})}
		m.pending = attempt
		m.state = StateConnecting
		m.wg.Add(1)
		go m.connect(attempt)
	}
	m.mu.Unlock()

	select {
	case <-attempt.done:
		return attempt.client, attempt.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) ping(client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

func (m *Manager) connect(attempt *connectAttempt) {
	defer m.wg.Done()
	defer close(attempt.done)

	var lastErr error
	backoff := m.config.InitialBackoff
	for i := 1; i <= m.config.MaxAttempts; i++ {
		client := m.dial(m.opts)
		err := m.ping(client)
		if err == nil {
			m.mu.Lock()
			m.pending = nil
			if m.closed {
				m.mu.Unlock()
				client.Close()
				attempt.err = ErrManagerClosed
				return
			}
			m.client = client
			m.state = StateReady
			m.mu.Unlock()
			attempt.client = client
			m.logger.Info("Connected to redis", "addr", m.opts.Addr, "attempt", i)
			return
		}

		client.Close()
		lastErr = err
		connectFailuresTotal.Inc()
		m.logger.Warn("Redis connection attempt failed", "addr", m.opts.Addr, "attempt", i, "error", err)
		if i == m.config.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-m.closeCh:
			i = m.config.MaxAttempts
		}
		backoff = min(backoff*2, m.config.MaxBackoff)
	}

	m.mu.Lock()
	m.pending = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	m.logger.Error("Giving up connecting to redis", "addr", m.opts.Addr, "attempts", m.config.MaxAttempts, "error", lastErr)
	attempt.err = fmt.Errorf("%w: %w", ErrStoreUnavailable, lastErr)
}

// Invalidate drops client if it is still the current connection so the next
// GetClient reconnects.
func (m *Manager) Invalidate(client redis.UniversalClient) {
	m.mu.Lock()
	if client == nil || m.client != client {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.state = StateDisconnected
	m.mu.Unlock()
	m.logger.Warn("Redis connection reset", "addr", m.opts.Addr)
	client.Close()
}

// Ping checks the current connection, connecting first if needed.
func (m *Manager) Ping(ctx context.Context) error {
	client, err := m.GetClient(ctx)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		m.Invalidate(client)
		return err
	}
	return nil
}

func (m *Manager) probe() {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return
	}
	if err := m.ping(client); err != nil {
		m.logger.Warn("Redis health check failed", "addr", m.opts.Addr, "error", err)
		m.Invalidate(client)
	}
}

// StartHealthCheck pings the live connection every HealthCheckInterval until
// ctx is done or the manager is closed.
func (m *Manager) StartHealthCheck(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.closeCh:
				return
			case <-ticker.C:
				m.probe()
			}
		}
	}()
}

func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.closeCh)
	client := m.client
	m.client = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.wg.Wait()
	if client != nil {
		return client.Close()
	}
	return nil
}

func isConnectionError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
