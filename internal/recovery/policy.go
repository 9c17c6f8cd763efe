package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/gamesocket/internal/api"
	"github.com/rickgao/gamesocket/internal/channel"
)

// ErrAttemptsExhausted is reported when re-provisioning hit the ceiling.
var ErrAttemptsExhausted = errors.New("identity re-provisioning attempts exhausted")

// Provisioner issues player identities.
type Provisioner interface {
	EnsurePlayer(ctx context.Context, name, authID string) (api.Player, error)
}

// IdentityStore is the persisted player identity.
type IdentityStore interface {
	AuthID() string
	PlayerName() string
	Set(name, authID string) error
}

// Notifier surfaces connection failures to the user.
type Notifier interface {
	// ConnectionFailed raises a persistent error; retry reconnects.
	ConnectionFailed(err error, retry func())
	// ConnectionRecovered clears any raised error.
	ConnectionRecovered()
}

// Config configures a Policy.
type Config struct {
	MaxAttempts int           // Re-provisioning attempts before giving up
	Timeout     time.Duration // Deadline for one re-provisioning request
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Timeout:     10 * time.Second,
	}
}

// Policy reacts to connect_error and connect events from the channel.
type Policy struct {
	cfg         Config
	provisioner Provisioner
	store       IdentityStore
	notifier    Notifier
	logger      *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	attempts int
}

// New creates a Policy.
func New(cfg Config, provisioner Provisioner, store IdentityStore, notifier Notifier, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Policy{
		cfg:         cfg,
		provisioner: provisioner,
		store:       store,
		notifier:    notifier,
		logger:      logger.With("component", "recovery"),
	}
}

// OnConnectionError handles a failed connect attempt. It never blocks the
// dispatcher: re-provisioning runs in its own goroutine.
func (p *Policy) OnConnectionError(ch channel.Channel, err error) {
	if !channel.IsUnknownPlayer(err) {
		p.logger.Warn("connection failed", "error", err)
		p.fail(ch, err)
		return
	}

	p.mu.Lock()
	if p.attempts >= p.cfg.MaxAttempts {
		attempts := p.attempts
		p.mu.Unlock()
		p.logger.Error("identity rejected, giving up", "attempts", attempts)
		p.fail(ch, errors.Join(ErrAttemptsExhausted, err))
		return
	}
	p.attempts++
	attempt := p.attempts
	p.mu.Unlock()

	p.logger.Info("identity rejected, re-provisioning", "attempt", attempt, "max_attempts", p.cfg.MaxAttempts)
	go p.reprovision(ch)
}

// OnRecovered resets the attempt counter and clears any raised error.
func (p *Policy) OnRecovered() {
	p.mu.Lock()
	p.attempts = 0
	p.mu.Unlock()

	if p.notifier != nil {
		p.notifier.ConnectionRecovered()
	}
}

// Attempts returns the number of re-provisioning attempts since the last
// successful connect.
func (p *Policy) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// reprovision asks the server for a fresh identity and reconnects.
// Concurrent calls share one request.
func (p *Policy) reprovision(ch channel.Channel) {
	_, err, shared := p.group.Do("ensure", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()

		player, err := p.provisioner.EnsurePlayer(ctx, p.store.PlayerName(), p.store.AuthID())
		if err != nil {
			return nil, err
		}
		return nil, p.store.Set(player.Name, player.AuthID)
	})
	if err != nil {
		p.logger.Error("identity re-provisioning failed", "error", err)
		p.fail(ch, err)
		return
	}

	p.logger.Debug("identity re-provisioned, reconnecting", "shared", shared)
	ch.Connect()
}

// fail stops the channel and raises a persistent, retriable error.
func (p *Policy) fail(ch channel.Channel, err error) {
	ch.Disconnect()
	if p.notifier != nil {
		p.notifier.ConnectionFailed(err, ch.Connect)
	}
}
