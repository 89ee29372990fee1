package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
)

const (
	// defaultHeartbeat matches the interval the vendor's own clients use;
	// the server drops connections that stay silent longer.
	defaultHeartbeat   = 300 * time.Second
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// Config holds the configuration for the event-stream client.
type Config struct {
	Logger *slog.Logger

	// Token is the bearer token from knocki.Client.Login. Required.
	Token string

	// ServerURL overrides the host selection, mainly for tests. The
	// token is still appended as a query parameter.
	ServerURL string

	// HeartbeatInterval is the protocol ping cadence. Defaults to 300s.
	HeartbeatInterval time.Duration

	// BaseBackoff is the first reconnect delay; consecutive failures
	// double it up to MaxBackoff. Defaults to 1s and 30s.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	Staging bool
}

// Client keeps the event stream alive and dispatches inbound events to
// registered listeners.
type Client struct {
	logger   *slog.Logger
	registry *registry
	config   Config
	url      string

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once

	mu      sync.Mutex
	session *session
	running bool
}

// New creates an event-stream client.
func New(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, errors.New("token is required")
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = defaultHeartbeat
	}
	if config.BaseBackoff == 0 {
		config.BaseBackoff = defaultBaseBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaultMaxBackoff
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	streamURL, err := buildURL(config)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger:    logger,
		registry:  newRegistry(logger),
		config:    config,
		url:       streamURL,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

func buildURL(config Config) (string, error) {
	raw := config.ServerURL
	if raw == "" {
		host := knocki.ProductionHost
		if config.Staging {
			host = knocki.StagingHost
		}
		raw = "wss://" + host + "/production"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	q := u.Query()
	q.Set("token", config.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// On registers a listener for an event kind. Listeners for the same kind
// fire in registration order. The returned function removes exactly this
// registration and may be called more than once.
func (c *Client) On(kind knocki.EventKind, listener Listener) func() {
	return c.registry.add(kind, listener)
}

// Connected reports whether a session currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.connected()
}

// Start runs the reconnection loop until the context is cancelled or
// Stop is called. Every connection failure is recovered locally: the
// loop backs off exponentially, re-dials, and resets the backoff once a
// connection is fully established. Calling Start while the client is
// already running is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Debug("event stream already running")
		return nil
	}
	c.running = true
	c.mu.Unlock()
	defer close(c.stoppedCh)

	// Stop unwinds any in-progress dial, read, or backoff sleep.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		err := retry.Do(
			func() error {
				select {
				case <-ctx.Done():
					return retry.Unrecoverable(ctx.Err())
				default:
				}
				return c.runSession(ctx)
			},
			retry.Context(ctx),
			retry.Delay(c.config.BaseBackoff),
			retry.DelayType(retry.BackOffDelay),
			retry.MaxDelay(c.config.MaxBackoff),
			retry.UntilSucceeded(),
			retry.OnRetry(func(n uint, err error) {
				c.logger.Warn("event stream connection failed",
					"error", err,
					"attempt", n+1,
				)
			}),
		)
		if err != nil {
			select {
			case <-c.stopCh:
				c.logger.Info("event stream stopped")
				return nil
			default:
			}
			c.logger.Info("event stream cancelled", "error", err)
			return err
		}

		// The last session connected and has since ended. Pause for one
		// base delay, then dial again with a fresh retry counter.
		select {
		case <-ctx.Done():
			select {
			case <-c.stopCh:
				return nil
			default:
			}
			return ctx.Err()
		case <-time.After(c.config.BaseBackoff):
		}
	}
}

// runSession drives one connection to completion. It reports an error
// only for attempts that never reached the connected state; a session
// that connected and later dropped counts as a success so the retry
// counter starts over.
func (c *Client) runSession(ctx context.Context) error {
	sess := newSession(c.url, c.config.HeartbeatInterval, c.registry, c.logger)
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	err := sess.run(ctx)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return retry.Unrecoverable(err)
	case sess.everConnected.Load():
		c.logger.Warn("event stream disconnected", "error", err)
		return nil
	default:
		return err
	}
}

// Stop shuts the client down and waits for Start to return. It is safe
// to call multiple times and before Start.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		<-c.stoppedCh
	}
}
