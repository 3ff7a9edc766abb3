// Package telegram collects a channel post and its discussion replies over
// MTProto using a user session stored on disk.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/config"
)

// ErrNotAuthorized indicates the session file holds no authorized user.
var ErrNotAuthorized = errors.New("telegram session is not authorized; run `vibeanalyze telegram login`")

// Client owns the MTProto connection. Run must be running for API to return.
type Client struct {
	cfg    *config.Config
	logger *zerolog.Logger

	once  sync.Once
	ready chan struct{}
	mu    sync.RWMutex
	api   *tg.Client
}

// NewClient creates a Client for the configured API credentials and session file.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
}

func (c *Client) newTelegramClient() (*telegram.Client, error) {
	if c.cfg.TGAPIID == 0 || c.cfg.TGAPIHash == "" {
		return nil, &apperrors.ConfigurationError{Component: "telegram", Value: "TG_API_ID/TG_API_HASH", Reason: "credentials not provided"}
	}

	return telegram.NewClient(c.cfg.TGAPIID, c.cfg.TGAPIHash, telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{
			Path: c.cfg.TGSessionPath,
		},
	}), nil
}

// Run connects with the stored session and serves API calls until ctx is done.
// It never prompts: an unauthorized session is an error.
func (c *Client) Run(ctx context.Context) error {
	client, err := c.newTelegramClient()
	if err != nil {
		return err
	}

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("telegram auth status: %w", err)
		}

		if !status.Authorized {
			return ErrNotAuthorized
		}

		c.mu.Lock()
		c.api = client.API()
		c.mu.Unlock()

		c.once.Do(func() { close(c.ready) })
		c.logger.Info().Msg("telegram client connected")

		<-ctx.Done()

		return ctx.Err()
	})
}

// Login runs the interactive code/password flow and persists the session.
func (c *Client) Login(ctx context.Context) error {
	client, err := c.newTelegramClient()
	if err != nil {
		return err
	}

	authenticator := &terminalAuth{cfg: c.cfg, logger: c.logger}

	return client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, authenticator.flow()); err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("telegram self: %w", err)
		}

		c.logger.Info().
			Int64("user_id", self.ID).
			Str("username", self.Username).
			Str("session", c.cfg.TGSessionPath).
			Msg("telegram session saved")

		return nil
	})
}

// API blocks until Run has connected, then returns the raw API client.
func (c *Client) API(ctx context.Context) (API, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", apperrors.ErrClientNotInitialized, ctx.Err())
	case <-c.ready:
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.api, nil
}
