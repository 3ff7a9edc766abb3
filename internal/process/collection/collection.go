// Package collection fetches a post and its comments from the post's platform
// and stores them for analysis.
package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

// PlatformCollector fetches a post and its comments by URL.
type PlatformCollector interface {
	GetPost(ctx context.Context, url string) (*domain.PostData, error)
	GetComments(ctx context.Context, url string) ([]domain.CommentData, error)
}

// Repository stores collected data.
type Repository interface {
	UpdatePostData(ctx context.Context, id string, data *domain.PostData) error
	InsertComments(ctx context.Context, postID string, comments []domain.CommentData) (int, error)
}

// Collector routes a post to the collector for its platform.
type Collector struct {
	repo       Repository
	collectors map[domain.Platform]PlatformCollector
	logger     *zerolog.Logger
}

// New creates a Collector. Platforms with no entry in collectors are
// reported as unavailable.
func New(repo Repository, collectors map[domain.Platform]PlatformCollector, logger *zerolog.Logger) *Collector {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Collector{repo: repo, collectors: collectors, logger: logger}
}

// Collect fetches the post and its comments and stores them.
func (c *Collector) Collect(ctx context.Context, post *domain.Post) error {
	if err := c.collect(ctx, post); err != nil {
		return fmt.Errorf("data collection failed: %w", err)
	}

	return nil
}

func (c *Collector) collect(ctx context.Context, post *domain.Post) error {
	source, ok := c.collectors[post.Platform]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrPlatformUnavailable, post.Platform)
	}

	platform := strings.ToLower(string(post.Platform))

	data, err := source.GetPost(ctx, post.URL)
	if err != nil {
		return fmt.Errorf("%s post: %w", platform, err)
	}

	comments, err := source.GetComments(ctx, post.URL)
	if err != nil {
		return fmt.Errorf("%s comments: %w", platform, err)
	}

	if err := c.repo.UpdatePostData(ctx, post.ID, data); err != nil {
		return fmt.Errorf("saving post: %w", err)
	}

	inserted, err := c.repo.InsertComments(ctx, post.ID, comments)
	if err != nil {
		return fmt.Errorf("saving comments: %w", err)
	}

	observability.CommentsCollected.WithLabelValues(platform).Add(float64(inserted))

	c.logger.Info().
		Str("post_id", post.ID).
		Str("platform", platform).
		Int("fetched", len(comments)).
		Int("inserted", inserted).
		Msg("collected post data")

	return nil
}
