package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

const postColumns = `
	id, url, platform, platform_id, title, content, thumbnail_path,
	author_platform_id, author_username, author_full_name, author_avatar_path,
	author_followers_count, author_verified,
	likes_count, comments_count, shares_count, views_count, reactions,
	published_at, created_at, updated_at`

// CreatePost inserts a post with no collected data yet.
func (db *DB) CreatePost(ctx context.Context, url string, platform domain.Platform) (*domain.Post, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO posts (url, platform)
		VALUES ($1, $2)
		RETURNING `+postColumns, SanitizeUTF8(url), string(platform))

	post, err := scanPost(row)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	return post, nil
}

// GetPost returns the post by id or apperrors.ErrPostNotFound.
func (db *DB) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, toUUID(id))

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPostNotFound
		}

		return nil, fmt.Errorf(errQueryPost, id, err)
	}

	return post, nil
}

// UpdatePostData stores the collected platform data on a post.
func (db *DB) UpdatePostData(ctx context.Context, id string, data *domain.PostData) error {
	reactions, err := toJSONB(data.Reactions)
	if err != nil {
		return err
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE posts SET
			platform_id = $2,
			title = $3,
			content = $4,
			thumbnail_path = $5,
			author_platform_id = $6,
			author_username = $7,
			author_full_name = $8,
			author_avatar_path = $9,
			author_followers_count = $10,
			author_verified = $11,
			likes_count = $12,
			comments_count = $13,
			shares_count = $14,
			views_count = $15,
			reactions = $16,
			published_at = $17,
			updated_at = now()
		WHERE id = $1
	`,
		toUUID(id),
		data.PlatformID,
		sanitizePtr(data.Title),
		sanitizePtr(data.Content),
		data.ThumbnailPath,
		data.AuthorPlatformID,
		data.AuthorUsername,
		sanitizePtr(data.AuthorFullName),
		data.AuthorAvatarPath,
		data.AuthorFollowersCount,
		data.AuthorVerified,
		data.LikesCount,
		data.CommentsCount,
		data.SharesCount,
		data.ViewsCount,
		reactions,
		data.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("update post %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrPostNotFound
	}

	return nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		p         domain.Post
		id        pgtype.UUID
		platform  string
		reactions []byte
	)

	err := row.Scan(
		&id, &p.URL, &platform, &p.PlatformID, &p.Title, &p.Content, &p.ThumbnailPath,
		&p.AuthorPlatformID, &p.AuthorUsername, &p.AuthorFullName, &p.AuthorAvatarPath,
		&p.AuthorFollowersCount, &p.AuthorVerified,
		&p.LikesCount, &p.CommentsCount, &p.SharesCount, &p.ViewsCount, &reactions,
		&p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = fromUUID(id)
	p.Platform = domain.Platform(platform)

	if p.Reactions, err = fromJSONB[int64](reactions); err != nil {
		return nil, err
	}

	return &p, nil
}
