package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

const commentColumns = `
	id, post_id, platform_id, content, thumbnail_path, is_reply, parent_platform_id,
	author_platform_id, author_username, author_full_name, author_avatar_path,
	author_followers_count, author_verified,
	likes_count, replies_count, shares_count, views_count, reactions, published_at,
	language, sentiment_type, sentiment_score, confidence_level, emotion_scores,
	topics, keywords, rating, satisfaction_score, liked, tone, overall_sentiment_score,
	positive_sentences, additional_insights, personality_traits,
	processed_at, created_at, updated_at`

// InsertComments stores collected comments for a post in their given order.
// Comments already stored for the post (same platform id) are left untouched,
// so re-collecting a post never resets annotations. Returns the number of new rows.
func (db *DB) InsertComments(ctx context.Context, postID string, comments []domain.CommentData) (int, error) {
	if len(comments) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}

	for i := range comments {
		c := &comments[i]

		reactions, err := toJSONB(c.Reactions)
		if err != nil {
			return 0, err
		}

		batch.Queue(`
			INSERT INTO comments (
				post_id, platform_id, content, thumbnail_path, is_reply, parent_platform_id,
				author_platform_id, author_username, author_full_name, author_avatar_path,
				author_followers_count, author_verified,
				likes_count, replies_count, shares_count, views_count, reactions, published_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (post_id, platform_id) DO NOTHING
		`,
			toUUID(postID), c.PlatformID, SanitizeUTF8(c.Content), c.ThumbnailPath, c.IsReply, c.ParentPlatformID,
			c.AuthorPlatformID, c.AuthorUsername, sanitizePtr(c.AuthorFullName), c.AuthorAvatarPath,
			c.AuthorFollowersCount, c.AuthorVerified,
			c.LikesCount, c.RepliesCount, c.SharesCount, c.ViewsCount, reactions, c.PublishedAt,
		)
	}

	results := db.Pool.SendBatch(ctx, batch)

	defer func() {
		_ = results.Close()
	}()

	inserted := 0

	for range comments {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert comment: %w", err)
		}

		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListUnprocessedComments returns comments of the post with no processed
// timestamp, in insertion order (oldest first).
func (db *DB) ListUnprocessedComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	return db.queryComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE post_id = $1 AND processed_at IS NULL
		ORDER BY created_at, seq
	`, toUUID(postID))
}

// ListComments returns all comments of the post, newest first. A non-nil
// since restricts the result to comments published at or after it.
func (db *DB) ListComments(ctx context.Context, postID string, since *time.Time) ([]domain.Comment, error) {
	return db.queryComments(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE post_id = $1
		  AND ($2::timestamptz IS NULL OR published_at >= $2)
		ORDER BY created_at DESC, seq DESC
	`, toUUID(postID), since)
}

// UpdateCommentAnnotations writes annotation fields and the processed
// timestamp of each update in a single round trip. Every update is one
// statement, so a comment's fields and its processed timestamp land together.
func (db *DB) UpdateCommentAnnotations(ctx context.Context, updates []domain.AnnotationUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for i := range updates {
		u := &updates[i]
		a := &u.Annotation

		emotions, err := toJSONB(a.EmotionScores)
		if err != nil {
			return err
		}

		batch.Queue(`
			UPDATE comments SET
				language = $2,
				sentiment_type = $3,
				sentiment_score = $4,
				confidence_level = $5,
				emotion_scores = $6,
				topics = $7,
				keywords = $8,
				rating = $9,
				satisfaction_score = $10,
				liked = $11,
				tone = $12,
				overall_sentiment_score = $13,
				positive_sentences = $14,
				additional_insights = $15,
				personality_traits = $16,
				processed_at = $17,
				updated_at = now()
			WHERE id = $1
		`,
			toUUID(u.CommentID),
			sanitizePtr(a.Language),
			sentimentText(a.SentimentType),
			a.SentimentScore,
			confidenceText(a.ConfidenceLevel),
			emotions,
			a.Topics,
			a.Keywords,
			a.Rating,
			a.SatisfactionScore,
			a.Liked,
			sanitizePtr(a.Tone),
			a.OverallSentimentScore,
			rawJSONB(a.PositiveSentences),
			rawJSONB(a.AdditionalInsights),
			rawJSONB(a.PersonalityTraits),
			u.ProcessedAt,
		)
	}

	results := db.Pool.SendBatch(ctx, batch)

	defer func() {
		_ = results.Close()
	}()

	for i := range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update comment %s annotations: %w", updates[i].CommentID, err)
		}
	}

	return nil
}

func (db *DB) queryComments(ctx context.Context, sql string, args ...any) ([]domain.Comment, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanComment, err)
		}

		out = append(out, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}

	return out, nil
}

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var (
		c          domain.Comment
		id, postID pgtype.UUID
		reactions  []byte
		emotions   []byte
		sentiment  *string
		confidence *string
		positive   []byte
		insights   []byte
		traits     []byte
	)

	err := row.Scan(
		&id, &postID, &c.PlatformID, &c.Content, &c.ThumbnailPath, &c.IsReply, &c.ParentPlatformID,
		&c.AuthorPlatformID, &c.AuthorUsername, &c.AuthorFullName, &c.AuthorAvatarPath,
		&c.AuthorFollowersCount, &c.AuthorVerified,
		&c.LikesCount, &c.RepliesCount, &c.SharesCount, &c.ViewsCount, &reactions, &c.PublishedAt,
		&c.Language, &sentiment, &c.SentimentScore, &confidence, &emotions,
		&c.Topics, &c.Keywords, &c.Rating, &c.SatisfactionScore, &c.Liked, &c.Tone, &c.OverallSentimentScore,
		&positive, &insights, &traits,
		&c.ProcessedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = fromUUID(id)
	c.PostID = fromUUID(postID)

	if sentiment != nil {
		st := domain.SentimentType(*sentiment)
		c.SentimentType = &st
	}

	if confidence != nil {
		cl := domain.ConfidenceLevel(*confidence)
		c.ConfidenceLevel = &cl
	}

	if c.Reactions, err = fromJSONB[int64](reactions); err != nil {
		return nil, err
	}

	if c.EmotionScores, err = fromJSONB[float64](emotions); err != nil {
		return nil, err
	}

	c.PositiveSentences = fromRawJSONB(positive)
	c.AdditionalInsights = fromRawJSONB(insights)
	c.PersonalityTraits = fromRawJSONB(traits)

	return &c, nil
}

func sentimentText(st *domain.SentimentType) *string {
	if st == nil {
		return nil
	}

	s := string(*st)

	return &s
}

func confidenceText(cl *domain.ConfidenceLevel) *string {
	if cl == nil {
		return nil
	}

	s := string(*cl)

	return &s
}
