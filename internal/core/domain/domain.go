package domain

import (
	"encoding/json"
	"time"
)

// Platform identifies the social network a post was published on.
type Platform string

// Supported platforms.
const (
	PlatformTelegram  Platform = "TELEGRAM"
	PlatformInstagram Platform = "INSTAGRAM"
)

// PostData holds the platform-side content of a post as returned by a collector.
type PostData struct {
	PlatformID           *string
	Title                *string
	Content              *string
	ThumbnailPath        *string
	AuthorPlatformID     *string
	AuthorUsername       *string
	AuthorFullName       *string
	AuthorAvatarPath     *string
	AuthorFollowersCount *int64
	AuthorVerified       *bool
	LikesCount           *int64
	CommentsCount        *int64
	SharesCount          *int64
	ViewsCount           *int64
	Reactions            map[string]int64
	PublishedAt          *time.Time
}

// Post is a submitted post URL together with the data collected for it.
type Post struct {
	PostData

	ID        string
	URL       string
	Platform  Platform
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CommentData holds the platform-side content of a comment as returned by a collector.
type CommentData struct {
	PlatformID           string
	Content              string
	ThumbnailPath        *string
	IsReply              bool
	ParentPlatformID     *string
	AuthorPlatformID     *string
	AuthorUsername       *string
	AuthorFullName       *string
	AuthorAvatarPath     *string
	AuthorFollowersCount *int64
	AuthorVerified       *bool
	LikesCount           *int64
	RepliesCount         *int64
	SharesCount          *int64
	ViewsCount           *int64
	Reactions            map[string]int64
	PublishedAt          *time.Time
}

// Comment is a stored comment. Annotation fields stay nil until ProcessedAt is set.
type Comment struct {
	CommentData
	Annotation

	ID          string
	PostID      string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Annotation is the set of AI-derived fields stored on a comment.
type Annotation struct {
	Language              *string
	SentimentType         *SentimentType
	SentimentScore        *float64
	ConfidenceLevel       *ConfidenceLevel
	EmotionScores         map[string]float64
	Topics                []string
	Keywords              []string
	Rating                *int
	SatisfactionScore     *int
	Liked                 *bool
	Tone                  *string
	OverallSentimentScore *float64
	PositiveSentences     json.RawMessage
	AdditionalInsights    json.RawMessage
	PersonalityTraits     json.RawMessage
}

// AnnotationUpdate is one staged write of annotation fields onto a comment.
type AnnotationUpdate struct {
	CommentID   string
	Annotation  Annotation
	ProcessedAt time.Time
}
