package httpapi

import (
	"encoding/json"
	"time"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

type createAnalysisRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type analysisResponse struct {
	ID                string     `json:"id"`
	PostID            string     `json:"postId"`
	Status            string     `json:"status"`
	StatusDescription *string    `json:"statusDescription"`
	StartedAt         *time.Time `json:"startedAt"`
	FinishedAt        *time.Time `json:"finishedAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type postResponse struct {
	ID                   string           `json:"id"`
	URL                  string           `json:"url"`
	Platform             string           `json:"platform"`
	PlatformID           *string          `json:"platformId"`
	Title                *string          `json:"title"`
	Content              *string          `json:"content"`
	ThumbnailPath        *string          `json:"thumbnailPath"`
	AuthorPlatformID     *string          `json:"authorPlatformId"`
	AuthorUsername       *string          `json:"authorUsername"`
	AuthorFullName       *string          `json:"authorFullName"`
	AuthorAvatarPath     *string          `json:"authorAvatarPath"`
	AuthorFollowersCount *int64           `json:"authorFollowersCount"`
	AuthorVerified       *bool            `json:"authorVerified"`
	LikesCount           *int64           `json:"likesCount"`
	CommentsCount        *int64           `json:"commentsCount"`
	SharesCount          *int64           `json:"sharesCount"`
	ViewsCount           *int64           `json:"viewsCount"`
	Reactions            map[string]int64 `json:"reactions"`
	PublishedAt          *time.Time       `json:"publishedAt"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

type commentResponse struct {
	ID                    string             `json:"id"`
	PostID                string             `json:"postId"`
	PlatformID            string             `json:"platformId"`
	Content               string             `json:"content"`
	IsReply               bool               `json:"isReply"`
	ParentPlatformID      *string            `json:"parentPlatformId"`
	AuthorPlatformID      *string            `json:"authorPlatformId"`
	AuthorUsername        *string            `json:"authorUsername"`
	AuthorFullName        *string            `json:"authorFullName"`
	AuthorFollowersCount  *int64             `json:"authorFollowersCount"`
	AuthorVerified        *bool              `json:"authorVerified"`
	LikesCount            *int64             `json:"likesCount"`
	RepliesCount          *int64             `json:"repliesCount"`
	SharesCount           *int64             `json:"sharesCount"`
	ViewsCount            *int64             `json:"viewsCount"`
	Reactions             map[string]int64   `json:"reactions"`
	PublishedAt           *time.Time         `json:"publishedAt"`
	Language              *string            `json:"language"`
	SentimentType         *string            `json:"sentimentType"`
	SentimentScore        *float64           `json:"sentimentScore"`
	ConfidenceLevel       *string            `json:"confidenceLevel"`
	EmotionScores         map[string]float64 `json:"emotionScores"`
	Topics                []string           `json:"topics"`
	Keywords              []string           `json:"keywords"`
	Rating                *int               `json:"rating"`
	SatisfactionScore     *int               `json:"satisfactionScore"`
	Liked                 *bool              `json:"liked"`
	Tone                  *string            `json:"tone"`
	OverallSentimentScore *float64           `json:"overallSentimentScore"`
	PositiveSentences     json.RawMessage    `json:"positiveSentences"`
	AdditionalInsights    json.RawMessage    `json:"additionalInsights"`
	PersonalityTraits     json.RawMessage    `json:"personalityTraits"`
	ProcessedAt           *time.Time         `json:"processedAt"`
	CreatedAt             time.Time          `json:"createdAt"`
}

func toAnalysisResponse(a *domain.Analysis) analysisResponse {
	return analysisResponse{
		ID:                a.ID,
		PostID:            a.PostID,
		Status:            string(a.Status),
		StatusDescription: a.StatusDescription,
		StartedAt:         a.StartedAt,
		FinishedAt:        a.FinishedAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func toPostResponse(p *domain.Post) postResponse {
	return postResponse{
		ID:                   p.ID,
		URL:                  p.URL,
		Platform:             string(p.Platform),
		PlatformID:           p.PlatformID,
		Title:                p.Title,
		Content:              p.Content,
		ThumbnailPath:        p.ThumbnailPath,
		AuthorPlatformID:     p.AuthorPlatformID,
		AuthorUsername:       p.AuthorUsername,
		AuthorFullName:       p.AuthorFullName,
		AuthorAvatarPath:     p.AuthorAvatarPath,
		AuthorFollowersCount: p.AuthorFollowersCount,
		AuthorVerified:       p.AuthorVerified,
		LikesCount:           p.LikesCount,
		CommentsCount:        p.CommentsCount,
		SharesCount:          p.SharesCount,
		ViewsCount:           p.ViewsCount,
		Reactions:            p.Reactions,
		PublishedAt:          p.PublishedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func toCommentResponse(c *domain.Comment) commentResponse {
	resp := commentResponse{
		ID:                    c.ID,
		PostID:                c.PostID,
		PlatformID:            c.PlatformID,
		Content:               c.Content,
		IsReply:               c.IsReply,
		ParentPlatformID:      c.ParentPlatformID,
		AuthorPlatformID:      c.AuthorPlatformID,
		AuthorUsername:        c.AuthorUsername,
		AuthorFullName:        c.AuthorFullName,
		AuthorFollowersCount:  c.AuthorFollowersCount,
		AuthorVerified:        c.AuthorVerified,
		LikesCount:            c.LikesCount,
		RepliesCount:          c.RepliesCount,
		SharesCount:           c.SharesCount,
		ViewsCount:            c.ViewsCount,
		Reactions:             c.Reactions,
		PublishedAt:           c.PublishedAt,
		Language:              c.Language,
		SentimentScore:        c.SentimentScore,
		EmotionScores:         c.EmotionScores,
		Topics:                c.Topics,
		Keywords:              c.Keywords,
		Rating:                c.Rating,
		SatisfactionScore:     c.SatisfactionScore,
		Liked:                 c.Liked,
		Tone:                  c.Tone,
		OverallSentimentScore: c.OverallSentimentScore,
		PositiveSentences:     c.PositiveSentences,
		AdditionalInsights:    c.AdditionalInsights,
		PersonalityTraits:     c.PersonalityTraits,
		ProcessedAt:           c.ProcessedAt,
		CreatedAt:             c.CreatedAt,
	}

	if c.SentimentType != nil {
		s := string(*c.SentimentType)
		resp.SentimentType = &s
	}

	if c.ConfidenceLevel != nil {
		s := string(*c.ConfidenceLevel)
		resp.ConfidenceLevel = &s
	}

	return resp
}
