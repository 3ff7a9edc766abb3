package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/textnorm"
)

// bracketBytes accounts for the enclosing "[" and "]" of a chunk.
const bracketBytes = 2

// commentInput is the shape a comment takes inside a provider payload.
// Field order is fixed by the struct and must stay stable across runs.
type commentInput struct {
	ID                   string           `json:"id"`
	PlatformID           string           `json:"platformId"`
	Content              string           `json:"content"`
	IsReply              bool             `json:"isReply"`
	ParentPlatformID     *string          `json:"parentPlatformId"`
	AuthorUsername       *string          `json:"authorUsername"`
	AuthorFullName       *string          `json:"authorFullName"`
	AuthorFollowersCount *int64           `json:"authorFollowersCount"`
	AuthorVerified       *bool            `json:"authorVerified"`
	LikesCount           *int64           `json:"likesCount"`
	RepliesCount         *int64           `json:"repliesCount"`
	SharesCount          *int64           `json:"sharesCount"`
	ViewsCount           *int64           `json:"viewsCount"`
	Reactions            map[string]int64 `json:"reactions"`
	PublishedAt          *time.Time       `json:"publishedAt"`
}

// serializeComment renders one comment with normalized free-text fields.
func serializeComment(c *domain.Comment) (string, error) {
	in := commentInput{
		ID:                   c.ID,
		PlatformID:           c.PlatformID,
		Content:              textnorm.Normalize(c.Content),
		IsReply:              c.IsReply,
		ParentPlatformID:     c.ParentPlatformID,
		AuthorUsername:       c.AuthorUsername,
		AuthorFullName:       textnorm.NormalizePtr(c.AuthorFullName),
		AuthorFollowersCount: c.AuthorFollowersCount,
		AuthorVerified:       c.AuthorVerified,
		LikesCount:           c.LikesCount,
		RepliesCount:         c.RepliesCount,
		SharesCount:          c.SharesCount,
		ViewsCount:           c.ViewsCount,
		Reactions:            c.Reactions,
		PublishedAt:          c.PublishedAt,
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(in); err != nil {
		return "", fmt.Errorf("serializing comment %s: %w", c.ID, err)
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ChunkComments groups comments, in order, into JSON array literals of at most
// maxBytes bytes. A comment whose serialized form alone exceeds the budget is
// emitted as its own chunk; comments are never split.
func ChunkComments(comments []domain.Comment, maxBytes int) ([]string, error) {
	var (
		chunks  []string
		current []string
		size    int
	)

	flush := func() {
		chunks = append(chunks, "["+strings.Join(current, ",")+"]")
		current = current[:0]
	}

	for i := range comments {
		item, err := serializeComment(&comments[i])
		if err != nil {
			return nil, err
		}

		if len(current) > 0 && size+1+len(item) > maxBytes {
			flush()
		}

		if len(current) == 0 {
			size = bracketBytes + len(item)
		} else {
			size += 1 + len(item)
		}

		current = append(current, item)
	}

	if len(current) > 0 {
		flush()
	}

	return chunks, nil
}
