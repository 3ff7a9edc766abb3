package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/platform/observability"
)

// Result keys as written by the provider.
const (
	keyID                    = "id"
	keyLanguage              = "language"
	keySentimentType         = "sentiment_type"
	keySentimentScore        = "sentiment_score"
	keyConfidenceLevel       = "confidence_level"
	keyEmotionScores         = "emotion_scores"
	keyTopics                = "topics"
	keyKeywords              = "keywords"
	keyRating                = "rating"
	keySatisfactionScore     = "satisfaction_score"
	keyLiked                 = "liked"
	keyTone                  = "tone"
	keyOverallSentimentScore = "overall_sentiment_score"
	keyPositiveSentences     = "positive_sentences"
	keyAdditionalInsights    = "additional_insights"
	keyPersonalityTraits     = "personality_traits"
)

// CommentUpdater writes annotation fields and the processed timestamp onto comments.
type CommentUpdater interface {
	UpdateCommentAnnotations(ctx context.Context, updates []domain.AnnotationUpdate) error
}

// Persister matches extracted results to comments and writes them in batches.
type Persister struct {
	store     CommentUpdater
	batchSize int
	logger    *zerolog.Logger
	now       func() time.Time
}

// NewPersister creates a Persister. A batch size below 1 falls back to DefaultBatchSize.
func NewPersister(store CommentUpdater, batchSize int, logger *zerolog.Logger) *Persister {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Persister{
		store:     store,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Persist applies results to the matching comments and returns how many were
// written. Results without an id, or whose id is not one of comments, are
// skipped. When several results carry the same id the last one wins.
// Batches flushed before a failing batch stay committed.
func (p *Persister) Persist(ctx context.Context, comments []domain.Comment, results []map[string]any) (int, error) {
	known := make(map[string]struct{}, len(comments))
	for i := range comments {
		known[comments[i].ID] = struct{}{}
	}

	processedAt := p.now().UTC()

	index := make(map[string]int, len(results))

	var updates []domain.AnnotationUpdate

	for _, res := range results {
		id, ok := resultID(res[keyID])
		if !ok {
			observability.AnalysisResultsDropped.WithLabelValues(dropReasonMissingID).Inc()

			continue
		}

		if _, ok := known[id]; !ok {
			observability.AnalysisResultsDropped.WithLabelValues(dropReasonUnknownID).Inc()
			p.logger.Debug().Str("comment_id", id).Msg("result does not match any comment")

			continue
		}

		upd := domain.AnnotationUpdate{
			CommentID:   id,
			Annotation:  toAnnotation(res),
			ProcessedAt: processedAt,
		}

		if at, seen := index[id]; seen {
			updates[at] = upd

			continue
		}

		index[id] = len(updates)
		updates = append(updates, upd)
	}

	written := 0

	for start := 0; start < len(updates); start += p.batchSize {
		end := min(start+p.batchSize, len(updates))

		if err := p.store.UpdateCommentAnnotations(ctx, updates[start:end]); err != nil {
			return written, fmt.Errorf("%w: %w", apperrors.ErrPersistence, err)
		}

		written += end - start
		observability.CommentsAnnotated.Add(float64(end - start))
	}

	return written, nil
}

// resultID accepts string ids and numeric ids a provider may have unquoted.
func resultID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toAnnotation(res map[string]any) domain.Annotation {
	var a domain.Annotation

	a.Language = stringField(res, keyLanguage)
	a.Tone = stringField(res, keyTone)

	if s := stringField(res, keySentimentType); s != nil {
		if st, ok := domain.ParseSentimentType(*s); ok {
			a.SentimentType = &st
		} else {
			coerced(keySentimentType)
		}
	}

	if s := stringField(res, keyConfidenceLevel); s != nil {
		if cl, ok := domain.ParseConfidenceLevel(*s); ok {
			a.ConfidenceLevel = &cl
		} else {
			coerced(keyConfidenceLevel)
		}
	}

	a.SentimentScore = rangedFloat(res, keySentimentScore, -1, 1)
	a.OverallSentimentScore = rangedFloat(res, keyOverallSentimentScore, -1, 1)
	a.Rating = rangedInt(res, keyRating, 1, 5)
	a.SatisfactionScore = rangedInt(res, keySatisfactionScore, 0, 100)
	a.Liked = boolField(res, keyLiked)
	a.EmotionScores = emotionScores(res)
	a.Topics = stringList(res, keyTopics)
	a.Keywords = stringList(res, keyKeywords)
	a.PositiveSentences = objectField(res, keyPositiveSentences)
	a.AdditionalInsights = objectField(res, keyAdditionalInsights)
	a.PersonalityTraits = objectField(res, keyPersonalityTraits)

	return a
}

func coerced(field string) {
	observability.AnalysisFieldsCoerced.WithLabelValues(field).Inc()
}

func stringField(res map[string]any, key string) *string {
	v, ok := res[key]
	if !ok || v == nil {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		coerced(key)

		return nil
	}

	return &s
}

func boolField(res map[string]any, key string) *bool {
	v, ok := res[key]
	if !ok || v == nil {
		return nil
	}

	b, ok := v.(bool)
	if !ok {
		coerced(key)

		return nil
	}

	return &b
}

func rangedFloat(res map[string]any, key string, lo, hi float64) *float64 {
	v, ok := res[key]
	if !ok || v == nil {
		return nil
	}

	f, ok := v.(float64)
	if !ok || f < lo || f > hi {
		coerced(key)

		return nil
	}

	return &f
}

func rangedInt(res map[string]any, key string, lo, hi int) *int {
	v, ok := res[key]
	if !ok || v == nil {
		return nil
	}

	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < float64(lo) || f > float64(hi) {
		coerced(key)

		return nil
	}

	n := int(f)

	return &n
}

// emotionScores keeps entries whose score is a number in [0,1].
func emotionScores(res map[string]any) map[string]float64 {
	v, ok := res[keyEmotionScores]
	if !ok || v == nil {
		return nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		coerced(keyEmotionScores)

		return nil
	}

	out := make(map[string]float64, len(m))

	for name, raw := range m {
		f, ok := raw.(float64)
		if !ok || f < 0 || f > 1 {
			coerced(keyEmotionScores)

			continue
		}

		out[name] = f
	}

	return out
}

// stringList never returns nil: a missing or malformed list becomes empty.
func stringList(res map[string]any, key string) []string {
	out := []string{}

	v, ok := res[key]
	if !ok || v == nil {
		return out
	}

	items, ok := v.([]any)
	if !ok {
		coerced(key)

		return out
	}

	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}

	return out
}

func objectField(res map[string]any, key string) json.RawMessage {
	v, ok := res[key]
	if !ok || v == nil {
		return nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		coerced(key)

		return nil
	}

	raw, err := json.Marshal(m)
	if err != nil {
		coerced(key)

		return nil
	}

	return raw
}
