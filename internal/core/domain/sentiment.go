package domain

// SentimentType is the provider-assigned sentiment class of a comment.
type SentimentType string

// Sentiment classes accepted from providers.
const (
	SentimentVeryPositive     SentimentType = "VERY_POSITIVE"
	SentimentPositive         SentimentType = "POSITIVE"
	SentimentSlightlyPositive SentimentType = "SLIGHTLY_POSITIVE"
	SentimentNeutral          SentimentType = "NEUTRAL"
	SentimentSlightlyNegative SentimentType = "SLIGHTLY_NEGATIVE"
	SentimentNegative         SentimentType = "NEGATIVE"
	SentimentVeryNegative     SentimentType = "VERY_NEGATIVE"
	SentimentMixed            SentimentType = "MIXED"
	SentimentSarcastic        SentimentType = "SARCASTIC"
	SentimentIronic           SentimentType = "IRONIC"
)

var sentimentTypes = map[SentimentType]struct{}{
	SentimentVeryPositive:     {},
	SentimentPositive:         {},
	SentimentSlightlyPositive: {},
	SentimentNeutral:          {},
	SentimentSlightlyNegative: {},
	SentimentNegative:         {},
	SentimentVeryNegative:     {},
	SentimentMixed:            {},
	SentimentSarcastic:        {},
	SentimentIronic:           {},
}

// ParseSentimentType returns the sentiment class for s, or false if s is not one of the ten values.
func ParseSentimentType(s string) (SentimentType, bool) {
	st := SentimentType(s)
	_, ok := sentimentTypes[st]

	return st, ok
}

// ConfidenceLevel is an ordered confidence bucket.
type ConfidenceLevel string

// Confidence buckets, lowest first.
const (
	ConfidenceVeryLow  ConfidenceLevel = "VERY_LOW"
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
	ConfidenceCertain  ConfidenceLevel = "CERTAIN"
)

var confidenceRanks = map[ConfidenceLevel]int{
	ConfidenceVeryLow:  1,
	ConfidenceLow:      2,
	ConfidenceMedium:   3,
	ConfidenceHigh:     4,
	ConfidenceVeryHigh: 5,
	ConfidenceCertain:  6,
}

// ParseConfidenceLevel returns the bucket for s, or false if s is not a known bucket.
func ParseConfidenceLevel(s string) (ConfidenceLevel, bool) {
	cl := ConfidenceLevel(s)
	_, ok := confidenceRanks[cl]

	return cl, ok
}

// Rank returns 1 (VERY_LOW) through 6 (CERTAIN), or 0 for an unknown bucket.
func (c ConfidenceLevel) Rank() int {
	return confidenceRanks[c]
}
