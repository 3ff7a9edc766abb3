package analysis

// Log field constants
const (
	LogFieldPostID        = "post_id"
	LogFieldProvider      = "provider"
	LogFieldChunk         = "chunk"
	LogFieldChunks        = "chunks"
	LogFieldProgressPct   = "progress_pct"
	LogFieldChunkBytes    = "chunk_bytes"
	LogFieldResponseBytes = "response_bytes"
	LogFieldDuration      = "duration"
	LogFieldComments      = "comments"
	LogFieldResults       = "results"
	LogFieldPersisted     = "persisted"
)

// Chunk outcome labels
const (
	chunkStatusOK    = "ok"
	chunkStatusError = "error"
)

// Reasons an extracted result is not applied to a comment
const (
	dropReasonMissingID = "missing_id"
	dropReasonUnknownID = "unknown_id"
)

// DefaultBatchSize bounds the number of comment updates written per round trip.
const DefaultBatchSize = 300

const errAnalysisFailed = "data analysis failed: %w"
