package slack

// Export internal functions for testing
var (
	NewNotifier        = newNotifier
	BuildGameBlocks    = buildGameBlocks
	BuildRunBlocks     = buildRunBlocks
	TruncateToMaxBytes = truncateToMaxBytes
)

type Poster = poster
