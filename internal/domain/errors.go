package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidPrompt    = errors.New("invalid prompt")
	ErrUnsupportedModel = errors.New("unsupported model")

	// Chain failures. Each one is fatal to the run that produced it except
	// ErrProviderUnreachable on a poll, which only consumes an attempt.
	ErrProviderRejected        = errors.New("provider rejected request")
	ErrProviderUnreachable     = errors.New("provider unreachable")
	ErrSegmentTimeout          = errors.New("timeout waiting for segment")
	ErrSegmentGenerationFailed = errors.New("segment generation failed")
	ErrFrameExtractionFailed   = errors.New("frame extraction failed")
	ErrStitchFailed            = errors.New("stitch failed")
	ErrDownloadFailed          = errors.New("download failed")
	ErrPersistFailed           = errors.New("persist failed")
	ErrChainCanceled           = errors.New("chain canceled")
)
