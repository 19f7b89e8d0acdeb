package bot

import (
	"context"
	"errors"

	"github.com/tikrelay/tikrelay/internal/domain"
)

const welcomeText = `Hi! Send me a TikTok link and I'll fetch the media for you.

Videos come back watermark-free. Photo posts come back as a zip with every image plus the soundtrack.

Just paste a link like:
https://www.tiktok.com/@someone/video/1234567890`

// failureText maps a pipeline error to a safe user-facing message. It
// never includes raw error chains, which may carry local paths or
// upstream endpoints.
func failureText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoMediaFound):
		return "Couldn't find any media at that link. It may be private, deleted, or region-locked."
	case errors.Is(err, domain.ErrPackagingFailed):
		return "Downloaded the media but failed to package it. Please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "That one took too long to fetch. Please try again later."
	default:
		return "Something went wrong fetching that link. Please try again later."
	}
}

// failureReason is the short label recorded in the delivery log.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoMediaFound):
		return "no media found"
	case errors.Is(err, domain.ErrPackagingFailed):
		return "packaging failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "resolution failed"
	}
}
