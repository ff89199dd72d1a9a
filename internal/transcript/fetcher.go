package transcript

import (
	"context"
	"errors"

	"github.com/xxxsen/ytqa/internal/model"
)

// ErrUnavailable covers every way a transcript fetch can fail: captions
// disabled, no track for the wanted languages, or the source being
// unreachable. Callers never distinguish between these.
var ErrUnavailable = errors.New("transcript unavailable")

type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]model.CaptionUnit, error)
}
