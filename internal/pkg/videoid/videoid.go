package videoid

import (
	"fmt"
	"net/url"
	"strings"

	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
)

// Extract resolves the canonical video id from a watch URL. Two shapes are
// accepted: youtube.com style with the id in the "v" query parameter, and
// youtu.be short links with the id as the path. The same URL always yields
// the same id.
func Extract(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", appErr.ErrInvalid)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	host := strings.ToLower(parsed.Hostname())
	switch {
	case strings.HasSuffix(host, "youtube.com"):
		id := parsed.Query().Get("v")
		if id == "" {
			return "", fmt.Errorf("%w: missing v parameter", appErr.ErrInvalid)
		}
		return id, nil
	case host == "youtu.be":
		id := strings.Trim(parsed.Path, "/")
		if idx := strings.Index(id, "/"); idx >= 0 {
			id = id[:idx]
		}
		if id == "" {
			return "", fmt.Errorf("%w: missing path segment", appErr.ErrInvalid)
		}
		return id, nil
	default:
		return "", fmt.Errorf("%w: unsupported host %q", appErr.ErrInvalid, host)
	}
}
