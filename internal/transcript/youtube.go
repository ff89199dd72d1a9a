package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/model"
)

type YoutubeConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Languages []string
}

type youtubeFetcher struct {
	baseURL   string
	languages []string
	client    *http.Client
}

// NewYoutubeFetcher fetches caption tracks from the timedtext endpoint in
// json3 format. Languages are tried in order; the first track with events
// wins.
func NewYoutubeFetcher(cfg YoutubeConfig) Fetcher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.youtube.com"
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &youtubeFetcher{
		baseURL:   baseURL,
		languages: languages,
		client:    &http.Client{Timeout: timeout},
	}
}

type timedTextResponse struct {
	Events []timedTextEvent `json:"events"`
}

type timedTextEvent struct {
	StartMs    int64          `json:"tStartMs"`
	DurationMs int64          `json:"dDurationMs"`
	Segs       []timedTextSeg `json:"segs"`
}

type timedTextSeg struct {
	UTF8 string `json:"utf8"`
}

func (f *youtubeFetcher) Fetch(ctx context.Context, videoID string) ([]model.CaptionUnit, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("video_id", videoID))
	var lastErr error
	for _, lang := range f.languages {
		units, err := f.fetchLang(ctx, videoID, lang)
		if err != nil {
			lastErr = err
			logger.Debug("transcript track miss", zap.String("lang", lang), zap.Error(err))
			continue
		}
		if len(units) == 0 {
			lastErr = fmt.Errorf("empty caption track for lang %s", lang)
			continue
		}
		logger.Info("transcript fetched", zap.String("lang", lang), zap.Int("units", len(units)))
		return units, nil
	}
	if lastErr != nil {
		logger.Warn("transcript unavailable", zap.Error(lastErr))
	}
	return nil, ErrUnavailable
}

func (f *youtubeFetcher) fetchLang(ctx context.Context, videoID, lang string) ([]model.CaptionUnit, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)
	params.Set("fmt", "json3")
	endpoint := f.baseURL + "/api/timedtext?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext request failed: %s", resp.Status)
	}
	var out timedTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode timedtext payload: %w", err)
	}
	units := make([]model.CaptionUnit, 0, len(out.Events))
	for _, event := range out.Events {
		var sb strings.Builder
		for _, seg := range event.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " "))
		if text == "" {
			continue
		}
		units = append(units, model.CaptionUnit{
			Text:     text,
			Start:    float64(event.StartMs) / 1000.0,
			Duration: float64(event.DurationMs) / 1000.0,
		})
	}
	return units, nil
}
