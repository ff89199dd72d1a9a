package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ytqa/internal/model"
	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
	"github.com/xxxsen/ytqa/internal/session"
)

type stubIndex struct {
	status model.VideoStatus
}

func (s stubIndex) Status(videoID string) model.VideoIndexInfo {
	return model.VideoIndexInfo{VideoID: videoID, Status: s.status}
}

type stubSearcher struct {
	matches []model.ChunkMatch
	err     error
}

func (s stubSearcher) SearchByVideo(ctx context.Context, videoID string, query []float32, topK int) ([]model.ChunkMatch, error) {
	return s.matches, s.err
}

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.5, 0.5}, nil
}

func (s stubEmbedder) ModelName() string { return "stub-embed" }

type stubGenerator struct {
	answer string
	err    error
	// prompt captures the last prompt for assertions.
	prompt *string
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if s.prompt != nil {
		*s.prompt = prompt
	}
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func defaultMatches() []model.ChunkMatch {
	return []model.ChunkMatch{
		{Chunk: model.Chunk{VideoID: "vid1", Content: "the speaker introduces goroutines", Start: 120, Duration: 25}, Score: 0.9},
		{Chunk: model.Chunk{VideoID: "vid1", Content: "channels are discussed next", Start: 300, Duration: 40}, Score: 0.8},
	}
}

func newTestAskService(idx stubIndex, search stubSearcher, emb stubEmbedder, gen stubGenerator, pool *session.Pool) *AskService {
	return NewAskService(idx, search, emb, gen, pool, nil, AskConfig{
		TopK:             4,
		Timeout:          5 * time.Second,
		MaxQuestionChars: 4000,
	})
}

func TestAsk_AnswersWithReferences(t *testing.T) {
	pool := session.NewPool(10)
	var prompt string
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{matches: defaultMatches()},
		stubEmbedder{},
		stubGenerator{answer: "goroutines are lightweight threads", prompt: &prompt},
		pool,
	)

	result, err := svc.Ask(context.Background(), "vid1", "what are goroutines?", "s1")
	require.NoError(t, err)
	require.Equal(t, "goroutines are lightweight threads", result.Answer)
	require.Len(t, result.References, 2)
	require.Equal(t, 120.0, result.References[0].Start)
	require.Equal(t, 145.0, result.References[0].End)
	require.Equal(t, "the speaker introduces goroutines", result.References[0].Text)
	require.Equal(t, 300.0, result.References[1].Start)
	require.Equal(t, 340.0, result.References[1].End)

	// The grounding context contains both chunks in rank order.
	require.Contains(t, prompt, "the speaker introduces goroutines")
	require.Contains(t, prompt, "channels are discussed next")
	require.Contains(t, prompt, "what are goroutines?")

	turns := pool.History("s1", "vid1")
	require.Len(t, turns, 1)
	require.Equal(t, "what are goroutines?", turns[0].Question)
	require.Equal(t, "goroutines are lightweight threads", turns[0].Answer)
}

func TestAsk_HistoryFlowsIntoPrompt(t *testing.T) {
	pool := session.NewPool(10)
	pool.Append("s1", "vid1", "earlier question", "earlier answer")
	var prompt string
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{matches: defaultMatches()},
		stubEmbedder{},
		stubGenerator{answer: "ok", prompt: &prompt},
		pool,
	)

	_, err := svc.Ask(context.Background(), "vid1", "follow up?", "s1")
	require.NoError(t, err)
	require.Contains(t, prompt, "User: earlier question")
	require.Contains(t, prompt, "Assistant: earlier answer")
}

func TestAsk_SmallTalkSuppressesReferences(t *testing.T) {
	pool := session.NewPool(10)
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{matches: defaultMatches()},
		stubEmbedder{},
		stubGenerator{answer: "hello!"},
		pool,
	)

	result, err := svc.Ask(context.Background(), "vid1", "hello", "s1")
	require.NoError(t, err)
	require.Empty(t, result.References)
	// The turn is still recorded for continuity.
	require.Len(t, pool.History("s1", "vid1"), 1)
}

func TestAsk_VideoNotReady(t *testing.T) {
	for _, status := range []model.VideoStatus{model.StatusNotIndexed, model.StatusIndexing, model.StatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			pool := session.NewPool(10)
			svc := newTestAskService(
				stubIndex{status: status},
				stubSearcher{},
				stubEmbedder{},
				stubGenerator{answer: "unused"},
				pool,
			)
			_, err := svc.Ask(context.Background(), "vid1", "anything?", "s1")
			require.ErrorIs(t, err, appErr.ErrNotReady)
			require.Empty(t, pool.History("s1", "vid1"))
		})
	}
}

func TestAsk_GenerationFailureLeavesMemoryUntouched(t *testing.T) {
	pool := session.NewPool(10)
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{matches: defaultMatches()},
		stubEmbedder{},
		stubGenerator{err: fmt.Errorf("model overloaded")},
		pool,
	)

	_, err := svc.Ask(context.Background(), "vid1", "what happened?", "s1")
	require.ErrorIs(t, err, appErr.ErrAIUnavailable)
	require.Empty(t, pool.History("s1", "vid1"))
}

func TestAsk_EmbedFailure(t *testing.T) {
	pool := session.NewPool(10)
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{},
		stubEmbedder{err: fmt.Errorf("quota exceeded")},
		stubGenerator{answer: "unused"},
		pool,
	)

	_, err := svc.Ask(context.Background(), "vid1", "what happened?", "s1")
	require.ErrorIs(t, err, appErr.ErrAIUnavailable)
}

func TestAsk_InvalidInput(t *testing.T) {
	pool := session.NewPool(10)
	svc := newTestAskService(
		stubIndex{status: model.StatusIndexed},
		stubSearcher{},
		stubEmbedder{},
		stubGenerator{answer: "unused"},
		pool,
	)

	_, err := svc.Ask(context.Background(), "", "question?", "s1")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Ask(context.Background(), "vid1", "   ", "s1")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Ask(context.Background(), "vid1", strings.Repeat("q", 5000), "s1")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestHeuristicClassifier(t *testing.T) {
	classifier := NewHeuristicClassifier()
	require.True(t, classifier.IsSmallTalk("hi"))
	require.True(t, classifier.IsSmallTalk("Thanks!"))
	require.True(t, classifier.IsSmallTalk("How are you?"))
	require.False(t, classifier.IsSmallTalk("what does the speaker say about channels?"))
	require.False(t, classifier.IsSmallTalk("summarize the video"))
}
