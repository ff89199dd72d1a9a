package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ytqa/internal/ai"
	"github.com/xxxsen/ytqa/internal/model"
	appErr "github.com/xxxsen/ytqa/internal/pkg/errors"
	"github.com/xxxsen/ytqa/internal/session"
)

const embedTaskQuery = "RETRIEVAL_QUERY"

// IndexReader is the read-only slice of the index coordinator the ask path
// needs; it never mutates index state.
type IndexReader interface {
	Status(videoID string) model.VideoIndexInfo
}

type ChunkSearcher interface {
	SearchByVideo(ctx context.Context, videoID string, query []float32, topK int) ([]model.ChunkMatch, error)
}

type AskConfig struct {
	TopK             int
	Timeout          time.Duration
	MaxQuestionChars int
}

type AskService struct {
	index      IndexReader
	search     ChunkSearcher
	embedder   ai.IEmbedder
	generator  ai.IGenerator
	pool       *session.Pool
	classifier Classifier
	cfg        AskConfig
}

type AskResult struct {
	Answer     string
	References []model.Reference
}

func NewAskService(
	index IndexReader,
	search ChunkSearcher,
	embedder ai.IEmbedder,
	generator ai.IGenerator,
	pool *session.Pool,
	classifier Classifier,
	cfg AskConfig,
) *AskService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxQuestionChars <= 0 {
		cfg.MaxQuestionChars = 4000
	}
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	return &AskService{
		index:      index,
		search:     search,
		embedder:   embedder,
		generator:  generator,
		pool:       pool,
		classifier: classifier,
		cfg:        cfg,
	}
}

// Ask answers a question about an indexed video, grounded on retrieved
// transcript chunks, and records the turn in session memory.
func (s *AskService) Ask(ctx context.Context, videoID, question, sessionID string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if videoID == "" || question == "" {
		return nil, appErr.ErrInvalid
	}
	if len(question) > s.cfg.MaxQuestionChars {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("video_id", videoID),
		zap.String("session_id", sessionID),
	)

	info := s.index.Status(videoID)
	if info.Status != model.StatusIndexed {
		logger.Debug("ask rejected, video not ready", zap.String("status", string(info.Status)))
		return nil, fmt.Errorf("%w: status %s", appErr.ErrNotReady, info.Status)
	}

	queryEmb, err := s.embedder.Embed(ctx, question, embedTaskQuery)
	if err != nil {
		logger.Error("embed question failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrAIUnavailable, err)
	}
	matches, err := s.search.SearchByVideo(ctx, videoID, queryEmb, s.cfg.TopK)
	if err != nil {
		logger.Error("chunk search failed", zap.Error(err))
		return nil, err
	}

	contextBlock, references := buildContext(matches)
	history := s.pool.History(sessionID, videoID)
	prompt := buildPrompt(contextBlock, renderHistory(history), question)

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	answer, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrAIUnavailable, err)
	}

	// "I don't know" answers are still valid turns for continuity.
	s.pool.Append(sessionID, videoID, question, answer)

	if s.classifier.IsSmallTalk(question) {
		references = nil
	}
	logger.Info("question answered",
		zap.Int("matches", len(matches)),
		zap.Int("references", len(references)),
		zap.Int("history_turns", len(history)),
	)
	return &AskResult{Answer: answer, References: references}, nil
}

// buildContext joins chunk texts in retrieval-rank order and derives one
// reference per chunk from its time metadata.
func buildContext(matches []model.ChunkMatch) (string, []model.Reference) {
	texts := make([]string, 0, len(matches))
	references := make([]model.Reference, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, match.Chunk.Content)
		references = append(references, model.Reference{
			Start: match.Chunk.Start,
			End:   match.Chunk.Start + match.Chunk.Duration,
			Text:  snippet(match.Chunk.Content, 160),
		})
	}
	return strings.Join(texts, "\n\n"), references
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func renderHistory(turns []model.Turn) string {
	if len(turns) == 0 {
		return "(no previous turns)"
	}
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString("User: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func buildPrompt(contextBlock, history, question string) string {
	return fmt.Sprintf(`You are a retrieval-grounded assistant for a YouTube video.

Rules:
- Use ONLY the provided transcript context.
- Use chat history only to maintain continuity, not as a knowledge source.
- Do NOT invent facts, examples, or explanations.
- If the answer is not present in the transcript, reply exactly:
  "I don't know based on this video."

- Be concise, structured, and technical when appropriate.
- If multiple points exist, use bullet points.
- If the question asks for a summary, compress faithfully without adding interpretation.

Chat History:
%s

Transcript Context:
%s

User Question:
%s`, history, contextBlock, question)
}
