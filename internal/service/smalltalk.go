package service

import "strings"

// Classifier decides whether a question is conversational small talk, in
// which case timestamp references are meaningless and get suppressed.
type Classifier interface {
	IsSmallTalk(question string) bool
}

type heuristicClassifier struct {
	phrases map[string]struct{}
}

// NewHeuristicClassifier flags greetings, closings and very short
// questions. It is intentionally dumb; swap the Classifier to do better.
func NewHeuristicClassifier() Classifier {
	phrases := []string{
		"hi", "hello", "hey", "yo", "sup",
		"thanks", "thank you", "thx", "ty",
		"ok", "okay", "cool", "nice", "great",
		"bye", "goodbye", "see you", "good night",
		"how are you", "who are you", "what can you do",
	}
	set := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		set[p] = struct{}{}
	}
	return &heuristicClassifier{phrases: set}
}

func (c *heuristicClassifier) IsSmallTalk(question string) bool {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.TrimRight(normalized, "!?.,")
	if normalized == "" {
		return true
	}
	if _, ok := c.phrases[normalized]; ok {
		return true
	}
	// Anything this short is not a real question about the video.
	return len([]rune(normalized)) <= 3
}
