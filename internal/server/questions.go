package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PlaceholderQuestion is served when no question source could be loaded.
const PlaceholderQuestion = "Question file not found, please check the server configuration"

// ErrUnsupportedFormat is returned for question files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported question file format")

// Question is a single drawable question.
type Question struct {
	ID      int    `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
}

// QuestionPool is an immutable, ordered set of questions. It is safe for
// concurrent use without locking because it is never modified after
// construction.
type QuestionPool struct {
	questions []Question
	fallback  bool
}

// NewQuestionPool copies the questions with non-blank content into a pool.
// If none remain the placeholder pool is returned.
func NewQuestionPool(qs []Question) *QuestionPool {
	questions := make([]Question, 0, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.Content) != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return placeholderPool()
	}
	return &QuestionPool{questions: questions}
}

func placeholderPool() *QuestionPool {
	return &QuestionPool{
		questions: []Question{{ID: 0, Content: PlaceholderQuestion}},
		fallback:  true,
	}
}

// Len returns the number of questions in the pool.
func (p *QuestionPool) Len() int {
	return len(p.questions)
}

// Fallback reports whether the pool is the placeholder substituted for a
// missing or invalid source.
func (p *QuestionPool) Fallback() bool {
	return p.fallback
}

// All returns a copy of the pool's questions in order.
func (p *QuestionPool) All() []Question {
	return append([]Question(nil), p.questions...)
}

// Pick returns the question selected by intn, which must return a value in [0, n).
func (p *QuestionPool) Pick(intn func(n int) int) Question {
	return p.questions[intn(len(p.questions))]
}

// ReadQuestions parses a question file. The format is chosen by extension:
// .yaml/.yml for YAML, anything else is treated as JSON.
func ReadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	var qs []Question
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s (expected .json, .yaml, or .yml)", ErrUnsupportedFormat, filepath.Ext(path))
	}

	return qs, nil
}

// LoadQuestionPool loads the pool once at startup. It never fails: a missing,
// unreadable, unparseable or empty source is logged and replaced by the
// placeholder pool. Records with blank content are dropped.
func LoadQuestionPool(path string, logger *zap.Logger) *QuestionPool {
	if logger == nil {
		logger = zap.NewNop()
	}

	qs, err := ReadQuestions(path)
	if err != nil {
		logger.Warn("using placeholder question pool", zap.String("path", path), zap.Error(err))
		return placeholderPool()
	}

	if len(qs) == 0 {
		logger.Warn("question file is empty, using placeholder question pool", zap.String("path", path))
		return placeholderPool()
	}

	pool := NewQuestionPool(qs)
	if pool.Fallback() {
		logger.Warn("question file has no question with content, using placeholder question pool", zap.String("path", path))
		return pool
	}
	if skipped := len(qs) - pool.Len(); skipped > 0 {
		logger.Warn("skipped questions without content", zap.String("path", path), zap.Int("skipped", skipped))
	}

	logger.Info("loaded question pool", zap.String("path", path), zap.Int("questions", pool.Len()))
	return pool
}
