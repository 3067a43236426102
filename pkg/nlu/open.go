package nlu

import (
	"context"
	"errors"

	"github.com/ibsar/voicedialog/internal/registry"
)

// ErrUnknownClassifier is returned by Open for an unregistered name.
var ErrUnknownClassifier = errors.New("unknown classifier")

// Options configures the classifier chosen by Open.
type Options struct {
	LLM           LLMConfig
	MinConfidence float64
	CacheSize     int
}

var classifiers = registry.New[Classifier, Options](ErrUnknownClassifier)

func init() {
	classifiers.Register("keyword", func(context.Context, Options) (Classifier, error) {
		return NewKeyword(), nil
	})
	classifiers.Register("llm", openLLM)
}

// openLLM builds a cached chain that asks the model first and falls back to
// keywords.
func openLLM(ctx context.Context, o Options) (Classifier, error) {
	llm, err := NewOpenAI(ctx, o.LLM)
	if err != nil {
		return nil, err
	}
	return NewCached(NewChain(o.MinConfidence, llm, NewKeyword()), o.CacheSize)
}

// Open creates the classifier registered under name. The empty name and
// "none" mean no classifier.
func Open(ctx context.Context, name string, o Options) (Classifier, error) {
	if name == "" || name == "none" {
		return nil, nil
	}
	return classifiers.Create(ctx, name, o)
}
