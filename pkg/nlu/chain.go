package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ibsar/voicedialog/pkg/utterance"
)

// Chain tries classifiers in order and returns the first known intent at or
// above MinConfidence. Failures fall through to the next classifier.
type Chain struct {
	classifiers   []Classifier
	minConfidence float64
}

// NewChain creates a chain. The last classifier should be one that never
// fails, such as Keyword.
func NewChain(minConfidence float64, classifiers ...Classifier) *Chain {
	return &Chain{classifiers: classifiers, minConfidence: minConfidence}
}

func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	var errs []error
	for _, cl := range c.classifiers {
		res, err := cl.Classify(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			if !errors.Is(err, ErrRateLimited) {
				slog.WarnContext(ctx, "classifier failed, falling back",
					slog.String("classifier", fmt.Sprintf("%T", cl)),
					slog.String("error", err.Error()))
			}
			errs = append(errs, err)
			continue
		}
		if res.Known() && res.Confidence >= c.minConfidence {
			return res, nil
		}
	}
	if len(errs) == len(c.classifiers) && len(errs) > 0 {
		return Result{}, errors.Join(errs...)
	}
	return Unknown("chain"), nil
}

// Cached memoizes results by normalized text. Errors are not cached.
type Cached struct {
	next  Classifier
	cache *lru.Cache[string, Result]
}

// NewCached wraps next with an LRU cache of the given size.
func NewCached(next Classifier, size int) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, fmt.Errorf("create classifier cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Classify(ctx context.Context, text string) (Result, error) {
	key := utterance.Normalize(text)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}
	res, err := c.next.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	c.cache.Add(key, res)
	return res, nil
}

// Len returns the number of cached results.
func (c *Cached) Len() int { return c.cache.Len() }
