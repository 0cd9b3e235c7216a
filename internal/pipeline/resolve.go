package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/franckalain/barcodenutrition/internal/barcode"
	"github.com/franckalain/barcodenutrition/internal/fetch"
)

// Resolver turns attached images into product codes.
type Resolver struct {
	fetcher      fetch.Fetcher
	decoder      barcode.Decoder
	fetchTimeout time.Duration
	concurrency  int
	logger       *zap.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFetchTimeout bounds each image fetch.
func WithFetchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.fetchTimeout = d }
}

// WithConcurrency lets up to n images be fetched and decoded at once.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) { r.concurrency = n }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver. The decoder must already be loaded.
func NewResolver(fetcher fetch.Fetcher, decoder barcode.Decoder, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher:     fetcher,
		decoder:     decoder,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one product code per image, in attachment order. If any
// image holds no barcode the result is a *DecodeError and no codes are
// returned.
func (r *Resolver) Resolve(ctx context.Context, images []string) ([]string, error) {
	if r.concurrency <= 1 || len(images) <= 1 {
		return r.resolveSequential(ctx, images)
	}
	return r.resolveConcurrent(ctx, images)
}

// resolveSequential stops at the first image that fails.
func (r *Resolver) resolveSequential(ctx context.Context, images []string) ([]string, error) {
	codes := make([]string, len(images))
	for i, ref := range images {
		code, err := r.resolveOne(ctx, i, ref)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// resolveConcurrent reports the lowest-index failure, which is the failure a
// sequential run would have stopped at. Images after a known failure are
// not started.
func (r *Resolver) resolveConcurrent(ctx context.Context, images []string) ([]string, error) {
	codes := make([]string, len(images))
	errs := make([]error, len(images))

	var mu sync.Mutex
	firstFailure := len(images)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ref := range images {
		g.Go(func() error {
			mu.Lock()
			skip := i > firstFailure
			mu.Unlock()
			if skip {
				return nil
			}

			code, err := r.resolveOne(ctx, i, ref)
			if err != nil {
				mu.Lock()
				if i < firstFailure {
					firstFailure = i
				}
				mu.Unlock()
				errs[i] = err
				return nil
			}
			codes[i] = code
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return codes, nil
}

func (r *Resolver) resolveOne(ctx context.Context, index int, ref string) (string, error) {
	data, err := r.fetch(ctx, ref)
	if err != nil {
		return "", &FetchError{Index: index, Err: err}
	}

	code, err := r.decoder.Decode(ctx, data)
	if errors.Is(err, barcode.ErrNoBarcode) {
		r.logger.Debug("no barcode in image", zap.Int("index", index), zap.Error(err))
		return "", &DecodeError{Index: index, Err: err}
	}
	if err != nil {
		return "", err
	}

	r.logger.Debug("decoded barcode", zap.Int("index", index), zap.String("code", code))
	return code, nil
}

func (r *Resolver) fetch(ctx context.Context, ref string) ([]byte, error) {
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}
	return r.fetcher.Fetch(ctx, ref)
}
