package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeStore records calls and can be forced to fail.
type fakeStore struct {
	deleted  []string
	patterns []string
	failAll  bool
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (f *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.failAll {
		return errors.New("redis down")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) DeleteByPattern(ctx context.Context, pattern string) error {
	if f.failAll {
		return errors.New("redis down")
	}
	f.patterns = append(f.patterns, pattern)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestInvalidator_PricesMutated(t *testing.T) {
	store := &fakeStore{}
	inv := NewInvalidator(store, quietLogger())

	inv.PricesMutated(context.Background(), []string{"AAPL", "MSFT"})

	assert.Equal(t, []string{"prices:*"}, store.patterns)
	assert.Equal(t, []string{"stock:AAPL", "stock:MSFT"}, store.deleted)
}

func TestInvalidator_FundamentalsMutated(t *testing.T) {
	store := &fakeStore{}
	inv := NewInvalidator(store, quietLogger())

	inv.FundamentalsMutated(context.Background(), []string{"GOOG"})

	assert.Equal(t, []string{"stock:GOOG"}, store.deleted)
	assert.Equal(t, []string{"screener:*"}, store.patterns)
}

func TestInvalidator_SeriesMutated(t *testing.T) {
	store := &fakeStore{}
	inv := NewInvalidator(store, quietLogger())

	inv.SeriesMutated(context.Background(), "AAPL")

	assert.Equal(t, []string{"prices:AAPL:*"}, store.patterns)
}

func TestInvalidator_BestEffort(t *testing.T) {
	store := &fakeStore{failAll: true}
	inv := NewInvalidator(store, quietLogger())

	// Failures must not panic or propagate
	assert.NotPanics(t, func() {
		inv.PricesMutated(context.Background(), []string{"AAPL"})
		inv.FundamentalsMutated(context.Background(), []string{"AAPL"})
	})
}

func TestInvalidator_NilStoreIsNoop(t *testing.T) {
	inv := NewInvalidator(nil, quietLogger())
	assert.NotPanics(t, func() {
		inv.PricesMutated(context.Background(), []string{"AAPL"})
	})

	var nilInv *Invalidator
	assert.NotPanics(t, func() {
		nilInv.FundamentalsMutated(context.Background(), []string{"AAPL"})
	})
}
