package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// countingRepo serves fixed counts and records how often it is hit.
type countingRepo struct {
	hits atomic.Int64
}

func (r *countingRepo) tick() (int64, error) {
	r.hits.Add(1)
	return 0, nil
}

func (r *countingRepo) CountOpenSalesOrders(context.Context) (int64, error) {
	r.hits.Add(1)
	return 3, nil
}

func (r *countingRepo) CountOpenPurchaseOrders(context.Context) (int64, error) { return r.tick() }
func (r *countingRepo) CountDraftInvoices(context.Context) (int64, error)      { return r.tick() }
func (r *countingRepo) CountActivePartners(context.Context) (int64, error) {
	r.hits.Add(1)
	return 12, nil
}
func (r *countingRepo) CountActiveProducts(context.Context) (int64, error) { return r.tick() }
func (r *countingRepo) CountLowStockProducts(context.Context) (int64, error) {
	r.hits.Add(1)
	return 2, nil
}

func TestCountsFanOut(t *testing.T) {
	repo := &countingRepo{}
	svc := NewService(repo, nil, time.Minute)

	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.OpenSalesOrders)
	require.Equal(t, int64(12), counts.ActivePartners)
	require.Equal(t, int64(2), counts.LowStockProducts)
	require.Equal(t, int64(6), repo.hits.Load())
}

func TestCountsCached(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := &countingRepo{}
	svc := NewService(repo, client, time.Minute)

	_, err := svc.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6), repo.hits.Load())

	// Second call inside the TTL reads the cache.
	counts, err := svc.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.OpenSalesOrders)
	require.Equal(t, int64(6), repo.hits.Load())

	// Past the TTL the queries run again.
	srv.FastForward(2 * time.Minute)
	_, err = svc.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), repo.hits.Load())
}

func TestInvalidateDropsCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := &countingRepo{}
	svc := NewService(repo, client, time.Minute)

	_, err := svc.Counts(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	_, err = svc.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), repo.hits.Load())
}
