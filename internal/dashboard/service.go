// Package dashboard aggregates headline counts for the overview screen.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Counts is the headline summary the overview screen renders.
type Counts struct {
	OpenSalesOrders    int64 `json:"open_sales_orders"`
	OpenPurchaseOrders int64 `json:"open_purchase_orders"`
	DraftInvoices      int64 `json:"draft_invoices"`
	ActivePartners     int64 `json:"active_partners"`
	ActiveProducts     int64 `json:"active_products"`
	LowStockProducts   int64 `json:"low_stock_products"`
}

// Repository supplies the individual counts.
type Repository interface {
	CountOpenSalesOrders(ctx context.Context) (int64, error)
	CountOpenPurchaseOrders(ctx context.Context) (int64, error)
	CountDraftInvoices(ctx context.Context) (int64, error)
	CountActivePartners(ctx context.Context) (int64, error)
	CountActiveProducts(ctx context.Context) (int64, error)
	CountLowStockProducts(ctx context.Context) (int64, error)
}

const cacheKey = "dashboard:counts"

// Service computes dashboard counts, caching them briefly so dashboard
// polling does not hammer the database.
type Service struct {
	repo  Repository
	cache *redis.Client
	ttl   time.Duration
}

// NewService builds Service. cache may be nil, which disables caching.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// Counts returns the current counts, fanning the queries out in parallel.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	// Cache trouble must not take the dashboard down; a miss or an
	// unreachable redis both fall through to the queries.
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Counts
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	var counts Counts
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts.OpenSalesOrders, err = s.repo.CountOpenSalesOrders(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.OpenPurchaseOrders, err = s.repo.CountOpenPurchaseOrders(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.DraftInvoices, err = s.repo.CountDraftInvoices(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.ActivePartners, err = s.repo.CountActivePartners(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.ActiveProducts, err = s.repo.CountActiveProducts(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.LowStockProducts, err = s.repo.CountLowStockProducts(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(counts); err == nil {
			_ = s.cache.Set(ctx, cacheKey, raw, s.ttl).Err()
		}
	}
	return counts, nil
}

// Invalidate drops the cached counts.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey).Err()
	}
}
