package cache

import (
	"context"
	"time"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
)

type ReportCache interface {
	GetSalesSummary(ctx context.Context, key string) (*domain.SalesSummary, bool, error)
	SetSalesSummary(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type NoopReportCache struct{}

func (NoopReportCache) GetSalesSummary(_ context.Context, _ string) (*domain.SalesSummary, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetSalesSummary(_ context.Context, _ string, _ *domain.SalesSummary, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
