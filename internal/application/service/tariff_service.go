package service

import (
	"context"
	"fmt"

	"github.com/garyjia/fieldwork-reports/internal/application/port"
	"github.com/garyjia/fieldwork-reports/internal/domain/compensation"
	"github.com/garyjia/fieldwork-reports/internal/domain/entity"
)

// TariffService resolves and maintains effective-dated price lists
type TariffService interface {
	compensation.TariffResolver

	// Seed upserts price lists, all or nothing
	Seed(ctx context.Context, lists []*entity.PriceList) error
	List(ctx context.Context) ([]*entity.PriceList, error)
}

type tariffServiceImpl struct {
	repo      port.PriceListRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewTariffService creates a new TariffService
func NewTariffService(repo port.PriceListRepository, txManager port.TransactionManager, logger Logger) TariffService {
	return &tariffServiceImpl{
		repo:      repo,
		txManager: txManager,
		logger:    orNop(logger),
	}
}

// Resolve returns the list with the latest effective-from not after date
func (s *tariffServiceImpl) Resolve(ctx context.Context, date entity.Date) (*entity.PriceList, error) {
	priceList, err := s.repo.EffectiveOn(ctx, date)
	if err != nil {
		return nil, err
	}
	if priceList == nil {
		s.logger.Error("No tariff in effect", "date", date.String())
		return nil, fmt.Errorf("no price list effective on %s: %w", date, entity.ErrTariffNotFound)
	}
	return priceList, nil
}

func (s *tariffServiceImpl) Seed(ctx context.Context, lists []*entity.PriceList) error {
	for _, pl := range lists {
		if err := pl.Validate(); err != nil {
			return fmt.Errorf("price list effective %s: %w", pl.EffectiveFrom, err)
		}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, pl := range lists {
			if err := s.repo.Upsert(txCtx, pl); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed tariffs", "error", err)
		return err
	}

	s.logger.Info("Tariffs seeded", "count", len(lists))
	return nil
}

func (s *tariffServiceImpl) List(ctx context.Context) ([]*entity.PriceList, error) {
	return s.repo.List(ctx)
}
