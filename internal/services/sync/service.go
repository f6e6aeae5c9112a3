package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/repository"
	"github.com/som1one/bitr/internal/schedule"
	"github.com/som1one/bitr/internal/services/bitrix"
)

// Service - фоновая синхронизация сделок из Bitrix24.
// У существующих записей обновляются только карточные поля; деньги,
// срок и параметры графика ведутся локально и синхронизацией не
// трогаются. Новые сделки создаются из полной карточки CRM.
type Service struct {
	repo   *repository.Repository
	bitrix *bitrix.Client
	log    *logrus.Logger
}

// NewService создаёт сервис синхронизации
func NewService(repo *repository.Repository, bx *bitrix.Client, log *logrus.Logger) *Service {
	return &Service{repo: repo, bitrix: bx, log: log}
}

// SyncDeals обновляет локальный кэш по всем сделкам рассрочки
func (s *Service) SyncDeals(ctx context.Context) error {
	started := time.Now()
	rawDeals, err := s.bitrix.ListInstallmentDeals(ctx)
	if err != nil {
		return err
	}

	locals, err := s.repo.GetAllDeals()
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(locals))
	for i := range locals {
		known[locals[i].BitrixDealID] = true
	}

	updated, created := 0, 0
	for _, raw := range rawDeals {
		id, err := strconv.ParseInt(raw.ID(), 10, 64)
		if err != nil || id == 0 {
			continue
		}

		if known[id] {
			// crm.deal.list не отдаёт пользовательские поля, поэтому
			// для существующих записей обновляем только карточку
			deal := raw.ToDeal()
			if err := s.repo.UpsertDeal(&models.Deal{
				BitrixDealID:   id,
				Title:          deal.Title,
				ContractNumber: deal.ContractNumber,
				ClientName:     deal.ClientName,
				ClientPhone:    deal.ClientPhone,
				Email:          deal.Email,
			}); err != nil {
				s.log.WithError(err).WithField("deal_id", id).Warn("Не удалось обновить карточку сделки")
				continue
			}
			updated++
			continue
		}

		// Новая сделка: суммы и срок доступны только в полной карточке
		full, err := s.bitrix.GetFullDeal(ctx, raw.ID())
		if err != nil {
			s.log.WithError(err).WithField("deal_id", id).Warn("Не удалось получить полную карточку сделки")
			continue
		}
		deal := full.ToDeal()
		if err := s.repo.SaveDeal(&models.Deal{
			BitrixDealID:   id,
			Title:          deal.Title,
			ContractNumber: deal.ContractNumber,
			ClientName:     deal.ClientName,
			ClientPhone:    deal.ClientPhone,
			Email:          deal.Email,
			TotalAmount:    deal.TotalAmount,
			PaidAmount:     deal.PaidAmount,
			TermMonths:     deal.TermMonths,
			ScheduleDay:    schedule.DefaultScheduleDay,
		}); err != nil {
			s.log.WithError(err).WithField("deal_id", id).Warn("Не удалось создать локальную запись сделки")
			continue
		}
		created++
	}

	s.log.WithFields(logrus.Fields{
		"total":    len(rawDeals),
		"updated":  updated,
		"created":  created,
		"duration": time.Since(started).Round(time.Millisecond).String(),
	}).Info("Синхронизация сделок завершена")
	return nil
}
