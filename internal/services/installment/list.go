package installment

import (
	"context"
	"strconv"
	"time"

	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/schedule"
)

// Статусы рассрочки в сводном списке
const (
	DealStatusPaid    = "paid"
	DealStatusActive  = "active"
	DealStatusPending = "pending"
)

// Summary - сводка по одной рассрочке для админского списка и экспорта
type Summary struct {
	DealID          int64            `json:"deal_id"`
	Title           string           `json:"title"`
	Email           string           `json:"email,omitempty"`
	ClientName      string           `json:"client_name,omitempty"`
	TotalAmount     int64            `json:"total_amount"`
	PaidAmount      int64            `json:"paid_amount"`
	RemainingAmount int64            `json:"remaining_amount"`
	TermMonths      int              `json:"term_months"`
	PaidMonths      int              `json:"paid_months"`
	Status          string           `json:"status"`
	PaymentsCount   int              `json:"payments_count"`
	Payments        []schedule.Entry `json:"payments"`
	DateCreate      string           `json:"date_create,omitempty"`
	StageID         string           `json:"stage_id,omitempty"`
	ContactID       string           `json:"contact_id,omitempty"`
	InDB            bool             `json:"in_db"`
}

// Stats - агрегаты по всем рассрочкам
type Stats struct {
	TotalDeals      int   `json:"total_deals"`
	InDB            int   `json:"in_db"`
	Paid            int   `json:"paid"`
	Active          int   `json:"active"`
	Pending         int   `json:"pending"`
	TotalAmount     int64 `json:"total_amount"`
	PaidAmount      int64 `json:"paid_amount"`
	RemainingAmount int64 `json:"remaining_amount"`
}

// ExportResult - полный список рассрочек со статистикой
type ExportResult struct {
	Stats Stats     `json:"stats"`
	Deals []Summary `json:"deals"`
}

// AllDeals возвращает все рассрочки: список из Bitrix, суммы и сроки из
// локальной БД. crm.deal.list не отдаёт пользовательские поля, поэтому
// без локальной записи срок и оплата сделки неизвестны.
func (s *Service) AllDeals(ctx context.Context) (*ExportResult, error) {
	rawDeals, err := s.bitrix.ListInstallmentDeals(ctx)
	if err != nil {
		return nil, err
	}

	locals, err := s.repo.GetAllDeals()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Deal, len(locals))
	for i := range locals {
		byID[locals[i].BitrixDealID] = &locals[i]
	}

	result := &ExportResult{Deals: make([]Summary, 0, len(rawDeals))}
	now := time.Now()
	for _, raw := range rawDeals {
		id, _ := strconv.ParseInt(raw.ID(), 10, 64)
		local := byID[id]

		deal := raw.ToDeal()
		mergeLocal(&deal, local)

		var allocations map[int]int64
		if local != nil {
			allocations, err = s.repo.GetAllocationSumsByDeal(id)
			if err != nil {
				return nil, err
			}
		}
		view := composeView(deal, allocations, now)

		summary := Summary{
			DealID:          id,
			Title:           view.Deal.Title,
			Email:           view.Deal.Email,
			ClientName:      view.Deal.ClientName,
			TotalAmount:     view.Deal.TotalAmount,
			PaidAmount:      view.Deal.PaidAmount,
			RemainingAmount: max(0, view.Deal.TotalAmount-view.Deal.PaidAmount),
			TermMonths:      view.Deal.TermMonths,
			PaidMonths:      view.Deal.PaidMonths,
			Status:          dealStatus(view.Deal.TotalAmount, view.Deal.PaidAmount),
			PaymentsCount:   len(view.Payments),
			Payments:        view.Payments,
			DateCreate:      raw.String("DATE_CREATE"),
			StageID:         raw.String("STAGE_ID"),
			ContactID:       raw.String("CONTACT_ID"),
			InDB:            local != nil,
		}
		result.Deals = append(result.Deals, summary)

		result.Stats.TotalDeals++
		if summary.InDB {
			result.Stats.InDB++
		}
		switch summary.Status {
		case DealStatusPaid:
			result.Stats.Paid++
		case DealStatusActive:
			result.Stats.Active++
		case DealStatusPending:
			result.Stats.Pending++
		}
		result.Stats.TotalAmount += summary.TotalAmount
		result.Stats.PaidAmount += summary.PaidAmount
		result.Stats.RemainingAmount += summary.RemainingAmount
	}

	return result, nil
}

// dealStatus выводит статус рассрочки из сумм
func dealStatus(total, paid int64) string {
	switch {
	case total > 0 && paid >= total:
		return DealStatusPaid
	case paid > 0:
		return DealStatusActive
	case total > 0:
		return DealStatusPending
	}
	return DealStatusActive
}
