package installment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/repository"
)

// Предел одного наличного платежа, защита от ошибок ввода
const maxCashPayment = 10_000_000

// Окно, в котором одинаковый платёж без ключа идемпотентности считается
// дублем (двойной клик админа)
const duplicateWindow = 30 * time.Second

// ErrDuplicatePayment - похожий платёж уже создан в пределах окна
var ErrDuplicatePayment = errors.New("похожий платёж был создан недавно")

// CashAllocationInput - зачёт части платежа в месяц графика
type CashAllocationInput struct {
	MonthIndex int   `json:"month_index"`
	Amount     int64 `json:"amount"`
}

// CashPaymentRequest - запрос на фиксацию оплаты наличными.
// Указывается либо общая сумма, либо распределение по месяцам.
type CashPaymentRequest struct {
	Amount         *int64                `json:"amount"`
	Allocations    []CashAllocationInput `json:"allocations"`
	Comment        string                `json:"comment"`
	IdempotencyKey string                `json:"idempotency_key"`
}

// CashPaymentResult - итог фиксации наличного платежа
type CashPaymentResult struct {
	Success       bool   `json:"success"`
	DealID        int64  `json:"deal_id"`
	OldPaidAmount int64  `json:"old_paid_amount"`
	NewPaidAmount int64  `json:"new_paid_amount"`
	PaymentAmount int64  `json:"payment_amount"`
	PaymentID     string `json:"payment_id"`
	Idempotent    bool   `json:"idempotent,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// RecordCashPayment фиксирует оплату наличными: увеличивает paid_amount,
// пишет платёж в журнал и сохраняет распределение по месяцам. Строка
// сделки блокируется на время транзакции, два конкурентных платежа по
// одной сделке применяются по очереди.
func (s *Service) RecordCashPayment(ctx context.Context, bitrixDealID int64, req CashPaymentRequest) (*CashPaymentResult, error) {
	var total int64
	if len(req.Allocations) > 0 {
		for _, a := range req.Allocations {
			if a.Amount <= 0 {
				return nil, ValidationError("Сумма по месяцу должна быть > 0")
			}
			// -1 означает зачёт в первоначальный взнос
			if a.MonthIndex < -1 {
				return nil, ValidationError("Некорректный month_index")
			}
			total += a.Amount
		}
	} else {
		if req.Amount == nil {
			return nil, ValidationError("Укажите либо amount, либо allocations")
		}
		total = *req.Amount
	}

	if total <= 0 {
		return nil, ValidationError("Сумма должна быть больше 0")
	}
	if total > maxCashPayment {
		return nil, ValidationError(fmt.Sprintf(
			"Сумма платежа (%d ₽) превышает максимально допустимую (%d ₽). Проверьте правильность введённой суммы.",
			total, maxCashPayment))
	}

	// Локальная запись нужна до транзакции: создание из Bitrix ходит в
	// сеть, держать блокировку строки на это время нельзя
	if _, err := s.ensureLocalDeal(ctx, bitrixDealID); err != nil {
		return nil, err
	}

	var result *CashPaymentResult
	err := s.repo.Transaction(func(tx *repository.Repository) error {
		deal, err := tx.GetDealByBitrixIDForUpdate(bitrixDealID)
		if err != nil {
			return err
		}
		if deal == nil {
			return ErrDealNotFound
		}

		if deal.TotalAmount <= 0 {
			return ValidationError("Нельзя записать оплату наличными: у сделки не задана общая сумма. Сначала укажите сумму в настройках сделки.")
		}

		remaining := deal.TotalAmount - deal.PaidAmount
		if remaining <= 0 {
			return ValidationError("Рассрочка уже полностью оплачена")
		}
		if total > remaining {
			return ValidationError(fmt.Sprintf(
				"Сумма платежа (%d ₽) превышает остаток по рассрочке (%d ₽)", total, remaining))
		}

		// Идемпотентность: повтор запроса с тем же ключом возвращает
		// уже созданный платёж
		paymentID := ""
		if req.IdempotencyKey != "" {
			paymentID = "cash_" + strings.TrimSpace(req.IdempotencyKey)
			existing, err := tx.GetPaymentLogByPaymentID(paymentID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = &CashPaymentResult{
					Success:       true,
					DealID:        bitrixDealID,
					OldPaidAmount: deal.PaidAmount,
					NewPaidAmount: deal.PaidAmount,
					PaymentAmount: existing.Amount,
					PaymentID:     existing.PaymentID,
					Idempotent:    true,
				}
				return nil
			}
		} else {
			paymentID = "cash_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

			recent, err := tx.FindRecentCashPayment(bitrixDealID, total, duplicateWindow)
			if err != nil {
				return err
			}
			if recent != nil {
				return fmt.Errorf("%w: сумма %d ₽", ErrDuplicatePayment, total)
			}
		}

		oldPaid := deal.PaidAmount
		newPaid := oldPaid + total
		if newPaid > deal.TotalAmount {
			newPaid = deal.TotalAmount
		}
		deal.PaidAmount = newPaid
		if err := tx.SaveDeal(deal); err != nil {
			return err
		}

		log := &models.PaymentLog{
			PaymentID:      paymentID,
			BitrixDealID:   bitrixDealID,
			Amount:         total,
			Status:         models.PaymentStatusPaid,
			Method:         models.PaymentMethodCash,
			Description:    cashComment(req),
			IdempotencyKey: req.IdempotencyKey,
		}
		if err := tx.CreatePaymentLog(log); err != nil {
			return err
		}

		for _, a := range req.Allocations {
			if err := tx.CreateCashAllocation(&models.CashAllocation{
				PaymentLogID: log.ID,
				BitrixDealID: bitrixDealID,
				MonthIndex:   a.MonthIndex,
				Amount:       a.Amount,
			}); err != nil {
				return err
			}
		}

		result = &CashPaymentResult{
			Success:       true,
			DealID:        bitrixDealID,
			OldPaidAmount: oldPaid,
			NewPaidAmount: newPaid,
			PaymentAmount: total,
			PaymentID:     paymentID,
			Comment:       log.Description,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Idempotent {
		return result, nil
	}

	s.log.WithFields(logrus.Fields{
		"deal_id":    bitrixDealID,
		"payment_id": result.PaymentID,
		"amount":     total,
	}).Info("Зафиксирована оплата наличными")

	// Зеркалим новую сумму в CRM, ошибка не критична
	if err := s.bitrix.UpdatePaidAmount(ctx, strconv.FormatInt(bitrixDealID, 10), result.NewPaidAmount); err != nil {
		s.log.WithError(err).WithField("deal_id", bitrixDealID).
			Warn("Не удалось отразить оплату наличными в Bitrix24")
	}

	if s.notify != nil {
		deal, _ := s.repo.GetDealByBitrixID(bitrixDealID)
		title, email := "", ""
		if deal != nil {
			title, email = deal.Title, deal.Email
		}
		s.notify.NotifyPayment(ctx, bitrixDealID, total, result.PaymentID, models.PaymentMethodCash, title, email)
	}

	return result, nil
}

// cashComment собирает комментарий платежа: краткое распределение по
// месяцам плюс комментарий админа, с ограничением длины
func cashComment(req CashPaymentRequest) string {
	var parts []string
	if len(req.Allocations) > 0 {
		summary := make([]string, 0, len(req.Allocations))
		for i, a := range req.Allocations {
			if i >= 20 {
				break
			}
			summary = append(summary, fmt.Sprintf("#%d:%d", a.MonthIndex+1, a.Amount))
		}
		parts = append(parts, strings.Join(summary, " | "))
	}
	if req.Comment != "" {
		parts = append(parts, req.Comment)
	}
	out := strings.Join(parts, " | ")
	if len(out) > 500 {
		out = out[:500]
	}
	return out
}
