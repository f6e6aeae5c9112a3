package installment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/repository"
	"github.com/som1one/bitr/internal/services/yookassa"
)

// WebhookAmount - сумма платежа в вебхуке, "1500.00"
type WebhookAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// WebhookObject - объект платежа из вебхука ЮKassa
type WebhookObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   WebhookAmount     `json:"amount"`
	Metadata map[string]string `json:"metadata"`
}

// WebhookPayload - уведомление ЮKassa
type WebhookPayload struct {
	Event  string        `json:"event"`
	Object WebhookObject `json:"object"`
}

// OnlinePaymentResult - ссылка на страницу оплаты
type OnlinePaymentResult struct {
	URL string `json:"url"`
}

// CreateOnlinePayment создаёт платёж в ЮKassa для клиента, вошедшего по
// magic-ссылке. Сумма проверяется против остатка по локальной записи.
func (s *Service) CreateOnlinePayment(ctx context.Context, identifier, identifierType, returnURL string, amount int64) (*OnlinePaymentResult, error) {
	if amount <= 0 {
		return nil, ValidationError("Сумма должна быть больше 0")
	}

	dealID, err := s.findDealID(ctx, identifier, identifierType)
	if err != nil {
		return nil, err
	}

	local, err := s.ensureLocalDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if local.TotalAmount <= 0 {
		return nil, ValidationError("Сумма рассрочки не задана. Заполните сумму сделки, чтобы принимать платежи.")
	}
	remaining := local.TotalAmount - local.PaidAmount
	if remaining <= 0 {
		return nil, ValidationError("Рассрочка уже полностью оплачена")
	}
	if amount > remaining {
		return nil, ValidationError(fmt.Sprintf(
			"Сумма платежа (%d ₽) превышает остаток по рассрочке (%d ₽)", amount, remaining))
	}

	email := ""
	if identifierType == "email" {
		email = identifier
	} else if local.Email != "" {
		email = local.Email
	}

	created, err := s.kassa.CreatePayment(ctx, yookassa.CreatePaymentParams{
		Amount:         amount,
		DealID:         dealID,
		ReturnURL:      returnURL,
		Identifier:     identifier,
		IdentifierType: identifierType,
		Email:          email,
	})
	if err != nil {
		return nil, err
	}

	// Платёж логируется как pending, вебхук переведёт его в paid
	if err := s.repo.CreatePaymentLog(&models.PaymentLog{
		PaymentID:    created.PaymentID,
		BitrixDealID: dealID,
		Amount:       amount,
		Status:       models.PaymentStatusPending,
		Method:       models.PaymentMethodOnline,
	}); err != nil {
		s.log.WithError(err).WithField("payment_id", created.PaymentID).
			Error("Не удалось записать платёж в журнал")
	}

	return &OnlinePaymentResult{URL: created.ConfirmationURL}, nil
}

// findDealID находит сделку рассрочки клиента по его идентификатору
func (s *Service) findDealID(ctx context.Context, identifier, identifierType string) (int64, error) {
	var contactID string
	var err error
	if identifierType == "phone" {
		contactID, err = s.bitrix.FindContactIDByPhone(ctx, identifier)
	} else {
		contactID, err = s.bitrix.FindContactIDByEmail(ctx, identifier)
	}
	if err != nil {
		return 0, err
	}
	if contactID == "" {
		return 0, ErrDealNotFound
	}

	dealID, err := s.bitrix.FindInstallmentDealID(ctx, contactID)
	if err != nil {
		return 0, err
	}
	if dealID == "" {
		return 0, ErrDealNotFound
	}
	id, err := strconv.ParseInt(dealID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный ID сделки из Bitrix24: %q", dealID)
	}
	return id, nil
}

// ProcessWebhook обрабатывает уведомление ЮKassa об успешной оплате.
// Обработка идемпотентна: повторный вебхук по тому же платежу не
// увеличивает оплаченную сумму второй раз.
func (s *Service) ProcessWebhook(ctx context.Context, payload WebhookPayload) error {
	if payload.Event != "payment.succeeded" {
		s.log.WithField("event", payload.Event).Info("Вебхук пропущен, обрабатывается только payment.succeeded")
		return nil
	}

	paymentID := payload.Object.ID
	if paymentID == "" {
		return ValidationError("В вебхуке отсутствует id платежа")
	}

	amount, err := parseWebhookAmount(payload.Object.Amount.Value)
	if err != nil {
		return ValidationError("Некорректная сумма в вебхуке: " + payload.Object.Amount.Value)
	}

	dealIDRaw := strings.TrimSpace(payload.Object.Metadata["deal_id"])
	if dealIDRaw == "" {
		return ValidationError("В metadata вебхука отсутствует deal_id")
	}
	dealID, err := strconv.ParseInt(dealIDRaw, 10, 64)
	if err != nil {
		return ValidationError("Некорректный deal_id в metadata: " + dealIDRaw)
	}

	// Локальная запись создаётся до транзакции, поход в Bitrix под
	// блокировкой строки недопустим
	if _, err := s.ensureLocalDeal(ctx, dealID); err != nil {
		// Сделки нет ни локально, ни в CRM: сохраняем хотя бы журнал,
		// чтобы платёж не потерялся
		s.log.WithError(err).WithFields(logrus.Fields{
			"deal_id":    dealID,
			"payment_id": paymentID,
		}).Warn("Сделка не найдена, платёж записан только в журнал")
		return s.repo.CreatePaymentLog(&models.PaymentLog{
			PaymentID:    paymentID,
			BitrixDealID: dealID,
			Amount:       amount,
			Status:       models.PaymentStatusPaid,
			Method:       models.PaymentMethodOnline,
		})
	}

	var finalPaid int64
	err = s.repo.Transaction(func(tx *repository.Repository) error {
		deal, err := tx.GetDealByBitrixIDForUpdate(dealID)
		if err != nil {
			return err
		}
		if deal == nil {
			return ErrDealNotFound
		}

		logEntry, err := tx.GetPaymentLogByPaymentID(paymentID)
		if err != nil {
			return err
		}

		alreadyPaid := logEntry != nil && logEntry.Status == models.PaymentStatusPaid
		hasAllocs := false
		if logEntry != nil {
			hasAllocs, err = tx.HasAllocationsForPayment(logEntry.ID)
			if err != nil {
				return err
			}
		}
		if alreadyPaid && hasAllocs {
			s.log.WithField("payment_id", paymentID).Info("Платёж уже обработан, вебхук пропущен")
			finalPaid = deal.PaidAmount
			return nil
		}

		// Сумма прибавляется только один раз, зачёты можно досоздать
		if !alreadyPaid {
			newPaid := deal.PaidAmount + amount
			if deal.TotalAmount > 0 && newPaid > deal.TotalAmount {
				s.log.WithFields(logrus.Fields{
					"deal_id": dealID,
					"paid":    deal.PaidAmount,
					"amount":  amount,
					"total":   deal.TotalAmount,
				}).Warn("Платёж превышает общую сумму, оплата ограничена")
				newPaid = deal.TotalAmount
			}
			deal.PaidAmount = newPaid
			if err := tx.SaveDeal(deal); err != nil {
				return err
			}
		}
		finalPaid = deal.PaidAmount

		if logEntry != nil {
			if logEntry.Status != models.PaymentStatusPaid {
				logEntry.Status = models.PaymentStatusPaid
				// Сумма из вебхука авторитетна
				logEntry.Amount = amount
				if err := tx.SavePaymentLog(logEntry); err != nil {
					return err
				}
			}
		} else {
			logEntry = &models.PaymentLog{
				PaymentID:    paymentID,
				BitrixDealID: dealID,
				Amount:       amount,
				Status:       models.PaymentStatusPaid,
				Method:       models.PaymentMethodOnline,
			}
			if err := tx.CreatePaymentLog(logEntry); err != nil {
				return err
			}
		}

		if !hasAllocs {
			if err := allocateByMonths(tx, deal, logEntry.ID, amount); err != nil {
				s.log.WithError(err).WithField("payment_id", paymentID).
					Warn("Не удалось распределить платёж по месяцам")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Зеркалим итоговую сумму в CRM после коммита
	if err := s.bitrix.UpdatePaidAmount(ctx, dealIDRaw, finalPaid); err != nil {
		s.log.WithError(err).WithField("deal_id", dealID).
			Warn("Не удалось отразить онлайн-оплату в Bitrix24")
	}

	if s.notify != nil {
		deal, _ := s.repo.GetDealByBitrixID(dealID)
		title, email := "", payload.Object.Metadata["email"]
		if deal != nil {
			title = deal.Title
			if deal.Email != "" {
				email = deal.Email
			}
		}
		s.notify.NotifyPayment(ctx, dealID, amount, paymentID, models.PaymentMethodOnline, title, email)
	}

	s.log.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"deal_id":    dealID,
		"amount":     amount,
	}).Info("Онлайн-платёж обработан")
	return nil
}

// allocateByMonths распределяет сумму платежа по месяцам графика:
// месяцы заполняются по порядку с учётом уже зачтённого, переплата
// целиком уходит в последний месяц
func allocateByMonths(tx *repository.Repository, deal *models.Deal, paymentLogID uint, amount int64) error {
	term := deal.TermMonths
	installment := max(0, deal.TotalAmount-deal.InitialPayment)
	if term <= 0 || installment <= 0 {
		return nil
	}

	sums, err := tx.GetAllocationSumsByDeal(deal.BitrixDealID)
	if err != nil {
		return err
	}

	monthly := installment / int64(term)
	remainder := installment % int64(term)

	left := amount
	for i := 0; i < term && left > 0; i++ {
		due := monthly
		if i == term-1 {
			due += remainder
		}
		covered := max(0, due-sums[i])
		part := min(covered, left)
		if part <= 0 {
			continue
		}
		if err := tx.CreateCashAllocation(&models.CashAllocation{
			PaymentLogID: paymentLogID,
			BitrixDealID: deal.BitrixDealID,
			MonthIndex:   i,
			Amount:       part,
		}); err != nil {
			return err
		}
		left -= part
	}

	if left > 0 {
		return tx.CreateCashAllocation(&models.CashAllocation{
			PaymentLogID: paymentLogID,
			BitrixDealID: deal.BitrixDealID,
			MonthIndex:   term - 1,
			Amount:       left,
		})
	}
	return nil
}

// parseWebhookAmount переводит сумму вида "1500.00" в целые рубли
func parseWebhookAmount(value string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	amount := int64(f)
	if amount <= 0 {
		return 0, fmt.Errorf("сумма должна быть больше 0: %s", value)
	}
	return amount, nil
}
