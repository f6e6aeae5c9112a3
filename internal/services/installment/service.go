package installment

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/som1one/bitr/internal/models"
	"github.com/som1one/bitr/internal/repository"
	"github.com/som1one/bitr/internal/schedule"
	"github.com/som1one/bitr/internal/services/bitrix"
	"github.com/som1one/bitr/internal/services/telegram"
	"github.com/som1one/bitr/internal/services/yookassa"
)

// ErrDealNotFound - рассрочка не найдена ни в Bitrix, ни в локальной БД
var ErrDealNotFound = errors.New("рассрочка не найдена")

// ValidationError - ошибка валидации входных данных, текст уходит клиенту
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Service собирает рассрочку из двух источников: карточка сделки живёт в
// Bitrix24, а суммы, срок и параметры графика ведутся в локальной БД и
// при слиянии перекрывают значения CRM.
type Service struct {
	repo   *repository.Repository
	bitrix *bitrix.Client
	kassa  *yookassa.Client
	notify *telegram.Notifier
	log    *logrus.Logger
}

// NewService создаёт сервис рассрочек
func NewService(repo *repository.Repository, bx *bitrix.Client, kassa *yookassa.Client, notify *telegram.Notifier, log *logrus.Logger) *Service {
	return &Service{repo: repo, bitrix: bx, kassa: kassa, notify: notify, log: log}
}

// View - рассрочка в том виде, в каком её видит фронтенд
type View struct {
	Deal     DealView         `json:"deal"`
	Payments []schedule.Entry `json:"payments"`
}

// DealView - карточка сделки с производными суммами
type DealView struct {
	ContractNumber    string   `json:"contract_number"`
	Title             string   `json:"title"`
	Email             string   `json:"email,omitempty"`
	ClientName        string   `json:"client_name"`
	ClientPhone       string   `json:"client_phone"`
	TotalAmount       int64    `json:"total_amount"`
	PaidAmount        int64    `json:"paid_amount"`
	InitialPayment    int64    `json:"initial_payment"`
	InstallmentAmount int64    `json:"installment_amount"`
	TermMonths        int      `json:"term_months"`
	PaidMonths        int      `json:"paid_months"`
	ProgressPercent   float64  `json:"progress_percent"`
	Overpaid          bool     `json:"overpaid,omitempty"`
	MissingFields     []string `json:"missing_fields"`
	ProjectType       string   `json:"project_type,omitempty"`
	ProjectStartDate  string   `json:"project_start_date,omitempty"`
	ObjectLocation    string   `json:"object_location,omitempty"`
}

// GetByEmail возвращает рассрочку клиента по email
func (s *Service) GetByEmail(ctx context.Context, email string) (*View, error) {
	contactID, err := s.bitrix.FindContactIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if contactID == "" {
		return nil, ErrDealNotFound
	}
	return s.viewByContact(ctx, contactID)
}

// GetByPhone возвращает рассрочку клиента по телефону
func (s *Service) GetByPhone(ctx context.Context, phone string) (*View, error) {
	contactID, err := s.bitrix.FindContactIDByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if contactID == "" {
		return nil, ErrDealNotFound
	}
	return s.viewByContact(ctx, contactID)
}

func (s *Service) viewByContact(ctx context.Context, contactID string) (*View, error) {
	dealID, err := s.bitrix.FindInstallmentDealID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if dealID == "" {
		return nil, ErrDealNotFound
	}
	raw, err := s.bitrix.GetFullDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, raw)
}

// GetByDealID возвращает рассрочку для админки. Сделка ищется в Bitrix,
// при недоступном CRM собирается из локальной записи.
func (s *Service) GetByDealID(ctx context.Context, bitrixDealID int64) (*View, error) {
	raw, err := s.bitrix.GetFullDeal(ctx, strconv.FormatInt(bitrixDealID, 10))
	if err != nil {
		s.log.WithError(err).WithField("deal_id", bitrixDealID).
			Warn("Сделка недоступна в Bitrix24, используем локальную запись")
		raw = nil
	}

	local, err := s.repo.GetDealByBitrixID(bitrixDealID)
	if err != nil {
		return nil, err
	}
	if raw == nil && local == nil {
		return nil, ErrDealNotFound
	}
	if raw == nil {
		raw = bitrix.RawDeal{
			"ID":             strconv.FormatInt(local.BitrixDealID, 10),
			"TITLE":          local.Title,
			"OPPORTUNITY":    strconv.FormatInt(local.TotalAmount, 10),
			"UF_PAID_AMOUNT": strconv.FormatInt(local.PaidAmount, 10),
			"UF_TERM_MONTHS": strconv.Itoa(local.TermMonths),
		}
	}

	// База графика фиксируется при первом чтении настроенной сделки,
	// чтобы даты платежей не плыли за DATE_CREATE в Bitrix
	if local != nil && local.TermMonths > 0 && local.ScheduleStartDate == nil {
		now := time.Now().UTC()
		local.ScheduleStartDate = &now
		if local.ScheduleDay == 0 {
			local.ScheduleDay = schedule.DefaultScheduleDay
		}
		if err := s.repo.SaveDeal(local); err != nil {
			s.log.WithError(err).WithField("deal_id", bitrixDealID).
				Warn("Не удалось зафиксировать дату начала графика")
		}
	}

	return s.buildView(ctx, raw)
}

// buildView сливает сделку Bitrix с локальной записью и распределениями
// платежей и строит представление с графиком
func (s *Service) buildView(ctx context.Context, raw bitrix.RawDeal) (*View, error) {
	deal := raw.ToDeal()

	bitrixDealID, _ := strconv.ParseInt(raw.ID(), 10, 64)
	var allocations map[int]int64
	if bitrixDealID != 0 {
		local, err := s.repo.GetDealByBitrixID(bitrixDealID)
		if err != nil {
			return nil, err
		}
		mergeLocal(&deal, local)

		allocations, err = s.repo.GetAllocationSumsByDeal(bitrixDealID)
		if err != nil {
			return nil, err
		}
	}

	return composeView(deal, allocations, time.Now()), nil
}

// mergeLocal накладывает локальные значения на сделку из CRM. Локальная
// БД первична для денег и срока; карточные поля берутся из неё, только
// когда в CRM пусто.
func mergeLocal(d *schedule.Deal, local *models.Deal) {
	if local == nil {
		return
	}
	d.PaidAmount = local.PaidAmount
	d.TermMonths = local.TermMonths
	d.InitialPayment = local.InitialPayment
	if local.ScheduleDay > 0 {
		d.ScheduleDay = local.ScheduleDay
	}
	if local.ScheduleStartDate != nil {
		d.ScheduleStart = local.ScheduleStartDate
	}
	if d.Email == "" {
		d.Email = local.Email
	}
	if d.Title == "" {
		d.Title = local.Title
	}
	if d.TotalAmount <= 0 {
		d.TotalAmount = local.TotalAmount
	}

	if d.InitialPayment < 0 {
		d.InitialPayment = 0
	}
	if d.TotalAmount > 0 && d.InitialPayment > d.TotalAmount {
		d.InitialPayment = d.TotalAmount
	}
	if d.TotalAmount > 0 && d.PaidAmount > d.TotalAmount {
		d.PaidAmount = d.TotalAmount
	}

	d.MissingFields = nil
	if d.TotalAmount <= 0 {
		d.MissingFields = append(d.MissingFields, "total_amount")
	}
	if d.TermMonths <= 0 {
		d.MissingFields = append(d.MissingFields, "term_months")
	}
}

// composeView строит представление сделки с графиком платежей
func composeView(deal schedule.Deal, allocations map[int]int64, now time.Time) *View {
	entries := schedule.Build(deal, allocations, now)
	totals := schedule.Aggregate(entries)
	fig := deal.Reconcile()

	view := &View{
		Deal: DealView{
			ContractNumber:    deal.ContractNumber,
			Title:             deal.Title,
			Email:             deal.Email,
			ClientName:        deal.ClientName,
			ClientPhone:       deal.ClientPhone,
			TotalAmount:       deal.TotalAmount,
			PaidAmount:        deal.PaidAmount,
			InitialPayment:    deal.InitialPayment,
			InstallmentAmount: fig.InstallmentAmount,
			TermMonths:        deal.TermMonths,
			PaidMonths:        totals.PaidMonths,
			ProgressPercent:   totals.ProgressPercent,
			Overpaid:          totals.Overpaid,
			MissingFields:     deal.MissingFields,
			ProjectType:       deal.ProjectType,
			ProjectStartDate:  deal.ProjectStartDate,
			ObjectLocation:    deal.ObjectLocation,
		},
		Payments: entries,
	}
	if view.Deal.MissingFields == nil {
		view.Deal.MissingFields = []string{}
	}
	if view.Payments == nil {
		view.Payments = []schedule.Entry{}
	}
	return view
}

// SettingsRequest - частичное обновление настроек рассрочки.
// nil-поле означает "не менять".
type SettingsRequest struct {
	TotalAmount    *int64  `json:"total_amount"`
	TermMonths     *int    `json:"term_months"`
	InitialPayment *int64  `json:"initial_payment"`
	Email          *string `json:"email"`
	Title          *string `json:"title"`
}

// SettingsResult - итог обновления настроек
type SettingsResult struct {
	Success       bool         `json:"success"`
	DealID        int64        `json:"deal_id"`
	UpdatedFields []string     `json:"updated_fields"`
	Deal          *models.Deal `json:"deal"`
}

// UpdateSettings обновляет настройки рассрочки (срок, суммы, email,
// название). При первом назначении срока фиксируется дата начала
// графика; сброс срока в 0 её очищает.
func (s *Service) UpdateSettings(ctx context.Context, bitrixDealID int64, req SettingsRequest) (*SettingsResult, error) {
	local, err := s.ensureLocalDeal(ctx, bitrixDealID)
	if err != nil {
		return nil, err
	}

	var updated []string
	prevTerm := local.TermMonths

	if req.TotalAmount != nil {
		if *req.TotalAmount < 0 {
			return nil, ValidationError("Общая сумма не может быть отрицательной")
		}
		if *req.TotalAmount < local.PaidAmount {
			return nil, ValidationError(fmt.Sprintf(
				"Общая сумма (%d ₽) не может быть меньше уже оплаченной суммы (%d ₽)",
				*req.TotalAmount, local.PaidAmount))
		}
		local.TotalAmount = *req.TotalAmount
		updated = append(updated, fmt.Sprintf("total_amount=%d", *req.TotalAmount))
	}

	if req.TermMonths != nil {
		if *req.TermMonths < 0 {
			return nil, ValidationError("Срок не может быть отрицательным")
		}
		if *req.TermMonths > 120 {
			return nil, ValidationError("Срок не может превышать 120 месяцев")
		}
		local.TermMonths = *req.TermMonths
		updated = append(updated, fmt.Sprintf("term_months=%d", *req.TermMonths))

		if *req.TermMonths > 0 && (prevTerm <= 0 || local.ScheduleStartDate == nil) {
			if local.ScheduleStartDate == nil {
				now := time.Now().UTC()
				local.ScheduleStartDate = &now
			}
			if local.ScheduleDay == 0 {
				local.ScheduleDay = schedule.DefaultScheduleDay
			}
			updated = append(updated, "schedule_start_date=now")
		} else if *req.TermMonths == 0 {
			local.ScheduleStartDate = nil
			local.ScheduleDay = 0
		}
	}

	if req.InitialPayment != nil {
		if *req.InitialPayment < 0 {
			return nil, ValidationError("Первоначальный взнос не может быть отрицательным")
		}
		totalForCheck := local.TotalAmount
		if req.TotalAmount != nil {
			totalForCheck = *req.TotalAmount
		}
		if totalForCheck > 0 && *req.InitialPayment > totalForCheck {
			return nil, ValidationError(fmt.Sprintf(
				"Первоначальный взнос (%d ₽) не может быть больше общей суммы (%d ₽)",
				*req.InitialPayment, totalForCheck))
		}
		local.InitialPayment = *req.InitialPayment
		updated = append(updated, fmt.Sprintf("initial_payment=%d", *req.InitialPayment))
	}

	if req.Email != nil {
		if *req.Email != "" {
			if _, err := mail.ParseAddress(*req.Email); err != nil {
				return nil, ValidationError("Некорректный email адрес")
			}
		}
		local.Email = *req.Email
		updated = append(updated, "email="+*req.Email)
	}

	if req.Title != nil {
		local.Title = *req.Title
		updated = append(updated, "title="+*req.Title)
	}

	if len(updated) == 0 {
		return nil, ValidationError("Не указаны поля для обновления")
	}

	if err := s.repo.SaveDeal(local); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"deal_id": bitrixDealID,
		"fields":  updated,
	}).Info("Обновлены настройки рассрочки")

	// Зеркалим оплаченную сумму в CRM; локальная БД остаётся источником
	// истины, поэтому ошибка не фатальна
	if err := s.bitrix.UpdatePaidAmount(ctx, strconv.FormatInt(bitrixDealID, 10), local.PaidAmount); err != nil {
		s.log.WithError(err).WithField("deal_id", bitrixDealID).
			Warn("Не удалось отразить оплаченную сумму в Bitrix24")
	}

	return &SettingsResult{
		Success:       true,
		DealID:        bitrixDealID,
		UpdatedFields: updated,
		Deal:          local,
	}, nil
}

// ensureLocalDeal возвращает локальную запись сделки, создавая её из
// данных Bitrix при первом обращении
func (s *Service) ensureLocalDeal(ctx context.Context, bitrixDealID int64) (*models.Deal, error) {
	local, err := s.repo.GetDealByBitrixID(bitrixDealID)
	if err != nil {
		return nil, err
	}
	if local != nil {
		return local, nil
	}

	raw, err := s.bitrix.GetFullDeal(ctx, strconv.FormatInt(bitrixDealID, 10))
	if err != nil {
		s.log.WithError(err).WithField("deal_id", bitrixDealID).
			Warn("Не удалось получить сделку из Bitrix24 для создания локальной записи")
		return nil, ErrDealNotFound
	}

	deal := raw.ToDeal()
	local = &models.Deal{
		BitrixDealID:   bitrixDealID,
		Title:          deal.Title,
		ContractNumber: deal.ContractNumber,
		ClientName:     deal.ClientName,
		ClientPhone:    deal.ClientPhone,
		Email:          deal.Email,
		TotalAmount:    deal.TotalAmount,
		PaidAmount:     deal.PaidAmount,
		TermMonths:     deal.TermMonths,
		ScheduleDay:    schedule.DefaultScheduleDay,
	}
	if err := s.repo.SaveDeal(local); err != nil {
		return nil, err
	}
	return local, nil
}
