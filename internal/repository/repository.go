package repository

import (
	"fmt"
	"time"

	"github.com/som1one/bitr/internal/config"
	"github.com/som1one/bitr/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository - интерфейс для работы с БД
type Repository struct {
	db *gorm.DB
}

// NewPostgresDB создаёт подключение к PostgreSQL
func NewPostgresDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Автомиграция моделей
	if err := db.AutoMigrate(
		&models.Deal{},
		&models.PaymentLog{},
		&models.CashAllocation{},
	); err != nil {
		return nil, err
	}

	return db, nil
}

// NewRepository создаёт новый репозиторий
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction выполняет fn в транзакции. Репозиторий внутри fn работает
// через транзакционное соединение, откат при любой ошибке.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// === Deals ===

// GetDealByBitrixID возвращает локальную сделку по ID сделки Bitrix
func (r *Repository) GetDealByBitrixID(bitrixDealID int64) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.Where("bitrix_deal_id = ?", bitrixDealID).First(&deal).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &deal, nil
}

// GetDealByBitrixIDForUpdate возвращает сделку с блокировкой строки
// (SELECT ... FOR UPDATE). Вызывать только внутри Transaction: два
// конкурентных вебхука по одной сделке обязаны обрабатываться по очереди.
func (r *Repository) GetDealByBitrixIDForUpdate(bitrixDealID int64) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("bitrix_deal_id = ?", bitrixDealID).First(&deal).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &deal, nil
}

// GetAllDeals возвращает все локальные сделки
func (r *Repository) GetAllDeals() ([]models.Deal, error) {
	var deals []models.Deal
	if err := r.db.Order("bitrix_deal_id").Find(&deals).Error; err != nil {
		return nil, err
	}
	return deals, nil
}

// UpsertDeal создаёт или обновляет локальную сделку по bitrix_deal_id.
// Обновляются только поля карточки клиента: деньги и срок ведутся локально
// и синхронизацией из CRM не затираются.
func (r *Repository) UpsertDeal(deal *models.Deal) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bitrix_deal_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "contract_number", "client_name", "client_phone", "email"}),
	}).Create(deal).Error
}

// SaveDeal сохраняет сделку целиком
func (r *Repository) SaveDeal(deal *models.Deal) error {
	return r.db.Save(deal).Error
}

// === Payment logs ===

// CreatePaymentLog создаёт запись о платеже
func (r *Repository) CreatePaymentLog(log *models.PaymentLog) error {
	return r.db.Create(log).Error
}

// SavePaymentLog сохраняет запись о платеже
func (r *Repository) SavePaymentLog(log *models.PaymentLog) error {
	return r.db.Save(log).Error
}

// GetPaymentLogByPaymentID возвращает платёж по внешнему идентификатору
func (r *Repository) GetPaymentLogByPaymentID(paymentID string) (*models.PaymentLog, error) {
	var log models.PaymentLog
	if err := r.db.Where("payment_id = ?", paymentID).First(&log).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// GetPaymentLogByIdempotencyKey возвращает наличный платёж по ключу
// идемпотентности
func (r *Repository) GetPaymentLogByIdempotencyKey(key string) (*models.PaymentLog, error) {
	var log models.PaymentLog
	if err := r.db.Where("idempotency_key = ?", key).First(&log).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// FindRecentCashPayment ищет наличный платёж по той же сделке на ту же
// сумму не старше окна window. Защита от двойного клика админа, когда
// ключ идемпотентности не передан.
func (r *Repository) FindRecentCashPayment(bitrixDealID, amount int64, window time.Duration) (*models.PaymentLog, error) {
	var log models.PaymentLog
	since := time.Now().Add(-window)
	if err := r.db.Where(
		"bitrix_deal_id = ? AND amount = ? AND method = ? AND created_at > ?",
		bitrixDealID, amount, models.PaymentMethodCash, since,
	).Order("created_at DESC").First(&log).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// GetPaymentLogs возвращает последние платежи
func (r *Repository) GetPaymentLogs(limit int) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	if err := r.db.Preload("Allocations").
		Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetPaymentLogsByDeal возвращает платежи по сделке
func (r *Repository) GetPaymentLogsByDeal(bitrixDealID int64) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	if err := r.db.Preload("Allocations").
		Where("bitrix_deal_id = ?", bitrixDealID).
		Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// === Cash allocations ===

// CreateCashAllocation создаёт зачёт суммы в месяц графика
func (r *Repository) CreateCashAllocation(alloc *models.CashAllocation) error {
	return r.db.Create(alloc).Error
}

// GetAllocationSumsByDeal возвращает суммы зачётов по месяцам графика:
// индекс месяца -> зачтено. Взнос (month_index = -1) попадает в карту
// как есть, фильтрует его вызывающая сторона.
func (r *Repository) GetAllocationSumsByDeal(bitrixDealID int64) (map[int]int64, error) {
	type row struct {
		MonthIndex int
		Total      int64
	}
	var rows []row
	if err := r.db.Model(&models.CashAllocation{}).
		Select("month_index, SUM(amount) AS total").
		Where("bitrix_deal_id = ?", bitrixDealID).
		Group("month_index").Scan(&rows).Error; err != nil {
		return nil, err
	}
	sums := make(map[int]int64, len(rows))
	for _, r := range rows {
		sums[r.MonthIndex] = r.Total
	}
	return sums, nil
}

// HasAllocationsForPayment проверяет, созданы ли зачёты для платежа
func (r *Repository) HasAllocationsForPayment(paymentLogID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.CashAllocation{}).
		Where("payment_log_id = ?", paymentLogID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
