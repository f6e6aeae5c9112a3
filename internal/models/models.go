package models

import (
	"time"
)

// Deal - локальное зеркало сделки рассрочки из Bitrix24.
// Суммы и срок здесь первичны: Bitrix хранит карточку клиента и проектные
// поля, а paid_amount/term_months/initial_payment ведутся в этой таблице
// и при чтении перекрывают значения из CRM.
type Deal struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	BitrixDealID int64  `gorm:"uniqueIndex;not null" json:"bitrix_deal_id"`
	Title        string `gorm:"size:255" json:"title"`

	// Карточка клиента (кэш из Bitrix для поиска без похода в CRM)
	ContractNumber string `gorm:"size:50;index" json:"contract_number"` // Номер договора
	ClientName     string `gorm:"size:255" json:"client_name"`          // ФИО клиента
	ClientPhone    string `gorm:"size:50;index" json:"client_phone"`    // Телефон
	Email          string `gorm:"size:255;index" json:"email"`          // Email (логин личного кабинета)

	// Деньги в целых рублях
	TotalAmount    int64 `gorm:"not null;default:0" json:"total_amount"`    // сумма сделки
	PaidAmount     int64 `gorm:"not null;default:0" json:"paid_amount"`     // оплачено всего
	InitialPayment int64 `gorm:"not null;default:0" json:"initial_payment"` // первоначальный взнос

	// Параметры графика рассрочки
	TermMonths        int        `gorm:"not null;default:0" json:"term_months"` // 0 = график не настроен
	ScheduleDay       int        `gorm:"not null;default:10" json:"schedule_day"`
	ScheduleStartDate *time.Time `json:"schedule_start_date,omitempty"` // фиксируется при настройке срока

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Статусы платежа
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusCanceled = "canceled"
)

// Способы оплаты
const (
	PaymentMethodOnline = "online"
	PaymentMethodCash   = "cash"
)

// PaymentLog - журнал платежей по сделкам.
// PaymentID для онлайн-платежей приходит из ЮKassa, для наличных
// формируется как "cash_<ключ идемпотентности>".
type PaymentLog struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PaymentID    string `gorm:"size:100;uniqueIndex;not null" json:"payment_id"`
	BitrixDealID int64  `gorm:"index;not null" json:"bitrix_deal_id"`
	Amount       int64  `gorm:"not null" json:"amount"`
	Status       string `gorm:"size:20;not null;default:'pending'" json:"status"` // "pending", "paid", "canceled"
	Method       string `gorm:"size:20;not null" json:"method"`                   // "online" или "cash"
	Description  string `gorm:"size:255" json:"description"`

	// Ключ идемпотентности наличного платежа (повтор запроса с тем же
	// ключом не создаёт второй платёж)
	IdempotencyKey string `gorm:"size:100;index" json:"idempotency_key,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Allocations []CashAllocation `gorm:"foreignKey:PaymentLogID" json:"allocations,omitempty"`
}

// CashAllocation - зачёт суммы платежа в конкретный месяц графика.
// MonthIndex = -1 означает зачёт в первоначальный взнос.
type CashAllocation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PaymentLogID uint      `gorm:"not null;index" json:"payment_log_id"`
	BitrixDealID int64     `gorm:"not null;index" json:"bitrix_deal_id"`
	MonthIndex   int       `gorm:"not null" json:"month_index"`
	Amount       int64     `gorm:"not null" json:"amount"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
