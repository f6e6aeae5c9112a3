package schedule

import "time"

// Deal - нормализованная сделка рассрочки. Собирается один раз на границе
// (из Bitrix24 + локальной БД), дальше все представления работают только
// с ней и не перечитывают сырые поля.
type Deal struct {
	ContractNumber string `json:"contract_number"`
	Title          string `json:"title"`
	Email          string `json:"email,omitempty"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`

	TotalAmount    int64 `json:"total_amount"`
	PaidAmount     int64 `json:"paid_amount"`
	InitialPayment int64 `json:"initial_payment"`
	TermMonths     int   `json:"term_months"`

	// Параметры графика (фиксируются в локальной БД при настройке)
	ScheduleDay   int        `json:"-"`
	ScheduleStart *time.Time `json:"-"`

	// Каких полей не хватает для построения графика
	MissingFields []string `json:"missing_fields"`

	// Проектные поля из Bitrix24
	ProjectType      string `json:"project_type,omitempty"`
	ProjectStartDate string `json:"project_start_date,omitempty"`
	ObjectLocation   string `json:"object_location,omitempty"`
}

// IsScheduled сообщает, настроен ли у сделки график рассрочки.
// Единственное место, где проверяется term_months > 0: все представления
// обязаны ходить сюда, а не сравнивать срок с нулём самостоятельно.
func (d Deal) IsScheduled() bool {
	return d.TermMonths > 0
}

// Figures - производные суммы уровня сделки.
type Figures struct {
	// Сумма рассрочки: total - initial, только при настроенном графике
	InstallmentAmount int64
	// Оплачено по графику: paid_amount с ограничением суммой рассрочки.
	// Первоначальный взнос сюда не входит, это параметр графика,
	// а не факт оплаты.
	PaidInstallment      int64
	RemainingInstallment int64
	// Остаток по сделке целиком (total - paid)
	RemainingTotal int64
}

// Reconcile считает производные суммы сделки. При ненастроенном графике
// все графиковые величины нулевые, даже если total_amount > 0: сделка
// может существовать до настройки рассрочки, и рисовать для неё фантомный
// график нельзя.
func (d Deal) Reconcile() Figures {
	var f Figures
	f.RemainingTotal = d.TotalAmount - d.PaidAmount
	if f.RemainingTotal < 0 {
		f.RemainingTotal = 0
	}
	if !d.IsScheduled() {
		return f
	}

	f.InstallmentAmount = d.TotalAmount - d.InitialPayment
	if f.InstallmentAmount < 0 {
		f.InstallmentAmount = 0
	}
	paid := d.PaidAmount
	if paid < 0 {
		paid = 0
	}
	if paid > f.InstallmentAmount {
		paid = f.InstallmentAmount
	}
	f.PaidInstallment = paid
	f.RemainingInstallment = f.InstallmentAmount - f.PaidInstallment
	return f
}
