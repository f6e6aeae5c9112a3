package schedule

import "encoding/json"

// Статусы месячного платежа
const (
	StatusPending = "pending"
	StatusPartial = "partial"
	StatusPaid    = "paid"
)

// Entry - запись графика платежей (один месяц).
// PaidInMonth/RemainingInMonth опциональны: бэкенд-источник может их не
// прислать, тогда статус восстанавливается из Status.
type Entry struct {
	Index            int    `json:"index"`
	Month            string `json:"month"`
	Date             string `json:"date"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	PaidInMonth      *int64 `json:"paid_in_month,omitempty"`
	RemainingInMonth *int64 `json:"remaining_in_month,omitempty"`
}

// entryDTO - сырой вид записи на проводе. Исторически поля приходят под
// разными именами (index/month_index, paid_in_month/paid_amount_for_month),
// а суммы то строками, то числами. Алиасы разбираются ровно один раз
// здесь, дальше весь код видит только Entry.
type entryDTO struct {
	Index              any    `json:"index"`
	MonthIndex         any    `json:"month_index"`
	Month              string `json:"month"`
	Date               string `json:"date"`
	Amount             any    `json:"amount"`
	Status             string `json:"status"`
	PaidInMonth        any    `json:"paid_in_month"`
	PaidAmountForMonth any    `json:"paid_amount_for_month"`
	RemainingInMonth   any    `json:"remaining_in_month"`
}

// UnmarshalJSON терпимо разбирает запись графика из внешнего ответа.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var dto entryDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}

	idx := dto.Index
	if idx == nil {
		idx = dto.MonthIndex
	}
	e.Index = ParseInt(idx)
	e.Month = dto.Month
	e.Date = dto.Date
	e.Amount = ParseMoney(dto.Amount)

	switch dto.Status {
	case StatusPaid, StatusPartial, StatusPending:
		e.Status = dto.Status
	default:
		e.Status = StatusPending
	}

	// Не подставляем 0 вместо отсутствующего значения: иначе агрегаты
	// посчитают месяц полностью неоплаченным при живом поле status.
	paid := dto.PaidInMonth
	if paid == nil {
		paid = dto.PaidAmountForMonth
	}
	if paid != nil {
		v := ParseMoney(paid)
		e.PaidInMonth = &v
	}
	if dto.RemainingInMonth != nil {
		v := ParseMoney(dto.RemainingInMonth)
		e.RemainingInMonth = &v
	}
	return nil
}

// MonthFigures - сверенные суммы по одному месяцу графика.
type MonthFigures struct {
	PaidInMonth      int64
	RemainingInMonth int64
	// Inconsistent выставляется, когда paid_in_month и remaining_in_month
	// присланы оба и не сходятся с amount. Значения при этом берутся от
	// remaining_in_month как от более свежего сигнала.
	Inconsistent bool
}

// ReconcileMonth выводит оплачено/осталось по месяцу из тех сигналов,
// которые реально пришли. Порядок приоритета фиксирован:
// remaining_in_month -> paid_in_month -> status.
func ReconcileMonth(e Entry) MonthFigures {
	// Записи с amount <= 0 должны быть отфильтрованы раньше; если такая
	// всё же дошла, считаем месяц закрытым, чтобы не рисовать минусы.
	if e.Amount <= 0 {
		return MonthFigures{}
	}

	if e.RemainingInMonth != nil {
		remaining := *e.RemainingInMonth
		if remaining < 0 {
			remaining = 0
		}
		if remaining > e.Amount {
			remaining = e.Amount
		}
		fig := MonthFigures{
			PaidInMonth:      e.Amount - remaining,
			RemainingInMonth: remaining,
		}
		if e.PaidInMonth != nil && *e.PaidInMonth+*e.RemainingInMonth != e.Amount {
			fig.Inconsistent = true
		}
		return fig
	}

	if e.PaidInMonth != nil {
		paid := *e.PaidInMonth
		if paid < 0 {
			paid = 0
		}
		if paid > e.Amount {
			paid = e.Amount
		}
		return MonthFigures{PaidInMonth: paid, RemainingInMonth: e.Amount - paid}
	}

	if e.Status == StatusPaid {
		return MonthFigures{PaidInMonth: e.Amount}
	}
	return MonthFigures{RemainingInMonth: e.Amount}
}

// Totals - агрегаты по графику в целом.
type Totals struct {
	TotalSum int64
	PaidSum  int64
	// ProgressPercent клампится в [0, 100] для отображения; реальное
	// значение (в т.ч. переплата > 100%) остаётся в RawPercent.
	ProgressPercent float64
	RawPercent      float64
	Overpaid        bool
	PaidMonths      int
	// Число месяцев, где присланные paid/remaining не сошлись с amount
	Inconsistencies int
}

// Aggregate сводит помесячные цифры в итог по сделке. Чистая функция:
// одинаковый вход всегда даёт одинаковый выход.
func Aggregate(entries []Entry) Totals {
	var t Totals
	for _, e := range entries {
		if e.Amount <= 0 {
			continue
		}
		fig := ReconcileMonth(e)
		t.TotalSum += e.Amount
		t.PaidSum += fig.PaidInMonth
		if fig.RemainingInMonth <= 0 {
			t.PaidMonths++
		}
		if fig.Inconsistent {
			t.Inconsistencies++
		}
	}
	if t.TotalSum > 0 {
		t.RawPercent = float64(t.PaidSum) / float64(t.TotalSum) * 100
	}
	t.ProgressPercent = t.RawPercent
	if t.ProgressPercent > 100 {
		t.ProgressPercent = 100
		t.Overpaid = true
	}
	if t.ProgressPercent < 0 {
		t.ProgressPercent = 0
	}
	return t
}
