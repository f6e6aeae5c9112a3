package schedule

import (
	"fmt"
	"time"
)

// День платежа по умолчанию, если при настройке графика не задан другой
const DefaultScheduleDay = 10

var monthNames = [12]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Build строит график платежей по сделке. Сумма рассрочки делится на
// равные месячные платежи, остаток от деления уходит в последний месяц.
// Оплата месяцев берётся из распределений (allocations: индекс месяца ->
// зачтённая сумма); если распределения покрывают не весь paid_amount,
// непокрытая часть докидывается по месяцам последовательно.
//
// Для сделки без графика (term_months <= 0) или с рассрочкой, полностью
// закрытой первоначальным взносом, возвращается nil.
func Build(d Deal, allocations map[int]int64, now time.Time) []Entry {
	if !d.IsScheduled() {
		return nil
	}
	fig := d.Reconcile()
	if fig.InstallmentAmount <= 0 {
		return nil
	}

	term := d.TermMonths
	monthly := fig.InstallmentAmount / int64(term)
	remainder := fig.InstallmentAmount % int64(term)

	startDate := firstPaymentDate(d, now)
	startDay := startDate.Day()

	// Сколько уже зачтено распределениями (взнос лежит под индексом -1
	// и в месячные суммы не попадает)
	var allocSum int64
	for idx, amt := range allocations {
		if idx >= 0 && amt > 0 {
			allocSum += amt
		}
	}
	extraPaid := fig.PaidInstallment - allocSum
	if extraPaid < 0 {
		extraPaid = 0
	}
	// Fallback: последовательное распределение, когда распределений нет
	remainingSeq := fig.PaidInstallment

	entries := make([]Entry, 0, term)
	for i := 0; i < term; i++ {
		date := addMonthsClamped(startDate, startDay, i)

		amount := monthly
		if i == term-1 {
			amount += remainder
		}

		var paid int64
		if len(allocations) > 0 {
			base := allocations[i]
			if base < 0 {
				base = 0
			}
			paid = base
			if extraPaid > 0 && paid < amount {
				extra := amount - paid
				if extra > extraPaid {
					extra = extraPaid
				}
				paid += extra
				extraPaid -= extra
			}
		} else {
			paid = amount
			if paid > remainingSeq {
				paid = remainingSeq
			}
			remainingSeq -= paid
		}

		remaining := amount - paid
		if remaining < 0 {
			remaining = 0
		}
		status := StatusPending
		switch {
		case remaining <= 0:
			status = StatusPaid
		case paid > 0:
			status = StatusPartial
		}

		p, r := paid, remaining
		entries = append(entries, Entry{
			Index:            i,
			Month:            fmt.Sprintf("%s %d", monthNames[date.Month()-1], date.Year()),
			Date:             date.Format("02.01.2006"),
			Amount:           amount,
			Status:           status,
			PaidInMonth:      &p,
			RemainingInMonth: &r,
		})
	}
	return entries
}

// firstPaymentDate выбирает дату первого платежа: ближайший schedule_day
// от базовой даты (зафиксированной при настройке графика, иначе now).
func firstPaymentDate(d Deal, now time.Time) time.Time {
	day := d.ScheduleDay
	if day < 1 {
		day = DefaultScheduleDay
	}
	if day > 31 {
		day = 31
	}

	base := now
	if d.ScheduleStart != nil {
		base = *d.ScheduleStart
	}

	year, month := base.Year(), int(base.Month())
	if base.Day() >= day {
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	last := daysInMonth(year, time.Month(month))
	if day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// addMonthsClamped сдвигает дату на i месяцев вперёд, поджимая день к
// длине месяца (31-е в феврале превращается в 28/29-е)
func addMonthsClamped(start time.Time, day, i int) time.Time {
	year := start.Year()
	month := int(start.Month()) + i
	for month > 12 {
		month -= 12
		year++
	}
	last := daysInMonth(year, time.Month(month))
	if day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
