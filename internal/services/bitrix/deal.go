package bitrix

import (
	"github.com/som1one/bitr/internal/schedule"
)

// RawDeal - сделка в том виде, в каком её отдаёт REST API: поля то
// строки, то числа, enum-поля в виде ID. За пределы этого пакета сырая
// сделка не выходит, наружу отдаётся schedule.Deal.
type RawDeal map[string]any

// ID возвращает ID сделки
func (d RawDeal) ID() string {
	s, _ := d["ID"].(string)
	return s
}

// String возвращает строковое поле сделки
func (d RawDeal) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// ToDeal нормализует сырую сделку в расчётную модель. Единственное место
// парсинга полей Bitrix: суммы через ParseMoney, срок через ParseInt.
// Поля, которых не хватает для графика, перечисляются в MissingFields.
func (d RawDeal) ToDeal() schedule.Deal {
	total := schedule.ParseMoney(d["OPPORTUNITY"])
	paid := schedule.ParseMoney(d[FieldPaidAmount])
	term := schedule.ParseInt(d[FieldTermMonths])
	if term < 0 {
		term = 0
	}
	if total > 0 && paid > total {
		paid = total
	}

	var missing []string
	if total <= 0 {
		missing = append(missing, "total_amount")
	}
	if term <= 0 {
		missing = append(missing, "term_months")
	}

	email := d.String("CONTACT_EMAIL")
	if email == "" {
		email = d.String("EMAIL")
	}

	return schedule.Deal{
		ContractNumber:   d.ID(),
		Title:            d.String("TITLE"),
		Email:            email,
		ClientName:       d.String("CONTACT_NAME"),
		ClientPhone:      d.String("CONTACT_PHONE"),
		TotalAmount:      total,
		PaidAmount:       paid,
		TermMonths:       term,
		ScheduleDay:      schedule.DefaultScheduleDay,
		ScheduleStart:    ParseISOTime(d["BEGINDATE"]),
		MissingFields:    missing,
		ProjectType:      d.String("project_type"),
		ProjectStartDate: d.String("project_start_date"),
		ObjectLocation:   d.String("object_location"),
	}
}
