package export

import (
	"bytes"
	"fmt"

	"github.com/som1one/bitr/internal/services/installment"
	"github.com/xuri/excelize/v2"
)

// DealsExcel формирует XLSX со списком рассрочек и сводной статистикой
func DealsExcel(result *installment.ExportResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Рассрочки"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"ID сделки", "Название", "Клиент", "Email",
		"Общая сумма", "Оплачено", "Остаток",
		"Срок (мес.)", "Оплачено месяцев", "Статус", "В БД",
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for row, d := range result.Deals {
		values := []any{
			d.DealID, d.Title, d.ClientName, d.Email,
			d.TotalAmount, d.PaidAmount, d.RemainingAmount,
			d.TermMonths, d.PaidMonths, dealStatusLabel(d.Status), boolLabel(d.InDB),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	// Сводка на отдельном листе
	statsSheet := "Сводка"
	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, err
	}
	stats := [][2]any{
		{"Всего рассрочек", result.Stats.TotalDeals},
		{"С локальными данными", result.Stats.InDB},
		{"Оплачено", result.Stats.Paid},
		{"Активных", result.Stats.Active},
		{"Ожидают оплаты", result.Stats.Pending},
		{"Общая сумма, ₽", result.Stats.TotalAmount},
		{"Оплачено, ₽", result.Stats.PaidAmount},
		{"Остаток, ₽", result.Stats.RemainingAmount},
	}
	for i, row := range stats {
		f.SetCellValue(statsSheet, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(statsSheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dealStatusLabel переводит статус рассрочки для выгрузки
func dealStatusLabel(status string) string {
	switch status {
	case installment.DealStatusPaid:
		return "Оплачена"
	case installment.DealStatusActive:
		return "Активна"
	default:
		return "Ожидает оплаты"
	}
}

func boolLabel(v bool) string {
	if v {
		return "Да"
	}
	return "Нет"
}
