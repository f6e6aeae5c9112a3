package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/som1one/bitr/internal/schedule"
	"github.com/som1one/bitr/internal/services/installment"
)

// PDFGenerator - генератор PDF графика платежей
type PDFGenerator struct {
	fontsDir string
}

// NewPDFGenerator создаёт генератор. fontsDir - папка со шрифтами Arial
// с поддержкой кириллицы.
func NewPDFGenerator(fontsDir string) *PDFGenerator {
	if fontsDir == "" {
		fontsDir = "./fonts"
	}
	return &PDFGenerator{fontsDir: fontsDir}
}

// russianMonth возвращает название месяца в родительном падеже
func russianMonth(m time.Month) string {
	months := map[time.Month]string{
		time.January:   "января",
		time.February:  "февраля",
		time.March:     "марта",
		time.April:     "апреля",
		time.May:       "мая",
		time.June:      "июня",
		time.July:      "июля",
		time.August:    "августа",
		time.September: "сентября",
		time.October:   "октября",
		time.November:  "ноября",
		time.December:  "декабря",
	}
	return months[m]
}

// formatDateRussian возвращает дату в формате «1 февраля 2026 г.»
func formatDateRussian(t time.Time) string {
	return fmt.Sprintf("%d %s %d г.", t.Day(), russianMonth(t.Month()), t.Year())
}

// SchedulePDF генерирует PDF с графиком платежей по рассрочке
func (g *PDFGenerator) SchedulePDF(dealID int64, view *installment.View) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Шрифты с поддержкой кириллицы
	pdf.AddUTF8Font("Arial", "", g.fontsDir+"/Arial.ttf")
	pdf.AddUTF8Font("Arial", "B", g.fontsDir+"/Arial Bold.ttf")
	pdf.AddUTF8Font("Arial", "I", g.fontsDir+"/Arial Italic.ttf")

	g.drawHeader(pdf, dealID, view)
	g.drawDealInfo(pdf, view)
	g.drawScheduleTable(pdf, view.Payments)
	g.drawTotals(pdf, view)
	g.drawFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *PDFGenerator) drawHeader(pdf *fpdf.Fpdf, dealID int64, view *installment.View) {
	pdf.SetFont("Arial", "B", 14)
	contract := view.Deal.ContractNumber
	if contract == "" {
		contract = fmt.Sprintf("%d", dealID)
	}
	title := fmt.Sprintf("График платежей по договору № %s", contract)
	pdf.CellFormat(190, 10, title, "", 1, "L", false, 0, "")

	y := pdf.GetY()
	pdf.SetLineWidth(0.3)
	pdf.Line(10, y, 200, y)
	pdf.SetLineWidth(0.2)
	pdf.Ln(4)
}

func (g *PDFGenerator) drawDealInfo(pdf *fpdf.Fpdf, view *installment.View) {
	labelW := 45.0
	dataW := 145.0

	row := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(labelW, 5, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 9)
		pdf.MultiCell(dataW, 5, value, "", "L", false)
	}

	row("Клиент:", view.Deal.ClientName)
	row("Телефон:", view.Deal.ClientPhone)
	row("Email:", view.Deal.Email)
	row("Объект:", view.Deal.Title)
	if view.Deal.ObjectLocation != "" {
		row("Расположение:", view.Deal.ObjectLocation)
	}
	row("Общая сумма:", formatMoney(view.Deal.TotalAmount)+" ₽")
	if view.Deal.InitialPayment > 0 {
		row("Первоначальный взнос:", formatMoney(view.Deal.InitialPayment)+" ₽")
	}
	row("Сумма рассрочки:", formatMoney(view.Deal.InstallmentAmount)+" ₽")
	row("Срок:", fmt.Sprintf("%d мес.", view.Deal.TermMonths))
	pdf.Ln(3)
}

func (g *PDFGenerator) drawScheduleTable(pdf *fpdf.Fpdf, entries []schedule.Entry) {
	colNum := 12.0
	colMonth := 45.0
	colDate := 30.0
	colAmount := 33.0
	colPaid := 33.0
	colStatus := 37.0

	y := pdf.GetY()
	pdf.SetLineWidth(0.6)
	pdf.Line(10, y, 200, y)
	pdf.SetLineWidth(0.2)

	pdf.SetFont("Arial", "B", 8)
	pdf.CellFormat(colNum, 7, "№", "1", 0, "C", false, 0, "")
	pdf.CellFormat(colMonth, 7, "Месяц", "1", 0, "C", false, 0, "")
	pdf.CellFormat(colDate, 7, "Дата платежа", "1", 0, "C", false, 0, "")
	pdf.CellFormat(colAmount, 7, "Сумма", "1", 0, "C", false, 0, "")
	pdf.CellFormat(colPaid, 7, "Оплачено", "1", 0, "C", false, 0, "")
	pdf.CellFormat(colStatus, 7, "Статус", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 8)
	for _, e := range entries {
		paid := int64(0)
		if e.PaidInMonth != nil {
			paid = *e.PaidInMonth
		}
		pdf.CellFormat(colNum, 6, fmt.Sprintf("%d", e.Index+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colMonth, 6, e.Month, "1", 0, "L", false, 0, "")
		pdf.CellFormat(colDate, 6, e.Date, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colAmount, 6, formatMoney(e.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colPaid, 6, formatMoney(paid), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colStatus, 6, statusLabel(e.Status), "1", 1, "C", false, 0, "")
	}

	y = pdf.GetY()
	pdf.SetLineWidth(0.6)
	pdf.Line(10, y, 200, y)
	pdf.SetLineWidth(0.2)
	pdf.Ln(3)
}

func (g *PDFGenerator) drawTotals(pdf *fpdf.Fpdf, view *installment.View) {
	labelW := 153.0
	valueW := 37.0

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(labelW, 6, "Оплачено:", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 6, formatMoney(view.Deal.PaidAmount)+" ₽", "", 1, "R", false, 0, "")

	remaining := view.Deal.TotalAmount - view.Deal.PaidAmount
	if remaining < 0 {
		remaining = 0
	}
	pdf.CellFormat(labelW, 6, "Остаток:", "", 0, "R", false, 0, "")
	pdf.CellFormat(valueW, 6, formatMoney(remaining)+" ₽", "", 1, "R", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 9)
	pdf.MultiCell(190, 5, fmt.Sprintf("Всего по договору: %s", AmountToWords(view.Deal.TotalAmount)), "", "L", false)
	pdf.Ln(3)
}

func (g *PDFGenerator) drawFooter(pdf *fpdf.Fpdf) {
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(190, 5, fmt.Sprintf("Сформировано %s", formatDateRussian(time.Now())), "", 1, "L", false, 0, "")
}

// statusLabel переводит статус месяца для документа
func statusLabel(status string) string {
	switch status {
	case schedule.StatusPaid:
		return "Оплачен"
	case schedule.StatusPartial:
		return "Частично"
	default:
		return "Ожидает"
	}
}

// formatMoney форматирует сумму в рублях с пробелами между тысячами
func formatMoney(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	str := fmt.Sprintf("%d", amount)
	n := len(str)
	if n <= 3 {
		return sign + str
	}
	var result []byte
	for i, c := range str {
		if i > 0 && (n-i)%3 == 0 {
			result = append(result, ' ')
		}
		result = append(result, byte(c))
	}
	return sign + string(result)
}
