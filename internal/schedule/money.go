package schedule

import (
	"strconv"
	"strings"
)

// ParseMoney приводит денежное значение Bitrix к целым рублям.
// Принимает int/float/"3050000.00"/"3 050 000,00"/nil/"", то есть всё, что
// реально приходит из crm.deal.* (поля то строки, то числа, то пустые).
// Никогда не возвращает отрицательное значение и никогда не паникует.
func ParseMoney(v any) int64 {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return int64(f)
}

// ParseInt разбирает целое значение (срок в месяцах, индексы).
// Допускает строки вида "6", "6.0", "6,0".
func ParseInt(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case bool:
		// Bitrix отдаёт false вместо пустого значения
		return 0, false
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		// убираем пробелы-разделители тысяч (включая неразрывный) и
		// нормализуем десятичный разделитель
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, "\u00a0", "")
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
