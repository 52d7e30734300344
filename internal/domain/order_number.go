package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// OrderNumberPrefix — префикс человекочитаемого номера заказа.
	OrderNumberPrefix = "ORD-"
	// FirstOrderNumber выдаётся первому заказу магазина.
	FirstOrderNumber = "ORD-001"
)

// FormatOrderNumber форматирует порядковый номер: минимум три цифры, дальше растёт как есть.
func FormatOrderNumber(seq int) string {
	return fmt.Sprintf("%s%03d", OrderNumberPrefix, seq)
}

// ParseOrderNumber извлекает числовой суффикс после последнего '-'.
func ParseOrderNumber(number string) (int, error) {
	idx := strings.LastIndexByte(number, '-')
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("%w: %q", ErrOrderNumberMalformed, number)
	}
	suffix := number[idx+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrOrderNumberMalformed, number)
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrOrderNumberMalformed, number)
	}
	return seq, nil
}

// NextOrderNumber вычисляет номер, следующий за last. Пустой last означает первый заказ.
func NextOrderNumber(last string) (string, error) {
	if last == "" {
		return FirstOrderNumber, nil
	}
	seq, err := ParseOrderNumber(last)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(seq + 1), nil
}
