package util

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DateLayout 账本和交易日期的格式
const DateLayout = "2006-01-02"

// maxAmount decimal(12,2) 放不下的最小值
var maxAmount = decimal.New(1, 10)

// NormalizeDate 接受 YYYY-MM-DD 或 ISO-8601 时间，统一返回 YYYY-MM-DD
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("date is empty")
	}
	layouts := []string{
		DateLayout,            // 2025-12-03
		time.RFC3339,          // 2025-12-03T00:00:00+08:00
		time.RFC3339Nano,      // 2025-12-03T00:00:00.000Z
		"2006-01-02T15:04:05", // 2025-12-03T00:00:00
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date format %q, expected YYYY-MM-DD", s)
}

// ParseDate 把 YYYY-MM-DD 解析为 UTC 零点
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %w", err)
	}
	return t, nil
}

// ValidateAmount 校验收支金额：不能为负，且不超出 decimal(12,2)
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative, got %s", amount.String())
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("amount too large, got %s", amount.String())
	}
	return nil
}

// ValidateBalance 校验期初余额，允许为负
func ValidateBalance(amount decimal.Decimal) error {
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("balance too large, got %s", amount.String())
	}
	return nil
}

// ValidateText 校验已去除首尾空格的必填文本，按字符数限制长度
func ValidateText(s string, max int) error {
	if s == "" {
		return fmt.Errorf("is required")
	}
	if utf8.RuneCountInString(s) > max {
		return fmt.Errorf("must be at most %d characters", max)
	}
	return nil
}
