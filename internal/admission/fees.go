// Package admission implements the five step admission wizard and its fee
// calculator.
package admission

import (
	"fmt"
	"strings"
)

// Money is an amount in the smallest currency unit.
type Money int64

// String renders the amount with two decimals.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParentCategory drives the staff discount.
type ParentCategory string

const (
	CategoryNormal  ParentCategory = "normal"
	CategoryTeacher ParentCategory = "teacher"
	CategoryStaff   ParentCategory = "staff"
)

// ParseCategory accepts any casing and maps unknown values to normal.
func ParseCategory(raw string) ParentCategory {
	switch ParentCategory(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryTeacher:
		return CategoryTeacher
	case CategoryStaff:
		return CategoryStaff
	default:
		return CategoryNormal
	}
}

// DiscountPercent is the base fee discount granted to the category.
func (c ParentCategory) DiscountPercent() int64 {
	switch c {
	case CategoryTeacher:
		return 15
	case CategoryStaff:
		return 10
	default:
		return 0
	}
}

// FeeBreakdown is the fee summary shown before submission.
type FeeBreakdown struct {
	Category        ParentCategory `json:"parent_category"`
	DiscountPercent int64          `json:"discount_percent"`
	BaseFee         Money          `json:"base_fee"`
	Discount        Money          `json:"discount"`
	Transport       Money          `json:"transport"`
	Total           Money          `json:"total"`
}

// CalculateFees derives the payable total. The discount is a whole
// percentage of the base fee rounded half-up to the minor unit.
func CalculateFees(base Money, category ParentCategory, transport Money) FeeBreakdown {
	pct := category.DiscountPercent()
	discount := percentOf(base, pct)
	return FeeBreakdown{
		Category:        category,
		DiscountPercent: pct,
		BaseFee:         base,
		Discount:        discount,
		Transport:       transport,
		Total:           base - discount + transport,
	}
}

func percentOf(amount Money, pct int64) Money {
	p := int64(amount) * pct
	if p < 0 {
		return -Money((-p + 50) / 100)
	}
	return Money((p + 50) / 100)
}
