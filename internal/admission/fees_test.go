package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFees(t *testing.T) {
	cases := []struct {
		name      string
		base      Money
		category  ParentCategory
		transport Money
		discount  Money
		total     Money
	}{
		{name: "teacher", base: 25000, category: CategoryTeacher, transport: 1200, discount: 3750, total: 22450},
		{name: "staff", base: 25000, category: CategoryStaff, transport: 0, discount: 2500, total: 22500},
		{name: "normal", base: 25000, category: CategoryNormal, transport: 1500, discount: 0, total: 26500},
		{name: "rounds half up", base: 10, category: CategoryTeacher, transport: 0, discount: 2, total: 8},
		{name: "rounds down below half", base: 3, category: CategoryStaff, transport: 0, discount: 0, total: 3},
		{name: "zero base", base: 0, category: CategoryTeacher, transport: 700, discount: 0, total: 700},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateFees(tc.base, tc.category, tc.transport)
			assert.Equal(t, tc.base, got.BaseFee)
			assert.Equal(t, tc.discount, got.Discount)
			assert.Equal(t, tc.transport, got.Transport)
			assert.Equal(t, tc.total, got.Total)
			assert.Equal(t, got, CalculateFees(tc.base, tc.category, tc.transport))
		})
	}
}

func TestParseCategoryDefaultsToNormal(t *testing.T) {
	assert.Equal(t, CategoryTeacher, ParseCategory(" Teacher "))
	assert.Equal(t, CategoryStaff, ParseCategory("STAFF"))
	assert.Equal(t, CategoryNormal, ParseCategory("alumni"))
	assert.Equal(t, CategoryNormal, ParseCategory(""))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "224.50", Money(22450).String())
	assert.Equal(t, "0.07", Money(7).String())
	assert.Equal(t, "-1.05", Money(-105).String())
}
