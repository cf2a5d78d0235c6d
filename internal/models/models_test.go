package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveBillStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 5)
	past := now.AddDate(0, 0, -5)

	tests := []struct {
		name  string
		paid  int64
		total int64
		due   time.Time
		want  string
	}{
		{"nothing paid, not due", 0, 100000, future, BillStatusUnpaid},
		{"partially paid, not due", 40000, 100000, future, BillStatusPartiallyPaid},
		{"fully paid", 100000, 100000, future, BillStatusPaid},
		{"overpaid", 120000, 100000, future, BillStatusPaid},
		{"nothing paid, past due", 0, 100000, past, BillStatusOverdue},
		{"partially paid, past due", 40000, 100000, past, BillStatusOverdue},
		{"fully paid, past due", 100000, 100000, past, BillStatusPaid},
		{"due exactly now", 0, 100000, now, BillStatusUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveBillStatus(tt.paid, tt.total, tt.due, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveBillStatusMonotonicOverPayments(t *testing.T) {
	// As paidAmount only ever grows, the derived status must never step back
	// from PAID.
	now := time.Now()
	due := now.AddDate(0, 0, 15)

	var total int64 = 100000
	reachedPaid := false
	for paid := int64(0); paid <= 150000; paid += 10000 {
		status := DeriveBillStatus(paid, total, due, now)
		if reachedPaid {
			assert.Equal(t, BillStatusPaid, status)
		}
		if status == BillStatusPaid {
			reachedPaid = true
		}
	}
	assert.True(t, reachedPaid)
}

func TestIsTerminalBillStatus(t *testing.T) {
	assert.True(t, IsTerminalBillStatus(BillStatusPaid))
	assert.True(t, IsTerminalBillStatus(BillStatusCancelled))
	assert.False(t, IsTerminalBillStatus(BillStatusUnpaid))
	assert.False(t, IsTerminalBillStatus(BillStatusPartiallyPaid))
	assert.False(t, IsTerminalBillStatus(BillStatusOverdue))
}

func TestNormalizeChargeType(t *testing.T) {
	ct, known := NormalizeChargeType("data")
	assert.Equal(t, ChargeTypeData, ct)
	assert.True(t, known)

	ct, known = NormalizeChargeType("HOLOGRAM")
	assert.Equal(t, ChargeTypeVAS, ct)
	assert.False(t, known)
}
