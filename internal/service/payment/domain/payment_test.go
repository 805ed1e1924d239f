// internal/service/payment/domain/payment_test.go
package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcart/internal/pkg/apperrors"
)

func newCompleted(t *testing.T, amount int64) *Payment {
	t.Helper()
	p := NewPayment(1, "txn_1", "mock", decimal.NewFromInt(amount))
	require.NoError(t, p.Complete(time.Now()))
	return p
}

func TestNewPayment(t *testing.T) {
	p := NewPayment(42, "txn_abc", "credit_card", decimal.NewFromInt(100))
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, uint64(42), p.OrderID)
	assert.True(t, p.Blocking())
}

func TestCompleteIsIdempotent(t *testing.T) {
	p := newCompleted(t, 100)
	paidAt := *p.PaidAt

	// 重放回调不得改动任何字段
	require.NoError(t, p.Complete(time.Now().Add(time.Hour)))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, paidAt, *p.PaidAt)
}

func TestCompleteOnlyFromPendingOrProcessing(t *testing.T) {
	for _, from := range []Status{StatusFailed, StatusCancelled, StatusRefunded, StatusPartiallyRefunded} {
		p := NewPayment(1, "txn", "mock", decimal.NewFromInt(10))
		p.Status = from
		err := p.Complete(time.Now())
		require.Errorf(t, err, "from %s", from)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
		assert.Equal(t, from, p.Status)
	}
}

func TestCompleteClearsFailureReason(t *testing.T) {
	p := NewPayment(1, "txn", "mock", decimal.NewFromInt(10))
	p.FailureReason = "stale"
	require.NoError(t, p.MarkProcessing())
	require.NoError(t, p.Complete(time.Now()))
	assert.Empty(t, p.FailureReason)
}

func TestFail(t *testing.T) {
	p := NewPayment(1, "txn", "mock", decimal.NewFromInt(10))
	require.NoError(t, p.Fail("card declined"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "card declined", p.FailureReason)
	assert.False(t, p.Blocking())

	// COMPLETED 之后不能再标失败
	done := newCompleted(t, 10)
	err := done.Fail("late decline")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestReinitialize(t *testing.T) {
	p := NewPayment(1, "txn_old", "mock", decimal.NewFromInt(10))
	require.NoError(t, p.Fail("declined"))

	require.NoError(t, p.Reinitialize("txn_new", "credit_card", decimal.NewFromInt(12)))
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "txn_new", p.TransactionID)
	assert.Equal(t, "credit_card", p.PaymentMethod)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(12)))
	assert.Empty(t, p.FailureReason)

	// 非 FAILED 状态不允许重开
	err := p.Reinitialize("txn_again", "mock", decimal.NewFromInt(12))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
}

func TestCancel(t *testing.T) {
	p := NewPayment(1, "txn", "mock", decimal.NewFromInt(10))
	require.NoError(t, p.Cancel())
	assert.Equal(t, StatusCancelled, p.Status)

	for _, from := range []Status{StatusCompleted, StatusRefunded, StatusPartiallyRefunded, StatusCancelled} {
		p := NewPayment(1, "txn", "mock", decimal.NewFromInt(10))
		p.Status = from
		err := p.Cancel()
		require.Errorf(t, err, "from %s", from)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	}
}

func TestApplyRefund(t *testing.T) {
	now := time.Now()

	t.Run("full refund", func(t *testing.T) {
		p := newCompleted(t, 100)
		require.NoError(t, p.ApplyRefund(decimal.NewFromInt(100), now))
		assert.Equal(t, StatusRefunded, p.Status)
		require.NotNil(t, p.RefundAmount)
		assert.True(t, p.RefundAmount.Equal(decimal.NewFromInt(100)))
		require.NotNil(t, p.RefundedAt)
	})

	t.Run("partial refund", func(t *testing.T) {
		p := newCompleted(t, 100)
		require.NoError(t, p.ApplyRefund(decimal.NewFromInt(30), now))
		assert.Equal(t, StatusPartiallyRefunded, p.Status)
		assert.True(t, p.RefundAmount.Equal(decimal.NewFromInt(30)))
	})

	t.Run("excess amount rejected, payment untouched", func(t *testing.T) {
		p := newCompleted(t, 100)
		err := p.ApplyRefund(decimal.NewFromInt(150), now)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Nil(t, p.RefundAmount)
		assert.Nil(t, p.RefundedAt)
	})

	t.Run("non-positive amount rejected", func(t *testing.T) {
		p := newCompleted(t, 100)
		err := p.ApplyRefund(decimal.Zero, now)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	})

	t.Run("only completed payments refundable", func(t *testing.T) {
		p := NewPayment(1, "txn", "mock", decimal.NewFromInt(100))
		err := p.ApplyRefund(decimal.NewFromInt(10), now)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))
	})
}
