// internal/service/payment/infrastructure/adapter/mock_gateway_test.go
package adapter

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcart/internal/service/payment/port"
)

func TestMockGatewayInitialize(t *testing.T) {
	gw := NewMockGateway(true)

	resp, err := gw.InitializePayment(context.Background(), &port.ChargeRequest{
		OrderNumber: "ORD-20250901-AAAAA",
		Amount:      decimal.NewFromInt(100),
		Currency:    "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, port.GatewayPending, resp.Status)
	assert.True(t, strings.HasPrefix(resp.TransactionID, "mock_"))
}

func TestMockGatewayProcess(t *testing.T) {
	t.Run("auto approve", func(t *testing.T) {
		gw := NewMockGateway(true)
		resp, err := gw.ProcessPayment(context.Background(), "mock_txn", &port.ChargeRequest{})
		require.NoError(t, err)
		assert.Equal(t, port.GatewaySuccess, resp.Status)
		assert.True(t, strings.HasPrefix(resp.AuthorizationCode, "AUTH_MOCK_"))
	})

	t.Run("decline mode", func(t *testing.T) {
		gw := NewMockGateway(false)
		resp, err := gw.ProcessPayment(context.Background(), "mock_txn", &port.ChargeRequest{})
		require.NoError(t, err)
		assert.Equal(t, port.GatewayFailed, resp.Status)
		assert.Equal(t, "MOCK_DECLINE", resp.ErrorCode)
		assert.NotEmpty(t, resp.ErrorMessage)
	})
}

func TestMockGatewayRefundAlwaysSucceeds(t *testing.T) {
	gw := NewMockGateway(false)
	resp, err := gw.RefundPayment(context.Background(), "mock_txn", decimal.NewFromInt(40), "damaged")
	require.NoError(t, err)
	assert.Equal(t, port.GatewaySuccess, resp.RefundStatus)
	assert.True(t, strings.HasPrefix(resp.RefundID, "mock_refund_"))
}

func TestMockGatewayTokenizeCard(t *testing.T) {
	gw := NewMockGateway(true)

	token, err := gw.TokenizeCard(context.Background(), port.CardDetails{Number: "4242424242424242"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "mock_token_"))

	_, err = gw.TokenizeCard(context.Background(), port.CardDetails{Number: "4242"})
	require.Error(t, err)
}
