// internal/service/payment/infrastructure/adapter/mock_gateway.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"localcart/internal/pkg/logger"
	"localcart/internal/service/payment/port"
)

// MockGateway 是开发和测试用的网关实现，不发生真实扣款。
// autoApprove 关掉后所有收款都会被拒，用来演练失败路径。
type MockGateway struct {
	autoApprove bool
}

func NewMockGateway(autoApprove bool) *MockGateway {
	return &MockGateway{autoApprove: autoApprove}
}

func (g *MockGateway) InitializePayment(ctx context.Context, req *port.ChargeRequest) (*port.GatewayResponse, error) {
	logger.Ctx(ctx).Debug().Str("order", req.OrderNumber).Msg("mock gateway: initialize payment")
	return &port.GatewayResponse{
		TransactionID: "mock_" + uuid.NewString()[:24],
		Status:        port.GatewayPending,
		ProcessedAt:   time.Now(),
	}, nil
}

func (g *MockGateway) ProcessPayment(ctx context.Context, transactionID string, req *port.ChargeRequest) (*port.GatewayResponse, error) {
	logger.Ctx(ctx).Debug().Str("transaction", transactionID).Msg("mock gateway: process payment")
	if !g.autoApprove {
		return &port.GatewayResponse{
			TransactionID: transactionID,
			Status:        port.GatewayFailed,
			ErrorCode:     "MOCK_DECLINE",
			ErrorMessage:  "mock payment declined for testing",
			ProcessedAt:   time.Now(),
		}, nil
	}
	return &port.GatewayResponse{
		TransactionID:     transactionID,
		Status:            port.GatewaySuccess,
		AuthorizationCode: "AUTH_MOCK_" + uuid.NewString()[:8],
		ProcessedAt:       time.Now(),
	}, nil
}

func (g *MockGateway) VerifyPayment(ctx context.Context, transactionID string) (*port.GatewayResponse, error) {
	status := port.GatewaySuccess
	if !g.autoApprove {
		status = port.GatewayFailed
	}
	return &port.GatewayResponse{
		TransactionID: transactionID,
		Status:        status,
		ProcessedAt:   time.Now(),
	}, nil
}

func (g *MockGateway) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (*port.GatewayResponse, error) {
	logger.Ctx(ctx).Debug().
		Str("transaction", transactionID).
		Str("amount", amount.StringFixed(2)).
		Msg("mock gateway: refund payment")
	return &port.GatewayResponse{
		TransactionID: transactionID,
		RefundID:      "mock_refund_" + uuid.NewString()[:20],
		RefundStatus:  port.GatewaySuccess,
		ProcessedAt:   time.Now(),
	}, nil
}

func (g *MockGateway) TokenizeCard(ctx context.Context, card port.CardDetails) (string, error) {
	if len(card.Number) < 12 {
		return "", fmt.Errorf("card number too short")
	}
	return "mock_token_" + uuid.NewString()[:20], nil
}

func (g *MockGateway) ChargeToken(ctx context.Context, token string, amount decimal.Decimal, currency, description string) (*port.GatewayResponse, error) {
	return &port.GatewayResponse{
		TransactionID: "mock_" + uuid.NewString()[:24],
		Status:        port.GatewaySuccess,
		ProcessedAt:   time.Now(),
	}, nil
}

func (g *MockGateway) IsHealthy(ctx context.Context) bool {
	return true
}
