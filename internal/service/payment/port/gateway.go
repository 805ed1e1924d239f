// internal/service/payment/port/gateway.go
package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 网关侧状态字面量。适配器负责把各家返回翻译成这套。
const (
	GatewayPending = "PENDING"
	GatewaySuccess = "SUCCESS"
	GatewayFailed  = "FAILED"
)

// ChargeRequest 携带一次收款的上下文。
type ChargeRequest struct {
	OrderNumber   string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
}

// CardDetails 是待令牌化的卡信息，只在内存中过一下，从不落库。
type CardDetails struct {
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// GatewayResponse 是网关各操作的统一应答。
type GatewayResponse struct {
	TransactionID     string
	Status            string
	AuthorizationCode string
	ErrorCode         string
	ErrorMessage      string
	RefundID          string
	RefundStatus      string
	ProcessedAt       time.Time
}

// PaymentGateway 是支付提供方必须满足的能力契约。
// 实现是封闭集合（mock / hosted），启动时按配置选定，不做运行时发现。
// 每个调用都带 ctx，编排层用它施加单次调用超时。
type PaymentGateway interface {
	// InitializePayment 在网关开一笔交易，拿到 transactionId。
	InitializePayment(ctx context.Context, req *ChargeRequest) (*GatewayResponse, error)
	// ProcessPayment 确认收款，返回 SUCCESS 或 FAILED。
	ProcessPayment(ctx context.Context, transactionID string, req *ChargeRequest) (*GatewayResponse, error)
	// VerifyPayment 对账查询，幂等。
	VerifyPayment(ctx context.Context, transactionID string) (*GatewayResponse, error)
	// RefundPayment 发起全额或部分退款。
	RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (*GatewayResponse, error)
	// TokenizeCard 把卡信息换成网关令牌。
	TokenizeCard(ctx context.Context, card CardDetails) (string, error)
	// ChargeToken 用已保存的令牌直接扣款。
	ChargeToken(ctx context.Context, token string, amount decimal.Decimal, currency, description string) (*GatewayResponse, error)
	// IsHealthy 探活。
	IsHealthy(ctx context.Context) bool
}
