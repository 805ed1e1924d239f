// internal/service/payment/infrastructure/adapter/hosted_gateway.go
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"localcart/internal/pkg/apperrors"
	"localcart/internal/service/payment/port"
)

// HostedGateway 对接一个托管收款 API（Stripe 风格的 REST 接口）。
// 鉴权走 Authorization 头，所有请求 JSON 进出；
// 超时由调用方 ctx 控制，客户端本身不设全局 Timeout。
type HostedGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewHostedGateway(baseURL, apiKey string, tracer trace.Tracer) *HostedGateway {
	return &HostedGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
		tracer: tracer,
	}
}

// gatewayReply 是托管网关各端点的应答体。
type gatewayReply struct {
	TransactionID     string `json:"transaction_id"`
	Status            string `json:"status"`
	AuthorizationCode string `json:"authorization_code"`
	RefundID          string `json:"refund_id"`
	RefundStatus      string `json:"refund_status"`
	Token             string `json:"token"`
	Error             *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *HostedGateway) InitializePayment(ctx context.Context, req *port.ChargeRequest) (*port.GatewayResponse, error) {
	reply, err := g.call(ctx, "/v1/charges", map[string]interface{}{
		"action":    "create",
		"order_ref": req.OrderNumber,
		"amount":    req.Amount.StringFixed(2),
		"currency":  req.Currency,
		"method":    req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	return &port.GatewayResponse{
		TransactionID: reply.TransactionID,
		Status:        reply.Status,
	}, nil
}

func (g *HostedGateway) ProcessPayment(ctx context.Context, transactionID string, req *port.ChargeRequest) (*port.GatewayResponse, error) {
	reply, err := g.call(ctx, "/v1/charges/"+transactionID+"/capture", map[string]interface{}{
		"amount":   req.Amount.StringFixed(2),
		"currency": req.Currency,
	})
	if err != nil {
		return nil, err
	}
	resp := &port.GatewayResponse{
		TransactionID:     transactionID,
		Status:            reply.Status,
		AuthorizationCode: reply.AuthorizationCode,
	}
	if reply.Error != nil {
		resp.ErrorCode = reply.Error.Code
		resp.ErrorMessage = reply.Error.Message
	}
	return resp, nil
}

func (g *HostedGateway) VerifyPayment(ctx context.Context, transactionID string) (*port.GatewayResponse, error) {
	reply, err := g.call(ctx, "/v1/charges/"+transactionID, nil)
	if err != nil {
		return nil, err
	}
	return &port.GatewayResponse{
		TransactionID: transactionID,
		Status:        reply.Status,
	}, nil
}

func (g *HostedGateway) RefundPayment(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (*port.GatewayResponse, error) {
	reply, err := g.call(ctx, "/v1/refunds", map[string]interface{}{
		"transaction_id": transactionID,
		"amount":         amount.StringFixed(2),
		"reason":         reason,
	})
	if err != nil {
		return nil, err
	}
	return &port.GatewayResponse{
		TransactionID: transactionID,
		RefundID:      reply.RefundID,
		RefundStatus:  reply.RefundStatus,
	}, nil
}

func (g *HostedGateway) TokenizeCard(ctx context.Context, card port.CardDetails) (string, error) {
	reply, err := g.call(ctx, "/v1/tokens", map[string]interface{}{
		"number":       card.Number,
		"expiry_month": card.ExpiryMonth,
		"expiry_year":  card.ExpiryYear,
		"cvv":          card.CVV,
	})
	if err != nil {
		return "", err
	}
	if reply.Token == "" {
		return "", apperrors.New(apperrors.CodeGatewayError, "gateway returned empty token")
	}
	return reply.Token, nil
}

func (g *HostedGateway) ChargeToken(ctx context.Context, token string, amount decimal.Decimal, currency, description string) (*port.GatewayResponse, error) {
	reply, err := g.call(ctx, "/v1/charges", map[string]interface{}{
		"action":      "charge_token",
		"token":       token,
		"amount":      amount.StringFixed(2),
		"currency":    currency,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	return &port.GatewayResponse{
		TransactionID: reply.TransactionID,
		Status:        reply.Status,
	}, nil
}

func (g *HostedGateway) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// call 发一个 JSON 请求并解析应答；body 为 nil 时发 GET。
func (g *HostedGateway) call(ctx context.Context, path string, body map[string]interface{}) (*gatewayReply, error) {
	fullURL := g.baseURL + path

	ctx, span := g.tracer.Start(ctx, "gateway"+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.url", fullURL))

	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("gateway returned %s: %s", resp.Status, raw)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "gateway request rejected")
	}

	var reply gatewayReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGatewayError, "decode gateway response")
	}
	return &reply, nil
}
