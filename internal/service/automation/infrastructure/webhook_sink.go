// internal/service/automation/infrastructure/webhook_sink.go
package infrastructure

import (
	"context"
	"strings"

	"localcart/internal/pkg/httpclient"
	"localcart/internal/service/automation/domain"
)

// 事件到外部自动化端点路径的映射，历史路径不按通用规则走。
var webhookPaths = map[string]string{
	domain.EventOrderCreated:       "/order-created",
	domain.EventOrderStatusChanged: "/order-status-changed",
	domain.EventProductLowStock:    "/low-stock-alert",
	domain.EventCartAbandoned:      "/abandoned-cart",
	domain.EventReviewRequest:      "/review-request",
}

// WebhookSink 把事件 POST 到外部自动化端点，每个事件一次请求。
type WebhookSink struct {
	client  *httpclient.Client
	baseURL string
}

func NewWebhookSink(client *httpclient.Client, baseURL string) *WebhookSink {
	return &WebhookSink{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *WebhookSink) Deliver(ctx context.Context, event domain.Event) error {
	path, ok := webhookPaths[event.Name]
	if !ok {
		replacer := strings.NewReplacer(".", "-", "_", "-")
		path = "/" + replacer.Replace(event.Name)
	}

	// 扁平 JSON：事件名、时间戳与业务字段平铺在一层。
	body := make(map[string]interface{}, len(event.Payload)+3)
	for k, v := range event.Payload {
		body[k] = v
	}
	body["event"] = event.Name
	body["event_id"] = event.ID
	body["timestamp"] = event.Timestamp

	return s.client.PostJSON(ctx, s.baseURL+path, body)
}
