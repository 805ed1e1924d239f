// internal/service/automation/port/sink.go
package port

import (
	"context"

	"localcart/internal/service/automation/domain"
)

// EventSink 是事件的出站通道：webhook、kafka 或 websocket 推送。
// Deliver 至多尝试一次，失败由调度器记账，不做重试。
type EventSink interface {
	Deliver(ctx context.Context, event domain.Event) error
}
