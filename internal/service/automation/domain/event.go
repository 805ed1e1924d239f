// internal/service/automation/domain/event.go
package domain

import "time"

// 业务事件名。订阅方按名字路由，新增事件只在这里登记。
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentCompleted   = "payment.completed"
	EventPaymentFailed      = "payment.failed"
	EventPaymentRefunded    = "payment.refunded"
	EventProductLowStock    = "product.low_stock"
	EventCartAbandoned      = "cart.abandoned"
	EventReviewRequest      = "review.request"
)

// Event 是投递到下游的统一信封。
type Event struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}
