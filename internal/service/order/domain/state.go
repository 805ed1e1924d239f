// internal/service/order/domain/state.go
package domain

// Status 定义订单的生命周期状态。
type Status string

const (
	StatusPending          Status = "PENDING"           // 已创建，等待支付
	StatusPaymentConfirmed Status = "PAYMENT_CONFIRMED" // 支付完成
	StatusProcessing       Status = "PROCESSING"        // 备货中
	StatusShipped          Status = "SHIPPED"           // 已发货
	StatusDelivered        Status = "DELIVERED"         // 已送达
	StatusCancelled        Status = "CANCELLED"         // 已取消
	StatusRefunded         Status = "REFUNDED"          // 已全额退款
)

// next 描述主流程允许的状态推进。
var next = map[Status]Status{
	StatusPending:          StatusPaymentConfirmed,
	StatusPaymentConfirmed: StatusProcessing,
	StatusProcessing:       StatusShipped,
	StatusShipped:          StatusDelivered,
}

// CanAdvanceTo 判断主流程能否从 from 推进到 to。
func CanAdvanceTo(from, to Status) bool {
	return next[from] == to
}

// Cancellable 判断当前状态是否允许取消。
// 只有未发货且未进入备货的订单可以取消。
func Cancellable(s Status) bool {
	return s == StatusPending || s == StatusPaymentConfirmed
}
