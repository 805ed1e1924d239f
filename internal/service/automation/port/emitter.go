// internal/service/automation/port/emitter.go
package port

import "context"

// Emitter 是业务侧看到的事件出口。
// 实现必须是非阻塞、尽力而为的：投递失败被吞掉，绝不影响调用方事务。
// 调用方要保证只在事务提交之后才 Emit。
type Emitter interface {
	Emit(ctx context.Context, event string, payload map[string]interface{})
}

// NopEmitter 在自动化关闭时充当空实现。
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, map[string]interface{}) {}
