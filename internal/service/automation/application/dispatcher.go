// internal/service/automation/application/dispatcher.go
package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"localcart/internal/pkg/logger"
	"localcart/internal/pkg/metrics"
	"localcart/internal/service/automation/domain"
	"localcart/internal/service/automation/port"
)

// Dispatcher 是进程内的事件总线：业务侧 Emit 一把就走，
// 投递在独立 worker 上进行，失败只记日志和指标，从不传回调用方。
// 队列满时丢弃事件而不是阻塞请求线程。
type Dispatcher struct {
	sink    port.EventSink
	queue   chan domain.Event
	enabled bool

	wg       sync.WaitGroup
	stopOnce sync.Once
}

const deliverTimeout = 10 * time.Second

func NewDispatcher(sink port.EventSink, queueSize int, enabled bool) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan domain.Event, queueSize),
		enabled: enabled,
	}
}

// Start 启动投递 worker。
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		// 触发方的请求早已返回，投递用独立的超时上下文。
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		err := d.sink.Deliver(ctx, event)
		cancel()
		if err != nil {
			metrics.EventsDispatched.WithLabelValues(event.Name, "fail").Inc()
			logger.Logger().Warn().
				Err(err).
				Str("event", event.Name).
				Str("event_id", event.ID).
				Msg("event delivery failed, dropping")
			continue
		}
		metrics.EventsDispatched.WithLabelValues(event.Name, "ok").Inc()
	}
}

// Emit 入队一个事件。只应在触发它的事务提交之后调用。
func (d *Dispatcher) Emit(ctx context.Context, name string, payload map[string]interface{}) {
	if !d.enabled {
		return
	}
	event := domain.Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	select {
	case d.queue <- event:
	default:
		metrics.EventsDropped.Inc()
		logger.Ctx(ctx).Warn().
			Str("event", name).
			Msg("event queue full, dropping")
	}
}

// Close 停止接收并排空队列，等 worker 收尾。
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.queue) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
