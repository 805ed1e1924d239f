// internal/service/automation/infrastructure/kafka_sink.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"localcart/internal/pkg/mq"
	"localcart/internal/service/automation/domain"
)

// KafkaSink 把事件写进单一 topic，key 用事件名保证同类事件有序。
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(writer *kafka.Writer) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Deliver(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, s.writer, []byte(event.Name), value)
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
