/*Package notify provides Notifier implementations for model mutations.
 */
package notify

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/spinal-tech/spinal/core"
	"github.com/spinal-tech/spinal/core/logger"
)

// LogNotifier writes every mutation to the log. Useful during development
// and as a fallback when no broker is configured.
type LogNotifier struct{}

// Notify implements core.Notifier.
func (LogNotifier) Notify(model string, operation core.Operation, payload []byte) {
	logger.Default().Debugf("notification %s %s: %s", model, operation, string(payload))
}

// KafkaNotifier publishes mutations to a kafka topic. The message key is
// "{model}/{operation}" so consumers can partition by resource.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier creates a notifier publishing to the given brokers and
// topic.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Notify implements core.Notifier. Publishing is asynchronous; a mutation
// response is never blocked on the broker.
func (n *KafkaNotifier) Notify(model string, operation core.Operation, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(model + "/" + string(operation)),
		Value: payload,
	})
	if err != nil {
		logger.Default().WithError(err).Errorln("cannot publish notification")
	}
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
