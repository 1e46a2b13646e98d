package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"
)

var errDeliveryClosed = errors.New("delivery channel closed")

// ConsumerService потребитель одной очереди под управлением suture.
type ConsumerService struct {
	ch      *amqp.Channel
	queue   string
	handler func([]byte) error
	log     *slog.Logger
}

// NewConsumerService создаёт потребителя очереди queue.
func NewConsumerService(ch *amqp.Channel, queue string, handler func([]byte) error, log *slog.Logger) *ConsumerService {
	return &ConsumerService{ch: ch, queue: queue, handler: handler, log: log}
}

// Serve читает очередь до отмены ctx. Закрытие канала брокером возвращается
// как ошибка, чтобы супервизор перезапустил сервис.
func (s *ConsumerService) Serve(ctx context.Context) error {
	const op = "rabbitmq.ConsumerService.Serve"

	done, err := ConsumerMessage(ctx, s.ch, s.queue, s.log, s.handler)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("consuming queue", slog.String("queue", s.queue))

	select {
	case <-ctx.Done():
		<-done
		return ctx.Err()
	case <-done:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %s: %w", op, s.queue, errDeliveryClosed)
	}
}

func (s *ConsumerService) String() string {
	return "consumer:" + s.queue
}
