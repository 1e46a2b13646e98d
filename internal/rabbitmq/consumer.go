package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

// ErrPermanent помечает ошибку, которую повторная доставка не исправит.
// Такое сообщение подтверждается и отбрасывается.
var ErrPermanent = errors.New("permanent failure")

// ConsumerMessage читает очередь до отмены ctx или закрытия канала.
// Сообщение подтверждается при успешной обработке. При временной ошибке
// оно возвращается в очередь один раз, повторная неудача отбрасывает его.
// Возвращает управление после регистрации потребителя, обработка идёт в фоне.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler func([]byte) error) (<-chan struct{}, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan struct{})
	sem := make(chan struct{}, 10)
	go func() {
		defer close(done)
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					settle(d, handler(d.Body), queueName, log)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return done, nil
}

// settle подтверждает, возвращает в очередь или отбрасывает доставку по результату обработки.
func settle(d amqp.Delivery, err error, queueName string, log *slog.Logger) {
	log = log.With(slog.String("queue", queueName))
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrPermanent):
		log.Error("message handling failed permanently, dropping", sl.Err(err))
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case d.Redelivered:
		log.Error("message handling failed after redelivery, dropping", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Warn("message handling failed, requeue", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
