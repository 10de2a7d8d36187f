package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// StartConsumer connects to the broker, declares the activity queue and
// persists incoming events through the store. It runs a reconnect loop with
// capped exponential backoff and never returns; failed messages are
// rejected without requeue so a poison event cannot stall the queue.
func StartConsumer(url string, store Inserter) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("activity-consumer: dial failed")
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, store); err != nil {
			log.Warn().Err(err).Msg("activity-consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, store Inserter) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("activity-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, store); err != nil {
			log.Warn().Err(err).Msg("activity-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, store Inserter) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Insert(ctx, ev.UserID, ev.Action, ev.Details, ev.IP, ev.UserAgent, ev.At); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}
