package rabbitmq

import (
	"fmt"

	"pickup-market/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the exchanges both agents rely on. Queues are per-listener
// and declared by Subscribe.
func declareTopology(ch *amqp.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{contracts.ExchangeLocationFanout, "fanout"},
	}

	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareListenerQueue declares a server-named exclusive queue bound to a fanout exchange.
// It disappears with the consumer's connection.
func declareListenerQueue(ch *amqp.Channel, exchange string) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare listener queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, exchange, err)
	}

	return q.Name, nil
}
