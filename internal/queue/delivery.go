package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery pairs a decoded Event with its broker acknowledgement
// handle.
type Delivery struct {
	Event       *Event
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack confirms the event was persisted and removes it from the queue.
func (d *Delivery) Ack() error {
	return d.Channel.Ack(d.DeliveryTag, false)
}

// Nack rejects the event. With requeue false the broker routes it to
// the dead-letter queue.
func (d *Delivery) Nack(requeue bool) error {
	return d.Channel.Nack(d.DeliveryTag, false, requeue)
}
