package rmq

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one message pulled from the queue. Tag is kept so the message
// can be acknowledged long after it was pulled.
type Delivery struct {
	Body []byte
	Tag  uint64
}

// Source holds the connection. Each run opens its own channel so that
// deliveries left unacknowledged at the end of a run are requeued when the
// channel closes.
type Source struct {
	conn  *amqp.Connection
	queue string
}

func NewSource(url, queue string) (*Source, error) {
	var conn *amqp.Connection

	dial := func() error {
		var err error
		conn, err = amqp.Dial(url)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = time.Minute
	if err := backoff.Retry(dial, b); err != nil {
		return nil, err
	}

	return &Source{conn: conn, queue: queue}, nil
}

func (s *Source) Open() (*Queue, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	// Fair dispatch: one unacked delivery in flight per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, err
	}
	return &Queue{ch: ch, name: s.queue}, nil
}

func (s *Source) Close() error {
	return s.conn.Close()
}

type Queue struct {
	ch   *amqp.Channel
	name string
}

// Get pulls a single message without auto-ack. ok is false when the queue is
// empty.
func (q *Queue) Get() (Delivery, bool, error) {
	d, ok, err := q.ch.Get(q.name, false)
	if err != nil || !ok {
		return Delivery{}, false, err
	}
	return Delivery{Body: d.Body, Tag: d.DeliveryTag}, true, nil
}

// Ready reports the number of messages waiting in the queue.
func (q *Queue) Ready() (int, error) {
	st, err := q.ch.QueueDeclarePassive(q.name, true, false, false, false, nil)
	if err != nil {
		return 0, err
	}
	return st.Messages, nil
}

func (q *Queue) Ack(tag uint64) error {
	return q.ch.Ack(tag, false)
}

func (q *Queue) Close() error {
	return q.ch.Close()
}
