package broker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var _ Producer = &AMQPBroker{}
var _ Consumer = &AMQPBroker{}

const (
	summaryExchange   string = "daily_summary"
	summaryRoutingKey        = "summaries"
	summaryQueue             = "summary_generation"
)

// AMQPBroker describes a message broker via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
}

// NewAMQPBroker returns a Message Broker over RabbitMQ
func NewAMQPBroker(logger *zap.Logger, amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		connection: amqpConn,
		channel:    amqpChan,
		logger:     logger,
	}
	if err := broker.setupSummaryExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for summary requests")
	}

	return broker, nil
}

func (a *AMQPBroker) setupSummaryExchange() error {
	return a.channel.ExchangeDeclare(
		summaryExchange, // name
		"direct",        // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// SendSummaryRequest will queue one summary generation request for the workers
func (a *AMQPBroker) SendSummaryRequest(p *SummaryRequest) error {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	if err := a.channel.Publish(
		summaryExchange,
		summaryRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        jsonBytes,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish summary request")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

// ReceiveSummaryRequests binds the worker queue and returns a channel of requests.
// Malformed messages are rejected without requeue.
func (a *AMQPBroker) ReceiveSummaryRequests(ctx context.Context) (<-chan *SummaryRequest, error) {
	if err := a.setupQueue(summaryQueue); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	if err := a.channel.QueueBind(
		summaryQueue,
		summaryRoutingKey,
		summaryExchange,
		false,
		nil,
	); err != nil {
		return nil, extErrors.Wrap(err, "Cannot bind queue")
	}
	msgChan, err := a.channel.Consume(
		summaryQueue,
		"worker-"+uuid.New().String(),
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *SummaryRequest)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d := <-msgChan:
				var req SummaryRequest
				if err := json.Unmarshal(d.Body, &req); err != nil {
					a.logger.Error("Discarding malformed summary request",
						zap.Error(err),
					)
					d.Nack(false, false)
					continue
				}
				rChan <- &req
				d.Ack(false)
			}
		}
	}()
	return rChan, nil
}
