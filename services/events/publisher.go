package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/flowmail/flowmail/interfaces"
	"github.com/flowmail/flowmail/internal/logger"
	"github.com/flowmail/flowmail/internal/models"
	"github.com/flowmail/flowmail/internal/tracing"
	"github.com/flowmail/flowmail/internal/utils"
)

const (
	ExchangeMailDirect = "flowmail-direct"
	ExchangeDeadLetter = "dead-letter"

	QueueEmailSent     = "email-sent"
	QueueEmailReceived = "email-received"
	DLQEmailSent       = QueueEmailSent + "-dlq"
	DLQEmailReceived   = QueueEmailReceived + "-dlq"

	RoutingKeyDeadLetter    = "dead-letter"
	RoutingKeyEmailSent     = "flowmail-email-sent"
	RoutingKeyEmailReceived = "flowmail-email-received"

	EventTypeEmailSent     = "EmailSent"
	EventTypeEmailReceived = "EmailReceived"

	DefaultMessageTTL       = 240 * time.Hour
	DefaultMaxRetries       = 3
	DefaultPublishTimeout   = 5 * time.Second
	DefaultReconnectBackoff = time.Second
	MaxReconnectBackoff     = 30 * time.Second
)

// Event is the envelope every published message is wrapped in.
type Event struct {
	ID          string      `json:"id"`
	EventType   string      `json:"eventType"`
	EmailID     string      `json:"emailId"`
	AccountID   string      `json:"accountId"`
	UberTraceID string      `json:"uberTraceId,omitempty"`
	Timestamp   string      `json:"timestamp"`
	Data        interface{} `json:"data"`
}

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger) (interfaces.EventPublisher, error) {
	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}
	return publisher, nil
}

func (r *RabbitMQPublisher) PublishEmailSent(ctx context.Context, email *models.Email) error {
	return r.publishEmailEvent(ctx, EventTypeEmailSent, email, RoutingKeyEmailSent)
}

func (r *RabbitMQPublisher) PublishEmailReceived(ctx context.Context, email *models.Email) error {
	return r.publishEmailEvent(ctx, EventTypeEmailReceived, email, RoutingKeyEmailReceived)
}

func (r *RabbitMQPublisher) publishEmailEvent(ctx context.Context, eventType string, email *models.Email, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.publishEmailEvent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, email.ID)

	tracingData := tracing.ExtractTextMapCarrier(span.Context())

	event := Event{
		ID:          utils.GenerateNanoIDWithPrefix("event", 21),
		EventType:   eventType,
		EmailID:     email.ID,
		AccountID:   email.AccountID,
		UberTraceID: tracingData["uber-trace-id"],
		Timestamp:   utils.Now().Format(time.RFC3339),
		Data:        email,
	}

	return r.publishMessageOnExchange(ctx, span, event, ExchangeMailDirect, routingKey)
}

func (r *RabbitMQPublisher) publishMessageOnExchange(ctx context.Context, span opentracing.Span, message interface{}, exchange, routingKey string) error {
	tracing.LogObjectAsJson(span, "message", message)

	for attempt := 0; attempt < DefaultMaxRetries; attempt++ {
		err := r.publishWithConfirm(ctx, message, exchange, routingKey)
		if err == nil {
			return nil
		}

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, err)
		if attempt < DefaultMaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	return errors.New("failed to publish message after all retries")
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}, exchange, routingKey string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	err = r.publishChannel.Publish(
		exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("message was not confirmed by server")
		}
	case <-time.After(DefaultPublishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	r.connection, err = amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	if err := r.setupExchangesAndQueues(); err != nil {
		return errors.Wrap(err, "failed to setup exchanges and queues")
	}

	if err := r.setupPublishChannel(); err != nil {
		return errors.Wrap(err, "failed to setup publish channel")
	}

	go r.handleReconnection()

	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "failed to establish connection")
		}
	}

	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "failed to establish channel")
		}
	}

	return nil
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open publish channel")
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		return errors.Wrap(err, "failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) handleReconnection() {
	backoff := DefaultReconnectBackoff

	for {
		notifyClose := r.connection.NotifyClose(make(chan *amqp091.Error))
		err := <-notifyClose
		r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)

		for {
			err := r.connect()
			if err == nil {
				r.logger.Info("Successfully reconnected to RabbitMQ")
				break
			}

			r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > MaxReconnectBackoff {
				backoff = MaxReconnectBackoff
			}
		}

		backoff = DefaultReconnectBackoff
	}
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	err = channel.ExchangeDeclare(
		ExchangeDeadLetter,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare dead letter exchange")
	}

	err = channel.ExchangeDeclare(
		ExchangeMailDirect,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare flowmail-direct exchange")
	}

	bindings := []struct {
		queue      string
		dlq        string
		routingKey string
	}{
		{QueueEmailSent, DLQEmailSent, RoutingKeyEmailSent},
		{QueueEmailReceived, DLQEmailReceived, RoutingKeyEmailReceived},
	}

	for _, binding := range bindings {
		if err := r.declareQueueWithDLQ(channel, binding.queue, binding.dlq); err != nil {
			return err
		}
		err = channel.QueueBind(
			binding.queue,
			binding.routingKey,
			ExchangeMailDirect,
			false,
			nil,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to bind queue %s to exchange %s", binding.queue, ExchangeMailDirect)
		}
	}

	return nil
}

func (r *RabbitMQPublisher) declareQueueWithDLQ(channel *amqp091.Channel, queueName, dlqName string) error {
	_, err := channel.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(
		dlqName,
		RoutingKeyDeadLetter,
		ExchangeDeadLetter,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to bind DLQ %s to exchange", dlqName)
	}

	args := map[string]interface{}{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             int64(DefaultMessageTTL.Milliseconds()),
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		args,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to declare queue %s", queueName)
	}

	return nil
}

func (r *RabbitMQPublisher) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
