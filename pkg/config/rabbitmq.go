package config

import (
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

var RabbitMQ *amqp.Connection

const (
	connectAttempts = 10
	connectDelay    = 3 * time.Second
)

func amqpURL() string {
	vhost := os.Getenv("RABBITMQ_VHOST")
	if vhost == "" {
		vhost = "/"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		os.Getenv("RABBITMQ_USER"),
		os.Getenv("RABBITMQ_PASSWORD"),
		os.Getenv("RABBITMQ_HOST"),
		os.Getenv("RABBITMQ_PORT"),
		vhost,
	)
}

// InitRabbitMQ connects to the broker, retrying while it comes up.
func InitRabbitMQ() {
	var err error
	for i := 0; i < connectAttempts; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(amqpURL())
		if err == nil {
			RabbitMQ = conn
			log.Infof("Connected to RabbitMQ at %s", os.Getenv("RABBITMQ_HOST"))
			return
		}
		if i < connectAttempts-1 {
			log.Warnf("RabbitMQ connect attempt %d/%d failed: %v, retrying in %v", i+1, connectAttempts, err, connectDelay)
			time.Sleep(connectDelay)
		}
	}
	log.Fatalf("Could not connect to RabbitMQ after %d attempts: %v", connectAttempts, err)
}

// declareQueue declares a durable queue on the given channel. Publisher and
// consumer both declare, so either side can start first.
func declareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}

// PurgeQueue drops all pending messages from a queue, keeping the queue.
func PurgeQueue(queueName string) error {
	if RabbitMQ == nil {
		return fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := RabbitMQ.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueuePurge(queueName, false); err != nil {
		return fmt.Errorf("failed to purge queue %s: %w", queueName, err)
	}

	log.Infof("Purged RabbitMQ queue %s", queueName)
	return nil
}
