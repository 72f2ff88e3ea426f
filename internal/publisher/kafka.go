package publisher

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/pizzaops/opsight/internal/models"
)

// KafkaPublisher pushes analysis artifacts onto Kafka so downstream
// dashboards pick up findings without polling the store. Topics are
// namespaced with the configured prefix.
type KafkaPublisher struct {
	producer    sarama.SyncProducer
	topicPrefix string
}

func NewKafkaPublisher(config *models.Config) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // required for SyncProducer
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second

	brokerList := strings.Split(config.KafkaBrokerList, ",")

	producer, err := sarama.NewSyncProducer(brokerList, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Printf("Kafka publisher connected to brokers %v", brokerList)
	return &KafkaPublisher{producer: producer, topicPrefix: config.KafkaTopicPrefix}, nil
}

func (k *KafkaPublisher) WriteMessage(topic string, msg []byte) error {
	if k.producer == nil {
		return fmt.Errorf("Kafka publisher is not initialized")
	}

	if k.topicPrefix != "" {
		topic = k.topicPrefix + "_" + topic
	}
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msg),
	})
	if err != nil {
		log.Printf("Failed to send message to topic %s: %v", topic, err)
		return err
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
