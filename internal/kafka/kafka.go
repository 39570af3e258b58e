// Package kafka provides methods for initiating kafka-topics for the app and a kafka readiness-probing
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// InitKafkaTopics - creates topics in kafka, already existing topics are fine
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) error {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		topic := kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
		req.Topics = append(req.Topics, topic)
	}

	for {
		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg(fmt.Sprintf("Failed to run topics creation request. Wait %v before next try...", delay))
		} else if topicsCreated(resp.Errors) {
			zlog.Logger.Info().Strs("topics", topics).Msg("All topics created successfully!")
			return nil
		}

		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("init kafka topics: %w", err)
		}
	}
}

func topicsCreated(results map[string]error) bool {
	ok := true
	for k, v := range results {
		switch {
		case v == nil, errors.Is(v, kafkago.TopicAlreadyExists):
		default:
			zlog.Logger.Error().Err(v).Str("topic", k).Msg("Topic creation error")
			ok = false
		}
	}
	return ok
}

// WaitKafkaReady - ждём пока брокер начнет принимать соединения
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) error {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				zlog.Logger.Warn().Err(errConn).Msg("Failed to close connection after testing Kafka readyness")
			}
			zlog.Logger.Info().Msg("Kafka is ready!")
			return nil
		}
		zlog.Logger.Info().Msg(fmt.Sprintf("Kafka not ready, retrying in %v...", delay))

		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("wait for kafka: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
