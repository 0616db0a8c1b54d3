package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"lpr-service/internal/config"
	"lpr-service/internal/domain/lpr"
	"lpr-service/internal/service"
)

const (
	defaultRetryBackoff = 500 * time.Millisecond
	defaultMaxBackoff   = 30 * time.Second
)

// ObservationRecorder is satisfied by service.Recorder and service.LPRService.
type ObservationRecorder interface {
	RecordObservation(ctx context.Context, obs lpr.Observation) (lpr.RecordResult, error)
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds observations from a Kafka topic into the recorder. A
// message is committed once it is recorded, or when it fails to decode or
// validate so a poison message cannot stall the partition. Any other
// recording failure is retried with backoff and the offset stays
// uncommitted until it succeeds.
type Consumer struct {
	reader        MessageReader
	recorder      ObservationRecorder
	defaultSource string
	log           zerolog.Logger

	retryBackoff time.Duration
	maxBackoff   time.Duration
}

func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
}

func NewConsumer(reader MessageReader, recorder ObservationRecorder, defaultSource string, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader:        reader,
		recorder:      recorder,
		defaultSource: defaultSource,
		log:           log,
		retryBackoff:  defaultRetryBackoff,
		maxBackoff:    defaultMaxBackoff,
	}
}

// Run blocks until ctx is cancelled or the reader fails permanently.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, kafka.ErrGroupClosed) {
				return err
			}
			c.log.Warn().Err(err).Msg("kafka read error")
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("kafka commit failed")
		}
	}
}

// process handles msg until it is recorded or rejected as bad input. It
// returns false when ctx ends first, in which case msg must not be
// committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	backoff := c.retryBackoff
	for {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		c.log.Error().
			Err(err).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Dur("retry_in", backoff).
			Msg("failed to record observation from kafka")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// handle returns an error only for failures worth retrying.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	obs, err := DecodeObservation(msg.Value)
	if err != nil {
		c.log.Warn().Err(err).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("skipping malformed observation")
		return nil
	}
	if obs.Source == "" {
		obs.Source = c.defaultSource
	}

	res, err := c.recorder.RecordObservation(ctx, obs)
	if errors.Is(err, service.ErrInvalidInput) {
		c.log.Warn().Err(err).Str("plate", obs.Plate).Int64("offset", msg.Offset).Msg("skipping invalid observation")
		return nil
	}
	if err != nil {
		return err
	}
	if res.AlertTriggered {
		c.log.Info().Int64("event_id", res.EventID).Str("plate", obs.Plate).Msg("kafka observation raised alert")
	}
	return nil
}

// DecodeObservation parses a JSON observation message.
func DecodeObservation(data []byte) (lpr.Observation, error) {
	var obs lpr.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return lpr.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	obs.Plate = strings.TrimSpace(obs.Plate)
	if obs.Plate == "" {
		return lpr.Observation{}, errors.New("decode observation: plate is required")
	}
	return obs, nil
}
