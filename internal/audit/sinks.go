package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"login-service/internal/client"
	"login-service/internal/models"
	"login-service/internal/util"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink logs through logger, or the global logger when nil.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, events []models.SecurityEvent) error {
	logger := s.logger
	if logger == nil {
		logger = util.Get()
	}
	for _, e := range events {
		logger.Info("Security event",
			zap.String("event_id", e.EventID),
			zap.String("event_type", string(e.EventType)),
			zap.String("account_id", e.AccountID),
			zap.String("session", e.SessionRef),
			zap.Bool("success", e.Success),
			zap.String("reason", e.Reason),
			zap.String("ip", e.IPAddress),
			zap.String("request_id", e.RequestID),
			zap.Time("event_time", e.EventTime))
	}
	return nil
}

// KafkaSink publishes events as JSON, keyed by account so one account's history stays ordered.
type KafkaSink struct {
	producer *client.KafkaProducer
}

func NewKafkaSink(producer *client.KafkaProducer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	messages := make([]client.KafkaMessage, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.EventID, err)
		}
		key := e.AccountID
		if key == "" {
			key = e.SessionRef
		}
		messages = append(messages, client.KafkaMessage{
			Key:     []byte(key),
			Value:   value,
			Headers: map[string]string{"event_type": string(e.EventType)},
		})
	}
	return s.producer.Produce(ctx, messages...)
}

// ClickHouseSink appends events to a MergeTree table for analytics.
type ClickHouseSink struct {
	client *client.ClickHouseClient
	table  string
}

func NewClickHouseSink(c *client.ClickHouseClient, table string) *ClickHouseSink {
	return &ClickHouseSink{client: c, table: table}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

// EnsureSchema creates the events table when it does not exist yet.
func (s *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_id    String,
			event_time  DateTime64(3, 'UTC'),
			event_date  Date,
			event_type  LowCardinality(String),
			account_id  String,
			session_ref String,
			success     Bool,
			reason      String,
			ip_address  String,
			user_agent  String,
			request_id  String
		) ENGINE = MergeTree
		PARTITION BY toYYYYMM(event_date)
		ORDER BY (event_type, event_time)
		TTL event_date + INTERVAL 90 DAY`, s.table)
	if err := s.client.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

func (s *ClickHouseSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{
			e.EventID, e.EventTime, e.EventTime, string(e.EventType), e.AccountID, e.SessionRef,
			e.Success, e.Reason, e.IPAddress, e.UserAgent, e.RequestID,
		})
	}
	return s.client.BatchInsert(ctx, fmt.Sprintf("INSERT INTO %s", s.table), rows)
}

// ElasticsearchSink indexes each event under its ID, so a replayed batch overwrites
// rather than duplicates.
type ElasticsearchSink struct {
	client *client.ESClient
	index  string
}

func NewElasticsearchSink(c *client.ESClient, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: c, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Write(ctx context.Context, events []models.SecurityEvent) error {
	for _, e := range events {
		if err := s.client.IndexDocument(ctx, s.index, e.EventID, e); err != nil {
			return err
		}
	}
	return nil
}
