package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
)

const defaultBatchSize = 500

// Record types carried in the "record_type" header.
const (
	RecordTrip  = "trip"
	RecordDaily = "daily_station_aggregate"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer appends rows to Kafka, one topic per destination table.
// It implements pipeline.Sink.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer. The topic is taken from each message,
// so one producer serves every table.
func NewWriter(brokers []string, batchSize int, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newWriter(w, batchSize, logger)
}

func newWriter(w messageWriter, batchSize int, logger *slog.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger}
}

// AppendTrips publishes one message per trip to the table's topic, keyed by rental id.
func (w *Writer) AppendTrips(ctx context.Context, table string, trips []domain.TripRecord) error {
	msgs := make([]kafkago.Message, len(trips))
	for i := range trips {
		msg, err := serializeTrip(table, trips[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.publish(ctx, table, msgs)
}

// AppendDailyAggregates publishes one message per aggregate, keyed by date and station.
func (w *Writer) AppendDailyAggregates(ctx context.Context, table string, rows []domain.DailyStationAggregate) error {
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeDaily(table, rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.publish(ctx, table, msgs)
}

func (w *Writer) publish(ctx context.Context, table string, msgs []kafkago.Message) error {
	for start := 0; start < len(msgs); start += w.batchSize {
		end := min(start+w.batchSize, len(msgs))
		if err := w.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("publish to topic %s: %w", table, err)
		}
	}
	w.logger.Debug("messages published", "topic", table, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeTrip(table string, trip domain.TripRecord) (kafkago.Message, error) {
	data, err := json.Marshal(trip)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize trip %s: %w", trip.RentalID, err)
	}
	return kafkago.Message{
		Topic: table,
		Key:   []byte(trip.RentalID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "record_type", Value: []byte(RecordTrip)},
		},
	}, nil
}

func serializeDaily(table string, agg domain.DailyStationAggregate) (kafkago.Message, error) {
	data, err := json.Marshal(agg)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily aggregate %s: %w", agg.StartStationID, err)
	}
	return kafkago.Message{
		Topic: table,
		Key:   []byte(dailyKey(agg)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "table", Value: []byte(table)},
			{Key: "record_type", Value: []byte(RecordDaily)},
		},
	}, nil
}

// dailyKey is "<date>/<station id>", with an empty date for undated rows.
func dailyKey(agg domain.DailyStationAggregate) string {
	date := ""
	if agg.Date != nil {
		date = agg.Date.Format(domain.WeatherDateLayout)
	}
	return date + "/" + agg.StartStationID
}
