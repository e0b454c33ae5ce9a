package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"energy-monitor/internal/config"
	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
)

// readingMessage is the collector wire format for one hourly measurement.
type readingMessage struct {
	Site           string   `json:"site"`
	Sector         string   `json:"sector"`
	Timestamp      string   `json:"timestamp"`
	EnergyKWh      float64  `json:"energy_kwh"`
	WaterLiters    float64  `json:"water_liters"`
	CO2Kg          float64  `json:"co2_kg"`
	TemperatureC   *float64 `json:"temperature_c"`
	OccupancyPct   *float64 `json:"occupancy_pct"`
	IsWeekend      bool     `json:"is_weekend"`
	IsHoliday      bool     `json:"is_holiday"`
	IsExamWeek     bool     `json:"is_exam_week"`
	AcademicPeriod string   `json:"academic_period"`
}

// Consumer reads consumption readings off Kafka and hands them to the
// ingestion pipeline. Invalid messages are rejected at this boundary.
type Consumer struct {
	reader   *kafka.Reader
	pipeline *Pipeline
	logger   *logging.Logger
}

// NewConsumer wires a kafka-go reader for the readings topic.
func NewConsumer(cfg config.Config, pipeline *Pipeline, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		Topic:       cfg.Kafka.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{reader: reader, pipeline: pipeline, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Infof("kafka consumer started: topic=%s", c.reader.Config().Topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Infof("kafka consumer stopped")
				return
			}
			c.logger.Errorf("kafka read failed: %v", err)
			continue
		}

		var wire readingMessage
		if err := json.Unmarshal(msg.Value, &wire); err != nil {
			c.logger.Errorf("reject malformed reading message at offset %d: %v", msg.Offset, err)
			continue
		}

		reading, err := decode(wire)
		if err != nil {
			c.logger.Errorf("reject invalid reading at offset %d: %v", msg.Offset, err)
			continue
		}

		c.pipeline.Ingest(ctx, reading)
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decode(wire readingMessage) (models.ConsumptionReading, error) {
	site, err := models.ParseSite(wire.Site)
	if err != nil {
		return models.ConsumptionReading{}, err
	}
	sector, err := models.ParseSector(wire.Sector)
	if err != nil {
		return models.ConsumptionReading{}, err
	}
	ts, err := time.Parse(time.RFC3339, wire.Timestamp)
	if err != nil {
		return models.ConsumptionReading{}, err
	}
	r := models.ConsumptionReading{
		Site:           site,
		Sector:         sector,
		Timestamp:      ts,
		EnergyKWh:      wire.EnergyKWh,
		WaterLiters:    wire.WaterLiters,
		CO2Kg:          wire.CO2Kg,
		TemperatureC:   wire.TemperatureC,
		OccupancyPct:   wire.OccupancyPct,
		IsWeekend:      wire.IsWeekend,
		IsHoliday:      wire.IsHoliday,
		IsExamWeek:     wire.IsExamWeek,
		AcademicPeriod: wire.AcademicPeriod,
		IngestedAt:     time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return models.ConsumptionReading{}, err
	}
	return r, nil
}
