package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/gridflex/gridflex/core/metrics"
	"github.com/gridflex/gridflex/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScheduleEvent writes the decision as a point.
func (s *InfluxSink) RecordScheduleEvent(ev coremetrics.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_decision").
		AddTag("job_id", ev.JobID).
		AddTag("decision", ev.DecisionType).
		AddTag("region", string(ev.Region)).
		AddTag("component", "scheduler").
		AddField("score", round3(ev.Score)).
		AddField("carbon_saved_kg", round3(ev.CarbonSavedKg)).
		AddField("cost_saved_gbp", round3(ev.CostSavedGBP)).
		AddField("delay_hours", round3(ev.DelayHours)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordUpstreamEvent writes an outbound grid data call.
func (s *InfluxSink) RecordUpstreamEvent(ev coremetrics.UpstreamEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("upstream_call").
		AddTag("api", ev.API).
		AddTag("outcome", outcome(ev.Success)).
		AddTag("component", "signal_aggregator").
		AddField("attempts", ev.Attempts).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSlotEvent writes a marketplace search or confirm outcome.
func (s *InfluxSink) RecordSlotEvent(ev coremetrics.SlotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("slot_event").
		AddTag("slot_id", ev.SlotID).
		AddTag("job_id", ev.JobID).
		AddTag("region", string(ev.Region)).
		AddTag("action", ev.Action).
		AddTag("component", "marketplace").
		AddField("success", ev.Success).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
