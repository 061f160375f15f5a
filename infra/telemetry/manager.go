// Package telemetry collects power reports pushed by compute assets so
// actual consumption can be compared against schedule commitments.
package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridflex/gridflex/config"
	"github.com/gridflex/gridflex/core/model"
	"github.com/gridflex/gridflex/infra/logger"
	infmqtt "github.com/gridflex/gridflex/infra/mqtt"
)

// AssetDirectory resolves registered assets so reports can be validated.
type AssetDirectory interface {
	GetAsset(assetID string) (model.ComputeAsset, error)
}

// Manager subscribes to asset telemetry topics and exposes the reported
// power draw as Prometheus gauges.
type Manager struct {
	cfg    config.TelemetryConfig
	cli    paho.Client
	assets AssetDirectory
	log    logger.Logger

	power       *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	reports     prometheus.Counter
	badReports  prometheus.Counter
	lastReport  prometheus.Gauge
}

// NewManager connects to MQTT and prepares telemetry collection.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, assets AssetDirectory) (*Manager, error) {
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := &Manager{
		cfg:    cfg,
		cli:    cli,
		assets: assets,
		log:    logger.New("telemetry"),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "asset_power_kw", Help: "Reported asset power draw in kW"}, []string{"asset_id"}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "asset_utilization", Help: "Reported asset utilization fraction"}, []string{"asset_id"}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_reports_total", Help: "Number of telemetry reports received"}),
		badReports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_bad_reports_total", Help: "Number of undecodable telemetry reports"}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_last_report_timestamp_seconds", Help: "Unix timestamp of last telemetry report"}),
	}
	prometheus.MustRegister(m.power, m.utilization, m.reports, m.badReports, m.lastReport)
	return m, nil
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	topic := strings.TrimSuffix(m.cfg.Prefix(), "/") + "/+"
	if token := m.cli.Subscribe(topic, 0, m.onReport); token.Wait() && token.Error() != nil {
		m.log.Errorf("subscribe %s: %v", topic, token.Error())
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

func (m *Manager) onReport(_ paho.Client, msg paho.Message) {
	if err := m.process(msg.Payload(), msg.Topic()); err != nil {
		m.badReports.Inc()
		m.log.Errorf("telemetry decode: %v", err)
	}
}

func extractID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}

func (m *Manager) process(payload []byte, topic string) error {
	var msg struct {
		AssetID     string  `json:"asset_id"`
		PowerKW     float64 `json:"power_kw"`
		Utilization float64 `json:"utilization"`
		JobID       string  `json:"job_id"`
		TS          *int64  `json:"ts"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	if msg.AssetID == "" {
		msg.AssetID = extractID(topic)
	}
	if msg.Utilization < 0 {
		msg.Utilization = 0
	} else if msg.Utilization > 1 {
		msg.Utilization = 1
	}
	if m.assets != nil {
		asset, err := m.assets.GetAsset(msg.AssetID)
		if err != nil {
			m.log.Warnf("report from unregistered asset %s", msg.AssetID)
		} else if msg.PowerKW > asset.MaxPowerKW {
			m.log.Warnf("asset %s reported %.1f kW above its %.1f kW rating",
				msg.AssetID, msg.PowerKW, asset.MaxPowerKW)
			msg.PowerKW = asset.MaxPowerKW
		}
	}
	if m.power != nil {
		m.power.WithLabelValues(msg.AssetID).Set(msg.PowerKW)
	}
	if m.utilization != nil {
		m.utilization.WithLabelValues(msg.AssetID).Set(msg.Utilization)
	}
	if m.reports != nil {
		m.reports.Inc()
	}
	if m.lastReport != nil {
		ts := time.Now()
		if msg.TS != nil {
			ts = time.Unix(*msg.TS, 0)
		}
		m.lastReport.Set(float64(ts.Unix()))
	}
	return nil
}
