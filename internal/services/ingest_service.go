// Package services contains the agent's long-running services, each with
// the Start/Stop lifecycle used across this codebase.
package services

import (
	"encoding/json"
	"errors"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/pkg/mqtt"
)

// Sink receives parsed ingestion events. The monitor loop implements it.
type Sink interface {
	OnVitalSign(v models.VitalSign)
	OnAlarm(a models.Alarm)
	OnConnectionState(connected bool)
}

// IngestService subscribes to the device's vital-sign and alarm topics and
// feeds decoded events into the sink.
type IngestService struct {
	VitalSignTopic string
	AlarmTopic     string
	QOS            int
	MqttClient     mqtt.MQTTClient
	Sink           Sink
	Logger         zerolog.Logger

	running bool
}

// NewIngestService initializes a new IngestService.
func NewIngestService(vitalSignTopic, alarmTopic string, qos int,
	mqttClient mqtt.MQTTClient, sink Sink, logger zerolog.Logger) *IngestService {

	return &IngestService{
		VitalSignTopic: vitalSignTopic,
		AlarmTopic:     alarmTopic,
		QOS:            qos,
		MqttClient:     mqttClient,
		Sink:           sink,
		Logger:         logger,
	}
}

// Start subscribes to both ingestion topics.
func (s *IngestService) Start() error {
	if s.running {
		s.Logger.Warn().Msg("IngestService is already running")
		return errors.New("ingest service is already running")
	}

	token := s.MqttClient.Subscribe(s.VitalSignTopic, byte(s.QOS), s.onVitalSignMessage)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	token = s.MqttClient.Subscribe(s.AlarmTopic, byte(s.QOS), s.onAlarmMessage)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	s.running = true
	s.Logger.Info().
		Str("vitalsign_topic", s.VitalSignTopic).
		Str("alarm_topic", s.AlarmTopic).
		Msg("IngestService started successfully")
	return nil
}

// Stop unsubscribes from the ingestion topics.
func (s *IngestService) Stop() error {
	if !s.running {
		s.Logger.Warn().Msg("IngestService is not running")
		return errors.New("ingest service is not running")
	}

	token := s.MqttClient.Unsubscribe(s.VitalSignTopic, s.AlarmTopic)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	s.running = false
	s.Logger.Info().Msg("IngestService stopped successfully")
	return nil
}

// onVitalSignMessage decodes and validates one reading before handing it
// to the sink. Invalid readings are rejected here, never clamped.
func (s *IngestService) onVitalSignMessage(_ MQTT.Client, msg MQTT.Message) {
	var v models.VitalSign
	if err := json.Unmarshal(msg.Payload(), &v); err != nil {
		s.Logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse vital sign payload")
		return
	}

	if !v.IsValid() {
		s.Logger.Warn().
			Float64("temperature", v.Temperature).
			Int("heart_rate", v.HeartRate).
			Int("oxygen", v.OxygenSaturation).
			Msg("Rejected invalid vital sign")
		return
	}

	s.Sink.OnVitalSign(v)
}

// onAlarmMessage decodes one alarm event. Alarms bypass the validity
// predicate; they may legitimately describe out-of-range readings.
func (s *IngestService) onAlarmMessage(_ MQTT.Client, msg MQTT.Message) {
	var a models.Alarm
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		s.Logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse alarm payload")
		return
	}

	s.Sink.OnAlarm(a)
}
