package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalio/vitalsync-agent/internal/models"
	"github.com/vitalio/vitalsync-agent/internal/monitor"
	"github.com/vitalio/vitalsync-agent/internal/services"
	"github.com/vitalio/vitalsync-agent/internal/share"
	"github.com/vitalio/vitalsync-agent/internal/storage"
	vsync "github.com/vitalio/vitalsync-agent/internal/sync"
	"github.com/vitalio/vitalsync-agent/internal/utils"
	"github.com/vitalio/vitalsync-agent/pkg/cloud"
	"github.com/vitalio/vitalsync-agent/pkg/file"
	"github.com/vitalio/vitalsync-agent/pkg/identity"
	"github.com/vitalio/vitalsync-agent/pkg/mqtt"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	log.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device information")
	}

	// Open durable storage
	store, err := storage.NewPostgresStore(config.Storage.DSN, config.Storage.MaxConns, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local storage")
	}
	defer store.Close()

	// Cloud client and sync core
	cloudClient := cloud.NewRestClient(config.Cloud.ServerURL, config.Cloud.APIKey,
		deviceInfo.GetDeviceID(), config.Cloud.Timeout)
	sendPool := utils.NewWorkerPool(config.Sync.SendWorkers, config.Sync.SendQueue)
	session := vsync.NewSession(cloudClient, sendPool, log)
	engine := vsync.NewEngine(session, cloudClient, store, log)
	engine.SetNotify(func(status models.SyncStatus) {
		evt := log.Info()
		if status.Err != nil {
			evt = log.Warn().Err(status.Err)
		}
		evt.Str("message", status.Message).Int("records", status.RecordCount).Msg("Sync status")
	})

	// Share-token registry
	registry := share.NewRegistry(config.Share.BaseURL, log)

	// Monitor loop owning the display windows
	mon := monitor.NewMonitor(config.Display.TrendCapacity, session, engine, store, sendPool, log)
	if err := mon.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start monitor loop")
	}

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	mqttClient.SetConnectionHandler(mon.OnConnectionState)
	err = mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID,
		config.MQTT.Username, config.MQTT.Password, config.MQTT.CACertificate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// Ingestion service feeding the monitor loop
	ingest := services.NewIngestService(config.MQTT.VitalSignTopic, config.MQTT.AlarmTopic,
		config.MQTT.QOS, mqttClient, mon, log)
	if err := ingest.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingestion")
	}

	// Operator surface: login, manual sync, export, sharing
	ops := services.NewOpsService(config.Ops.Addr, session, engine, store, registry, cloudClient, log)
	if err := ops.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start operator endpoints")
	}

	// Periodic sync trigger
	if config.Sync.AutoSync {
		if err := engine.SetAutoSync(true, config.Sync.Interval); err != nil {
			log.Fatal().Err(err).Msg("Failed to enable auto-sync")
		}
	}

	// Daily retention sweep
	retention := services.NewRetentionService(config.Storage.KeepDays, 24*time.Hour, store, log)
	if err := retention.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweep")
	}

	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if config.Sync.AutoSync {
		_ = engine.SetAutoSync(false, 0)
	}
	_ = retention.Stop()
	_ = ops.Stop()
	_ = ingest.Stop()
	mqttClient.Disconnect(250)
	_ = mon.Stop()
	sendPool.Shutdown()
}
