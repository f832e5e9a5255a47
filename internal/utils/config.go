package utils

import (
	"time"

	"github.com/vitalio/vitalsync-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker         string `yaml:"broker"`          // MQTT broker address
		ClientID       string `yaml:"client_id"`       // MQTT client ID
		Username       string `yaml:"username"`        // Broker username (optional)
		Password       string `yaml:"password"`        // Broker password (optional)
		CACertificate  string `yaml:"ca_certificate"`  // Path to the CA certificate (optional)
		VitalSignTopic string `yaml:"vitalsign_topic"` // Topic carrying vital-sign readings
		AlarmTopic     string `yaml:"alarm_topic"`     // Topic carrying alarm events
		QOS            int    `yaml:"qos"`             // MQTT QoS level for ingestion
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Cloud struct {
		ServerURL string        `yaml:"server_url"` // Sync service base URL
		APIKey    string        `yaml:"api_key"`    // Static API key sent on every request
		Timeout   time.Duration `yaml:"timeout"`    // Per-request timeout
	} `yaml:"cloud"`

	Storage struct {
		DSN      string `yaml:"dsn"`       // PostgreSQL connection string
		MaxConns int    `yaml:"max_conns"` // Connection pool size
		KeepDays int    `yaml:"keep_days"` // Retention horizon for old readings
	} `yaml:"storage"`

	Sync struct {
		AutoSync    bool          `yaml:"auto_sync"`    // Enable the periodic sync trigger
		Interval    time.Duration `yaml:"interval"`     // Auto-sync interval
		SendWorkers int           `yaml:"send_workers"` // Worker pool size for network sends
		SendQueue   int           `yaml:"send_queue"`   // Worker pool queue depth
	} `yaml:"sync"`

	Display struct {
		TrendCapacity int `yaml:"trend_capacity"` // Points retained per trend channel
	} `yaml:"display"`

	Share struct {
		BaseURL string `yaml:"base_url"` // Root of generated share links
	} `yaml:"share"`

	Ops struct {
		Addr string `yaml:"addr"` // Local bind address for operator endpoints
	} `yaml:"ops"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
