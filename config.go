package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/robertof/go-miband-heartrate/device"
	"github.com/robertof/go-miband-heartrate/device/miband"
	"github.com/robertof/go-miband-heartrate/live"
	"github.com/robertof/go-miband-heartrate/publish"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type config struct {
	Debug, Trace      bool
	ConfigFile        string
	BindAddress       string
	EnableMetrics     bool
	DiscoverDevices   bool
	DiscoveryDuration time.Duration
	BluetoothDeviceId int
	ActiveScan        bool
	Live              live.Config
	MQTT              publish.Config
	Device            device.Device
}

// fileConfig is the layout of the optional YAML file given with -config.
// Flags set on the command line win over file values.
type fileConfig struct {
	Bind            *string           `yaml:"bind"`
	Metrics         *bool             `yaml:"metrics"`
	BluetoothDevice *int              `yaml:"bluetooth_device"`
	ActiveScan      *bool             `yaml:"active_scan"`
	History         *int              `yaml:"history"`
	StaleAfter      *time.Duration    `yaml:"stale_after"`
	Device          map[string]string `yaml:"device"`
	MQTT            *fileMQTTConfig   `yaml:"mqtt"`
}

type fileMQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      *uint  `yaml:"qos"`
	Retained *bool  `yaml:"retained"`
}

type boundDevice struct {
	device.Factory
	name   string
	target *device.Device
}

var deviceFactories = map[string]device.Factory{
	"miband": &miband.Factory{},
}

func (d *boundDevice) String() string {
	return ""
}

func (d *boundDevice) Set(v string) error {
	if *d.target != nil {
		return errors.New("only one target device is supported")
	}

	dev, err := d.FromSpec(device.NewDeviceSpec(v))
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	*d.target = dev

	return nil
}

func ParseArgs() config {
	// a missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := parseArgs(flag.CommandLine, os.Args[1:])

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	return cfg
}

func parseArgs(fs *flag.FlagSet, args []string) (cfg config, err error) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Optional YAML configuration file (flags take precedence)")
	fs.StringVar(&cfg.BindAddress, "bind", "localhost:8080", "Where the HTTP server will bind to")
	fs.BoolVar(&cfg.EnableMetrics, "metrics", true, "Expose Prometheus metrics on /metrics")
	fs.IntVar(&cfg.BluetoothDeviceId, "bluetooth-device", 0, "Bluetooth (HCI) device ID")
	fs.BoolVar(&cfg.ActiveScan, "active-scan", false, "Request scan responses (needed if the band only advertises its name in them)")
	fs.BoolVar(&cfg.DiscoverDevices, "discover", false, "Discover available BLE devices and quit")
	fs.DurationVar(&cfg.DiscoveryDuration, "discover-duration", 5 * time.Second, "How long device discovery runs")
	fs.IntVar(&cfg.Live.HistoryCapacity, "history", live.DefaultHistoryCapacity, "Number of readings kept in the history")
	fs.DurationVar(&cfg.Live.StaleAfter, "stale-after", live.DefaultStaleAfter,
		"Age after which the latest reading is reported as stale")
	fs.StringVar(&cfg.MQTT.Broker, "mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883). Publishing is disabled when empty")
	fs.StringVar(&cfg.MQTT.ClientID, "mqtt-client-id", "", "MQTT client ID. Defaults to a random one")
	fs.StringVar(&cfg.MQTT.Username, "mqtt-username", "", "MQTT username")
	fs.StringVar(&cfg.MQTT.Topic, "mqtt-topic", publish.DefaultTopic, "MQTT topic readings are published to")
	fs.BoolVar(&cfg.MQTT.Retained, "mqtt-retained", true, "Publish readings as retained messages")
	qos := fs.Uint("mqtt-qos", 0, "MQTT QoS level (0, 1 or 2)")
	fs.BoolVar(&cfg.Debug, "debug", false, "Enable debug logs")
	fs.BoolVar(&cfg.Trace, "trace", false, "Enable trace logs")

	for deviceName, deviceFactory := range deviceFactories {
		bound := boundDevice{
			name:    deviceName,
			Factory: deviceFactory,
			target:  &cfg.Device,
		}

		help := "Device spec for the band in the form of `key=value,key=value`."

		if docs, ok := deviceFactory.(device.FactoryDocs); ok {
			help += "\n" + docs.Help()
		}

		fs.Var(&bound, deviceName, help)
	}

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *qos > 2 {
		return cfg, fmt.Errorf("invalid MQTT QoS %d", *qos)
	}

	cfg.MQTT.QoS = byte(*qos)

	if cfg.ConfigFile != "" {
		if err := applyFile(&cfg, cfg.ConfigFile, set); err != nil {
			return cfg, err
		}
	}

	// the password never goes on the command line.
	if cfg.MQTT.Password == "" {
		cfg.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}

	if cfg.Device == nil {
		if cfg.Device, err = miband.New(miband.DefaultConfig); err != nil {
			return cfg, err
		}
	}

	if cfg.Live.HistoryCapacity <= 0 {
		return cfg, fmt.Errorf("history must be positive, got %d", cfg.Live.HistoryCapacity)
	}

	if cfg.Live.StaleAfter <= 0 {
		return cfg, fmt.Errorf("stale-after must be positive, got %v", cfg.Live.StaleAfter)
	}

	return cfg, nil
}

func applyFile(cfg *config, path string, set map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	log.Debug().Str("Path", path).Msg("Loaded configuration file")

	if fc.Bind != nil && !set["bind"] {
		cfg.BindAddress = *fc.Bind
	}

	if fc.Metrics != nil && !set["metrics"] {
		cfg.EnableMetrics = *fc.Metrics
	}

	if fc.BluetoothDevice != nil && !set["bluetooth-device"] {
		cfg.BluetoothDeviceId = *fc.BluetoothDevice
	}

	if fc.ActiveScan != nil && !set["active-scan"] {
		cfg.ActiveScan = *fc.ActiveScan
	}

	if fc.History != nil && !set["history"] {
		cfg.Live.HistoryCapacity = *fc.History
	}

	if fc.StaleAfter != nil && !set["stale-after"] {
		cfg.Live.StaleAfter = *fc.StaleAfter
	}

	for name, factory := range deviceFactories {
		if fc.Device == nil || set[name] {
			continue
		}

		if cfg.Device, err = factory.FromSpec(device.DeviceSpec(fc.Device)); err != nil {
			return fmt.Errorf("invalid device in config file: %w", err)
		}
	}

	if m := fc.MQTT; m != nil {
		if m.Broker != "" && !set["mqtt-broker"] {
			cfg.MQTT.Broker = m.Broker
		}

		if m.ClientID != "" && !set["mqtt-client-id"] {
			cfg.MQTT.ClientID = m.ClientID
		}

		if m.Username != "" && !set["mqtt-username"] {
			cfg.MQTT.Username = m.Username
		}

		if m.Topic != "" && !set["mqtt-topic"] {
			cfg.MQTT.Topic = m.Topic
		}

		if m.QoS != nil && !set["mqtt-qos"] {
			if *m.QoS > 2 {
				return fmt.Errorf("invalid MQTT QoS %d in config file", *m.QoS)
			}

			cfg.MQTT.QoS = byte(*m.QoS)
		}

		if m.Retained != nil && !set["mqtt-retained"] {
			cfg.MQTT.Retained = *m.Retained
		}

		cfg.MQTT.Password = m.Password
	}

	return nil
}
