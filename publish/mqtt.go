package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/robertof/go-miband-heartrate/live"
	"github.com/robertof/go-miband-heartrate/server"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTopic          = "miband/heartrate"
	DefaultPublishTimeout = 5 * time.Second
	clientIDPrefix        = "miband-heartrate-"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Retained bool
}

func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Client is the subset of mqtt.Client used by the publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Source is the blocking read side of the live store.
type Source interface {
	WaitForChange(ctx context.Context, lastSeen uint64) (live.Snapshot, error)
}

// Connect opens a paho client with auto-reconnect. The client id defaults to a random
// one so that several instances can share a broker.
func Connect(cfg Config) (mqtt.Client, error) {
	clientID := cfg.ClientID

	if clientID == "" {
		clientID = clientIDPrefix + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("Broker", cfg.Broker).Str("ClientID", clientID).Msg("MQTT connection established")
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("Broker", cfg.Broker).Msg("MQTT connection lost, will auto-reconnect")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	if !token.WaitTimeout(DefaultPublishTimeout) {
		// SetConnectRetry keeps trying in the background, publishes are queued meanwhile.
		log.Warn().Str("Broker", cfg.Broker).Msg("MQTT broker not reachable yet, retrying in background")
		return client, nil
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %q: %w", cfg.Broker, err)
	}

	return client, nil
}

type Publisher struct {
	Timeout time.Duration

	client   Client
	source   Source
	topic    string
	qos      byte
	retained bool
}

func NewPublisher(client Client, source Source, cfg Config) *Publisher {
	topic := cfg.Topic

	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{
		Timeout:  DefaultPublishTimeout,
		client:   client,
		source:   source,
		topic:    topic,
		qos:      cfg.QoS,
		retained: cfg.Retained,
	}
}

// Run publishes every generation it observes until ctx is done. Generations that
// arrive while a publish is in flight are coalesced into the next one. Failed
// publishes are logged and not retried.
func (p *Publisher) Run(ctx context.Context) error {
	log.Info().
		Str("Topic", p.topic).
		Int("QoS", int(p.qos)).
		Bool("Retained", p.retained).
		Msg("Starting MQTT publisher")

	var gen uint64

	for {
		snap, err := p.source.WaitForChange(ctx, gen)

		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info().Msg("MQTT publisher stopped")
				return nil
			}

			return err
		}

		gen = snap.Generation

		if err := p.publish(snap); err != nil {
			log.Warn().Err(err).Uint64("Generation", gen).Msg("Failed to publish reading")
		}
	}
}

func (p *Publisher) publish(snap live.Snapshot) error {
	payload, err := json.Marshal(server.NewUpdate(snap))

	if err != nil {
		return fmt.Errorf("failed to marshal update: %w", err)
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, payload)

	if !token.WaitTimeout(p.Timeout) {
		return ErrPublishTimeout
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", p.topic, err)
	}

	log.Trace().Str("Topic", p.topic).Uint64("Generation", snap.Generation).Msg("Published reading")

	return nil
}
