package mqtt

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/quentinrf/smartband-edge/internal/domain"
	"github.com/quentinrf/smartband-edge/internal/ports"
)

// DefaultTopic matches smartband/<smartBandId>/heart-rate
const DefaultTopic = "smartband/+/heart-rate"

const (
	subscribeQoS   = 1
	connectTimeout = 10 * time.Second
	handleTimeout  = 10 * time.Second
)

// Config holds broker connection settings
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	TLS      *tls.Config
}

// Consumer feeds readings published by bands into the command handler
type Consumer struct {
	cfg      Config
	client   paho.Client
	commands *ports.RecordHeartRateHandler
	ctx      context.Context
}

// NewConsumer creates a consumer; nothing connects until Start
func NewConsumer(cfg Config, commands *ports.RecordHeartRateHandler) *Consumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "smartband-edge"
	}
	return &Consumer{
		cfg:      cfg,
		commands: commands,
		ctx:      context.Background(),
	}
}

// Start connects to the broker and subscribes.
// The subscription is renewed on every reconnect.
func (c *Consumer) Start(ctx context.Context) error {
	c.ctx = ctx

	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
	}
	if c.cfg.Password != "" {
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.TLS != nil {
		opts.SetTLSConfig(c.cfg.TLS)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(client paho.Client) {
		if err := waitToken(client.Subscribe(c.cfg.Topic, subscribeQoS, c.onMessage), connectTimeout); err != nil {
			log.Error().Err(err).Str("topic", c.cfg.Topic).Msg("failed to subscribe")
			return
		}
		log.Info().Str("topic", c.cfg.Topic).Msg("subscribed to heart rate topic")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("lost connection to MQTT broker")
	})

	c.client = paho.NewClient(opts)

	if err := waitToken(c.client.Connect(), connectTimeout); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.cfg.Broker, err)
	}

	log.Info().Str("broker", c.cfg.Broker).Msg("connected to MQTT broker")
	return nil
}

var errTokenTimeout = errors.New("timed out waiting for broker acknowledgement")

// waitToken returns the token error, or errTokenTimeout if the broker did
// not answer in time
func waitToken(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTokenTimeout
	}
	return token.Error()
}

// Stop disconnects from the broker
func (c *Consumer) Stop() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	log.Info().Msg("disconnected from MQTT broker")
}

// onMessage never returns an error to paho; bad messages are dropped
func (c *Consumer) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	id, err := c.HandleMessage(ctx, msg.Topic(), msg.Payload())
	if err != nil {
		event := log.Error()
		if errors.Is(err, domain.ErrInvalidInput) {
			event = log.Warn()
		}
		event.Err(err).Str("topic", msg.Topic()).Msg("dropped heart rate message")
		return
	}

	log.Debug().Int64("id", id).Str("topic", msg.Topic()).Msg("stored heart rate message")
}

type payload struct {
	Pulse any `json:"pulse"`
}

// HandleMessage records one message and returns the reading ID
func (c *Consumer) HandleMessage(ctx context.Context, topic string, body []byte) (int64, error) {
	smartBandID, err := BandIDFromTopic(topic)
	if err != nil {
		return 0, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return 0, &domain.ValidationError{Field: "payload", Reason: "is not a JSON object"}
	}

	return c.commands.Handle(ctx, ports.RecordHeartRate{
		SmartBandID: smartBandID,
		Pulse:       p.Pulse,
	})
}

// BandIDFromTopic extracts the second topic level, e.g. "7" in smartband/7/heart-rate
func BandIDFromTopic(topic string) (string, error) {
	levels := strings.Split(topic, "/")
	if len(levels) < 3 || levels[1] == "" {
		return "", &domain.ValidationError{Field: "topic", Reason: fmt.Sprintf("%q has no smart band id", topic)}
	}
	return levels[1], nil
}
