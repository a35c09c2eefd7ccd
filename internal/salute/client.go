package salute

import (
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/semjef/ha-salute-bridge/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Downlink message kinds, classified from the topic.
const (
	DOWNLINK_COMMANDS       = "commands"
	DOWNLINK_STATUS_REQUEST = "status_request"
	DOWNLINK_CONFIG_REQUEST = "config_request"
	DOWNLINK_ERRORS         = "errors"
	DOWNLINK_GLOBAL_CONFIG  = "global_config"
)

const gatewayTopicRoot = "sberdevices/v1"

// IsAuthError reports whether a connect failure is a credentials rejection
// from the broker. Reconnecting with the same credentials cannot succeed.
func IsAuthError(err error) bool {
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", cfg.Salute.Broker, cfg.Salute.Port))
	opts.SetClientID(fmt.Sprintf("salutebridge_%d", rand.IntN(1000)))
	opts.SetUsername(cfg.Salute.Login)
	opts.SetPassword(cfg.Salute.Password)
	if cfg.Salute.TLSInsecure {
		// the gateway fronts its broker with a private CA
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return opts
}

func CreateSaluteClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *SaluteClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &SaluteClient{
		client: mqtt.NewClient(opts),
		login:  cfg.Salute.Login,
	}
}

type SaluteClient struct {
	client mqtt.Client
	login  string
}

// ParsedDownlink is one classified message from the gateway.
type ParsedDownlink struct {
	Kind    string
	Payload []byte
}

func (c *SaluteClient) baseTopic() string {
	return fmt.Sprintf("%s/%s", gatewayTopicRoot, c.login)
}

func (c *SaluteClient) DownTopic() string {
	return fmt.Sprintf("%s/down/#", c.baseTopic())
}

func (c *SaluteClient) GlobalConfigTopic() string {
	return fmt.Sprintf("%s/__config", gatewayTopicRoot)
}

func (c *SaluteClient) StatusTopic() string {
	return fmt.Sprintf("%s/up/status", c.baseTopic())
}

func (c *SaluteClient) ConfigTopic() string {
	return fmt.Sprintf("%s/up/config", c.baseTopic())
}

// ParseDownlink classifies a message from either subscription by topic.
func (c *SaluteClient) ParseDownlink(msg mqtt.Message) (*ParsedDownlink, error) {
	topic := msg.Topic()
	if topic == c.GlobalConfigTopic() {
		return &ParsedDownlink{Kind: DOWNLINK_GLOBAL_CONFIG, Payload: msg.Payload()}, nil
	}
	downPrefix := fmt.Sprintf("%s/down/", c.baseTopic())
	if !strings.HasPrefix(topic, downPrefix) {
		return nil, fmt.Errorf("unexpected topic %q", topic)
	}
	switch kind := strings.TrimPrefix(topic, downPrefix); kind {
	case DOWNLINK_COMMANDS, DOWNLINK_STATUS_REQUEST, DOWNLINK_CONFIG_REQUEST, DOWNLINK_ERRORS:
		return &ParsedDownlink{Kind: kind, Payload: msg.Payload()}, nil
	default:
		return nil, fmt.Errorf("unknown downlink kind %q", kind)
	}
}

func (c *SaluteClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *SaluteClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// SubscribeToDownlink subscribes to both the per-account down topics and
// the shared global config topic.
func (c *SaluteClient) SubscribeToDownlink(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.DownTopic(), 1, handler, func(err error) {
		if err != nil {
			continuation(err)
			return
		}
		c.Subscribe(c.GlobalConfigTopic(), 0, handler, continuation, timeout)
	}, timeout)
}

func (c *SaluteClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		didTO := token.WaitTimeout(timeout)
		if !didTO {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *SaluteClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}
