// Package broker wraps the MQTT connection shared by the front-end and the
// workers. Two named task queues carry pipeline work at QoS 1 (at-least-once;
// tasks must tolerate redelivery) and a separate pub/sub topic fans job
// status updates out to every front-end process.
package broker

import (
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Topic layout.
const (
	QueueGPU     = "gpu_tasks"
	QueueCPU     = "cpu_tasks"
	TopicUpdates = "job_updates"

	taskPrefix = "meeting/tasks/"
	topicRoot  = "meeting/"
)

// MessageHandler receives the raw payload of one broker message.
type MessageHandler func(payload []byte)

type Client struct {
	conn      mqtt.Client
	connected atomic.Bool
	log       zerolog.Logger

	// Subscriptions registered before or after connect; re-applied on
	// every reconnect so a broker restart does not drop consumers.
	subs map[string]MessageHandler
}

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Log       zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		log:  opts.Log,
		subs: make(map[string]MessageHandler),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Msg("broker connected")

	for topic, handler := range c.subs {
		c.subscribe(topic, handler)
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("broker connection lost, will auto-reconnect")
}

func (c *Client) subscribe(topic string, handler MessageHandler) {
	token := c.conn.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("broker subscribe failed")
		return
	}
	c.log.Info().Str("topic", topic).Msg("broker subscribed")
}

// Subscribe registers a durable QoS 1 subscription on a raw topic.
// The handler runs on the paho router goroutine; keep it short or hand off.
func (c *Client) Subscribe(topic string, handler MessageHandler) {
	c.subs[topic] = handler
	if c.conn.IsConnected() {
		c.subscribe(topic, handler)
	}
}

// Publish sends payload to a raw topic at QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.conn.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting broker client")
	c.conn.Disconnect(1000)
}
