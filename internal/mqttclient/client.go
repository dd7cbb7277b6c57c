// Package mqttclient connects the daemon to an MQTT broker: it speaks JSON
// say requests arriving on <prefix>/say and publishes transcription outcomes
// to <prefix>/transcripts.
package mqttclient

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/metrics"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/tts"
)

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Speaker     *tts.Speaker
	Profiles    *profile.Holder
	Log         zerolog.Logger
}

type Client struct {
	conn            mqtt.Client
	sayTopic        string
	transcriptTopic string
	speaker         *tts.Speaker
	profiles        *profile.Holder
	connected       atomic.Bool
	log             zerolog.Logger
}

func topicsFor(prefix string) (say, transcript string) {
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix + "/say", prefix + "/transcripts"
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		speaker:  opts.Speaker,
		profiles: opts.Profiles,
		log:      opts.Log,
	}
	c.sayTopic, c.transcriptTopic = topicsFor(opts.TopicPrefix)

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
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
	c.log.Info().Str("topic", c.sayTopic).Msg("mqtt connected, subscribing")

	token := client.Subscribe(c.sayTopic, 0, c.onSay)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

type sayMessage struct {
	Phrase string `json:"phrase"`
	Engine string `json:"engine"`
	Cache  bool   `json:"cache"`
}

// onSay runs on its own goroutine per message (OrderMatters is off), so the
// blocking playback cannot stall the broker connection.
func (c *Client) onSay(_ mqtt.Client, msg mqtt.Message) {
	metrics.MQTTMessagesTotal.WithLabelValues("say").Inc()
	c.handleSay(msg.Payload())
}

func (c *Client) handleSay(payload []byte) {
	var m sayMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		c.log.Warn().Err(err).Msg("malformed say message")
		return
	}

	slug := m.Engine
	if slug == "" {
		slug = tts.EngineSlug(c.profiles.Current())
	}

	c.log.Debug().Str("engine", slug).Bool("cache", m.Cache).Msg("mqtt say request")
	if err := c.speaker.Say(context.Background(), slug, m.Phrase, m.Cache); err != nil {
		c.log.Error().Err(err).Str("engine", slug).Msg("say message failed")
	}
}

type transcriptMessage struct {
	Engine     string   `json:"engine"`
	Candidates []string `json:"candidates"`
	DurationMS int64    `json:"duration_ms"`
}

// PublishTranscript pushes one transcription outcome, fire-and-forget. The
// publish token is drained off the request path.
func (c *Client) PublishTranscript(engine string, candidates []string, took time.Duration) {
	payload, err := json.Marshal(transcriptMessage{
		Engine:     engine,
		Candidates: candidates,
		DurationMS: took.Milliseconds(),
	})
	if err != nil {
		return
	}

	token := c.conn.Publish(c.transcriptTopic, 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Warn().Err(err).Msg("transcript publish failed")
		}
	}()
	metrics.MQTTMessagesTotal.WithLabelValues("transcript").Inc()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) Close() {
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
