package clientmqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"homie2mqtt/internal/homie"
	"homie2mqtt/internal/logger"
	"homie2mqtt/internal/metrics"
)

const clientIDPrefix = "homie2mqtt"

// ClientMQTT connects a Homie session to an MQTT broker. All session calls
// happen on the event loop goroutine started by Start.
type ClientMQTT struct {
	ctx       context.Context
	log       *logger.Log
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	metrics   *metrics.Metrics
	session   *homie.Session
	events    chan event
	inflight  atomic.Int32
	wg        sync.WaitGroup
}

// MQTTClient is a convenience interface to use within this application.
type MQTTClient interface {
	Start(ctx context.Context) error
	Stop() error
	Do(fn func())
}

// NewClient creates the client and the session publishing device d.
func NewClient(log logger.Logger, cfgClient MQTTConf, d *homie.Device, m *metrics.Metrics) *ClientMQTT {
	if cfgClient.ClientID == "" {
		cfgClient.ClientID = clientIDPrefix + "-" + uuid.NewString()
	}
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	if cfgClient.MaxInflight <= 0 {
		cfgClient.MaxInflight = 1
	}
	if cfgClient.Poll <= 0 {
		cfgClient.Poll = 50 * time.Millisecond
	}
	c := &ClientMQTT{
		log:       log.With(logger.Fields{"module": "mqtt"}),
		cfgClient: cfgClient,
		metrics:   m,
		events:    make(chan event, 64),
	}
	c.session = homie.NewSession(d, c, log)
	return c
}

func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" {
		paho := c.log.With(logger.Fields{"module": "paho"})
		mqtt.ERROR = paho
		mqtt.CRITICAL = paho
		mqtt.WARN = paho
	}

	c.ctx = ctx

	d := c.session.Device()
	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetKeepAlive(c.cfgClient.KeepAlive).
		SetWill(homie.TopicRoot+"/"+d.ID+"/$state", "lost", 0, true)

	c.client = mqtt.NewClient(c.opts)

	c.wg.Add(1)
	go c.run()

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	c.wg.Wait()
	return nil
}

// Do runs fn on the event loop, serialised with the session.
func (c *ClientMQTT) Do(fn func()) {
	c.post(event{kind: eventCall, call: fn})
}

func (c *ClientMQTT) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *ClientMQTT) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfgClient.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ev)
		case <-ticker.C:
			c.session.Poll()
			if c.metrics != nil {
				c.metrics.State.Set(float64(c.session.State()))
			}
		}
	}
}

func (c *ClientMQTT) handle(ev event) {
	switch ev.kind {
	case eventConnected:
		c.session.Connect()
		if c.metrics != nil {
			c.metrics.Connects.Inc()
		}
	case eventLost:
		c.session.Disconnect()
	case eventMessage:
		ok := c.session.Deliver(ev.topic, ev.payload, ev.retained)
		if c.metrics != nil {
			result := "dropped"
			if ok {
				result = "matched"
			}
			c.metrics.Inbound.WithLabelValues(result).Inc()
		}
	case eventCall:
		ev.call()
	}
	if c.metrics != nil {
		c.metrics.State.Set(float64(c.session.State()))
	}
}

func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.Info("client connected to server")
	c.post(event{kind: eventConnected})
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
	c.post(event{kind: eventLost})
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.Debugf("received message: %q from topic: %s", msg.Payload(), msg.Topic())
	c.post(event{
		kind:     eventMessage,
		topic:    []byte(msg.Topic()),
		payload:  msg.Payload(),
		retained: msg.Retained(),
	})
}

// admit reserves a slot of the in-flight window.
func (c *ClientMQTT) admit() bool {
	if c.client == nil || !c.client.IsConnectionOpen() {
		c.refused("offline")
		return false
	}
	if int(c.inflight.Load()) >= c.cfgClient.MaxInflight {
		c.refused("window")
		return false
	}
	c.inflight.Add(1)
	return true
}

func (c *ClientMQTT) refused(reason string) {
	if c.metrics != nil {
		c.metrics.Refused.WithLabelValues(reason).Inc()
	}
}

// Publish implements homie.Transport.
func (c *ClientMQTT) Publish(topic, payload []byte, retain bool) bool {
	if !c.admit() {
		return false
	}
	t := string(topic)
	token := c.client.Publish(t, 0, retain, append([]byte(nil), payload...))
	if c.metrics != nil {
		c.metrics.Published.Inc()
	}
	go c.await(token, func(err error) {
		if err != nil {
			c.log.Errorf("error publish topic %s. %v", t, err)
		}
	})
	return true
}

// Subscribe implements homie.Transport.
func (c *ClientMQTT) Subscribe(topic []byte) bool {
	if !c.admit() {
		return false
	}
	t := string(topic)
	token := c.client.Subscribe(t, 0, nil)
	if c.metrics != nil {
		c.metrics.Subscriptions.Inc()
	}
	go c.await(token, func(err error) {
		if err != nil {
			c.log.Errorf("topic %s subscription error. %v", t, err)
			return
		}
		c.log.Debugf("topic %s subscribed", t)
	})
	return true
}

// await releases the in-flight slot once the token completes.
func (c *ClientMQTT) await(token mqtt.Token, done func(error)) {
	defer c.inflight.Add(-1)
	select {
	case <-c.ctx.Done():
	case <-token.Done():
		done(token.Error())
	}
}
