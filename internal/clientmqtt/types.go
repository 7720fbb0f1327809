package clientmqtt

import "time"

type MQTTConf struct {
	ClientID    string        // ClientID - unique client name for the broker.
	Schema      string        // Schema - connection type.
	Host        string        // Host - MQTT server address.
	Port        string        // Port - MQTT server port.
	User        string        // User - login for the MQTT server.
	Password    string        // Password - password for the MQTT server.
	MaxInflight int           // MaxInflight - unacknowledged packets before publishing is refused.
	KeepAlive   time.Duration // KeepAlive - keepalive interval.
	Poll        time.Duration // Poll - event loop tick.
}

type eventKind uint8

const (
	eventConnected eventKind = iota
	eventLost
	eventMessage
	eventCall
)

// event is handed from paho callbacks to the event loop.
type event struct {
	kind     eventKind
	topic    []byte
	payload  []byte
	retained bool
	call     func()
}
