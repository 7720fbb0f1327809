package homie

import (
	"strconv"

	"homie2mqtt/internal/logger"
)

const (
	// TopicRoot is the first level of every topic.
	TopicRoot = "homie"

	MaxTopicLen   = 128
	MaxPayloadLen = 512
)

// Transport takes finished packets. Both calls may refuse, in which case
// nothing was sent and the caller retries later with identical bytes.
// Implementations must copy the slices; they are reused after the call.
type Transport interface {
	Publish(topic, payload []byte, retain bool) bool
	Subscribe(topic []byte) bool
}

// Packet is the single publish packet under construction. Building a
// packet never fails; only Finish may be refused by the transport.
type Packet struct {
	transport Transport
	log       logger.Logger
	deviceID  string

	topic      [MaxTopicLen]byte
	topicLen   int
	payload    [MaxPayloadLen]byte
	payloadLen int
	scratch    [24]byte
	retain     bool
	truncated  bool
}

func newPacket(t Transport, log logger.Logger, deviceID string) *Packet {
	return &Packet{
		transport: t,
		log:       log,
		deviceID:  deviceID,
	}
}

func (p *Packet) reset() {
	p.topicLen = 0
	p.payloadLen = 0
	p.retain = false
	p.truncated = false
}

func (p *Packet) topicString(s string) {
	n := copy(p.topic[p.topicLen:], s)
	p.topicLen += n
	if n < len(s) {
		p.truncated = true
	}
}

func (p *Packet) topicBytes(b []byte) {
	n := copy(p.topic[p.topicLen:], b)
	p.topicLen += n
	if n < len(b) {
		p.truncated = true
	}
}

// begin opens a packet with the topic prefix homie/<device>.
func (p *Packet) begin(retain bool) {
	p.reset()
	p.retain = retain
	p.topicString(TopicRoot)
	p.topicString("/")
	p.topicString(p.deviceID)
}

// level appends "/<s>" to the topic.
func (p *Packet) level(s string) {
	p.topicString("/")
	p.topicString(s)
}

// indexed appends "/<id>" or "/<id>_<idx>" for array elements.
func (p *Packet) indexed(id string, idx int) {
	p.level(id)
	if idx >= 0 {
		p.topicString("_")
		p.topicBytes(strconv.AppendInt(p.scratch[:0], int64(idx), 10))
	}
}

func (p *Packet) deviceAttr(attr string) {
	p.begin(true)
	p.level(attr)
}

func (p *Packet) nodeAttr(nodeID, attr string) {
	p.begin(true)
	p.level(nodeID)
	p.level(attr)
}

func (p *Packet) propAttr(nodeID, propID string, idx int, attr string) {
	p.begin(true)
	p.level(nodeID)
	p.indexed(propID, idx)
	p.level(attr)
}

// Value opens the value packet of a property element. idx is NotArray for
// plain properties.
func (p *Packet) Value(nodeID, propID string, idx int, retain bool) {
	p.begin(retain)
	p.level(nodeID)
	p.indexed(propID, idx)
}

// Finish hands the packet to the transport. It returns false when the
// transport refused it. A packet that did not fit the buffers is dropped
// and reported as sent.
func (p *Packet) Finish() bool {
	if p.truncated {
		p.log.With(logger.Fields{"module": "homie"}).Warnf("packet %q exceeds buffer, dropped", p.topic[:p.topicLen])
		p.reset()
		return true
	}
	ok := p.transport.Publish(p.topic[:p.topicLen], p.payload[:p.payloadLen], p.retain)
	p.reset()
	return ok
}

// subscribe registers the topic built so far.
func (p *Packet) subscribe() bool {
	if p.truncated {
		p.log.With(logger.Fields{"module": "homie"}).Warnf("subscription %q exceeds buffer, dropped", p.topic[:p.topicLen])
		p.reset()
		return true
	}
	ok := p.transport.Subscribe(p.topic[:p.topicLen])
	p.reset()
	return ok
}
