package homie

import (
	"strconv"

	"homie2mqtt/internal/logger"
)

// Session drives one connection through the device description.
// It is not safe for concurrent use; the owner calls Connect, Disconnect,
// Poll and Deliver from a single goroutine.
type Session struct {
	device *Device
	log    *logger.Log
	packet *Packet
	cursor Cursor
}

// NewSession creates a disconnected session for device d publishing through t.
func NewSession(d *Device, t Transport, log logger.Logger) *Session {
	s := &Session{
		device: d,
		log:    log.With(logger.Fields{"module": "homie"}),
		packet: newPacket(t, log, d.ID),
	}
	s.cursor.reset(StateDisconnected)
	return s
}

func (s *Session) Device() *Device {
	return s.device
}

func (s *Session) State() State {
	return s.cursor.State
}

// Cursor returns a copy of the current position.
func (s *Session) Cursor() Cursor {
	return s.cursor
}

// Connect restarts the announcement sequence from the beginning.
func (s *Session) Connect() {
	s.setState(StateInit)
}

// Disconnect drops whatever the session was doing.
func (s *Session) Disconnect() {
	s.setState(StateDisconnected)
}

func (s *Session) setState(st State) {
	if st != s.cursor.State {
		s.log.Debugf("state %s -> %s", s.cursor.State, st)
	}
	s.cursor.reset(st)
}

// Poll runs one step of the state machine. It returns false when the
// transport refused a packet; the cursor then still points at the refused
// packet and the next Poll retries it.
func (s *Session) Poll() bool {
	switch s.cursor.State {
	case StateInit:
		if !s.sendDeviceAttr("$state", "init") {
			return false
		}
		s.setState(StateDeviceMeta)
	case StateDeviceMeta:
		if !s.sendDeviceMeta() {
			return false
		}
		s.setState(StateNodeMeta)
	case StateNodeMeta:
		if !s.sendNodesMeta() {
			return false
		}
		s.setState(StateReady)
	case StateReady:
		if !s.sendDeviceAttr("$state", "ready") {
			return false
		}
		s.setState(StateActive)
	case StateActive:
		if !s.outputNodes() {
			return false
		}
		s.setState(StateActive)
	}
	return true
}

// Device level.

var deviceSteps = [devFieldDone]func(s *Session) bool{
	devFieldHomie:          (*Session).sendHomie,
	devFieldName:           (*Session).sendDeviceName,
	devFieldLocalIP:        (*Session).sendLocalIP,
	devFieldMAC:            (*Session).sendMAC,
	devFieldNodes:          (*Session).sendNodeList,
	devFieldImplementation: (*Session).sendImplementation,
}

func (s *Session) sendDeviceMeta() bool {
	for s.cursor.DevField < devFieldDone {
		if !deviceSteps[s.cursor.DevField](s) {
			return false
		}
		s.cursor.DevField++
	}
	return true
}

func (s *Session) sendDeviceAttr(attr, value string) bool {
	if value == "" {
		return true
	}
	s.packet.deviceAttr(attr)
	s.packet.WriteString(value)
	return s.packet.Finish()
}

func (s *Session) sendHomie() bool {
	return s.sendDeviceAttr("$homie", ProtocolVersion)
}

func (s *Session) sendDeviceName() bool {
	return s.sendDeviceAttr("$name", s.device.Name)
}

func (s *Session) sendImplementation() bool {
	return s.sendDeviceAttr("$implementation", s.device.Implementation)
}

func (s *Session) sendLocalIP() bool {
	ip := s.device.LocalIP
	if len(ip) == 0 {
		return true
	}
	p := s.packet
	p.deviceAttr("$localip")
	if v4 := ip.To4(); v4 != nil {
		for i, b := range v4 {
			if i > 0 {
				p.WriteString(".")
			}
			p.WriteUint(uint64(b))
		}
	} else {
		for i := 0; i+1 < len(ip); i += 2 {
			if i > 0 {
				p.WriteString(":")
			}
			p.writeHex(uint64(ip[i])<<8|uint64(ip[i+1]), 4, false)
		}
	}
	return p.Finish()
}

func (s *Session) sendMAC() bool {
	mac := s.device.MAC
	if len(mac) == 0 {
		return true
	}
	p := s.packet
	p.deviceAttr("$mac")
	for i, b := range mac {
		if i > 0 {
			p.WriteString(":")
		}
		p.writeHex(uint64(b), 2, true)
	}
	return p.Finish()
}

func (s *Session) sendNodeList() bool {
	p := s.packet
	p.deviceAttr("$nodes")
	for i, n := range s.device.Nodes {
		if i > 0 {
			p.WriteString(",")
		}
		p.WriteString(n.ID)
	}
	return p.Finish()
}

// writeHex appends v as zero padded hex of the given width.
func (p *Packet) writeHex(v uint64, width int, upper bool) {
	b := strconv.AppendUint(p.scratch[:0], v, 16)
	for i := len(b); i < width; i++ {
		p.WriteString("0")
	}
	if upper {
		for i, c := range b {
			if c >= 'a' && c <= 'f' {
				b[i] = c - 'a' + 'A'
			}
		}
	}
	p.WriteBytes(b)
}

// Node level.

var nodeSteps = [nodeFieldDone]func(s *Session, n *Node) bool{
	nodeFieldInit:       (*Session).initNode,
	nodeFieldName:       (*Session).sendNodeName,
	nodeFieldType:       (*Session).sendNodeType,
	nodeFieldProperties: (*Session).sendPropertyList,
}

func (s *Session) sendNodesMeta() bool {
	for s.cursor.Node < len(s.device.Nodes) {
		n := s.device.Nodes[s.cursor.Node]
		if !s.sendNodeMeta(n) {
			return false
		}
		if !s.sendPropsMeta(n) {
			return false
		}
		s.cursor.nextNode()
	}
	return true
}

func (s *Session) sendNodeMeta(n *Node) bool {
	for s.cursor.NodeField < nodeFieldDone {
		if !nodeSteps[s.cursor.NodeField](s, n) {
			return false
		}
		s.cursor.NodeField++
	}
	return true
}

func (s *Session) initNode(n *Node) bool {
	if i, ok := n.Handler.(NodeIniter); ok {
		return i.Init()
	}
	return true
}

func (s *Session) sendNodeAttr(n *Node, attr, value string) bool {
	if value == "" {
		return true
	}
	s.packet.nodeAttr(n.ID, attr)
	s.packet.WriteString(value)
	return s.packet.Finish()
}

func (s *Session) sendNodeName(n *Node) bool {
	return s.sendNodeAttr(n, "$name", n.Name)
}

func (s *Session) sendNodeType(n *Node) bool {
	return s.sendNodeAttr(n, "$type", n.Type)
}

// sendPropertyList publishes $properties. The array counts fetched here
// are kept in the cursor and reused for the element metadata of this node.
func (s *Session) sendPropertyList(n *Node) bool {
	p := s.packet
	p.nodeAttr(n.ID, "$properties")
	first := true
	for i, prop := range n.Properties {
		count := prop.arrayCount()
		s.cursor.counts[i] = int32(count)
		if count < 0 {
			if !first {
				p.WriteString(",")
			}
			p.WriteString(prop.ID)
			first = false
			continue
		}
		for idx := 0; idx < count; idx++ {
			if !first {
				p.WriteString(",")
			}
			p.WriteString(prop.ID)
			p.WriteString("_")
			p.WriteInt(int64(idx))
			first = false
		}
	}
	return p.Finish()
}

// Property level.

var propSteps = [propFieldDone]func(s *Session, n *Node, prop *Property, idx int) bool{
	propFieldName:      (*Session).sendPropName,
	propFieldSettable:  (*Session).sendPropSettable,
	propFieldUnit:      (*Session).sendPropUnit,
	propFieldDatatype:  (*Session).sendPropDatatype,
	propFieldFormat:    (*Session).sendPropFormat,
	propFieldSubscribe: (*Session).subscribeProp,
}

func (s *Session) sendPropsMeta(n *Node) bool {
	c := &s.cursor
	for c.Prop < len(n.Properties) {
		prop := n.Properties[c.Prop]
		if c.ArrayCount == ArrayUninit {
			c.ArrayCount = int(c.counts[c.Prop])
		}
		if c.ArrayCount >= 0 {
			for c.ArrayIdx < c.ArrayCount {
				if !s.sendPropMeta(n, prop, c.ArrayIdx) {
					return false
				}
				c.ArrayIdx++
			}
		} else if !s.sendPropMeta(n, prop, NotArray) {
			return false
		}
		c.nextProp()
	}
	return true
}

func (s *Session) sendPropMeta(n *Node, prop *Property, idx int) bool {
	for s.cursor.PropField < propFieldDone {
		if !propSteps[s.cursor.PropField](s, n, prop, idx) {
			return false
		}
		s.cursor.PropField++
	}
	s.cursor.PropField = 0
	return true
}

func (s *Session) sendPropAttr(n *Node, prop *Property, idx int, attr, value string) bool {
	if value == "" {
		return true
	}
	s.packet.propAttr(n.ID, prop.ID, idx, attr)
	s.packet.WriteString(value)
	return s.packet.Finish()
}

func (s *Session) sendPropName(n *Node, prop *Property, idx int) bool {
	if namer, ok := prop.Handler.(Namer); ok {
		s.packet.propAttr(n.ID, prop.ID, idx, "$name")
		namer.Name(s.packet, idx)
		return s.packet.Finish()
	}
	return s.sendPropAttr(n, prop, idx, "$name", prop.Name)
}

func (s *Session) sendPropSettable(n *Node, prop *Property, idx int) bool {
	s.packet.propAttr(n.ID, prop.ID, idx, "$settable")
	s.packet.WriteBool(prop.Settable())
	return s.packet.Finish()
}

func (s *Session) sendPropUnit(n *Node, prop *Property, idx int) bool {
	return s.sendPropAttr(n, prop, idx, "$unit", prop.Unit)
}

func (s *Session) sendPropDatatype(n *Node, prop *Property, idx int) bool {
	return s.sendPropAttr(n, prop, idx, "$datatype", prop.Datatype.String())
}

func (s *Session) sendPropFormat(n *Node, prop *Property, idx int) bool {
	if f, ok := prop.Handler.(Formatter); ok {
		s.packet.propAttr(n.ID, prop.ID, idx, "$format")
		f.Format(s.packet, idx)
		return s.packet.Finish()
	}
	return s.sendPropAttr(n, prop, idx, "$format", prop.Format)
}

// subscribeProp registers the value topic of a settable element; inbound
// messages on it reach the property through Deliver.
func (s *Session) subscribeProp(n *Node, prop *Property, idx int) bool {
	if !prop.Settable() {
		return true
	}
	s.packet.begin(false)
	s.packet.level(n.ID)
	s.packet.indexed(prop.ID, idx)
	return s.packet.subscribe()
}

// Active state: round robin over all outputs.

func (s *Session) outputNodes() bool {
	for s.cursor.Node < len(s.device.Nodes) {
		if !s.outputProps(s.device.Nodes[s.cursor.Node]) {
			return false
		}
		s.cursor.nextNode()
	}
	return true
}

func (s *Session) outputProps(n *Node) bool {
	c := &s.cursor
	for c.Prop < len(n.Properties) {
		prop := n.Properties[c.Prop]
		out, ok := prop.Handler.(Outputter)
		if !ok {
			c.nextProp()
			continue
		}
		if c.ArrayCount == ArrayUninit {
			c.ArrayCount = prop.arrayCount()
		}
		if c.ArrayCount >= 0 {
			for c.ArrayIdx < c.ArrayCount {
				if !out.Output(s.packet, c.ArrayIdx) {
					return false
				}
				c.ArrayIdx++
			}
		} else if !out.Output(s.packet, NotArray) {
			return false
		}
		c.nextProp()
	}
	return true
}
