package homie

import (
	"errors"
	"fmt"
	"net"
)

const (
	// ProtocolVersion is the convention version announced in $homie.
	ProtocolVersion = "3.0.1"

	// MaxProperties bounds the number of properties of a single node.
	MaxProperties = 64
)

// Datatype is the Homie property datatype.
type Datatype uint8

const (
	DtString Datatype = iota
	DtInteger
	DtFloat
	DtBool
	DtEnum
	DtColor
)

func (d Datatype) String() string {
	switch d {
	case DtInteger:
		return "integer"
	case DtFloat:
		return "float"
	case DtBool:
		return "boolean"
	case DtEnum:
		return "enum"
	case DtColor:
		return "color"
	default:
		return "string"
	}
}

// Capabilities a property handler may implement. Every one of them is
// optional; the engine discovers them with a type assertion.

// ArrayCounter reports the current element count of an array property,
// or NotArray.
type ArrayCounter interface {
	ArrayCount() int
}

// Namer writes the display name of element idx into the packet payload.
type Namer interface {
	Name(p *Packet, idx int)
}

// Formatter writes the $format value into the packet payload.
type Formatter interface {
	Format(p *Packet, idx int)
}

// Outputter publishes the current value of element idx, if it has one to
// publish. Returning false means the transport refused the packet.
type Outputter interface {
	Output(p *Packet, idx int) bool
}

// Inputter receives a message addressed to the property.
// It must not block.
type Inputter interface {
	Input(idx int, payload []byte, retained bool)
}

// NodeIniter is called once per metadata pass before the node is announced.
// It may be called again after a refusal and returns false to pause.
type NodeIniter interface {
	Init() bool
}

// Property describes one data point of a node.
type Property struct {
	ID       string   // ID - property id, unique within the node.
	Name     string   // Name - literal $name, used when Handler is not a Namer.
	Unit     string   // Unit - optional $unit.
	Datatype Datatype // Datatype - $datatype.
	Format   string   // Format - literal $format, used when Handler is not a Formatter.
	Handler  any      // Handler - implements any of the capability interfaces.
}

// Settable reports whether the property accepts input.
func (p *Property) Settable() bool {
	_, ok := p.Handler.(Inputter)
	return ok
}

// arrayCount asks the handler for the element count.
func (p *Property) arrayCount() int {
	c, ok := p.Handler.(ArrayCounter)
	if !ok {
		return NotArray
	}
	n := c.ArrayCount()
	if n < 0 {
		return NotArray
	}
	return n
}

// Node is a functional unit of the device.
type Node struct {
	ID         string
	Name       string
	Type       string
	Handler    any // Handler - optional NodeIniter.
	Properties []*Property
}

// Device is the root of the descriptor tree. It is built once at startup
// and only read afterwards.
type Device struct {
	ID             string
	Name           string
	Implementation string
	LocalIP        net.IP
	MAC            net.HardwareAddr
	Nodes          []*Node
}

// Validate checks the build-time contract of the tree: valid ids, unique
// node ids within the device and unique property ids within a node.
func (d *Device) Validate() error {
	if err := ValidateID(d.ID); err != nil {
		return fmt.Errorf("device %q: %w", d.ID, err)
	}
	if len(d.Nodes) == 0 {
		return errors.New("device has no nodes")
	}

	nodes := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if err := ValidateID(n.ID); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		if _, ok := nodes[n.ID]; ok {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		nodes[n.ID] = struct{}{}

		if len(n.Properties) > MaxProperties {
			return fmt.Errorf("node %q has %d properties, at most %d allowed", n.ID, len(n.Properties), MaxProperties)
		}
		props := make(map[string]struct{}, len(n.Properties))
		for _, p := range n.Properties {
			if err := ValidateID(p.ID); err != nil {
				return fmt.Errorf("property %s/%q: %w", n.ID, p.ID, err)
			}
			if _, ok := props[p.ID]; ok {
				return fmt.Errorf("duplicate property id %s/%q", n.ID, p.ID)
			}
			props[p.ID] = struct{}{}
		}
	}
	return nil
}
