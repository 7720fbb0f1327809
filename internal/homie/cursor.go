package homie

// State of a session.
type State uint8

const (
	StateDisconnected State = iota
	StateInit
	StateDeviceMeta
	StateNodeMeta
	StateReady
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDeviceMeta:
		return "device-meta"
	case StateNodeMeta:
		return "node-meta"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Array state values. Any value >= 0 is a resolved element count.
const (
	NotArray    = -1
	ArrayUninit = -2
)

// Device fields, published in this order.
const (
	devFieldHomie = iota
	devFieldName
	devFieldLocalIP
	devFieldMAC
	devFieldNodes
	devFieldImplementation
	devFieldDone
)

// Node fields.
const (
	nodeFieldInit = iota
	nodeFieldName
	nodeFieldType
	nodeFieldProperties
	nodeFieldDone
)

// Property fields, repeated for every array element.
const (
	propFieldName = iota
	propFieldSettable
	propFieldUnit
	propFieldDatatype
	propFieldFormat
	propFieldSubscribe
	propFieldDone
)

// Cursor is the complete resumable position of a session.
type Cursor struct {
	State      State
	DevField   int
	Node       int
	NodeField  int
	Prop       int
	PropField  int
	ArrayCount int
	ArrayIdx   int

	// array counts of the current node's properties, fetched with $properties
	counts [MaxProperties]int32
}

// reset enters state s with every subordinate cursor zeroed.
func (c *Cursor) reset(s State) {
	*c = Cursor{
		State:      s,
		ArrayCount: ArrayUninit,
	}
}

// nextProp moves to the next property of the current node.
func (c *Cursor) nextProp() {
	c.Prop++
	c.PropField = 0
	c.ArrayCount = ArrayUninit
	c.ArrayIdx = 0
}

// nextNode moves to the first property of the next node.
func (c *Cursor) nextNode() {
	c.Node++
	c.NodeField = 0
	c.Prop = 0
	c.PropField = 0
	c.ArrayCount = ArrayUninit
	c.ArrayIdx = 0
}
