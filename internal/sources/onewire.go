package sources

import (
	"homie2mqtt/internal/homie"
)

const (
	owNodeID = "ow"

	// MaxSensors is the size of the sensor table.
	MaxSensors = 16
)

// Sensor is one bus sensor. Only named sensors are published.
type Sensor struct {
	Name      string
	Value     int16 // Value - tenths of a degree, hundredths when TwoDigits.
	TwoDigits bool
	fresh     bool
}

// OneWire publishes the named sensors of the bus as the array property temp.
type OneWire struct {
	sensors [MaxSensors]Sensor
	mapping [MaxSensors]uint8
	count   int
}

func NewOneWire() *OneWire {
	return &OneWire{count: -1}
}

// SetName names sensor i. The element list changes with the next session.
func (o *OneWire) SetName(i int, name string) {
	if i < 0 || i >= MaxSensors {
		return
	}
	o.sensors[i].Name = name
}

// SetReading stores a reading of sensor i.
func (o *OneWire) SetReading(i int, value int16, twoDigits bool) {
	if i < 0 || i >= MaxSensors {
		return
	}
	s := &o.sensors[i]
	s.Value = value
	s.TwoDigits = twoDigits
	s.fresh = true
}

// Init forgets the element list so it is rebuilt from the current names.
func (o *OneWire) Init() bool {
	o.count = -1
	return true
}

func (o *OneWire) Node() *homie.Node {
	return &homie.Node{
		ID:      owNodeID,
		Name:    "OneWire Sensors",
		Handler: o,
		Properties: []*homie.Property{
			{
				ID:       "temp",
				Unit:     "°C",
				Datatype: homie.DtFloat,
				Format:   "-55.0:125.0",
				Handler:  owTemp{o},
			},
		},
	}
}

type owTemp struct{ o *OneWire }

func (t owTemp) ArrayCount() int {
	o := t.o
	if o.count >= 0 {
		return o.count
	}
	o.count = 0
	for i := range o.sensors {
		if o.sensors[i].Name != "" {
			o.mapping[o.count] = uint8(i)
			o.count++
		}
	}
	return o.count
}

func (t owTemp) sensor(idx int) *Sensor {
	return &t.o.sensors[t.o.mapping[idx]]
}

func (t owTemp) Name(p *homie.Packet, idx int) {
	p.WriteString(t.sensor(idx).Name)
}

func (t owTemp) Output(p *homie.Packet, idx int) bool {
	s := t.sensor(idx)
	if !s.fresh {
		return true
	}
	p.Value(owNodeID, "temp", idx, true)
	if s.TwoDigits {
		p.WriteFixed(int64(s.Value), 2)
	} else {
		p.WriteFixed(int64(s.Value), 1)
	}
	if !p.Finish() {
		return false
	}
	s.fresh = false
	return true
}
