package sources

import (
	"homie2mqtt/internal/homie"
)

const tankNodeID = "tank"

// Tank publishes the level of a fuel tank and accepts a measurement trigger.
type Tank struct {
	full      uint
	level     uint
	measured  bool
	fresh     bool
	onTrigger func()
}

// NewTank creates the tank source. onTrigger is called when a measurement
// is requested over MQTT.
func NewTank(full uint, onTrigger func()) *Tank {
	return &Tank{full: full, onTrigger: onTrigger}
}

// SetLevel stores a new measurement in litres.
func (t *Tank) SetLevel(litres uint) {
	t.level = litres
	t.measured = true
	t.fresh = true
}

// Init republishes the last measurement on every new session.
func (t *Tank) Init() bool {
	t.fresh = t.measured
	return true
}

func (t *Tank) Node() *homie.Node {
	return &homie.Node{
		ID:      tankNodeID,
		Name:    "Tank Level",
		Handler: t,
		Properties: []*homie.Property{
			{
				ID:       "level",
				Name:     "Current Level",
				Unit:     "l",
				Datatype: homie.DtInteger,
				Handler:  tankLevel{t},
			},
			{
				ID:       "trigger",
				Name:     "Start measurement trigger",
				Datatype: homie.DtBool,
				Handler:  tankTrigger{t},
			},
		},
	}
}

type tankLevel struct{ t *Tank }

func (l tankLevel) Format(p *homie.Packet, _ int) {
	p.WriteString("0:")
	p.WriteUint(uint64(l.t.full))
}

func (l tankLevel) Output(p *homie.Packet, _ int) bool {
	if !l.t.fresh {
		return true
	}
	p.Value(tankNodeID, "level", homie.NotArray, true)
	p.WriteUint(uint64(l.t.level))
	if !p.Finish() {
		return false
	}
	l.t.fresh = false
	return true
}

type tankTrigger struct{ t *Tank }

func (tr tankTrigger) Input(_ int, payload []byte, _ bool) {
	if v, ok := homie.ParseBool(payload); ok && v && tr.t.onTrigger != nil {
		tr.t.onTrigger()
	}
}
