package sources

import (
	"homie2mqtt/internal/homie"
)

const heatNodeID = "heatctl"

// Mode is the operating mode of the heating controller.
type Mode uint8

const (
	ModeManual Mode = iota
	ModeAutomatic
	ModeHotwater
	ModeRadiator
	ModeService
)

var modeNames = [...]string{"manual", "automatic", "hotwater", "radiator", "service"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

const (
	tempUnit   = "°C"
	tempFormat = "-55.0:125.0"
	timeUnit   = "h:mm:ss"
)

// Heating exposes the state of the heating control loop. Temperatures are
// in hundredths of a degree, times in seconds. The control loop writes the
// fields on the goroutine that polls the session.
type Heating struct {
	Mode Mode

	BoilerTemp       int16
	BoilerSetpoint   int16
	OutdoorTemp      int16
	RadiatorSetpoint int16
	HotwaterTemp     int16
	HotwaterSetpoint int16

	RadiatorIndex int8
	HotwaterIndex int8
	HotwaterReq   int8 // HotwaterReq - 1 requested, -1 cancelled, 0 none.
	CircPumpCmd   int8

	BurnerOn   bool
	RadiatorOn bool
	HotwaterOn bool
	CircPumpOn bool

	Uptime         uint32
	RadiatorOnTime uint32
	HotwaterOnTime uint32
	BurnerOnTime   uint32
	CircPumpOnTime uint32

	radiatorItems int
	hotwaterItems int
	circPump      bool

	resets    []resetter
	durations []*durationOutput
}

type resetter interface {
	reset()
}

// NewHeating creates the heating source. circPump adds the circulation
// pump properties.
func NewHeating(radiatorItems, hotwaterItems int, circPump bool) *Heating {
	return &Heating{
		radiatorItems: radiatorItems,
		hotwaterItems: hotwaterItems,
		circPump:      circPump,
	}
}

// Init forces every value to be published again.
func (h *Heating) Init() bool {
	for _, r := range h.resets {
		r.reset()
	}
	return true
}

// Periodic flags the running times for republication.
func (h *Heating) Periodic() {
	for _, d := range h.durations {
		d.send = true
	}
}

func (h *Heating) Node() *homie.Node {
	h.resets = h.resets[:0]
	h.durations = h.durations[:0]

	props := []*homie.Property{
		{ID: "mode", Name: "Operating mode", Datatype: homie.DtEnum, Handler: h.mode()},
		h.temp("boil_temp", "Boiler current temperature", &h.BoilerTemp),
		h.temp("boil_sp", "Boiler temperature setpoint", &h.BoilerSetpoint),
		h.flag("burn_on", "Burner is on", &h.BurnerOn),
		h.temp("out_temp", "Outdoor temperature", &h.OutdoorTemp),
		h.index("rad_idx", "Radiator setpoint index", &h.RadiatorIndex, 0, h.radiatorItems),
		h.temp("rad_sp", "Radiator setpoint temperature", &h.RadiatorSetpoint),
		h.flag("rad_on", "Radiator is heating", &h.RadiatorOn),
		h.temp("hw_temp", "Hotwater current temperature", &h.HotwaterTemp),
		h.index("hw_idx", "Hotwater setpoint index", &h.HotwaterIndex, 0, h.hotwaterItems),
		h.index("hw_req", "Hotwater request index", &h.HotwaterReq, -1, h.hotwaterItems),
		h.temp("hw_sp", "Hotwater setpoint temperature", &h.HotwaterSetpoint),
		h.flag("hw_on", "Hotwater is heating", &h.HotwaterOn),
		h.duration("run_time", "Controller uptime", &h.Uptime),
		h.duration("rad_time", "Radiator heating time", &h.RadiatorOnTime),
		h.duration("hw_time", "Hotwater heating time", &h.HotwaterOnTime),
		h.duration("burn_time", "Burner operating time", &h.BurnerOnTime),
		{ID: "req_hw", Name: "Manual hotwater request", Datatype: homie.DtBool, Handler: request{&h.HotwaterReq, 1, -1}},
	}
	if h.circPump {
		props = append(props,
			h.flag("cpmp_on", "Hotwater circulator pump is on", &h.CircPumpOn),
			h.duration("cpmp_time", "Hotwater circulator pump operating time", &h.CircPumpOnTime),
			&homie.Property{ID: "req_cpmp", Name: "Manual hotwater circulator pump request", Datatype: homie.DtBool, Handler: request{&h.CircPumpCmd, 1, 0}},
		)
	}

	return &homie.Node{
		ID:         heatNodeID,
		Name:       "Heating Control",
		Handler:    h,
		Properties: props,
	}
}

func (h *Heating) mode() *modeOutput {
	o := &modeOutput{value: &h.Mode, old: -1}
	h.resets = append(h.resets, o)
	return o
}

func (h *Heating) temp(id, name string, v *int16) *homie.Property {
	o := &tempOutput{id: id, value: v}
	o.reset()
	h.resets = append(h.resets, o)
	return &homie.Property{ID: id, Name: name, Unit: tempUnit, Datatype: homie.DtFloat, Format: tempFormat, Handler: o}
}

func (h *Heating) flag(id, name string, v *bool) *homie.Property {
	o := &boolOutput{id: id, value: v, old: -1}
	h.resets = append(h.resets, o)
	return &homie.Property{ID: id, Name: name, Datatype: homie.DtBool, Handler: o}
}

func (h *Heating) index(id, name string, v *int8, lo, hi int) *homie.Property {
	o := &indexOutput{id: id, value: v, lo: lo, hi: hi}
	o.reset()
	h.resets = append(h.resets, o)
	return &homie.Property{ID: id, Name: name, Datatype: homie.DtInteger, Handler: o}
}

func (h *Heating) duration(id, name string, v *uint32) *homie.Property {
	o := &durationOutput{id: id, value: v, send: true}
	h.resets = append(h.resets, o)
	h.durations = append(h.durations, o)
	return &homie.Property{ID: id, Name: name, Unit: timeUnit, Datatype: homie.DtString, Handler: o}
}

// Outputs publish only when the value differs from the last published one.

type modeOutput struct {
	value *Mode
	old   int
}

func (o *modeOutput) reset() { o.old = -1 }

func (o *modeOutput) Format(p *homie.Packet, _ int) {
	for i, s := range modeNames {
		if i > 0 {
			p.WriteString(",")
		}
		p.WriteString(s)
	}
}

func (o *modeOutput) Output(p *homie.Packet, _ int) bool {
	v := *o.value
	if int(v) == o.old {
		return true
	}
	p.Value(heatNodeID, "mode", homie.NotArray, true)
	p.WriteString(v.String())
	if !p.Finish() {
		return false
	}
	o.old = int(v)
	return true
}

type tempOutput struct {
	id    string
	value *int16
	old   int32
}

func (o *tempOutput) reset() { o.old = -1 << 16 }

func (o *tempOutput) Output(p *homie.Packet, _ int) bool {
	v := *o.value
	if int32(v) == o.old {
		return true
	}
	p.Value(heatNodeID, o.id, homie.NotArray, true)
	p.WriteFixed(int64(v), 2)
	if !p.Finish() {
		return false
	}
	o.old = int32(v)
	return true
}

type boolOutput struct {
	id    string
	value *bool
	old   int8
}

func (o *boolOutput) reset() { o.old = -1 }

func (o *boolOutput) Output(p *homie.Packet, _ int) bool {
	var v int8
	if *o.value {
		v = 1
	}
	if v == o.old {
		return true
	}
	p.Value(heatNodeID, o.id, homie.NotArray, true)
	p.WriteBool(v == 1)
	if !p.Finish() {
		return false
	}
	o.old = v
	return true
}

type indexOutput struct {
	id     string
	value  *int8
	old    int16
	lo, hi int
}

func (o *indexOutput) reset() { o.old = -1 << 8 }

func (o *indexOutput) Format(p *homie.Packet, _ int) {
	p.WriteInt(int64(o.lo))
	p.WriteString(":")
	p.WriteInt(int64(o.hi))
}

func (o *indexOutput) Output(p *homie.Packet, _ int) bool {
	v := *o.value
	if int16(v) == o.old {
		return true
	}
	p.Value(heatNodeID, o.id, homie.NotArray, true)
	p.WriteInt(int64(v))
	if !p.Finish() {
		return false
	}
	o.old = int16(v)
	return true
}

type durationOutput struct {
	id    string
	value *uint32
	send  bool
}

func (o *durationOutput) reset() { o.send = true }

func (o *durationOutput) Output(p *homie.Packet, _ int) bool {
	if !o.send {
		return true
	}
	p.Value(heatNodeID, o.id, homie.NotArray, true)
	p.WriteDuration(uint64(*o.value))
	if !p.Finish() {
		return false
	}
	o.send = false
	return true
}

// request maps true and false payloads onto a command value.
type request struct {
	target  *int8
	on, off int8
}

func (r request) Input(_ int, payload []byte, _ bool) {
	v, ok := homie.ParseBool(payload)
	if !ok {
		return
	}
	if v {
		*r.target = r.on
	} else {
		*r.target = r.off
	}
}
