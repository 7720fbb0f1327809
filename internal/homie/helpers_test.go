package homie

import (
	"net"
	"strconv"

	"homie2mqtt/internal/logger"
)

// fakeTransport records packets and refuses the attempts selected by refuse.
type fakeTransport struct {
	packets  []string
	retained []bool
	attempts int
	refuse   func(attempt int) bool
}

func (f *fakeTransport) admit() bool {
	n := f.attempts
	f.attempts++
	return f.refuse == nil || !f.refuse(n)
}

func (f *fakeTransport) Publish(topic, payload []byte, retain bool) bool {
	if !f.admit() {
		return false
	}
	f.packets = append(f.packets, string(topic)+"="+string(payload))
	f.retained = append(f.retained, retain)
	return true
}

func (f *fakeTransport) Subscribe(topic []byte) bool {
	if !f.admit() {
		return false
	}
	f.packets = append(f.packets, "SUB "+string(topic))
	f.retained = append(f.retained, false)
	return true
}

func refuseAt(p int) func(int) bool {
	return func(n int) bool { return n == p }
}

type inputCall struct {
	idx      int
	payload  string
	retained bool
}

// trigger is a settable property without output.
type trigger struct {
	calls []inputCall
}

func (t *trigger) Input(idx int, payload []byte, retained bool) {
	t.calls = append(t.calls, inputCall{idx, string(payload), retained})
}

// level publishes its value when it changed.
type level struct {
	value   int
	changed bool
}

func (l *level) set(v int) {
	l.value = v
	l.changed = true
}

func (l *level) Output(p *Packet, idx int) bool {
	if !l.changed {
		return true
	}
	p.Value("tank", "level", idx, true)
	p.WriteInt(int64(l.value))
	if !p.Finish() {
		return false
	}
	l.changed = false
	return true
}

// temps is a settable array property. Hooks let tests mutate the count in
// the middle of a pass.
type temps struct {
	count      int
	countCalls int
	names      []string
	values     []int
	fresh      []bool
	calls      []inputCall
	onName     func(idx int)
	onOutput   func(idx int)
}

func (t *temps) ArrayCount() int {
	t.countCalls++
	return t.count
}

func (t *temps) Name(p *Packet, idx int) {
	if t.onName != nil {
		t.onName(idx)
	}
	p.WriteString(t.names[idx])
}

func (t *temps) Output(p *Packet, idx int) bool {
	if t.onOutput != nil {
		t.onOutput(idx)
	}
	if !t.fresh[idx] {
		return true
	}
	p.Value("ow", "temp", idx, true)
	p.WriteFixed(int64(t.values[idx]), 1)
	if !p.Finish() {
		return false
	}
	t.fresh[idx] = false
	return true
}

func (t *temps) Input(idx int, payload []byte, retained bool) {
	t.calls = append(t.calls, inputCall{idx, string(payload), retained})
}

// initer counts Init calls and refuses the first fail ones.
type initer struct {
	calls int
	fail  int
}

func (i *initer) Init() bool {
	i.calls++
	return i.calls > i.fail
}

type fixture struct {
	device    *Device
	transport *fakeTransport
	session   *Session
	trigger   *trigger
	level     *level
	temps     *temps
	tankInit  *initer
}

func newFixture() *fixture {
	f := &fixture{
		transport: &fakeTransport{},
		trigger:   &trigger{},
		level:     &level{value: 42, changed: true},
		temps: &temps{
			count:  2,
			names:  []string{"boiler", "outdoor"},
			values: []int{215, -35, 0, 0, 0, 0},
			fresh:  []bool{true, true, false, false, false, false},
		},
		tankInit: &initer{},
	}
	f.device = &Device{
		ID:             "dev1",
		Name:           "Device One",
		Implementation: "test",
		LocalIP:        net.IPv4(192, 168, 1, 10),
		MAC:            net.HardwareAddr{0x02, 0x00, 0x00, 0xab, 0xcd, 0xef},
		Nodes: []*Node{
			{
				ID:      "tank",
				Name:    "Tank",
				Handler: f.tankInit,
				Properties: []*Property{
					{ID: "trigger", Name: "Trigger", Datatype: DtBool, Handler: f.trigger},
					{ID: "level", Name: "Level", Unit: "l", Datatype: DtInteger, Format: "0:5000", Handler: f.level},
				},
			},
			{
				ID:   "ow",
				Name: "Sensors",
				Type: "onewire",
				Properties: []*Property{
					{ID: "temp", Unit: "°C", Datatype: DtFloat, Format: "-55.0:125.0", Handler: f.temps},
				},
			},
		},
	}
	f.session = NewSession(f.device, f.transport, logger.Discard())
	return f
}

// poll calls Poll n times.
func (f *fixture) poll(n int) {
	for i := 0; i < n; i++ {
		f.session.Poll()
	}
}

// pollUntil polls until the session reaches st, at most max times.
func (f *fixture) pollUntil(st State, max int) bool {
	for i := 0; i < max; i++ {
		if f.session.State() == st {
			return true
		}
		f.session.Poll()
	}
	return f.session.State() == st
}

func tempMeta(idx int, name string) []string {
	prefix := "homie/dev1/ow/temp_" + strconv.Itoa(idx)
	return []string{
		prefix + "/$name=" + name,
		prefix + "/$settable=true",
		prefix + "/$unit=°C",
		prefix + "/$datatype=float",
		prefix + "/$format=-55.0:125.0",
		"SUB " + prefix,
	}
}

// announcement is the stream of a complete metadata sequence of the fixture.
func announcement() []string {
	out := []string{
		"homie/dev1/$state=init",
		"homie/dev1/$homie=3.0.1",
		"homie/dev1/$name=Device One",
		"homie/dev1/$localip=192.168.1.10",
		"homie/dev1/$mac=02:00:00:AB:CD:EF",
		"homie/dev1/$nodes=tank,ow",
		"homie/dev1/$implementation=test",
		"homie/dev1/tank/$name=Tank",
		"homie/dev1/tank/$properties=trigger,level",
		"homie/dev1/tank/trigger/$name=Trigger",
		"homie/dev1/tank/trigger/$settable=true",
		"homie/dev1/tank/trigger/$datatype=boolean",
		"SUB homie/dev1/tank/trigger",
		"homie/dev1/tank/level/$name=Level",
		"homie/dev1/tank/level/$settable=false",
		"homie/dev1/tank/level/$unit=l",
		"homie/dev1/tank/level/$datatype=integer",
		"homie/dev1/tank/level/$format=0:5000",
		"homie/dev1/ow/$name=Sensors",
		"homie/dev1/ow/$type=onewire",
		"homie/dev1/ow/$properties=temp_0,temp_1",
	}
	out = append(out, tempMeta(0, "boiler")...)
	out = append(out, tempMeta(1, "outdoor")...)
	return append(out, "homie/dev1/$state=ready")
}

// firstRound is the stream of the first active round of the fixture.
func firstRound() []string {
	return []string{
		"homie/dev1/tank/level=42",
		"homie/dev1/ow/temp_0=21.5",
		"homie/dev1/ow/temp_1=-3.5",
	}
}
