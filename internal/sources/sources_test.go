package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homie2mqtt/internal/homie"
	"homie2mqtt/internal/logger"
)

type recorder struct {
	topics   []string
	payloads map[string]string
	subs     []string
}

func (r *recorder) Publish(topic, payload []byte, _ bool) bool {
	r.topics = append(r.topics, string(topic))
	r.payloads[string(topic)] = string(payload)
	return true
}

func (r *recorder) Subscribe(topic []byte) bool {
	r.subs = append(r.subs, string(topic))
	return true
}

// since returns the publications after the first n.
func (r *recorder) since(n int) map[string]string {
	out := map[string]string{}
	for _, t := range r.topics[n:] {
		out[t] = r.payloads[t]
	}
	return out
}

func activeSession(t *testing.T, nodes ...*homie.Node) (*homie.Session, *recorder) {
	t.Helper()
	d := &homie.Device{ID: "dev", Nodes: nodes}
	require.NoError(t, d.Validate())
	r := &recorder{payloads: map[string]string{}}
	s := homie.NewSession(d, r, logger.Discard())
	s.Connect()
	for i := 0; i < 4; i++ {
		require.True(t, s.Poll())
	}
	require.Equal(t, homie.StateActive, s.State())
	return s, r
}

func TestTank(t *testing.T) {
	triggered := 0
	tank := NewTank(5000, func() { triggered++ })
	s, r := activeSession(t, tank.Node())

	assert.Equal(t, "0:5000", r.payloads["homie/dev/tank/level/$format"])
	assert.Equal(t, "true", r.payloads["homie/dev/tank/trigger/$settable"])
	assert.Equal(t, []string{"homie/dev/tank/trigger"}, r.subs)

	n := len(r.topics)
	s.Poll()
	assert.Empty(t, r.since(n), "nothing measured yet")

	tank.SetLevel(1234)
	s.Poll()
	s.Poll()
	assert.Equal(t, map[string]string{"homie/dev/tank/level": "1234"}, r.since(n))

	s.Deliver([]byte("homie/dev/tank/trigger"), []byte("false"), false)
	s.Deliver([]byte("homie/dev/tank/trigger"), []byte("yes"), false)
	assert.Zero(t, triggered)
	s.Deliver([]byte("homie/dev/tank/trigger"), []byte("true"), false)
	assert.Equal(t, 1, triggered)

	// a new session republishes the last level
	s.Disconnect()
	s.Connect()
	n = len(r.topics)
	for i := 0; i < 5; i++ {
		s.Poll()
	}
	assert.Equal(t, "1234", r.since(n)["homie/dev/tank/level"])
}

func TestOneWire(t *testing.T) {
	ow := NewOneWire()
	ow.SetName(2, "boiler")
	ow.SetName(5, "outdoor")
	ow.SetName(MaxSensors, "ignored")
	s, r := activeSession(t, ow.Node())

	assert.Equal(t, "temp_0,temp_1", r.payloads["homie/dev/ow/$properties"])
	assert.Equal(t, "boiler", r.payloads["homie/dev/ow/temp_0/$name"])
	assert.Equal(t, "outdoor", r.payloads["homie/dev/ow/temp_1/$name"])
	assert.Equal(t, "float", r.payloads["homie/dev/ow/temp_1/$datatype"])
	assert.Empty(t, r.subs)

	n := len(r.topics)
	ow.SetReading(2, 4512, true)
	ow.SetReading(5, -37, false)
	ow.SetReading(3, 100, false) // unnamed
	s.Poll()
	assert.Equal(t, map[string]string{
		"homie/dev/ow/temp_0": "45.12",
		"homie/dev/ow/temp_1": "-3.7",
	}, r.since(n))

	n = len(r.topics)
	s.Poll()
	assert.Empty(t, r.since(n))

	// renaming takes effect with the next session
	ow.SetName(3, "hotwater")
	s.Poll()
	_, _, _, ok := s.Device().Match([]byte("homie/dev/ow/temp_2"))
	assert.False(t, ok)

	s.Disconnect()
	s.Connect()
	for i := 0; i < 4; i++ {
		s.Poll()
	}
	assert.Equal(t, "temp_0,temp_1,temp_2", r.payloads["homie/dev/ow/$properties"])
	assert.Equal(t, "hotwater", r.payloads["homie/dev/ow/temp_1/$name"])
}

func TestHeating(t *testing.T) {
	h := NewHeating(4, 3, false)
	h.Mode = ModeAutomatic
	h.BoilerTemp = 6543
	h.OutdoorTemp = -250
	h.BurnerOn = true
	h.HotwaterReq = 0
	h.Uptime = 3725
	s, r := activeSession(t, h.Node())

	assert.Equal(t, "manual,automatic,hotwater,radiator,service", r.payloads["homie/dev/heatctl/mode/$format"])
	assert.Equal(t, "enum", r.payloads["homie/dev/heatctl/mode/$datatype"])
	assert.Equal(t, "0:4", r.payloads["homie/dev/heatctl/rad_idx/$format"])
	assert.Equal(t, "-1:3", r.payloads["homie/dev/heatctl/hw_req/$format"])
	assert.Equal(t, "°C", r.payloads["homie/dev/heatctl/boil_temp/$unit"])
	assert.Equal(t, "h:mm:ss", r.payloads["homie/dev/heatctl/run_time/$unit"])
	assert.Equal(t, []string{"homie/dev/heatctl/req_hw"}, r.subs)
	assert.NotContains(t, r.payloads["homie/dev/heatctl/$properties"], "cpmp")

	n := len(r.topics)
	s.Poll()
	first := r.since(n)
	assert.Equal(t, "automatic", first["homie/dev/heatctl/mode"])
	assert.Equal(t, "65.43", first["homie/dev/heatctl/boil_temp"])
	assert.Equal(t, "-2.50", first["homie/dev/heatctl/out_temp"])
	assert.Equal(t, "true", first["homie/dev/heatctl/burn_on"])
	assert.Equal(t, "false", first["homie/dev/heatctl/rad_on"])
	assert.Equal(t, "0", first["homie/dev/heatctl/hw_req"])
	assert.Equal(t, "1:02:05", first["homie/dev/heatctl/run_time"])
	assert.Equal(t, "0:00:00", first["homie/dev/heatctl/burn_time"])
	assert.Len(t, first, 17)

	n = len(r.topics)
	s.Poll()
	assert.Empty(t, r.since(n))

	h.BoilerTemp = 6600
	h.Mode = ModeService
	h.Uptime = 3800
	s.Poll()
	assert.Equal(t, map[string]string{
		"homie/dev/heatctl/mode":      "service",
		"homie/dev/heatctl/boil_temp": "66.00",
	}, r.since(n))

	n = len(r.topics)
	h.Periodic()
	s.Poll()
	periodic := r.since(n)
	assert.Len(t, periodic, 4)
	assert.Equal(t, "1:03:20", periodic["homie/dev/heatctl/run_time"])

	require.True(t, s.Deliver([]byte("homie/dev/heatctl/req_hw"), []byte("true"), false))
	assert.Equal(t, int8(1), h.HotwaterReq)
	require.True(t, s.Deliver([]byte("homie/dev/heatctl/req_hw"), []byte("false"), false))
	assert.Equal(t, int8(-1), h.HotwaterReq)
	require.True(t, s.Deliver([]byte("homie/dev/heatctl/req_hw"), []byte("maybe"), false))
	assert.Equal(t, int8(-1), h.HotwaterReq)
}

func TestHeatingCirculationPump(t *testing.T) {
	h := NewHeating(4, 3, true)
	s, r := activeSession(t, h.Node())

	props := r.payloads["homie/dev/heatctl/$properties"]
	assert.True(t, strings.HasSuffix(props, ",req_hw,cpmp_on,cpmp_time,req_cpmp"), props)
	assert.Equal(t, []string{"homie/dev/heatctl/req_hw", "homie/dev/heatctl/req_cpmp"}, r.subs)

	require.True(t, s.Deliver([]byte("homie/dev/heatctl/req_cpmp"), []byte("true"), true))
	assert.Equal(t, int8(1), h.CircPumpCmd)
	require.True(t, s.Deliver([]byte("homie/dev/heatctl/req_cpmp"), []byte("false"), true))
	assert.Equal(t, int8(0), h.CircPumpCmd)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "hotwater", ModeHotwater.String())
	assert.Equal(t, "unknown", Mode(42).String())
}
