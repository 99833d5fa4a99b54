package broker

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	"growattgateway/pkg/runtime"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	messages     []message
	disconnected bool
	lost         bool
}

func (f *fakeClient) Connect() mqtt.Token { return &doneToken{} }

func (f *fakeClient) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.lost
}

func (f *fakeClient) setLost(lost bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost = lost
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s string
	switch p := payload.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	}
	f.messages = append(f.messages, message{topic: topic, retained: retained, payload: s})
	return &doneToken{}
}

func (f *fakeClient) byTopic() map[string]message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]message, len(f.messages))
	for _, m := range f.messages {
		out[m.topic] = m
	}
	return out
}

func testOptions() Options {
	return Options{Topic: "growatt", DiscoveryPrefix: "homeassistant"}
}

type point struct {
	id    string
	value interface{}
}

func (p point) GetValue() interface{}   { return p.value }
func (p point) GetVariableName() string { return p.id }

func TestPublisherAnnounce(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	p.Announce("inv", []Sensor{{ID: "inv_1_32bit", Name: "光伏总功率", Unit: "W", DeviceClass: "power", StateClass: "measurement"}})

	msg, ok := fc.byTopic()["homeassistant/sensor/inv/inv_1_32bit/config"]
	require.True(ok)
	require.True(msg.retained)

	var cfg DiscoveryConfig
	require.NoError(json.Unmarshal([]byte(msg.payload), &cfg))
	require.Equal("光伏总功率", cfg.Name)
	require.Equal("inv_1_32bit", cfg.UniqueId)
	require.Equal("growatt/inv/inv_1_32bit", cfg.StateTopic)
	require.Equal([]Availability{{Topic: "growatt/status"}, {Topic: "growatt/inv/status"}}, cfg.Availability)
	require.Equal("W", cfg.UnitOfMeasurement)
	require.Equal([]string{"inv"}, cfg.Device.Identifiers)
	require.Equal("Growatt", cfg.Device.Manufacturer)
}

func TestPublisherStatesAndAvailability(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	p.PublishAvailability("inv", true)
	p.PublishStates("inv", &runtime.ParseVariableResult{VariableSlice: []runtime.VariableValue{
		point{id: "inv_0", value: "正常"},
		point{id: "inv_38", value: float64(2305) * 0.1},
		point{id: "inv_1014", value: uint16(87)},
		point{id: "inv_1009_32bit", value: int64(-5)},
	}})

	topics := fc.byTopic()
	require.Equal("online", topics["growatt/inv/status"].payload)
	require.Equal("正常", topics["growatt/inv/inv_0"].payload)
	require.Equal("230.5", topics["growatt/inv/inv_38"].payload)
	require.Equal("87", topics["growatt/inv/inv_1014"].payload)
	require.Equal("-5", topics["growatt/inv/inv_1009_32bit"].payload)
}

func TestPublisherReconnectReannounces(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	p.Announce("inv", []Sensor{{ID: "inv_0", Name: "系统状态"}})
	p.PublishAvailability("inv", false)

	fc.mu.Lock()
	fc.messages = nil
	fc.mu.Unlock()

	p.onConnect(fc)
	topics := fc.byTopic()
	require.Equal("online", topics["growatt/status"].payload)
	require.Equal("offline", topics["growatt/inv/status"].payload)
	require.Contains(topics, "homeassistant/sensor/inv/inv_0/config")
}

func TestPublisherSkipsWhileDisconnected(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	fc.setLost(true)
	p.Announce("inv", []Sensor{{ID: "inv_0", Name: "系统状态"}})
	p.PublishAvailability("inv", true)
	p.PublishStates("inv", &runtime.ParseVariableResult{VariableSlice: []runtime.VariableValue{point{id: "inv_0", value: "正常"}}})
	require.Empty(fc.byTopic())

	// discovery and the last availability are restored on reconnect
	fc.setLost(false)
	p.onConnect(fc)
	topics := fc.byTopic()
	require.Contains(topics, "homeassistant/sensor/inv/inv_0/config")
	require.Equal("online", topics["growatt/inv/status"].payload)
}

func TestPublisherUnreachableBroker(t *testing.T) {
	require := require.New(t)

	o := testOptions()
	o.Broker = "tcp://127.0.0.1:1"
	o.ClientId = "growattgateway-test"
	p := NewPublisher(o)

	start := time.Now()
	p.Announce("inv", []Sensor{{ID: "inv_0"}, {ID: "inv_38"}})
	p.PublishStates("inv", &runtime.ParseVariableResult{VariableSlice: []runtime.VariableValue{
		point{id: "inv_0", value: "正常"},
		point{id: "inv_38", value: 230.5},
		point{id: "inv_1014", value: uint16(87)},
	}})
	p.PublishData("inv", &runtime.ParseVariableResult{Timestamp: time.Now()})
	require.Less(time.Since(start), time.Second)
}

func TestPublisherDisconnect(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	p.Disconnect()
	require.Equal("offline", fc.byTopic()["growatt/status"].payload)
	require.True(fc.disconnected)
}

func TestPublishData(t *testing.T) {
	require := require.New(t)

	fc := &fakeClient{}
	p := newPublisher(fc, testOptions())
	p.PublishData("inv", &runtime.ParseVariableResult{
		Timestamp:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		VariableSlice: []runtime.VariableValue{point{id: "inv_0", value: "正常"}},
	})

	msg := fc.byTopic()["growatt/inv/data"]
	require.False(msg.retained)
	var pd runtime.PublishData
	require.NoError(json.Unmarshal([]byte(msg.payload), &pd))
	require.Equal("2024-01-02T03:04:05.000Z", pd.Payload.Data[0].Timestamp)
	require.Equal("inv_0", pd.Payload.Data[0].Values[0].DataPointId)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "0.3", FormatValue(0.1+0.2))
	require.Equal(t, "-100", FormatValue(float64(-1000)*0.1))
	require.Equal(t, "未知状态(9)", FormatValue("未知状态(9)"))
	require.Equal(t, "65535", FormatValue(uint16(65535)))
}
