package broker

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"growattgateway/pkg/runtime"
	"k8s.io/klog/v2"
)

const (
	mqttTimeout = 3 * time.Second
)

var ErrMqttTimeout = errors.New("mqtt operation timed out")

type Options struct {
	Broker          string `json:"broker"`
	ClientId        string `json:"clientId"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	Topic           string `json:"topic"`
	DiscoveryPrefix string `json:"discoveryPrefix"`
	Qos             byte   `json:"qos"`
}

// Sensor is the discovery description of one entity.
type Sensor struct {
	ID          string
	Name        string
	Unit        string
	DeviceClass string
	StateClass  string
}

type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type Availability struct {
	Topic string `json:"topic"`
}

type DiscoveryConfig struct {
	Name              string         `json:"name"`
	UniqueId          string         `json:"unique_id"`
	StateTopic        string         `json:"state_topic"`
	Availability      []Availability `json:"availability"`
	AvailabilityMode  string         `json:"availability_mode"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	Device            Device         `json:"device"`
}

type Publisher struct {
	client mqtt.Client
	opts   Options

	mu        sync.Mutex
	sensors   map[string][]Sensor
	available map[string]bool
}

// NewPublisher creates the paho client. The gateway status topic is used as
// last will so every entity goes unavailable with the process.
func NewPublisher(o Options) *Publisher {
	p := newPublisher(nil, o)
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientId).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetWill(p.gatewayStatusTopic(), runtime.Offline, o.Qos, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	opts.OnConnect = p.onConnect
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		klog.V(1).InfoS("Lost MQTT connection", "broker", o.Broker, "err", err)
	}
	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, o Options) *Publisher {
	return &Publisher{
		client:    client,
		opts:      o,
		sensors:   make(map[string][]Sensor),
		available: make(map[string]bool),
	}
}

func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return errors.Wrapf(ErrMqttTimeout, "connect %s", p.opts.Broker)
	}
	return token.Error()
}

func (p *Publisher) Disconnect() {
	p.publish(p.gatewayStatusTopic(), true, runtime.Offline)
	p.client.Disconnect(2000)
}

// Announce publishes discovery configs for one inverter and remembers them for
// reconnects.
func (p *Publisher) Announce(instanceID string, sensors []Sensor) {
	p.mu.Lock()
	p.sensors[instanceID] = sensors
	p.mu.Unlock()
	p.announce(instanceID, sensors)
}

func (p *Publisher) announce(instanceID string, sensors []Sensor) {
	for _, s := range sensors {
		data, err := json.Marshal(p.DiscoveryConfig(instanceID, s))
		if err != nil {
			klog.V(2).InfoS("Failed to marshal discovery config", "entity", s.ID, "err", err)
			continue
		}
		p.publish(p.DiscoveryTopic(instanceID, s.ID), true, data)
	}
}

func (p *Publisher) PublishAvailability(instanceID string, online bool) {
	p.mu.Lock()
	p.available[instanceID] = online
	p.mu.Unlock()
	p.publish(p.AvailabilityTopic(instanceID), true, availability(online))
}

func (p *Publisher) PublishStates(instanceID string, pvr *runtime.ParseVariableResult) {
	for _, v := range pvr.VariableSlice {
		p.publish(p.StateTopic(instanceID, v.GetVariableName()), true, FormatValue(v.GetValue()))
	}
}

// PublishData sends the whole cycle as one json document.
func (p *Publisher) PublishData(instanceID string, pvr *runtime.ParseVariableResult) {
	data, err := json.Marshal(runtime.NewPublishData(pvr))
	if err != nil {
		klog.V(2).InfoS("Failed to marshal publish data", "instance", instanceID, "err", err)
		return
	}
	p.publish(p.DataTopic(instanceID), false, data)
}

func (p *Publisher) onConnect(client mqtt.Client) {
	klog.V(1).InfoS("Connected MQTT broker", "broker", p.opts.Broker)
	p.publish(p.gatewayStatusTopic(), true, runtime.Online)

	p.mu.Lock()
	sensors := make(map[string][]Sensor, len(p.sensors))
	for k, v := range p.sensors {
		sensors[k] = v
	}
	available := make(map[string]bool, len(p.available))
	for k, v := range p.available {
		available[k] = v
	}
	p.mu.Unlock()

	for id, ss := range sensors {
		p.announce(id, ss)
	}
	for id, online := range available {
		p.publish(p.AvailabilityTopic(id), true, availability(online))
	}
}

// publish drops the message while the broker is unreachable. onConnect
// restores discovery and availability, states follow with the next cycle.
func (p *Publisher) publish(topic string, retained bool, payload interface{}) {
	if !p.client.IsConnectionOpen() {
		klog.V(4).InfoS("Skipped MQTT publish, broker not connected", "topic", topic)
		return
	}
	token := p.client.Publish(topic, p.opts.Qos, retained, payload)
	if token.WaitTimeout(mqttTimeout) && token.Error() == nil {
		klog.V(5).InfoS("Succeed to publish MQTT", "topic", topic)
	} else {
		klog.V(1).InfoS("Failed to publish MQTT", "topic", topic, "err", token.Error())
	}
}

func (p *Publisher) DiscoveryConfig(instanceID string, s Sensor) DiscoveryConfig {
	return DiscoveryConfig{
		Name:       s.Name,
		UniqueId:   s.ID,
		StateTopic: p.StateTopic(instanceID, s.ID),
		Availability: []Availability{
			{Topic: p.gatewayStatusTopic()},
			{Topic: p.AvailabilityTopic(instanceID)},
		},
		AvailabilityMode:  "all",
		UnitOfMeasurement: s.Unit,
		DeviceClass:       s.DeviceClass,
		StateClass:        s.StateClass,
		Device: Device{
			Identifiers:  []string{instanceID},
			Name:         "Growatt 逆变器",
			Manufacturer: "Growatt",
			Model:        "Modbus TCP",
		},
	}
}

func (p *Publisher) DiscoveryTopic(instanceID string, entityID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.opts.DiscoveryPrefix, instanceID, entityID)
}

func (p *Publisher) StateTopic(instanceID string, entityID string) string {
	return fmt.Sprintf("%s/%s/%s", p.opts.Topic, instanceID, entityID)
}

func (p *Publisher) AvailabilityTopic(instanceID string) string {
	return fmt.Sprintf("%s/%s/status", p.opts.Topic, instanceID)
}

func (p *Publisher) DataTopic(instanceID string) string {
	return fmt.Sprintf("%s/%s/data", p.opts.Topic, instanceID)
}

func (p *Publisher) gatewayStatusTopic() string {
	return p.opts.Topic + "/status"
}

func availability(online bool) string {
	if online {
		return runtime.Online
	}
	return runtime.Offline
}

// FormatValue renders a state payload. Floats are rounded to six decimals to
// hide scaling noise.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(math.Round(t*1e6)/1e6, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
