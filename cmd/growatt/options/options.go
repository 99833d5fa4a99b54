package options

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"growattgateway/cmd/growatt/config"
	"growattgateway/pkg/broker"
	baseoptions "growattgateway/pkg/generic/options"
	"growattgateway/pkg/inverter"
	"growattgateway/pkg/metrics"
	"growattgateway/pkg/protocol/growatt"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
	"growattgateway/pkg/runtime"
	"growattgateway/pkg/utils/uuidutil"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
)

type Options struct {
	Port     string          `json:"port"`
	Wait     metav1.Duration `json:"graceful-timeout"`
	CertFile string          `json:"certFile,omitempty"`
	KeyFile  string          `json:"keyFile,omitempty"`
	// Inverter is the inverter given on the command line, it is skipped
	// when no host is set.
	Inverter  InverterOptions   `json:"inverter"`
	Inverters []InverterOptions `json:"inverters,omitempty"`
	Mqtt      MqttOptions       `json:"mqtt"`
	baseoptions.BaseOptions
}

type InverterOptions struct {
	InstanceID    string          `json:"instanceId,omitempty"`
	Name          string          `json:"name,omitempty"`
	Host          string          `json:"host"`
	Port          int             `json:"port"`
	SlaveId       uint8           `json:"slaveId"`
	Timeout       metav1.Duration `json:"timeout"`
	PollInterval  metav1.Duration `json:"pollInterval"`
	RegistersFile string          `json:"registersFile,omitempty"`
}

type MqttOptions struct {
	Broker          string `json:"broker,omitempty"`
	Topic           string `json:"topic"`
	ClientId        string `json:"clientId,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	Qos             int    `json:"qos"`
	DiscoveryPrefix string `json:"discoveryPrefix"`
}

const (
	_defaultPort = "32200"
	_defaultWait = 15 * time.Second

	_defaultModbusPort      = 502
	_defaultSlaveId         = 1
	_defaultModbusTimeout   = 3 * time.Second
	_defaultPollInterval    = 30 * time.Second
	_defaultTopic           = "growatt"
	_defaultDiscoveryPrefix = "homeassistant"
)

func NewDefaultOptions() *Options {
	return &Options{
		Port:        _defaultPort,
		Wait:        metav1.Duration{Duration: _defaultWait},
		Inverter:    NewDefaultInverterOptions(),
		Mqtt:        MqttOptions{Topic: _defaultTopic, DiscoveryPrefix: _defaultDiscoveryPrefix},
		BaseOptions: baseoptions.NewDefaultBaseOptions(),
	}
}

func NewDefaultInverterOptions() InverterOptions {
	return InverterOptions{
		Port:         _defaultModbusPort,
		SlaveId:      _defaultSlaveId,
		Timeout:      metav1.Duration{Duration: _defaultModbusTimeout},
		PollInterval: metav1.Duration{Duration: _defaultPollInterval},
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	// refer to node port assignment https://rancher.com/docs/rancher/v2.x/en/installation/requirements/ports/#commonly-used-ports
	fs.StringVarP(&o.Port, "port", "P", o.Port, "Port exposed")
	fs.DurationVar(&o.Wait.Duration, "graceful-timeout", o.Wait.Duration, "The duration for which the server gracefully wait for existing connections to finish - e.g. 15s or 1m")
	fs.StringVar(&o.CertFile, "cert-file", o.CertFile, "TLS certificate for the http server, https is served when both cert and key are set")
	fs.StringVar(&o.KeyFile, "key-file", o.KeyFile, "TLS private key for the http server")

	fs.StringVar(&o.Inverter.Host, "host", o.Inverter.Host, "Address of the inverter modbus tcp server. Further inverters can only be given in the config file")
	fs.IntVar(&o.Inverter.Port, "modbus-port", o.Inverter.Port, "Modbus tcp port of the inverter")
	fs.Uint8Var(&o.Inverter.SlaveId, "slave-id", o.Inverter.SlaveId, "Modbus unit id of the inverter")
	fs.DurationVar(&o.Inverter.Timeout.Duration, "modbus-timeout", o.Inverter.Timeout.Duration, "Timeout of connecting and of a single modbus transaction")
	fs.DurationVar(&o.Inverter.PollInterval.Duration, "poll-interval", o.Inverter.PollInterval.Duration, "Interval between two polls of all entities")
	fs.StringVar(&o.Inverter.InstanceID, "instance-id", o.Inverter.InstanceID, "Id used as prefix of the entity ids, derived from the address when empty")
	fs.StringVar(&o.Inverter.Name, "name", o.Inverter.Name, "Display name of the inverter")
	fs.StringVar(&o.Inverter.RegistersFile, "registers-file", o.Inverter.RegistersFile, "YAML register catalog replacing the built-in Growatt table")

	fs.StringVar(&o.Mqtt.Broker, "mqtt-broker", o.Mqtt.Broker, "MQTT broker url e.g. tcp://127.0.0.1:1883, publishing is disabled when empty")
	fs.StringVar(&o.Mqtt.Topic, "mqtt-topic", o.Mqtt.Topic, "Topic prefix of states and availability")
	fs.StringVar(&o.Mqtt.ClientId, "mqtt-client-id", o.Mqtt.ClientId, "MQTT client id, generated when empty")
	fs.StringVar(&o.Mqtt.Username, "mqtt-username", o.Mqtt.Username, "MQTT username")
	fs.StringVar(&o.Mqtt.Password, "mqtt-password", o.Mqtt.Password, "MQTT password")
	fs.IntVar(&o.Mqtt.Qos, "mqtt-qos", o.Mqtt.Qos, "QoS of published messages, one of 0, 1, 2")
	fs.StringVar(&o.Mqtt.DiscoveryPrefix, "discovery-prefix", o.Mqtt.DiscoveryPrefix, "Home Assistant discovery prefix")
}

// AllInverters returns every configured inverter with defaults applied,
// the command line one first.
func (o *Options) AllInverters() []InverterOptions {
	all := make([]InverterOptions, 0, len(o.Inverters)+1)
	if len(o.Inverter.Host) > 0 {
		all = append(all, o.Inverter)
	}
	defaults := NewDefaultInverterOptions()
	for _, io := range o.Inverters {
		if io.Port == 0 {
			io.Port = defaults.Port
		}
		if io.SlaveId == 0 {
			io.SlaveId = defaults.SlaveId
		}
		if io.Timeout.Duration == 0 {
			io.Timeout = defaults.Timeout
		}
		if io.PollInterval.Duration == 0 {
			io.PollInterval = defaults.PollInterval
		}
		all = append(all, io)
	}
	for i := range all {
		if len(all[i].InstanceID) == 0 {
			all[i].InstanceID = all[i].DefaultInstanceID()
		}
	}
	return all
}

func (io InverterOptions) Address() modbusruntime.Address {
	return modbusruntime.Address{Host: io.Host, Port: io.Port, SlaveId: io.SlaveId}
}

// DefaultInstanceID is stable for the same address and unit id.
func (io InverterOptions) DefaultInstanceID() string {
	name := fmt.Sprintf("modbus://%s/%d", io.Address().String(), io.SlaveId)
	return "growatt_" + uuidutil.NameUUID(name)[:8]
}

func (o *Options) Config(stopCh <-chan struct{}) (*config.Config, error) {
	c := &config.Config{
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
	}

	catalogs := make(map[string]*growatt.Catalog)
	configs := make([]inverter.Config, 0)
	for _, io := range o.AllInverters() {
		var catalog *growatt.Catalog
		if len(io.RegistersFile) > 0 {
			if _, ok := catalogs[io.RegistersFile]; !ok {
				loaded, err := growatt.LoadCatalogFile(io.RegistersFile)
				if err != nil {
					return nil, err
				}
				catalogs[io.RegistersFile] = loaded
			}
			catalog = catalogs[io.RegistersFile]
		}
		configs = append(configs, inverter.Config{
			InstanceID: io.InstanceID,
			Name:       io.Name,
			Address:    io.Address(),
			Timeout:    io.Timeout.Duration,
			Interval:   io.PollInterval.Duration,
			Catalog:    catalog,
		})
	}

	var opts []inverter.Option
	if len(o.Mqtt.Broker) > 0 {
		clientId := o.Mqtt.ClientId
		if len(clientId) == 0 {
			clientId = "growattgateway-" + uuidutil.ShortUUID()
		}
		publisher := broker.NewPublisher(broker.Options{
			Broker:          o.Mqtt.Broker,
			ClientId:        clientId,
			Username:        o.Mqtt.Username,
			Password:        o.Mqtt.Password,
			Topic:           o.Mqtt.Topic,
			DiscoveryPrefix: o.Mqtt.DiscoveryPrefix,
			Qos:             byte(o.Mqtt.Qos),
		})
		if err := publisher.Connect(); err != nil {
			// paho keeps retrying in the background
			klog.ErrorS(err, "Failed to connect MQTT broker", "broker", o.Mqtt.Broker)
		}
		opts = append(opts, inverter.WithPublisher(publisher))
	}
	opts = append(opts, inverter.WithCloser(runtime.LabeledCloser{
		Label: "logs",
		Closer: func(context.Context) error {
			klog.Flush()
			return nil
		},
	}))

	mgr := inverter.NewManager(configs, stopCh, opts...)
	if err := mgr.Init(context.Background()); err != nil {
		return nil, err
	}
	c.InverterMgr = mgr
	c.Registry = metrics.NewRegistry(mgr)

	return c, nil
}
