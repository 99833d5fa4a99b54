package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"growattgateway/pkg/inverter"
)

type Config struct {
	InverterMgr *inverter.Manager
	Registry    *prometheus.Registry
	CertFile    string
	KeyFile     string
}
