package inverter

import "time"

const (
	defaultModel = "modbusTcp"
	// bounds an on demand refresh from the api
	refreshTimeout = 30 * time.Second
)
