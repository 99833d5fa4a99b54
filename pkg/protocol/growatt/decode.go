package growatt

import (
	"fmt"

	"growattgateway/pkg/utils/binutil"
)

// StatusText maps a system status code, unknown codes are kept visible.
func StatusText(statusMap map[uint16]string, code uint16) string {
	if s, ok := statusMap[code]; ok {
		return s
	}
	return fmt.Sprintf("未知状态(%d)", code)
}

// Decode16 returns the status text for the status register, the scaled value
// when a scale is configured, and the raw word otherwise.
func Decode16(c *Catalog, spec RegisterSpec, raw uint16) interface{} {
	if c.IsStatus(spec.Address) {
		return StatusText(c.StatusMap, raw)
	}
	if spec.HasScale() {
		return float64(raw) * spec.Scale
	}
	return raw
}

// Decode32 joins the high and low word, reads the result as two's complement,
// negates the battery power quantity, then scales.
func Decode32(c *Catalog, high RegisterSpec, hi uint16, lo uint16) interface{} {
	// int64 so that negating math.MinInt32 cannot overflow
	v := int64(int32(binutil.JoinUint16BigEndian(hi, lo)))
	if c.IsBatteryPower(high.Address) {
		v = -v
	}
	if high.HasScale() {
		return float64(v) * high.Scale
	}
	return v
}
