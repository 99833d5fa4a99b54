package growatt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusText(t *testing.T) {
	require.Equal(t, "正常", StatusText(SystemStatusMap, 1))
	require.Equal(t, "故障", StatusText(SystemStatusMap, 3))
	require.Equal(t, "未知状态(99)", StatusText(SystemStatusMap, 99))
	require.Equal(t, "未知状态(0)", StatusText(nil, 0))
}

func TestDecode16(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name   string
		spec   RegisterSpec
		raw    uint16
		expect interface{}
	}{
		{name: "status", spec: RegisterSpec{Name: "系统状态", Address: 0}, raw: 1, expect: "正常"},
		{name: "unknown status", spec: RegisterSpec{Name: "系统状态", Address: 0}, raw: 42, expect: "未知状态(42)"},
		{name: "scaled", spec: RegisterSpec{Name: "电网电压", Address: 38, Scale: 0.1}, raw: 2305, expect: float64(2305) * 0.1},
		{name: "raw", spec: RegisterSpec{Name: "电池SOC", Address: 1014}, raw: 87, expect: uint16(87)},
		{name: "raw is unsigned", spec: RegisterSpec{Name: "x", Address: 500}, raw: 0xFFFF, expect: uint16(0xFFFF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, Decode16(c, tt.spec, tt.raw))
		})
	}
}

func TestDecode16StatusIgnoresScale(t *testing.T) {
	c := DefaultCatalog()
	spec := RegisterSpec{Name: "系统状态", Address: 0, Scale: 0.1}
	require.Equal(t, "故障", Decode16(c, spec, 3))
}

func TestDecode32(t *testing.T) {
	c := DefaultCatalog()
	plain := RegisterSpec{Name: "x 高位", Address: 100}
	scaled := RegisterSpec{Name: "光伏总功率 高位", Address: 1, Scale: 0.1}
	battery := RegisterSpec{Name: "电池充放电功率 高位", Address: BatteryPowerRegisterAddress, Scale: 0.1}
	batteryRaw := RegisterSpec{Name: "电池充放电功率 高位", Address: BatteryPowerRegisterAddress}

	tests := []struct {
		name   string
		spec   RegisterSpec
		hi, lo uint16
		expect interface{}
	}{
		{name: "big endian word order", spec: plain, hi: 0x0001, lo: 0x0002, expect: int64(65538)},
		{name: "negative", spec: plain, hi: 0xFFFF, lo: 0xFFFE, expect: int64(-2)},
		{name: "max", spec: plain, hi: 0x7FFF, lo: 0xFFFF, expect: int64(math.MaxInt32)},
		{name: "min", spec: plain, hi: 0x8000, lo: 0x0000, expect: int64(math.MinInt32)},
		{name: "scaled", spec: scaled, hi: 0x0000, lo: 12345, expect: float64(12345) * 0.1},
		{name: "battery negated", spec: battery, hi: 0x0000, lo: 1000, expect: float64(-1000) * 0.1},
		{name: "battery charging", spec: battery, hi: 0xFFFF, lo: 0xFC18, expect: float64(1000) * 0.1},
		{name: "battery raw", spec: batteryRaw, hi: 0x0000, lo: 5, expect: int64(-5)},
		{name: "battery min does not overflow", spec: batteryRaw, hi: 0x8000, lo: 0x0000, expect: int64(2147483648)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, Decode32(c, tt.spec, tt.hi, tt.lo))
		})
	}
}

func TestDecode32WithoutBatteryAddress(t *testing.T) {
	c := DefaultCatalog()
	c.BatteryPowerAddress = nil
	spec := RegisterSpec{Name: "电池充放电功率 高位", Address: BatteryPowerRegisterAddress}
	require.Equal(t, int64(5), Decode32(c, spec, 0, 5))
}
