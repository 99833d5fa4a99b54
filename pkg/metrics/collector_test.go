package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"growattgateway/pkg/protocol/growatt"
	modbusruntime "growattgateway/pkg/protocol/modbus/runtime"
)

type staticSource []Sample

func (s staticSource) Samples() []Sample { return s }

func testSource() staticSource {
	return staticSource{{
		Instance: "inv",
		Stats:    modbusruntime.Stats{Connected: true, Reads: 10, Failures: 2, Connects: 3},
		Entities: []*growatt.EntityState{
			{ID: "inv_0", Name: "系统状态", Value: "正常"},
			{ID: "inv_38", Name: "电网电压", Unit: "V", Value: 230.5},
			{ID: "inv_1014", Name: "电池SOC", Unit: "%", Value: uint16(87)},
			{ID: "inv_1009_32bit", Name: "电池充放电功率", Unit: "W", Value: int64(-100)},
			{ID: "inv_93", Name: "逆变器温度", Unit: "°C"},
		},
	}}
}

func TestCollector(t *testing.T) {
	require := require.New(t)

	c := NewCollector(testSource())
	// 4 connection series + 3 numeric entities
	require.Equal(7, testutil.CollectAndCount(c))
	require.Equal(3, testutil.CollectAndCount(c, "growatt_entity_value"))

	expected := `
# HELP growatt_modbus_failures_total Register reads that returned no data.
# TYPE growatt_modbus_failures_total counter
growatt_modbus_failures_total{instance="inv"} 2
`
	require.NoError(testutil.CollectAndCompare(c, strings.NewReader(expected), "growatt_modbus_failures_total"))
}

func TestToFloat64(t *testing.T) {
	v, ok := ToFloat64(int64(-5))
	require.True(t, ok)
	require.Equal(t, -5.0, v)

	_, ok = ToFloat64("正常")
	require.False(t, ok)
	_, ok = ToFloat64(nil)
	require.False(t, ok)
}

func TestHandler(t *testing.T) {
	require := require.New(t)

	h := Handler(NewRegistry(testSource()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(body, `growatt_modbus_connected{instance="inv"} 1`)
	require.Contains(body, `growatt_entity_value{entity="inv_38",instance="inv",name="电网电压",unit="V"} 230.5`)
	require.Contains(body, "go_goroutines")
}
