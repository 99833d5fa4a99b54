package runtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, s string) []Predicate {
	t.Helper()
	filter := ObjectFilter{}
	require.NoError(t, json.Unmarshal([]byte(s), &filter))
	return ParseObjectFilter(&filter)
}

func TestParseObjectFilter(t *testing.T) {
	pv := &ObjectMeta{ID: "inv_1_32bit", Name: "光伏总功率"}
	grid := &ObjectMeta{ID: "inv_38", Name: "电网电压"}

	tests := []struct {
		name   string
		filter string
		pv     bool
		grid   bool
	}{
		{name: "empty", filter: `{}`, pv: true, grid: true},
		{name: "id", filter: `{"id":"inv_38"}`, pv: false, grid: true},
		{name: "name string", filter: `{"name":"光伏总功率"}`, pv: true, grid: false},
		{name: "eq", filter: `{"name":{"eq":"电网电压"}}`, pv: false, grid: true},
		{name: "in", filter: `{"name":{"in":["电网电压","光伏总功率"]}}`, pv: true, grid: true},
		{name: "contains", filter: `{"name":{"contains":"功率"}}`, pv: true, grid: false},
		{name: "startsWith", filter: `{"name":{"startsWith":"电网"}}`, pv: false, grid: true},
		{name: "endsWith", filter: `{"name":{"endsWith":"电压"}}`, pv: false, grid: true},
		{name: "combined", filter: `{"id":"inv_38","name":{"contains":"功率"}}`, pv: false, grid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predicates := parse(t, tt.filter)
			require.Equal(t, tt.pv, Match(pv, predicates))
			require.Equal(t, tt.grid, Match(grid, predicates))
		})
	}
}

func TestNewPublishData(t *testing.T) {
	require := require.New(t)

	pvr := &ParseVariableResult{
		VariableSlice: []VariableValue{
			&pointValue{name: "inv_0", value: "正常"},
			&pointValue{name: "inv_1_32bit", value: 12.5},
		},
	}
	pd := NewPublishData(pvr)
	require.Len(pd.Payload.Data, 1)
	require.Equal([]PointData{
		{DataPointId: "inv_0", Value: "正常"},
		{DataPointId: "inv_1_32bit", Value: 12.5},
	}, pd.Payload.Data[0].Values)
}

type pointValue struct {
	name  string
	value interface{}
}

func (p *pointValue) GetValue() interface{}   { return p.value }
func (p *pointValue) GetVariableName() string { return p.name }
