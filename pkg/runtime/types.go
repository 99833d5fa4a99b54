package runtime

import (
	"context"
	"time"
)

type LabeledCloser struct {
	Label  string
	Closer func(context.Context) error
}

type Collector interface {
	Collect(ctx context.Context)
	Destroy(ctx context.Context)
}

type VariableValue interface {
	GetValue() interface{}
	GetVariableName() string
}

// ParseVariableResult is the outcome of one poll cycle. VariableSlice holds
// every variable that has a value, Err the failures of this cycle.
type ParseVariableResult struct {
	Timestamp     time.Time
	VariableSlice []VariableValue
	Err           []error
}

type ResponseModel struct {
	Inverters interface{} `json:"inverters,omitempty"`
	Entities  interface{} `json:"entities,omitempty"`
}

type PublishData struct {
	Payload Payload `json:"payload"`
}

type Payload struct {
	Data []TimeSeriesData `json:"data"`
}

type TimeSeriesData struct {
	Timestamp string      `json:"timestamp"`
	Values    []PointData `json:"values"`
}

type PointData struct {
	DataPointId string      `json:"dataPointId"`
	Value       interface{} `json:"value"`
}

const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NewPublishData converts a poll result into the time series payload.
func NewPublishData(pvr *ParseVariableResult) PublishData {
	pds := make([]PointData, 0, len(pvr.VariableSlice))
	for _, value := range pvr.VariableSlice {
		pds = append(pds, PointData{
			DataPointId: value.GetVariableName(),
			Value:       value.GetValue(),
		})
	}
	return PublishData{Payload: Payload{Data: []TimeSeriesData{{
		Timestamp: pvr.Timestamp.UTC().Format(TimestampLayout),
		Values:    pds,
	}}}}
}
