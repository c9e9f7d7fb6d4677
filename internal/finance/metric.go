package finance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Status qualifies a Metric value.
type Status string

const (
	// StatusDefined marks a computed numeric value.
	StatusDefined Status = "defined"
	// StatusNotApplicable marks a metric with no meaningful value, e.g. payback with no savings.
	StatusNotApplicable Status = "not_applicable"
	// StatusUnbounded marks an infinite value, e.g. ROI with zero capex and positive savings.
	StatusUnbounded Status = "unbounded"
)

// Metric is a number with an explicit status. Only defined metrics carry a Value.
//
// JSON form: a defined metric is a plain number, otherwise the status string.
type Metric struct {
	Value  float64
	Status Status
}

// Defined returns a defined metric.
func Defined(v float64) Metric { return Metric{Value: v, Status: StatusDefined} }

// NotApplicable returns a not-applicable metric.
func NotApplicable() Metric { return Metric{Status: StatusNotApplicable} }

// Unbounded returns an unbounded metric.
func Unbounded() Metric { return Metric{Status: StatusUnbounded} }

// IsDefined reports whether m carries a value.
func (m Metric) IsDefined() bool { return m.Status == StatusDefined }

// String formats the value with two decimals, or returns the status.
func (m Metric) String() string {
	switch m.Status {
	case StatusDefined:
		return strconv.FormatFloat(m.Value, 'f', 2, 64)
	case StatusUnbounded:
		return "unbounded"
	case StatusNotApplicable, "":
		return "n/a"
	default:
		return string(m.Status)
	}
}

// MarshalJSON implements json.Marshaler.
func (m Metric) MarshalJSON() ([]byte, error) {
	switch m.Status {
	case StatusDefined:
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			return nil, fmt.Errorf("metric: non-finite defined value %v", m.Value)
		}
		return json.Marshal(m.Value)
	case StatusNotApplicable, StatusUnbounded:
		return json.Marshal(string(m.Status))
	case "":
		return json.Marshal(string(StatusNotApplicable))
	default:
		return nil, fmt.Errorf("metric: unknown status %q", m.Status)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch Status(s) {
		case StatusNotApplicable, StatusUnbounded:
			*m = Metric{Status: Status(s)}
			return nil
		default:
			return fmt.Errorf("metric: unknown status %q", s)
		}
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("metric: %w", err)
	}
	*m = Defined(v)
	return nil
}
