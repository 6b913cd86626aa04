package prometheus

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// apiResponse is the envelope of /api/v1/query
type apiResponse struct {
	Status    string  `json:"status"`
	Data      apiData `json:"data"`
	ErrorType string  `json:"errorType,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// apiData keeps the result raw until its type is known
type apiData struct {
	ResultType string          `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

type vectorSample struct {
	Metric map[string]string `json:"metric"`
	Value  samplePair        `json:"value"`
}

// samplePair is Prometheus' [unix_seconds, "value"] tuple
type samplePair [2]interface{}

func (p samplePair) float() (float64, error) {
	switch v := p[1].(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected sample value %v", p[1])
	}
}
