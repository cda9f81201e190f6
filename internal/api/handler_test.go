package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/netgauge/netgauge/internal/api"
	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
)

var testBaseline = results.Baseline{
	ExpectedDownload: 100,
	ExpectedUpload:   50,
	ExpectedPing:     20,
}

var testServers = []sim.Server{
	{ID: "ams-1", Name: "Amsterdam", Location: "NL", Bias: 1},
	{ID: "fra-1", Name: "Frankfurt", Location: "DE", Bias: 0.9},
}

func newTestHandler(t *testing.T) *api.Handler {
	t.Helper()
	return api.New(api.Config{
		Baseline: testBaseline,
		Servers:  testServers,
		DataDir:  t.TempDir(),
		Seed:     42,
	})
}

// envelope mirrors the query endpoint's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		RequestID string `json:"requestId"`
	} `json:"meta"`
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// reading mirrors the full speedtest payload.
type reading struct {
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
	Jitter   float64 `json:"jitter"`
	Grade    struct {
		Score int    `json:"score"`
		Grade string `json:"grade"`
	} `json:"grade"`
	Server struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Location string `json:"location"`
	} `json:"server"`
	Units map[string]string `json:"units"`
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(res.Body.Bytes(), &e); err != nil {
		t.Fatalf("cannot decode envelope: %v", err)
	}
	return e
}

func TestNew(t *testing.T) {
	h := newTestHandler(t)
	if h == nil {
		t.Errorf("New returned nil")
	}
}

func TestHandler_Speedtest(t *testing.T) {
	h := newTestHandler(t)

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, spec.SpeedtestPath, nil)
	h.Speedtest(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", res.Code)
	}
	e := decodeEnvelope(t, res)
	if !e.Success {
		t.Fatalf("unexpected failure envelope: %s", res.Body.String())
	}
	if e.Meta == nil || e.Meta.RequestID == "" {
		t.Errorf("missing request id in meta")
	}
	var r reading
	if err := json.Unmarshal(e.Data, &r); err != nil {
		t.Fatalf("cannot decode reading: %v", err)
	}
	if r.Download <= 0 || r.Upload <= 0 || r.Ping <= 0 {
		t.Errorf("unexpected reading values: %+v", r)
	}
	if r.Server.ID != "ams-1" {
		t.Errorf("unexpected default server: %q", r.Server.ID)
	}
	if r.Grade.Score < 0 || r.Grade.Score > 100 || r.Grade.Grade == "" {
		t.Errorf("unexpected grade: %+v", r.Grade)
	}
	if r.Units["download"] != "Mbps" || r.Units["ping"] != "ms" {
		t.Errorf("unexpected units: %v", r.Units)
	}
}

func TestHandler_Speedtest_ServerSelection(t *testing.T) {
	h := newTestHandler(t)

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, spec.SpeedtestPath,
		strings.NewReader(`{"serverId": "fra-1"}`))
	h.Speedtest(res, req)

	e := decodeEnvelope(t, res)
	if !e.Success {
		t.Fatalf("unexpected failure envelope: %s", res.Body.String())
	}
	var r reading
	if err := json.Unmarshal(e.Data, &r); err != nil {
		t.Fatalf("cannot decode reading: %v", err)
	}
	if r.Server.ID != "fra-1" || r.Server.Name != "Frankfurt" {
		t.Errorf("unexpected server: %+v", r.Server)
	}
}

func TestHandler_Speedtest_PingOnly(t *testing.T) {
	h := newTestHandler(t)

	res := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, spec.SpeedtestPath,
		strings.NewReader(`{"testType": "ping-only"}`))
	h.Speedtest(res, req)

	e := decodeEnvelope(t, res)
	if !e.Success {
		t.Fatalf("unexpected failure envelope: %s", res.Body.String())
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		t.Fatalf("cannot decode reading: %v", err)
	}
	for _, key := range []string{"ping", "jitter", "timestamp", "server"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing %q in ping-only reading", key)
		}
	}
	for _, key := range []string{"download", "upload", "grade", "units"} {
		if _, ok := fields[key]; ok {
			t.Errorf("unexpected %q in ping-only reading", key)
		}
	}
}

func TestHandler_Speedtest_Validation(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		statusCode int
	}{
		{
			name:       "malformed body",
			method:     http.MethodPost,
			target:     spec.SpeedtestPath,
			body:       `{"serverId":`,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unknown server",
			method:     http.MethodPost,
			target:     spec.SpeedtestPath,
			body:       `{"serverId": "mars-1"}`,
			statusCode: http.StatusNotFound,
		},
		{
			name:       "unknown test type",
			method:     http.MethodPost,
			target:     spec.SpeedtestPath,
			body:       `{"testType": "warp"}`,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unknown test type via querystring",
			method:     http.MethodGet,
			target:     spec.SpeedtestPath + "?testType=warp",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unsupported method",
			method:     http.MethodDelete,
			target:     spec.SpeedtestPath,
			statusCode: http.StatusMethodNotAllowed,
		},
	}
	h := newTestHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			res := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.target, body)
			h.Speedtest(res, req)
			if res.Code != tt.statusCode {
				t.Errorf("unexpected status code %d", res.Code)
			}
			e := decodeEnvelope(t, res)
			if e.Success {
				t.Errorf("expected a failure envelope")
			}
			if e.Error == "" || e.Code != tt.statusCode {
				t.Errorf("unexpected error envelope: %s", res.Body.String())
			}
		})
	}
}

func TestHandler_Speedtest_RateLimited(t *testing.T) {
	h := api.New(api.Config{
		Baseline:  testBaseline,
		Servers:   testServers,
		RateLimit: 1,
		Burst:     1,
		Seed:      42,
	})

	res := httptest.NewRecorder()
	h.Speedtest(res, httptest.NewRequest(http.MethodGet, spec.SpeedtestPath, nil))
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code %d", res.Code)
	}

	res = httptest.NewRecorder()
	h.Speedtest(res, httptest.NewRequest(http.MethodGet, spec.SpeedtestPath, nil))
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code %d", res.Code)
	}
	e := decodeEnvelope(t, res)
	if e.Success || e.Code != http.StatusTooManyRequests {
		t.Errorf("unexpected envelope: %s", res.Body.String())
	}
}
