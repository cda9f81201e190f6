// Package api implements the netgauge server API: the one-shot
// speedtest query endpoint and the live measurement WebSocket
// endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/pkg/grade"
	"github.com/netgauge/netgauge/pkg/results"
	"golang.org/x/time/rate"
)

// TestTypePingOnly narrows the speedtest response to its latency
// fields.
const TestTypePingOnly = "ping-only"

// DefaultSessionTTL is how long a live session is retained before it
// is archived and dropped.
const DefaultSessionTTL = time.Minute

// Config contains the configuration for a Handler.
type Config struct {
	// Baseline anchors the simulated sources and the grading.
	Baseline results.Baseline
	// Servers is the simulated server catalogue. The first entry
	// serves requests that do not name a server.
	Servers []sim.Server
	// DataDir is the directory archival records are written to. Empty
	// disables archival.
	DataDir string
	// RateLimit is the query endpoint's sustained request rate per
	// second. Zero or negative disables rate limiting.
	RateLimit float64
	// Burst is the query endpoint's burst allowance.
	Burst int
	// SessionTTL overrides DefaultSessionTTL when positive.
	SessionTTL time.Duration
	// Seed seeds the simulated sources. Zero picks time-based seeds.
	Seed int64
}

// Handler serves the netgauge API endpoints.
type Handler struct {
	baseline results.Baseline
	servers  []sim.Server
	sources  map[string]*sim.Source
	limiter  *rate.Limiter
	dataDir  string

	sessions *ttlcache.Cache[string, *session]
}

// New returns a new Handler with the provided config. It panics if
// config.Servers is empty.
func New(config Config) *Handler {
	if len(config.Servers) == 0 {
		panic("server catalogue must be non-empty")
	}
	sources := make(map[string]*sim.Source, len(config.Servers))
	for i, srv := range config.Servers {
		seed := config.Seed
		if seed != 0 {
			seed += int64(i)
		}
		sources[srv.ID] = sim.New(config.Baseline, srv.Bias, seed)
	}
	limit := rate.Limit(config.RateLimit)
	if config.RateLimit <= 0 {
		limit = rate.Inf
	}
	ttl := config.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	h := &Handler{
		baseline: config.Baseline,
		servers:  config.Servers,
		sources:  sources,
		limiter:  rate.NewLimiter(limit, config.Burst),
		dataDir:  config.DataDir,
	}
	h.sessions = newSessionCache(h, ttl)
	return h
}

// speedtestRequest is the body of a POST speedtest query. The same
// fields are read from the querystring on GET.
type speedtestRequest struct {
	ServerID string `json:"serverId"`
	TestType string `json:"testType"`
}

// serverInfo identifies the server a reading came from.
type serverInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// speedtestResponse is a full one-shot reading.
type speedtestResponse struct {
	Download  float64           `json:"download"`
	Upload    float64           `json:"upload"`
	Ping      float64           `json:"ping"`
	Jitter    float64           `json:"jitter"`
	Grade     grade.ScoreCard   `json:"grade"`
	Timestamp time.Time         `json:"timestamp"`
	Server    serverInfo        `json:"server"`
	Units     map[string]string `json:"units"`
}

// pingOnlyResponse is the narrowed reading returned for ping-only
// queries.
type pingOnlyResponse struct {
	Ping      float64    `json:"ping"`
	Jitter    float64    `json:"jitter"`
	Timestamp time.Time  `json:"timestamp"`
	Server    serverInfo `json:"server"`
}

// units labels the unit of every speedtestResponse value.
var units = map[string]string{
	"download": "Mbps",
	"upload":   "Mbps",
	"ping":     "ms",
	"jitter":   "ms",
}

// envelope is the uniform response wrapper of the query endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

// meta describes how a successful response was served.
type meta struct {
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// Speedtest serves the one-shot speedtest query. GET returns a full
// reading from the default server. POST accepts {serverId, testType},
// where testType "ping-only" narrows the response to its latency
// fields. Readings are graded on the 0-100 point scale, not with the
// baseline-relative letter grades of phased measurements.
func (h *Handler) Speedtest(rw http.ResponseWriter, req *http.Request) {
	if !h.limiter.Allow() {
		writeError(rw, "speedtest", http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var q speedtestRequest
	switch req.Method {
	case http.MethodGet:
		query := req.URL.Query()
		q.ServerID = query.Get("serverId")
		q.TestType = query.Get("testType")
	case http.MethodPost:
		err := json.NewDecoder(req.Body).Decode(&q)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Info("Received malformed speedtest request",
				"source", req.RemoteAddr, "error", err)
			writeError(rw, "speedtest", http.StatusBadRequest, "malformed request body")
			return
		}
	default:
		writeError(rw, "speedtest", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if q.TestType != "" && q.TestType != TestTypePingOnly {
		writeError(rw, "speedtest", http.StatusBadRequest,
			fmt.Sprintf("unknown test type %q", q.TestType))
		return
	}

	srv, source, err := h.pick(q.ServerID)
	if err != nil {
		writeError(rw, "speedtest", http.StatusNotFound, err.Error())
		return
	}

	instant := source.Instant()
	info := serverInfo{ID: srv.ID, Name: srv.Name, Location: srv.Location}
	now := time.Now().UTC()

	if q.TestType == TestTypePingOnly {
		writeData(rw, "speedtest", pingOnlyResponse{
			Ping:      instant.Ping,
			Jitter:    instant.Jitter,
			Timestamp: now,
			Server:    info,
		})
		return
	}
	writeData(rw, "speedtest", speedtestResponse{
		Download:  instant.Download,
		Upload:    instant.Upload,
		Ping:      instant.Ping,
		Jitter:    instant.Jitter,
		Grade:     grade.Rate(instant.Download, instant.Upload, instant.Ping),
		Timestamp: now,
		Server:    info,
		Units:     units,
	})
}

// pick resolves a server id to its catalogue entry and simulated
// source. An empty id picks the first catalogue entry.
func (h *Handler) pick(id string) (sim.Server, *sim.Source, error) {
	if id == "" {
		srv := h.servers[0]
		return srv, h.sources[srv.ID], nil
	}
	for _, srv := range h.servers {
		if srv.ID == id {
			return srv, h.sources[srv.ID], nil
		}
	}
	return sim.Server{}, nil, fmt.Errorf("unknown server %q", id)
}

// writeData sends a success envelope with the provided payload.
func writeData(rw http.ResponseWriter, endpoint string, data interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	requests.WithLabelValues(endpoint, strconv.Itoa(http.StatusOK)).Inc()
	err := json.NewEncoder(rw).Encode(envelope{
		Success: true,
		Data:    data,
		Meta: &meta{
			RequestID: uuid.NewString(),
			Timestamp: time.Now().UTC(),
		},
	})
	if err != nil {
		log.Error("failed to write response", "error", err)
	}
}

// writeError sends an error envelope with the provided status code.
func writeError(rw http.ResponseWriter, endpoint string, code int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	err := json.NewEncoder(rw).Encode(envelope{
		Success: false,
		Error:   msg,
		Code:    code,
	})
	if err != nil {
		log.Error("failed to write response", "error", err)
	}
}

// writeBadRequest sends a Bad Request response to the client using writer.
func writeBadRequest(writer http.ResponseWriter) {
	writer.Header().Set("Connection", "Close")
	writer.WriteHeader(http.StatusBadRequest)
}
