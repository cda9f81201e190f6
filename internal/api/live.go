package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/jellydator/ttlcache/v3"
	"github.com/netgauge/netgauge/internal/persistence"
	"github.com/netgauge/netgauge/internal/sim"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/live"
	"github.com/netgauge/netgauge/pkg/results"
)

// session tracks one live measurement connection until it is archived.
type session struct {
	ID      string
	Server  sim.Server
	Profile spec.Profile
	Started time.Time

	mu      sync.Mutex
	outcome *gauge.Outcome
}

// setOutcome records the completed measurement for archival.
func (s *session) setOutcome(o *gauge.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = o
}

// archive returns the session's archival record and clears it, so
// every record is written at most once. It returns nil if the
// measurement never completed or the record was already taken.
func (s *session) archive() *results.ArchivalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return nil
	}
	rec := s.outcome.Archive()
	s.outcome = nil
	return rec
}

// newSessionCache returns a session cache that writes completed
// sessions to disk on eviction.
func newSessionCache(h *Handler, ttl time.Duration) *ttlcache.Cache[string, *session] {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *session](ttl),
		ttlcache.WithDisableTouchOnHit[string, *session](),
	)
	cache.OnEviction(func(ctx context.Context,
		er ttlcache.EvictionReason,
		i *ttlcache.Item[string, *session]) {
		s := i.Value()
		log.Debug("Session expired", "id", s.ID, "reason", er)

		// Save data to disk when the session expires. Sessions whose
		// measurement never completed have nothing to save.
		rec := s.archive()
		if rec == nil || h.dataDir == "" {
			return
		}
		_, err := persistence.Archive(h.dataDir, rec)
		if err != nil {
			log.Error("failed to write archival record", "mid", s.ID, "error", err)
			archiveErrors.Inc()
			return
		}
	})

	go cache.Start()
	return cache
}

// Live runs one full phased measurement over a WebSocket connection,
// streaming snapshot messages at the display cadence and a final
// result message when the measurement completes.
//
// The measurement id ("mid") querystring parameter is required.
// Optional parameters: "profile" selects the per-phase duration,
// "duration" overrides it in milliseconds and "server" selects a
// catalogue server.
func (h *Handler) Live(rw http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	mid := query.Get("mid")
	if mid == "" {
		log.Info("Received live request without mid", "source", req.RemoteAddr)
		writeBadRequest(rw)
		return
	}

	profile := spec.ProfileStandard
	if p := query.Get("profile"); p != "" {
		profile = spec.Profile(p)
		if !profile.Valid() {
			log.Info("Received live request with unknown profile",
				"source", req.RemoteAddr, "profile", p)
			writeBadRequest(rw)
			return
		}
	}

	var duration time.Duration
	if d := query.Get("duration"); d != "" {
		ms, err := strconv.Atoi(d)
		if err != nil || ms <= 0 {
			log.Info("Received live request with invalid duration",
				"source", req.RemoteAddr, "duration", d)
			writeBadRequest(rw)
			return
		}
		duration = time.Duration(ms) * time.Millisecond
	}

	srv, source, err := h.pick(query.Get("server"))
	if err != nil {
		log.Info("Received live request for unknown server",
			"source", req.RemoteAddr, "error", err)
		rw.WriteHeader(http.StatusNotFound)
		return
	}

	// Everything looks good, try upgrading the connection to WebSocket.
	// Note that we cannot write an HTTP error after attempting an
	// Upgrade.
	wsConn, err := live.Upgrade(rw, req)
	if err != nil {
		log.Info("Websocket upgrade failed", "source", req.RemoteAddr, "error", err)
		return
	}
	defer wsConn.Close()

	sess := &session{
		ID:      mid,
		Server:  srv,
		Profile: profile,
		Started: time.Now(),
	}
	h.sessions.Set(mid, sess, ttlcache.DefaultTTL)
	log.Debug("session created", "id", mid, "server", srv.ID, "profile", profile)

	ctx, cancel := context.WithTimeout(req.Context(), spec.MaxRuntime)
	defer cancel()

	// The client never sends data messages: reading here surfaces
	// close frames and cancels the measurement on disconnection.
	go func() {
		defer cancel()
		for {
			if _, _, err := wsConn.NextReader(); err != nil {
				return
			}
		}
	}()

	runner := gauge.New(gauge.Config{
		Profile:       profile,
		PhaseDuration: duration,
		Baseline:      h.baseline,
		Source:        source.Fork(),
		Emitter:       &wsEmitter{conn: wsConn},
		ServerID:      srv.ID,
	})
	outcome, err := runner.Run(ctx)
	if err != nil {
		log.Debug("live measurement aborted", "mid", mid, "error", err)
		liveMeasurements.WithLabelValues("aborted").Inc()
		return
	}

	sess.setOutcome(outcome)
	// Restart the TTL so the session outlives the measurement that
	// filled it. A session evicted mid-measurement has no outcome yet
	// and is not archived.
	h.sessions.Set(mid, sess, ttlcache.DefaultTTL)
	liveMeasurements.WithLabelValues("completed").Inc()

	err = wsConn.WriteJSON(live.Message{
		Type:   live.MessageResult,
		Result: &outcome.Result,
	})
	if err != nil {
		log.Debug("failed to write final result", "mid", mid, "error", err)
		return
	}
	wsConn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// wsEmitter relays measurement progress to the WebSocket peer. The
// final result message is written by the Live handler instead, after
// the session is recorded.
type wsEmitter struct {
	conn *websocket.Conn
}

func (e *wsEmitter) OnPhaseStart(phase spec.Phase) {
	log.Debug("phase started", "phase", phase)
}

func (e *wsEmitter) OnSnapshot(s gauge.Snapshot) {
	err := e.conn.WriteJSON(live.Message{
		Type:     live.MessageSnapshot,
		Snapshot: &s,
	})
	if err != nil {
		log.Debug("failed to write snapshot", "error", err)
	}
}

func (e *wsEmitter) OnError(err error) {
	e.conn.WriteJSON(live.Message{
		Type:  live.MessageError,
		Error: err.Error(),
	})
}

func (e *wsEmitter) OnComplete(results.Result) {}

var _ gauge.Emitter = &wsEmitter{}
