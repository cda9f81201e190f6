// Package live defines the wire protocol of the live measurement
// endpoint: a WebSocket stream of snapshot messages that ends with a
// single result message.
package live

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/results"
)

// Message types exchanged on the live endpoint.
const (
	// MessageSnapshot carries a smoothed live update.
	MessageSnapshot = "snapshot"
	// MessageResult carries the final assembled result. It is the last
	// message of a successful measurement.
	MessageResult = "result"
	// MessageError reports a fatal measurement error.
	MessageError = "error"
)

// Message is one WebSocket text message on the live endpoint. Exactly
// one of Snapshot, Result and Error is set, according to Type.
type Message struct {
	Type     string          `json:"type"`
	Snapshot *gauge.Snapshot `json:"snapshot,omitempty"`
	Result   *results.Result `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Upgrade takes a HTTP request and upgrades the connection to WebSocket.
// Returns a websocket Conn if the upgrade succeeded, and an error otherwise.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	// We expect WebSocket's subprotocol to be the live endpoint's. The same
	// subprotocol is added as a header on the response.
	if r.Header.Get("Sec-WebSocket-Protocol") != spec.SecWebSocketProtocol {
		w.WriteHeader(http.StatusBadRequest)
		return nil, errors.New("missing Sec-WebSocket-Protocol header")
	}
	h := http.Header{}
	h.Add("Sec-WebSocket-Protocol", spec.SecWebSocketProtocol)
	u := websocket.Upgrader{
		// Allow cross-origin resource sharing.
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	return u.Upgrade(w, r, h)
}
