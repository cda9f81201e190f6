// Package main implements a bare-bones minimal netgauge live client.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const clientName = "netgauge-minimal-client-go"

var clientVersion = "v0.0.1"

var (
	flagServer   = flag.String("server", "localhost:8080", "Server address (host:port)")
	flagScheme   = flag.String("scheme", "ws", "Websocket scheme (wss or ws)")
	flagProfile  = flag.String("profile", "quick", "Measurement profile to request")
	flagServerID = flag.String("server.id", "", "Catalogue server to request")
	flagNoVerify = flag.Bool("no-verify", false, "Skip TLS certificate verification")
	flagMID      = flag.String("mid", uuid.NewString(), "Measurement ID to use")
)

// Message is one live endpoint message: snapshots while the measurement
// runs, then a single result.
//
// Find the authoritative structures in:
// * github.com/netgauge/netgauge/pkg/live/protocol.go
// * github.com/netgauge/netgauge/pkg/gauge/emitter.go
// * github.com/netgauge/netgauge/pkg/results/results.go
type Message struct {
	// Type is snapshot, result or error.
	Type string `json:"type"`
	// Snapshot is a smoothed live update.
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	// Result is the final measurement summary.
	Result *Result `json:"result,omitempty"`
	// Error reports a fatal measurement error.
	Error string `json:"error,omitempty"`
}

// Snapshot is one smoothed live update.
type Snapshot struct {
	// Phase is the phase the measurement is currently in.
	Phase string `json:"phase"`
	// Progress is the overall progress across all phases, 0-100.
	Progress float64 `json:"progress"`
	// Value is the live value: latency in ms during the ping phase,
	// throughput in Mbps otherwise.
	Value float64 `json:"value"`
	// ElapsedTime is the time since the measurement started (microseconds).
	ElapsedTime int64 `json:"elapsedTime"`
}

// Result is the final measurement summary.
type Result struct {
	ID       string  `json:"id"`
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
	ServerID string  `json:"serverId,omitempty"`
}

// localDialer allows insecure TLS for explicit servers.
var localDialer = &websocket.Dialer{
	HandshakeTimeout: 5 * time.Second,
	TLSClientConfig: &tls.Config{
		InsecureSkipVerify: *flagNoVerify,
	},
}

func init() {
	// Disable all prefixing for logging.
	log.SetFlags(0)
}

// connect to the given netgauge server, returning a *websocket.Conn.
func connect(ctx context.Context) (*websocket.Conn, error) {
	u := &url.URL{
		Scheme: *flagScheme,
		Host:   *flagServer,
		Path:   "/netgauge/v1/live",
	}
	q := u.Query()
	q.Set("mid", *flagMID)
	q.Set("profile", *flagProfile)
	if *flagServerID != "" {
		q.Set("server", *flagServerID)
	}
	q.Set("client_name", clientName)
	q.Set("client_version", clientVersion)
	u.RawQuery = q.Encode()
	headers := http.Header{}
	headers.Add("Sec-WebSocket-Protocol", "net.netgauge.v1")
	headers.Add("User-Agent", clientName+"/"+clientVersion)
	conn, _, err := localDialer.DialContext(ctx, u.String(), headers)
	return conn, err
}

func main() {
	flag.Parse()

	// Max runtime for the whole measurement.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(60 * time.Second)
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	// Receive messages from conn until the final result or conn closes.
	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Println("error", err)
			}
			return
		}
		switch m.Type {
		case "snapshot":
			fmt.Printf("%s: %0.2f (%.0f%%)\n",
				m.Snapshot.Phase, m.Snapshot.Value, m.Snapshot.Progress)
		case "result":
			fmt.Printf("download %0.1f Mbps, upload %0.1f Mbps, ping %0.0f ms\n",
				m.Result.Download, m.Result.Upload, m.Result.Ping)
			return
		case "error":
			log.Println("server error:", m.Error)
			return
		}
	}
}
