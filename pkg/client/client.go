// Package client implements a client for the live measurement
// endpoint. It dials a netgauge server, relays the streamed snapshots
// to an Emitter and returns the final result.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/netgauge/netgauge/pkg/gauge"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/live"
	"github.com/netgauge/netgauge/pkg/results"
	"github.com/netgauge/netgauge/pkg/version"
)

const (
	// DefaultWebSocketHandshakeTimeout is the default timeout used by the client
	// for the WebSocket handshake.
	DefaultWebSocketHandshakeTimeout = 5 * time.Second

	// DefaultScheme is the default WebSocket scheme for a new Client.
	DefaultScheme = "ws"

	libraryName = "netgauge-client"
)

var libraryVersion = version.Version

// defaultDialer is the default websocket.Dialer used by the client.
var defaultDialer = &websocket.Dialer{
	HandshakeTimeout: DefaultWebSocketHandshakeTimeout,
	TLSClientConfig:  &tls.Config{},
}

// Client is a client for the live measurement endpoint.
type Client struct {
	// ClientName is the name of the client sent to the server as part of the user-agent.
	ClientName string
	// ClientVersion is the version of the client sent to the server as part of the user-agent.
	ClientVersion string

	config Config
	dialer *websocket.Dialer
}

// makeUserAgent creates the user agent string.
func makeUserAgent(clientName, clientVersion string) string {
	return clientName + "/" + clientVersion + " " + libraryName + "/" + libraryVersion
}

// New returns a new Client with the provided client name, version and config.
// It panics if clientName or clientVersion are empty.
func New(clientName, clientVersion string, config Config) *Client {
	if clientName == "" || clientVersion == "" {
		panic("client name and version must be non-empty")
	}
	if config.Scheme == "" {
		config.Scheme = DefaultScheme
	}
	if config.MeasurementID == "" {
		config.MeasurementID = uuid.NewString()
	}
	if config.Emitter == nil {
		config.Emitter = gauge.Discard
	}
	defaultDialer.TLSClientConfig.InsecureSkipVerify = config.NoVerify
	return &Client{
		ClientName:    clientName,
		ClientVersion: clientVersion,

		config: config,
		dialer: defaultDialer,
	}
}

// connect dials the live endpoint on the configured server.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	mURL := &url.URL{
		Scheme: c.config.Scheme,
		Host:   c.config.Server,
		Path:   spec.LivePath,
	}
	q := mURL.Query()
	q.Set("mid", c.config.MeasurementID)
	if c.config.Profile != "" {
		q.Set("profile", string(c.config.Profile))
	}
	if c.config.PhaseDuration > 0 {
		q.Set("duration", fmt.Sprintf("%d", c.config.PhaseDuration.Milliseconds()))
	}
	if c.config.ServerID != "" {
		q.Set("server", c.config.ServerID)
	}
	q.Set("client_arch", runtime.GOARCH)
	q.Set("client_library_name", libraryName)
	q.Set("client_library_version", libraryVersion)
	q.Set("client_os", runtime.GOOS)
	q.Set("client_name", c.ClientName)
	q.Set("client_version", c.ClientVersion)
	mURL.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Add("Sec-WebSocket-Protocol", spec.SecWebSocketProtocol)
	headers.Add("User-Agent", makeUserAgent(c.ClientName, c.ClientVersion))
	conn, _, err := c.dialer.DialContext(ctx, mURL.String(), headers)
	return conn, err
}

// Run performs a full measurement against the configured server and
// returns the final result. Snapshot messages are relayed to the
// configured Emitter as they arrive.
func (c *Client) Run(ctx context.Context) (*results.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, spec.MaxRuntime)
	defer cancel()

	conn, err := c.connect(ctx)
	if err != nil {
		c.config.Emitter.OnError(err)
		return nil, err
	}
	defer conn.Close()

	// Interrupt the blocking reads below when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var lastPhase spec.Phase
	for {
		var msg live.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				c.config.Emitter.OnError(err)
				return nil, err
			}
			return nil, errors.New("connection closed before the final result")
		}
		switch msg.Type {
		case live.MessageSnapshot:
			if msg.Snapshot == nil {
				continue
			}
			if msg.Snapshot.Phase != lastPhase {
				lastPhase = msg.Snapshot.Phase
				c.config.Emitter.OnPhaseStart(lastPhase)
			}
			c.config.Emitter.OnSnapshot(*msg.Snapshot)
		case live.MessageResult:
			if msg.Result == nil {
				err := errors.New("result message without a result")
				c.config.Emitter.OnError(err)
				return nil, err
			}
			c.config.Emitter.OnComplete(*msg.Result)
			return msg.Result, nil
		case live.MessageError:
			err := fmt.Errorf("server error: %s", msg.Error)
			c.config.Emitter.OnError(err)
			return nil, err
		}
	}
}
