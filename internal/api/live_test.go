package api_test

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-lab/go/rtx"
	"github.com/netgauge/netgauge/internal/api"
	"github.com/netgauge/netgauge/pkg/gauge/spec"
	"github.com/netgauge/netgauge/pkg/live"
	"github.com/netgauge/netgauge/pkg/results"
)

func dialLive(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u, err := url.Parse(server.URL)
	rtx.Must(err, "cannot get server URL")
	u.Scheme = "ws"
	u.Path = spec.LivePath
	u.RawQuery = query

	headers := http.Header{}
	headers.Add("Sec-WebSocket-Protocol", spec.SecWebSocketProtocol)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func countDataFiles(t *testing.T, dir string) int {
	t.Helper()
	var count int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading output folder failed: %v", err)
	}
	return count
}

func TestHandler_Live(t *testing.T) {
	dataDir := t.TempDir()
	h := api.New(api.Config{
		Baseline:   testBaseline,
		Servers:    testServers,
		DataDir:    dataDir,
		SessionTTL: 100 * time.Millisecond,
		Seed:       42,
	})
	server := httptest.NewServer(http.HandlerFunc(h.Live))
	defer server.Close()

	conn := dialLive(t, server, "mid=test-mid&duration=500")
	defer conn.Close()

	var snapshots int
	var result *results.Result
	for {
		var msg live.Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("unexpected close: %v", err)
			}
			break
		}
		switch msg.Type {
		case live.MessageSnapshot:
			if msg.Snapshot == nil {
				t.Fatalf("snapshot message without snapshot")
			}
			snapshots++
		case live.MessageResult:
			if msg.Result == nil {
				t.Fatalf("result message without result")
			}
			result = msg.Result
		case live.MessageError:
			t.Fatalf("unexpected error message: %s", msg.Error)
		}
	}

	if snapshots == 0 {
		t.Errorf("no snapshot messages received")
	}
	if result == nil {
		t.Fatalf("no result message received")
	}
	if result.Download <= 0 || result.Upload <= 0 || result.Ping <= 0 {
		t.Errorf("unexpected result values: %+v", result)
	}
	if result.ServerID != "ams-1" {
		t.Errorf("unexpected server id: %q", result.ServerID)
	}
	if result.Stats == nil || result.Stats.Grade == "" {
		t.Errorf("missing stats in result")
	}

	// The session is archived once its TTL expires.
	deadline := time.Now().Add(5 * time.Second)
	for countDataFiles(t, dataDir) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("no archival data file written")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestHandler_Live_ClientDisconnect(t *testing.T) {
	dataDir := t.TempDir()
	h := api.New(api.Config{
		Baseline:   testBaseline,
		Servers:    testServers,
		DataDir:    dataDir,
		SessionTTL: 100 * time.Millisecond,
		Seed:       42,
	})
	server := httptest.NewServer(http.HandlerFunc(h.Live))
	defer server.Close()

	conn := dialLive(t, server, "mid=test-mid&duration=2000")
	// Read one message, then drop the connection mid-measurement.
	var msg live.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("cannot read first message: %v", err)
	}
	conn.Close()

	// The aborted session must not be archived.
	time.Sleep(time.Second)
	if n := countDataFiles(t, dataDir); n != 0 {
		t.Errorf("unexpected archival files for an aborted measurement: %d", n)
	}
}

func TestHandler_Live_Validation(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		name       string
		target     string
		statusCode int
	}{
		{
			name:       "missing mid",
			target:     spec.LivePath,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unknown profile",
			target:     spec.LivePath + "?mid=test&profile=warp",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "invalid duration",
			target:     spec.LivePath + "?mid=test&duration=never",
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unknown server",
			target:     spec.LivePath + "?mid=test&server=mars-1",
			statusCode: http.StatusNotFound,
		},
		{
			name:       "missing Sec-WebSocket-Protocol header",
			target:     spec.LivePath + "?mid=test",
			statusCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			h.Live(res, req)
			if res.Code != tt.statusCode {
				t.Errorf("unexpected status code %d", res.Code)
			}
		})
	}
}
