//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/config"
	"github.com/conneroisu/sfcpreview/internal/server"
)

// TestTimeout bounds every wait on the watcher or the socket.
func TestTimeout() time.Duration {
	if os.Getenv("CI") != "" {
		return 15 * time.Second
	}
	return 5 * time.Second
}

// devServer is a preview server over a real project directory, served by
// httptest and fed by a real file watcher.
type devServer struct {
	root    string
	cfg     *config.Config
	session *server.Session
	server  *server.PreviewServer
	http    *httptest.Server
}

// startDevServer scans root, starts the hub and the watcher, and serves
// the handler. Everything stops when the test ends.
func startDevServer(t *testing.T, root string) *devServer {
	t.Helper()

	cfg := config.Default()
	cfg.Components.Root = root
	cfg.Development.Debounce = 50 * time.Millisecond

	session, err := server.NewSession(cfg, server.SessionOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	_, err = session.Scan(ctx)
	require.NoError(t, err)

	srv := server.New(cfg, session, nil)
	go srv.Hub().Run(ctx)

	fw, err := session.NewWatcher(srv.Hub().Broadcast)
	require.NoError(t, err)
	require.NoError(t, fw.Start(ctx))
	t.Cleanup(func() { fw.Stop() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &devServer{root: session.Root(), cfg: cfg, session: session, server: srv, http: ts}
}

// get fetches path and fails the test on a non-200 response.
func (d *devServer) get(t *testing.T, path string) string {
	t.Helper()
	resp, err := http.Get(d.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, "GET %s: %s", path, body)
	return string(body)
}

// dial connects to the hot-update channel and consumes the greeting.
func (d *devServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(d.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	greeting := readMessage(t, conn)
	require.Equal(t, server.MessageConnected, greeting.Type)
	return conn
}

// write replaces a project file. Parent directories are created.
func (d *devServer) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(d.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readMessage(t *testing.T, conn *websocket.Conn) server.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout())
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var message server.Message
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

// awaitMessage reads until a message of the given type arrives.
func awaitMessage(t *testing.T, conn *websocket.Conn, messageType string) server.Message {
	t.Helper()
	deadline := time.Now().Add(TestTimeout())
	for time.Now().Before(deadline) {
		message := readMessage(t, conn)
		if message.Type == messageType {
			return message
		}
	}
	t.Fatalf("no %s message within %v", messageType, TestTimeout())
	return server.Message{}
}

// updatedPaths returns the module paths of an update message.
func updatedPaths(message server.Message) []string {
	paths := make([]string, 0, len(message.Updates))
	for _, update := range message.Updates {
		paths = append(paths, update.Path)
	}
	return paths
}

// component builds a source file with one preview block per body.
func component(template string, previews ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<template>\n  %s\n</template>\n", template)
	for i, body := range previews {
		fmt.Fprintf(&b, "\n<preview name=\"Preview %c\">\n  %s\n</preview>\n", 'A'+i, body)
	}
	return b.String()
}
