package daemon

import (
	"bufio"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// LiveReloadHub manages SSE clients for reload broadcasts. Clients receive
// the current token on connect and reload whenever a different one arrives.
type LiveReloadHub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*lrClient
	recorder  metrics.Recorder
	closed    bool
	lastToken string
	heartbeat time.Duration
}

type lrClient struct {
	id   int
	ch   chan string
	done chan struct{}
}

func NewLiveReloadHub(recorder metrics.Recorder) *LiveReloadHub {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &LiveReloadHub{
		clients:   map[int]*lrClient{},
		recorder:  recorder,
		lastToken: uuid.NewString(),
		heartbeat: 30 * time.Second,
	}
}

// Clients returns the number of connected clients.
func (h *LiveReloadHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint at /livereload.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	client := &lrClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	client.id = h.nextID
	h.nextID++
	h.clients[client.id] = client
	current := h.lastToken
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", logfields.Error(err))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(": connected\n\n" + tokenEvent(current)) {
		h.removeClient(client.id)
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.removeClient(client.id)
			return
		case <-client.done:
			return
		case <-hb.C:
			send(": ping\n\n")
		case token := <-client.ch:
			send(tokenEvent(token))
		}
	}
}

func tokenEvent(token string) string {
	return "data: {\"token\":\"" + token + "\"}\n\n"
}

func (h *LiveReloadHub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// Token returns the last broadcast token.
func (h *LiveReloadHub) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastToken
}

// Reload broadcasts a fresh token.
func (h *LiveReloadHub) Reload() {
	h.Broadcast(uuid.NewString())
}

// Broadcast sends token to all clients, dropping clients whose queue is full.
// Empty or repeated tokens are ignored.
func (h *LiveReloadHub) Broadcast(token string) {
	h.mu.Lock()
	if h.closed || token == "" || token == h.lastToken {
		h.mu.Unlock()
		return
	}
	h.lastToken = token
	snapshot := make([]*lrClient, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- token:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	slog.Debug("livereload broadcast", slog.String("token", token), logfields.Clients(len(snapshot)), slog.Int("dropped", dropped))
}

// Shutdown closes all clients and prevents future broadcasts.
func (h *LiveReloadHub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*lrClient{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}

// LiveReloadScript is served at /livereload.js.
const LiveReloadScript = `(() => {
  if (window.__ASSETBUILDER_LR__) return;
  window.__ASSETBUILDER_LR__ = true;
  let current = null;
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.token; return; }
        if (p.token && p.token !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
