package daemon

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectScript(t *testing.T) {
	tag := "<x>"
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"before body end", "<html><body><p>hi</p></body></html>", "<html><body><p>hi</p><x></body></html>"},
		{"uppercase tag", "<BODY>a</BODY>", "<BODY>a<x></BODY>"},
		{"last body end wins", "<body><script>var s='</body>';</script></body>", "<body><script>var s='</body>';</script><x></body>"},
		{"commented body end ignored", "<body><!-- </body> -->a</body>", "<body><!-- </body> -->a<x></body>"},
		{"no body appends", "<p>fragment</p>", "<p>fragment</p><x>"},
		{"empty", "", "<x>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, string(InjectScript([]byte(tt.in), tag)))
		})
	}
}

func TestInjectLiveReload_HTMLOnly(t *testing.T) {
	h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Length", "27")
			_, _ = w.Write([]byte("<html><body>"))
			_, _ = w.Write([]byte("ok</body></html>"))
		case "/app.js":
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write([]byte("</body>"))
		case "/missing":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<body>nope</body>"))
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))
	want := "<html><body>ok" + ScriptTag + "</body></html>"
	require.Equal(t, want, rec.Body.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, strconv.Itoa(len(want)), rec.Header().Get("Content-Length"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.Equal(t, "</body>", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "<body>nope</body>", rec.Body.String())
}

func TestInjectLiveReload_LargeBodyPassesThrough(t *testing.T) {
	big := "<body>" + strings.Repeat("a", 3<<20) + "</body>"
	h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		for i := 0; i < len(big); i += 64 << 10 {
			_, _ = w.Write([]byte(big[i:min(i+64<<10, len(big))]))
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, big, rec.Body.String())
}
