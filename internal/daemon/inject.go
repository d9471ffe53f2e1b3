package daemon

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptTag is inserted into served HTML pages.
const ScriptTag = `<script async src="/livereload.js"></script>`

// InjectScript inserts tag before the last </body> of doc, or appends it
// when the document has no body end tag.
func InjectScript(doc []byte, tag string) []byte {
	at := -1
	offset := 0
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Body {
				at = offset
			}
		}
		offset += raw
	}
	if at < 0 {
		at = len(doc)
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:at]...)
	out = append(out, tag...)
	return append(out, doc[at:]...)
}

// injectLiveReload buffers HTML responses of next and injects the live
// reload script. Other responses pass through untouched.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		inj := &liveReloadInjector{ResponseWriter: w, statusCode: http.StatusOK, maxSize: 2 << 20}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// liveReloadInjector wraps an http.ResponseWriter and buffers HTML bodies up
// to maxSize. Larger or non-HTML bodies switch to passthrough.
type liveReloadInjector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	decided       bool
	passthrough   bool
	headerWritten bool
	maxSize       int
}

func (l *liveReloadInjector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough && !l.headerWritten {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *liveReloadInjector) decide() {
	if l.decided {
		return
	}
	l.decided = true
	h := l.ResponseWriter.Header()
	isHTML := strings.Contains(h.Get("Content-Type"), "text/html")
	encoded := h.Get("Content-Encoding") != ""
	if !isHTML || encoded || l.statusCode != http.StatusOK {
		l.passthrough = true
	}
}

func (l *liveReloadInjector) writeHeaderOnce() {
	if !l.headerWritten {
		l.ResponseWriter.WriteHeader(l.statusCode)
		l.headerWritten = true
	}
}

func (l *liveReloadInjector) Write(data []byte) (int, error) {
	l.decide()
	if l.passthrough {
		l.writeHeaderOnce()
		return l.ResponseWriter.Write(data)
	}
	if len(l.buffer)+len(data) > l.maxSize {
		l.passthrough = true
		l.writeHeaderOnce()
		if len(l.buffer) > 0 {
			if _, err := l.ResponseWriter.Write(l.buffer); err != nil {
				return 0, err
			}
			l.buffer = nil
		}
		return l.ResponseWriter.Write(data)
	}
	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

// ReadFrom keeps io.Copy on the buffering path.
func (l *liveReloadInjector) ReadFrom(r io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if _, werr := l.Write(buf.Bytes()); werr != nil && err == nil {
		err = werr
	}
	return n, err
}

// finalize must run after the wrapped handler returned.
func (l *liveReloadInjector) finalize() {
	l.decide()
	if l.passthrough || len(l.buffer) == 0 {
		l.writeHeaderOnce()
		return
	}
	body := InjectScript(l.buffer, ScriptTag)
	l.ResponseWriter.Header().Set("Content-Length", strconv.Itoa(len(body)))
	l.writeHeaderOnce()
	_, _ = l.ResponseWriter.Write(body)
}
