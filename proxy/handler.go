package proxy

import (
	"bytes"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// HTTPApplication runs a net/http handler, such as a gin engine, as an
// Application. Multi-value response headers collapse to their last value.
func HTTPApplication(h http.Handler) Application {
	return ApplicationFunc(func(env *Environ, start StartResponseFunc) (iter.Seq[[]byte], error) {
		req, err := env.HTTPRequest()
		if err != nil {
			return nil, err
		}

		w := newRecorder()
		h.ServeHTTP(w, req)

		code := w.statusCode()
		if _, err := start(StatusLine(code), w.pairs()); err != nil {
			return nil, err
		}
		return Chunks(w.body.Bytes()), nil
	})
}

// StatusLine formats code the way applications announce it, e.g. "404 Not Found".
func StatusLine(code int) string {
	return fmt.Sprintf("%d %s", code, http.StatusText(code))
}

// HTTPRequest rebuilds a server-side *http.Request from env. HTTP_ variables
// become canonical header names; the body reads from env.Input.
func (env *Environ) HTTPRequest() (*http.Request, error) {
	u := &url.URL{
		Scheme:   env.URLScheme,
		Host:     env.ServerName(),
		Path:     env.Path(),
		RawQuery: env.Query(),
	}

	req, err := http.NewRequestWithContext(env.Context(), env.Method(), u.String(), env.Input)
	if err != nil {
		return nil, fmt.Errorf("proxy: build http request: %w", err)
	}
	req.RequestURI = u.RequestURI()

	if major, minor, ok := http.ParseHTTPVersion(env.Protocol()); ok {
		req.Proto, req.ProtoMajor, req.ProtoMinor = env.Protocol(), major, minor
	}

	for _, p := range env.Headers() {
		name := strings.ReplaceAll(strings.TrimPrefix(p.Key, HeaderKeyPrefix), "_", "-")
		req.Header.Set(name, p.Value)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if n, err := strconv.ParseInt(req.Header.Get("Content-Length"), 10, 64); err == nil {
		req.ContentLength = n
	}

	return req, nil
}

// recorder captures what a handler writes.
type recorder struct {
	header      http.Header
	body        bytes.Buffer
	code        int
	wroteHeader bool
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (w *recorder) Header() http.Header {
	return w.header
}

func (w *recorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

func (w *recorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.code = code
	w.wroteHeader = true
}

func (w *recorder) Flush() {}

func (w *recorder) statusCode() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.code
}

func (w *recorder) pairs() []Pair {
	keys := make([]string, 0, len(w.header))
	for k := range w.header {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		values := w.header[k]
		if len(values) == 0 {
			continue
		}
		pairs = append(pairs, Pair{Key: k, Value: values[len(values)-1]})
	}
	return pairs
}
