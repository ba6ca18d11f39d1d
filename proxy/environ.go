package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

const (
	KeyRequestMethod  = "REQUEST_METHOD"
	KeyPathInfo       = "PATH_INFO"
	KeyQueryString    = "QUERY_STRING"
	KeyServerName     = "SERVER_NAME"
	KeyServerPort     = "SERVER_PORT"
	KeyServerProtocol = "SERVER_PROTOCOL"

	HeaderKeyPrefix = "HTTP_"
)

const (
	HeaderForwardedProto           = "X-Forwarded-Proto"
	HeaderCloudFrontForwardedProto = "CloudFront-Forwarded-Proto"

	defaultScheme = "https"
)

// Environ is the request-execution context handed to an Application.
// Variables are CGI-style keys kept in insertion order.
type Environ struct {
	vars  []Pair
	index map[string]int

	// Version of the calling convention, always 1.0.
	Version [2]int
	// URLScheme is http or https as seen by the client.
	URLScheme string
	// Input is the request body. It is forward-only and may be consumed once.
	Input io.Reader
	// Errors receives diagnostics the application wants to report.
	Errors io.Writer

	MultiThread  bool
	MultiProcess bool
	RunOnce      bool

	// ctx is the invocation context. An Environ never outlives its invocation.
	ctx context.Context
}

type EnvironOption func(*Environ)

// WithErrors sets the diagnostics writer of the Environ.
func WithErrors(w io.Writer) EnvironOption {
	return func(env *Environ) {
		if w != nil {
			env.Errors = w
		}
	}
}

// NewEnviron translates an inbound event into an Environ. Field presence is
// checked by ParseRequest; values, empty or not, are copied through as-is.
func NewEnviron(ctx context.Context, r *Request, opts ...EnvironOption) (*Environ, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidEvent)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scheme := resolveScheme(r)

	var body string
	if r.Body != nil {
		body = *r.Body
	}

	env := &Environ{
		index:     make(map[string]int, 6+len(r.Headers)),
		Version:   [2]int{1, 0},
		URLScheme: scheme,
		Input:     forwardOnly{bytes.NewReader([]byte(body))},
		Errors:    os.Stderr,
		ctx:       ctx,
	}
	for _, opt := range opts {
		opt(env)
	}

	env.Set(KeyRequestMethod, r.HTTPMethod)
	env.Set(KeyPathInfo, r.Path)
	env.Set(KeyQueryString, EncodeQuery(r.QueryStringParameters))
	env.Set(KeyServerName, r.RequestContext.DomainName)
	env.Set(KeyServerPort, portFor(scheme))
	env.Set(KeyServerProtocol, r.RequestContext.Protocol)

	for _, h := range r.Headers {
		env.Set(HeaderKey(h.Key), h.Value)
	}

	return env, nil
}

func resolveScheme(r *Request) string {
	if scheme, ok := r.Header(HeaderForwardedProto); ok {
		return scheme
	}
	if scheme, ok := r.Header(HeaderCloudFrontForwardedProto); ok {
		return scheme
	}
	return defaultScheme
}

func portFor(scheme string) string {
	if scheme == "http" {
		return "80"
	}
	return "443"
}

// HeaderKey projects a header name into its Environ key, e.g.
// X-Forwarded-For becomes HTTP_X_FORWARDED_FOR.
func HeaderKey(name string) string {
	return HeaderKeyPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// EncodeQuery renders pairs as key=value&key=value, preserving order.
func EncodeQuery(pairs []Pair) string {
	if len(pairs) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// forwardOnly hides any Seek method of the wrapped reader.
type forwardOnly struct {
	io.Reader
}

// Get returns the variable stored under key, or "" when unset.
func (env *Environ) Get(key string) string {
	v, _ := env.Lookup(key)
	return v
}

func (env *Environ) Lookup(key string) (string, bool) {
	i, ok := env.index[key]
	if !ok {
		return "", false
	}
	return env.vars[i].Value, true
}

// Set stores a variable. Setting an existing key replaces its value and
// keeps its original position.
func (env *Environ) Set(key, value string) {
	if env.index == nil {
		env.index = make(map[string]int)
	}
	if i, ok := env.index[key]; ok {
		env.vars[i].Value = value
		return
	}
	env.index[key] = len(env.vars)
	env.vars = append(env.vars, Pair{Key: key, Value: value})
}

// Vars returns a copy of all variables in insertion order.
func (env *Environ) Vars() []Pair {
	out := make([]Pair, len(env.vars))
	copy(out, env.vars)
	return out
}

// Headers returns the projected HTTP_ variables in insertion order.
func (env *Environ) Headers() []Pair {
	var out []Pair
	for _, p := range env.vars {
		if strings.HasPrefix(p.Key, HeaderKeyPrefix) {
			out = append(out, p)
		}
	}
	return out
}

func (env *Environ) Method() string     { return env.Get(KeyRequestMethod) }
func (env *Environ) Path() string       { return env.Get(KeyPathInfo) }
func (env *Environ) Query() string      { return env.Get(KeyQueryString) }
func (env *Environ) ServerName() string { return env.Get(KeyServerName) }
func (env *Environ) ServerPort() string { return env.Get(KeyServerPort) }
func (env *Environ) Protocol() string   { return env.Get(KeyServerProtocol) }

// Context returns the context of the invocation that built env.
func (env *Environ) Context() context.Context {
	if env.ctx == nil {
		return context.Background()
	}
	return env.ctx
}
