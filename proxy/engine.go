package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrEngineStopped = errors.New("proxy: engine is stopped")

// Engine adapts gateway proxy events to an Application. It holds no
// per-invocation state and may be shared between goroutines.
type Engine struct {
	*Options
	app      Application
	logger   *logrus.Logger
	prefixes []string
	running  atomic.Int32
}

// NewEngine creates an engine serving app. The engine starts running.
func NewEngine(app Application, opts ...Option) *Engine {
	e := &Engine{
		Options: NewOptions(opts...),
		app:     app,
	}
	e.logger = e.newLogger()

	// longest prefix first so overlapping links resolve the same way every time
	for prefix := range e.PrefixLinkMap {
		e.prefixes = append(e.prefixes, prefix)
	}
	sort.Slice(e.prefixes, func(i, j int) bool {
		if len(e.prefixes[i]) != len(e.prefixes[j]) {
			return len(e.prefixes[i]) > len(e.prefixes[j])
		}
		return e.prefixes[i] < e.prefixes[j]
	})

	e.running.Store(1)
	return e
}

func (e *Engine) Start() {
	e.running.Store(1)
}

func (e *Engine) Stop() {
	e.running.Store(0)
}

func (e *Engine) IsRunning() bool {
	return e.running.Load() == 1
}

func (e *Engine) Logger() *logrus.Logger {
	return e.logger
}

// Invoke is the Lambda entry point for raw proxy events. Failures never
// surface as errors; they produce the fallback response.
func (e *Engine) Invoke(ctx context.Context, payload json.RawMessage) (*Response, error) {
	r, err := ParseRequest(payload)
	if err != nil {
		e.logger.WithField("request_id", requestID(ctx, nil)).Errorf("Error: %v", err)
		return Fallback(), nil
	}
	return e.Handle(ctx, r), nil
}

// ProxyWithContext is the Lambda entry point for aws-lambda-go typed events.
func (e *Engine) ProxyWithContext(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return e.Handle(ctx, RequestFromProxyRequest(event)).ProxyResponse(), nil
}

// Handle runs one request through the application. Any error or panic is
// logged and turned into the fallback response.
func (e *Engine) Handle(ctx context.Context, r *Request) *Response {
	log := e.logger.WithField("request_id", requestID(ctx, r))

	rsp, err := e.handle(ctx, r, log)
	if err != nil {
		log.Errorf("Error: %v", err)
		return Fallback()
	}
	return rsp
}

func (e *Engine) handle(ctx context.Context, r *Request, log *logrus.Entry) (rsp *Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			rsp, err = nil, fmt.Errorf("panic: %v", v)
		}
	}()

	if !e.IsRunning() {
		return nil, ErrEngineStopped
	}
	if e.app == nil {
		return nil, errors.New("proxy: no application")
	}

	env, err := NewEnviron(ctx, e.link(r), WithErrors(e.Errors))
	if err != nil {
		return nil, err
	}
	log.Debugf("[Proxy] Request: %s %s?%s", env.Method(), env.Path(), env.Query())

	state := &ResponseState{}
	body, err := e.app.Serve(env, state.StartResponse)
	if err != nil {
		return nil, err
	}
	data := collect(body)
	if err := state.Err(); err != nil {
		return nil, err
	}

	rsp, err = BuildResponse(state, data)
	if err != nil {
		return nil, err
	}
	log.Debugf("[Proxy] Response: %d base64=%t bytes=%d", rsp.StatusCode, rsp.IsBase64Encoded, len(data))
	return rsp, nil
}

// link applies the static and prefix path links. The request is copied
// when its path changes.
func (e *Engine) link(r *Request) *Request {
	if r == nil {
		return nil
	}
	if dst, ok := e.StaticLinkMap[r.Path]; ok {
		linked := *r
		linked.Path = dst
		return &linked
	}
	for _, prefix := range e.prefixes {
		if strings.HasPrefix(r.Path, prefix) {
			linked := *r
			linked.Path = e.PrefixLinkMap[prefix] + strings.TrimPrefix(r.Path, prefix)
			return &linked
		}
	}
	return r
}

func requestID(ctx context.Context, r *Request) string {
	if ctx != nil {
		if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
			return lc.AwsRequestID
		}
	}
	if r != nil && r.RequestContext.RequestID != "" {
		return r.RequestContext.RequestID
	}
	return uuid.NewString()
}
