package proxy_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"testing"

	"github.com/aura-studio/gateway/proxy"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newTestEngine(t *testing.T, app proxy.Application, opts ...proxy.Option) (*proxy.Engine, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append(opts, proxy.WithLogger(logger), proxy.WithErrorWriter(io.Discard))
	return proxy.NewEngine(app, opts...), hook
}

// textApp answers 200 with a text/plain body built from env.
func textApp(body func(env *proxy.Environ) string) proxy.Application {
	return proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		if _, err := start("200 OK", []proxy.Pair{{Key: "Content-Type", Value: "text/plain"}}); err != nil {
			return nil, err
		}
		return proxy.Chunks([]byte(body(env))), nil
	})
}

func assertFallback(t *testing.T, rsp *proxy.Response) {
	t.Helper()
	if diff := cmp.Diff(proxy.Fallback(), rsp); diff != "" {
		t.Errorf("want fallback response (-want +got):\n%s", diff)
	}
}

func TestEngineInvoke_EndToEnd(t *testing.T) {
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		start("200 OK", []proxy.Pair{{Key: "Content-Type", Value: "application/json"}})
		return proxy.Chunks([]byte(`{"ok":true}`)), nil
	})
	e, _ := newTestEngine(t, app)

	payload := json.RawMessage(`{"httpMethod":"GET","path":"/x","headers":{},"requestContext":{"domainName":"h","protocol":"HTTP/1.1"}}`)
	rsp, err := e.Invoke(context.Background(), payload)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	want := &proxy.Response{
		StatusCode:      200,
		Headers:         map[string]string{"Content-Type": "application/json"},
		Body:            `{"ok":true}`,
		IsBase64Encoded: false,
	}
	if diff := cmp.Diff(want, rsp); diff != "" {
		t.Errorf("Invoke mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineInvoke_ChunksConcatenatedInOrder(t *testing.T) {
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		start("200 OK", []proxy.Pair{{Key: "Content-Type", Value: "text/plain"}})
		return proxy.Chunks([]byte("a"), []byte("bc"), nil, []byte("d")), nil
	})
	e, _ := newTestEngine(t, app)

	rsp := e.Handle(context.Background(), newRequest())
	if rsp.Body != "abcd" {
		t.Errorf("Body = %q, want abcd", rsp.Body)
	}
}

func TestEngineInvoke_StartDuringIteration(t *testing.T) {
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		return func(yield func([]byte) bool) {
			start("202 Accepted", []proxy.Pair{{Key: "Content-Type", Value: "text/plain"}})
			yield([]byte("later"))
		}, nil
	})
	e, _ := newTestEngine(t, app)

	rsp := e.Handle(context.Background(), newRequest())
	if rsp.StatusCode != 202 || rsp.Body != "later" {
		t.Errorf("rsp = %+v", rsp)
	}
}

func TestEngineInvoke_MissingFieldsFallback(t *testing.T) {
	called := false
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		called = true
		start("200 OK", nil)
		return nil, nil
	})
	e, hook := newTestEngine(t, app)

	for _, payload := range []string{
		`{"path":"/x","requestContext":{"domainName":"h","protocol":"HTTP/1.1"}}`,
		`{"httpMethod":"GET","requestContext":{"domainName":"h","protocol":"HTTP/1.1"}}`,
		`{"httpMethod":"GET","path":"/x","requestContext":{"protocol":"HTTP/1.1"}}`,
		`{"httpMethod":"GET","path":"/x","requestContext":{"domainName":"h"}}`,
		`not json`,
	} {
		rsp, err := e.Invoke(context.Background(), json.RawMessage(payload))
		if err != nil {
			t.Fatalf("Invoke(%s) err = %v", payload, err)
		}
		assertFallback(t, rsp)
	}
	if called {
		t.Errorf("application invoked for a malformed event")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Errorf("expected an error log entry, got %+v", entry)
	}
}

func TestEngineInvoke_EmptyFieldsReachApplication(t *testing.T) {
	var method, scheme string
	app := textApp(func(env *proxy.Environ) string {
		method, scheme = env.Method(), env.URLScheme
		return "ok"
	})
	e, _ := newTestEngine(t, app)

	payload := `{"httpMethod":"","path":"/x","headers":{"x-forwarded-proto":"http"},"requestContext":{"domainName":"h","protocol":"HTTP/1.1"}}`
	rsp, err := e.Invoke(context.Background(), json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if rsp.StatusCode != 200 || rsp.Body != "ok" {
		t.Fatalf("rsp = %+v", rsp)
	}
	if method != "" || scheme != "https" {
		t.Errorf("method = %q, scheme = %q; want empty, https", method, scheme)
	}
}

func TestEngineHandle_Failures(t *testing.T) {
	tests := []struct {
		name    string
		app     proxy.ApplicationFunc
		wantLog string
	}{
		{
			name: "start never called",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				return proxy.Chunks([]byte("body")), nil
			},
			wantLog: "start_response was not called",
		},
		{
			name: "application error",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				return nil, errors.New("database down")
			},
			wantLog: "database down",
		},
		{
			name: "application panic",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				panic("kaboom")
			},
			wantLog: "panic: kaboom",
		},
		{
			name: "panic while iterating",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				start("200 OK", nil)
				return func(yield func([]byte) bool) {
					panic("mid-stream")
				}, nil
			},
			wantLog: "panic: mid-stream",
		},
		{
			name: "bad status line",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				start("OK", nil)
				return nil, nil
			},
			wantLog: "invalid status line",
		},
		{
			name: "carried error after announcement is not swallowed",
			app: func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
				start("200 OK", []proxy.Pair{{Key: "Content-Type", Value: "text/plain"}})
				// the application ignores the returned error
				start("500 Internal Server Error", nil, errors.New("late failure"))
				return proxy.Chunks([]byte("partial")), nil
			},
			wantLog: "late failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, hook := newTestEngine(t, tt.app)

			rsp := e.Handle(context.Background(), newRequest())
			assertFallback(t, rsp)

			entry := hook.LastEntry()
			if entry == nil {
				t.Fatalf("nothing logged")
			}
			if entry.Level != logrus.ErrorLevel || !strings.Contains(entry.Message, tt.wantLog) {
				t.Errorf("log = %s %q, want error containing %q", entry.Level, entry.Message, tt.wantLog)
			}
		})
	}
}

func TestEngineHandle_CarriedErrorBeforeAnnouncement(t *testing.T) {
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		if _, err := start("503 Service Unavailable", []proxy.Pair{{Key: "Content-Type", Value: "text/plain"}}, errors.New("early")); err != nil {
			return nil, err
		}
		return proxy.Chunks([]byte("unavailable")), nil
	})
	e, _ := newTestEngine(t, app)

	rsp := e.Handle(context.Background(), newRequest())
	if rsp.StatusCode != 503 || rsp.Body != "unavailable" {
		t.Errorf("rsp = %+v, want the announced 503", rsp)
	}
}

func TestEngine_StopStart(t *testing.T) {
	e, hook := newTestEngine(t, textApp(func(*proxy.Environ) string { return "up" }))

	if !e.IsRunning() {
		t.Fatalf("new engine not running")
	}
	e.Stop()
	assertFallback(t, e.Handle(context.Background(), newRequest()))
	if entry := hook.LastEntry(); entry == nil || !strings.Contains(entry.Message, "engine is stopped") {
		t.Errorf("log = %+v", entry)
	}

	e.Start()
	if rsp := e.Handle(context.Background(), newRequest()); rsp.Body != "up" {
		t.Errorf("Body = %q after restart", rsp.Body)
	}
}

func TestEngine_NoApplication(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	assertFallback(t, e.Handle(context.Background(), newRequest()))
}

func TestEngine_RequestIDField(t *testing.T) {
	failing := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		return nil, errors.New("fail")
	})
	e, hook := newTestEngine(t, failing)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "aws-req"})
	e.Handle(ctx, newRequest())
	if got := hook.LastEntry().Data["request_id"]; got != "aws-req" {
		t.Errorf("request_id = %v, want aws-req", got)
	}

	r := newRequest()
	r.RequestContext.RequestID = "event-req"
	e.Handle(context.Background(), r)
	if got := hook.LastEntry().Data["request_id"]; got != "event-req" {
		t.Errorf("request_id = %v, want event-req", got)
	}

	e.Handle(context.Background(), newRequest())
	if got, _ := hook.LastEntry().Data["request_id"].(string); got == "" {
		t.Errorf("request_id empty, want a generated id")
	}
}

func TestEngine_Links(t *testing.T) {
	app := textApp(func(env *proxy.Environ) string { return env.Path() })
	e, _ := newTestEngine(t, app,
		proxy.WithStaticLink("/old", "/new"),
		proxy.WithPrefixLink("/v1", "/api"),
		proxy.WithPrefixLink("/v1/admin", "/admin"),
	)

	tests := map[string]string{
		"/old":         "/new",
		"/old/x":       "/old/x",
		"/v1/users":    "/api/users",
		"/v1/admin/42": "/admin/42",
		"/other":       "/other",
	}
	for path, want := range tests {
		r := newRequest()
		r.Path = path
		if got := e.Handle(context.Background(), r).Body; got != want {
			t.Errorf("path %q served as %q, want %q", path, got, want)
		}
		if r.Path != path {
			t.Errorf("request mutated: %q", r.Path)
		}
	}
}

func TestEngine_ProxyWithContext(t *testing.T) {
	app := textApp(func(env *proxy.Environ) string {
		return env.Method() + " " + env.Query() + " " + env.URLScheme + " " + env.Get("HTTP_X_FORWARDED_PROTO")
	})
	e, _ := newTestEngine(t, app)

	rsp, err := e.ProxyWithContext(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:            "DELETE",
		Path:                  "/items/1",
		Headers:               map[string]string{"X-Forwarded-Proto": "http"},
		QueryStringParameters: map[string]string{"b": "2", "a": "1"},
		RequestContext: events.APIGatewayProxyRequestContext{
			DomainName: "h",
			Protocol:   "HTTP/1.1",
		},
	})
	if err != nil {
		t.Fatalf("ProxyWithContext: %v", err)
	}
	want := events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       "DELETE a=1&b=2 http http",
	}
	if diff := cmp.Diff(want, rsp); diff != "" {
		t.Errorf("ProxyWithContext mismatch (-want +got):\n%s", diff)
	}

	rsp, _ = e.ProxyWithContext(context.Background(), events.APIGatewayProxyRequest{})
	if rsp.StatusCode != 500 || rsp.Headers != nil || rsp.Body != "Internal Server Error" {
		t.Errorf("fallback = %+v", rsp)
	}
}

func TestEngine_EnvironErrorsWriter(t *testing.T) {
	var sb strings.Builder
	app := proxy.ApplicationFunc(func(env *proxy.Environ, start proxy.StartResponseFunc) (iter.Seq[[]byte], error) {
		io.WriteString(env.Errors, "diagnostic")
		start("204 No Content", nil)
		return nil, nil
	})
	logger, _ := logtest.NewNullLogger()
	e := proxy.NewEngine(app, proxy.WithLogger(logger), proxy.WithErrorWriter(&sb))

	rsp := e.Handle(context.Background(), newRequest())
	if rsp.StatusCode != 204 || rsp.IsBase64Encoded || rsp.Body != "" {
		t.Errorf("rsp = %+v", rsp)
	}
	if sb.String() != "diagnostic" {
		t.Errorf("errors writer got %q", sb.String())
	}
}
