package httpserver

import (
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/aura-studio/gateway/proxy"
	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HealthCheckPath = "/_/health-check"
	EventPath       = "/_/event/*path"

	defaultDomainName = "localhost"
)

var methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead, http.MethodOptions}

func (e *Engine) InstallHandlers() {
	e.HandleAllMethods(HealthCheckPath, e.OK)
	e.HandleAllMethods(EventPath, e.Event)
	e.NoRoute(e.Proxy)
}

func (e *Engine) HandleAllMethods(relativePath string, handlers ...gin.HandlerFunc) {
	for _, method := range methods {
		e.Handle(method, relativePath, handlers...)
	}
}

func (e *Engine) OK(c *gin.Context) {
	c.String(http.StatusOK, "OK")
	c.Abort()
}

// Proxy serves any request through the proxy engine.
func (e *Engine) Proxy(c *gin.Context) {
	event, err := e.genEvent(c, c.Request.URL.Path)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		c.Abort()
		return
	}

	rsp := e.proxy.Handle(c.Request.Context(), proxy.RequestFromProxyRequest(event))
	e.writeResponse(c, rsp)
}

// Event shows the event generated for the rest of the path and the
// response the proxy engine produced for it.
func (e *Engine) Event(c *gin.Context) {
	event, err := e.genEvent(c, c.Param("path"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		c.Abort()
		return
	}

	rsp := e.proxy.Handle(c.Request.Context(), proxy.RequestFromProxyRequest(event))
	c.JSON(http.StatusOK, gin.H{
		"request":  event,
		"response": rsp,
	})
	c.Abort()
}

// genEvent builds the event API Gateway would deliver for c. Multi-value
// headers and query parameters keep their last value.
func (e *Engine) genEvent(c *gin.Context, path string) (events.APIGatewayProxyRequest, error) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return events.APIGatewayProxyRequest{}, fmt.Errorf("read body: %w", err)
	}
	defer c.Request.Body.Close()

	headers := make(map[string]string, len(c.Request.Header)+1)
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			headers[k] = v[len(v)-1]
		}
	}
	if c.Request.Host != "" {
		headers["Host"] = c.Request.Host
	}
	if _, ok := headers[proxy.HeaderForwardedProto]; !ok && c.Request.TLS == nil {
		headers[proxy.HeaderForwardedProto] = "http"
	}

	query := map[string]string{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[len(v)-1]
		}
	}

	return events.APIGatewayProxyRequest{
		HTTPMethod:            c.Request.Method,
		Path:                  path,
		Headers:               headers,
		QueryStringParameters: query,
		Body:                  string(data),
		RequestContext: events.APIGatewayProxyRequestContext{
			DomainName: e.domainName(c.Request.Host),
			Protocol:   c.Request.Proto,
			RequestID:  uuid.NewString(),
		},
	}, nil
}

func (e *Engine) domainName(host string) string {
	if e.DomainName != "" {
		return e.DomainName
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return defaultDomainName
	}
	return host
}

func (e *Engine) writeResponse(c *gin.Context, rsp *proxy.Response) {
	body := []byte(rsp.Body)
	if rsp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(rsp.Body)
		if err != nil {
			c.String(http.StatusBadGateway, "invalid base64 body: %v", err)
			c.Abort()
			return
		}
		body = decoded
	}

	if rsp.IsFallback() {
		c.Header("Content-Type", "text/plain; charset=utf-8")
	}
	for k, v := range rsp.Headers {
		c.Header(k, v)
	}
	c.Status(rsp.StatusCode)
	_, _ = c.Writer.Write(body)
	c.Abort()
}
