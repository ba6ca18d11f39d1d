package proxy

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-lambda-go/events"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrInvalidEvent = errors.New("proxy: invalid event")
	ErrMissingField = errors.New("proxy: missing required field")
)

// requiredFields lists the gjson paths every inbound event must carry.
var requiredFields = []string{
	"httpMethod",
	"path",
	"requestContext.domainName",
	"requestContext.protocol",
}

// Pair is a single header or query entry. Slices of pairs keep the order
// the entries arrived in.
type Pair struct {
	Key   string
	Value string
}

type RequestContext struct {
	DomainName string
	Protocol   string
	RequestID  string
}

// Request is the inbound API Gateway proxy event.
type Request struct {
	HTTPMethod            string
	Path                  string
	QueryStringParameters []Pair
	Headers               []Pair
	// Body is nil when the event carried no body.
	Body            *string
	IsBase64Encoded bool
	RequestContext  RequestContext
}

// Header returns the value of the last header named exactly key. Empty
// values are reported as absent.
func (r *Request) Header(key string) (string, bool) {
	var (
		value string
		found bool
	)
	for _, h := range r.Headers {
		if h.Key == key && h.Value != "" {
			value, found = h.Value, true
		}
	}
	return value, found
}

// ParseRequest decodes a raw proxy event. Object keys are read in document
// order so headers and query parameters keep the order the gateway sent.
func ParseRequest(payload []byte) (*Request, error) {
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidEvent)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidEvent)
	}

	for _, field := range requiredFields {
		if v := root.Get(field); !v.Exists() || v.Type == gjson.Null {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	r := &Request{
		HTTPMethod:            root.Get("httpMethod").String(),
		Path:                  root.Get("path").String(),
		QueryStringParameters: pairsOf(root.Get("queryStringParameters")),
		Headers:               pairsOf(root.Get("headers")),
		IsBase64Encoded:       root.Get("isBase64Encoded").Bool(),
		RequestContext: RequestContext{
			DomainName: root.Get("requestContext.domainName").String(),
			Protocol:   root.Get("requestContext.protocol").String(),
			RequestID:  root.Get("requestContext.requestId").String(),
		},
	}
	if body := root.Get("body"); body.Exists() && body.Type != gjson.Null {
		s := body.String()
		r.Body = &s
	}

	return r, nil
}

func pairsOf(obj gjson.Result) []Pair {
	if !obj.IsObject() {
		return nil
	}
	var pairs []Pair
	obj.ForEach(func(key, value gjson.Result) bool {
		pairs = append(pairs, Pair{Key: key.String(), Value: value.String()})
		return true
	})
	return pairs
}

// RequestFromProxyRequest converts the aws-lambda-go typed event. Go maps
// carry no order, so keys are sorted.
func RequestFromProxyRequest(event events.APIGatewayProxyRequest) *Request {
	r := &Request{
		HTTPMethod:            event.HTTPMethod,
		Path:                  event.Path,
		QueryStringParameters: sortedPairs(event.QueryStringParameters),
		Headers:               sortedPairs(event.Headers),
		IsBase64Encoded:       event.IsBase64Encoded,
		RequestContext: RequestContext{
			DomainName: event.RequestContext.DomainName,
			Protocol:   event.RequestContext.Protocol,
			RequestID:  event.RequestContext.RequestID,
		},
	}
	if event.Body != "" {
		body := event.Body
		r.Body = &body
	}
	return r
}

func sortedPairs(m map[string]string) []Pair {
	if len(m) == 0 {
		return nil
	}
	pairs := make([]Pair, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, Pair{Key: k, Value: m[k]})
	}
	return pairs
}

// Response is the outbound proxy response event. A nil Headers map marks
// the fallback shape, which is encoded without headers and isBase64Encoded.
type Response struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

const (
	fallbackStatusCode = 500
	fallbackBody       = "Internal Server Error"
)

// Fallback returns the fixed response used whenever an invocation fails.
func Fallback() *Response {
	return &Response{
		StatusCode: fallbackStatusCode,
		Body:       fallbackBody,
	}
}

// IsFallback reports whether r has the failure shape.
func (r *Response) IsFallback() bool {
	return r.Headers == nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	var err error
	b := []byte(`{}`)
	if b, err = sjson.SetBytes(b, "statusCode", r.StatusCode); err != nil {
		return nil, err
	}
	if r.Headers != nil {
		if b, err = sjson.SetBytes(b, "headers", r.Headers); err != nil {
			return nil, err
		}
	}
	if b, err = sjson.SetBytes(b, "body", r.Body); err != nil {
		return nil, err
	}
	if r.Headers != nil {
		if b, err = sjson.SetBytes(b, "isBase64Encoded", r.IsBase64Encoded); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ProxyResponse converts r into the aws-lambda-go typed response.
func (r *Response) ProxyResponse() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode:      r.StatusCode,
		Headers:         r.Headers,
		Body:            r.Body,
		IsBase64Encoded: r.IsBase64Encoded,
	}
}
