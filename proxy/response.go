package proxy

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrStartResponseNotCalled = errors.New("proxy: start_response was not called")
	ErrInvalidStatus          = errors.New("proxy: invalid status line")
)

const (
	HeaderContentType  = "Content-Type"
	DefaultContentType = "application/octet-stream"
)

// BuildResponse turns the announced state and the assembled body into the
// outbound event.
func BuildResponse(state *ResponseState, body []byte) (*Response, error) {
	status, ok := state.Status()
	if !ok {
		return nil, ErrStartResponseNotCalled
	}

	code, err := StatusCode(status)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(state.Headers()))
	for _, h := range state.Headers() {
		headers[h.Key] = h.Value
	}

	rsp := &Response{
		StatusCode: code,
		Headers:    headers,
	}
	if IsText(contentType(headers)) || len(body) == 0 {
		rsp.Body = string(body)
		return rsp, nil
	}

	rsp.Body = base64.StdEncoding.EncodeToString(body)
	rsp.IsBase64Encoded = true
	return rsp, nil
}

// StatusCode parses the numeric code that leads a status line such as
// "200 OK".
func StatusCode(status string) (int, error) {
	token, _, _ := strings.Cut(status, " ")
	code, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return code, nil
}

// contentType looks up the exact "Content-Type" name; other spellings are
// not consulted.
func contentType(headers map[string]string) string {
	if v, ok := headers[HeaderContentType]; ok {
		return v
	}
	return DefaultContentType
}

// IsText reports whether a body of the given content type is sent as-is.
// Matching is exact: parameters such as charset are not stripped.
func IsText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/json" ||
		contentType == "application/xml"
}
