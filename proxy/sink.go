package proxy

// WriteFunc is returned by StartResponse. Writes through it are discarded;
// the body is taken from the chunks the application returns.
type WriteFunc func([]byte)

// StartResponseFunc announces the status line and headers of a response.
// excInfo optionally carries a failure the application ran into.
type StartResponseFunc func(status string, headers []Pair, excInfo ...error) (WriteFunc, error)

// ResponseState records what the application announced through
// StartResponse.
type ResponseState struct {
	status  string
	headers []Pair
	set     bool
	err     error
}

func discard([]byte) {}

// StartResponse implements StartResponseFunc.
//
// When a failure is carried while a status is already recorded, the failure
// is returned and remembered, and nothing is overwritten. A failure carried
// before the first announcement is accepted and ignored.
func (s *ResponseState) StartResponse(status string, headers []Pair, excInfo ...error) (WriteFunc, error) {
	if err := firstError(excInfo); err != nil && s.set {
		s.err = err
		return discard, err
	}

	s.status = status
	s.headers = headers
	s.set = true
	return discard, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Status returns the announced status line and whether one was announced.
func (s *ResponseState) Status() (string, bool) {
	return s.status, s.set
}

func (s *ResponseState) Headers() []Pair {
	return s.headers
}

// Err returns the failure propagated by a repeated announcement, if any.
func (s *ResponseState) Err() error {
	return s.err
}
