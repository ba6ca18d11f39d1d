package proxy

import (
	"iter"
	"slices"
)

// Application is the request handler the adapter invokes. It announces
// status and headers through start and returns the body as a sequence of
// chunks. start may also be called while the sequence is being consumed.
type Application interface {
	Serve(env *Environ, start StartResponseFunc) (iter.Seq[[]byte], error)
}

type ApplicationFunc func(env *Environ, start StartResponseFunc) (iter.Seq[[]byte], error)

func (f ApplicationFunc) Serve(env *Environ, start StartResponseFunc) (iter.Seq[[]byte], error) {
	return f(env, start)
}

// Chunks returns a sequence over the given byte slices.
func Chunks(chunks ...[]byte) iter.Seq[[]byte] {
	return slices.Values(chunks)
}

// collect concatenates every chunk of body in order.
func collect(body iter.Seq[[]byte]) []byte {
	if body == nil {
		return nil
	}
	var out []byte
	for chunk := range body {
		out = append(out, chunk...)
	}
	return out
}
