// Package embedding turns text segments into fixed-length vectors via an
// external embedding service.
package embedding

import "context"

// Client embeds texts, returning one vector per input in the same order. The
// service is not assumed to batch: implementations issue one request per
// text.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ServiceError reports a transport, authentication, or malformed-response
// failure from the embedding service. The caller decides whether to retry.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return "embedding service: " + e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }
