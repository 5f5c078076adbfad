package lifecycle

import "context"

// ReadinessProbe reports whether a backing dependency can serve traffic.
type ReadinessProbe interface {
	Name() string
	Ping(ctx context.Context) error
}
