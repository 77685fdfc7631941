// Frame acquisition from the sensing device
package capture

import (
	"context"
	"errors"
)

// ErrNoFrame signals a retryable capture miss: the device is present but had
// no frame ready. Callers wait and retry; it is never fatal.
var ErrNoFrame = errors.New("no frame available")

// Source yields encoded frames on demand. Grab blocks until a frame arrives,
// the device times out (ErrNoFrame), or ctx ends. The owning loop must Close
// the source when it exits.
type Source interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}
