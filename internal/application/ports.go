package application

import (
	"context"
	"fmt"
	"time"

	"github.com/vishnuvardhanreddy8653/smart-home/internal/domain"
)

// FallbackResolver is the slow path: an external text-completion oracle
// consulted when the deterministic grammar finds no match. Its output is
// unvalidated; the hub checks device names before trusting them.
type FallbackResolver interface {
	Resolve(ctx context.Context, text string) (domain.Intent, error)
}

type ResolveErrorKind string

const (
	ResolveErrTimeout   ResolveErrorKind = "timeout"
	ResolveErrTransport ResolveErrorKind = "transport"
	ResolveErrParse     ResolveErrorKind = "parse"
)

// ResolveError classifies oracle failures so callers and tests can assert
// on the specific failure kind instead of a generic catch-all.
type ResolveError struct {
	Kind ResolveErrorKind
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("oracle %s failure: %v", e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Conn is a live push connection (UI client or actuator device). Send must
// be safe for concurrent use; a failed send means the peer is gone and the
// hub skips it without aborting the rest of a fan-out.
type Conn interface {
	Send(text string) error
}

// DeviceRepository stores device registration records. Get returns
// (nil, nil) when the id is unknown. Register returns the existing record
// unchanged if the id is already taken.
type DeviceRepository interface {
	List(ctx context.Context) ([]domain.Device, error)
	Get(ctx context.Context, id string) (*domain.Device, error)
	Register(ctx context.Context, device domain.Device) (domain.Device, error)
	Touch(ctx context.Context, id string, seen time.Time) error
}
