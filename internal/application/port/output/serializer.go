package output

import (
	"context"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

// SerializerPort reduces the live page to the snapshot the core reasons
// about. Read-only; never mutates the page.
type SerializerPort interface {
	Snapshot(ctx context.Context) (entity.PageSnapshot, error)
}
