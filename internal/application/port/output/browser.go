package output

import (
	"context"
	"time"

	"github.com/softlight/wayfinder/internal/domain/entity"
)

// BrowserPort is the generic browser surface the core drives. Every
// method is app-agnostic: elements are addressed by visible text, never
// by site-specific selectors. Failures come back as wrapped
// entity.ErrElementNotFound / entity.ErrActionTimeout, never as panics.
type BrowserPort interface {
	Navigate(ctx context.Context, url string) error
	ClickText(ctx context.Context, target string, tier entity.MatchTier) error
	TypeText(ctx context.Context, target, value string, tier entity.MatchTier) error
	PressKey(ctx context.Context, key string) error
	Wait(ctx context.Context, d time.Duration) error
	WaitSettle(ctx context.Context, ceiling time.Duration)
	Screenshot(ctx context.Context) ([]byte, error)
	CurrentURL() string
	Close()
}
