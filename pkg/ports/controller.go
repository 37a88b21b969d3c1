package ports

import (
	"context"

	"github.com/aretw0/vitrine/pkg/domain"
)

// Controller is the operator side of a running session.
// Every method is safe to call from any goroutine.
type Controller interface {
	ID() string
	View(ctx context.Context) (domain.View, error)

	// Subscribe delivers a fresh View after every change until ctx ends.
	Subscribe(ctx context.Context) (<-chan domain.View, error)

	Rerun(ctx context.Context, alwaysRunOnSave bool) error
	Stop(ctx context.Context) error
	ClearCache(ctx context.Context) error
	CloudUpload(ctx context.Context) error
	SaveSettings(ctx context.Context, settings domain.UserSettings) error
	SetWidgetValue(ctx context.Context, widgetID string, value any) error
	CloseDialog(ctx context.Context) error

	ResolveLogin(creds domain.Credentials) error
	RejectLogin(reason error) error
}
