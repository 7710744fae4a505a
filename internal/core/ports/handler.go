package ports

import (
	"context"

	"github.com/rbroggi/parcelhub/internal/core/model"
)

// ParcelEventHandler handles incoming ParcelEvents.
type ParcelEventHandler interface {
	// Handle will receive an incoming parcel event and handle it.
	Handle(ctx context.Context, event model.ParcelEvent) error
}
