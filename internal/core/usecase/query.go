package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

// ParcelQueryArgs contains the mandatory arguments for the ParcelQuery.
type ParcelQueryArgs struct {
	// Parcels is the parcel store.
	Parcels ports.ParcelRepository

	// Users is the identity store, used to expand the users referenced by parcels.
	Users ports.UserRepository
}

// NewParcelQuery creates a new ParcelQuery.
func NewParcelQuery(args ParcelQueryArgs) *ParcelQuery {
	return &ParcelQuery{parcels: args.Parcels, users: args.Users}
}

// ParcelQuery is the read side of the parcels. Every read applies the visibility rules.
type ParcelQuery struct {
	parcels ports.ParcelRepository
	users   ports.UserRepository
}

// GetByID returns a parcel visible to the principal.
func (q *ParcelQuery) GetByID(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.ParcelView, error) {
	parcel, err := q.parcels.FindParcelByID(ctx, id)
	return q.single(ctx, principal, parcel, err)
}

// GetByTrackingNumber returns the parcel with the tracking number, if visible to the principal.
func (q *ParcelQuery) GetByTrackingNumber(ctx context.Context, principal model.Principal, trackingNumber string) (*model.ParcelView, error) {
	trackingNumber = strings.ToUpper(strings.TrimSpace(trackingNumber))
	if !IsTrackingNumber(trackingNumber) {
		return nil, model.NewValidationError("Invalid tracking number",
			model.ErrorSource{Path: "trackingNumber", Message: "expected the format TRK-YYYYMMDD-XXXXXX"})
	}
	parcel, err := q.parcels.FindParcelByTrackingNumber(ctx, trackingNumber)
	return q.single(ctx, principal, parcel, err)
}

// ListBySender lists the parcels booked by the principal.
func (q *ParcelQuery) ListBySender(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
	return q.list(ctx, ports.ListParcelsQuery{Sender: principal.UserID}, args)
}

// ListByReceiver lists the parcels whose recipient is linked to the principal.
func (q *ParcelQuery) ListByReceiver(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
	return q.list(ctx, ports.ListParcelsQuery{RecipientUserID: principal.UserID}, args)
}

// ListByDeliveryMan lists the parcels assigned to the principal.
func (q *ParcelQuery) ListByDeliveryMan(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
	return q.list(ctx, ports.ListParcelsQuery{DeliveryMan: principal.UserID}, args)
}

// ListAll lists every parcel. Admin only.
func (q *ParcelQuery) ListAll(ctx context.Context, principal model.Principal, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
	if err := Authorize(principal, model.RoleAdmin); err != nil {
		return nil, err
	}
	return q.list(ctx, ports.ListParcelsQuery{}, args)
}

func (q *ParcelQuery) single(ctx context.Context, principal model.Principal, parcel *model.Parcel, err error) (*model.ParcelView, error) {
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrNotFound, "Parcel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error finding parcel: %w", err)
	}
	if !parcel.IsVisibleTo(principal) {
		return nil, model.NewError(model.ErrForbidden, "You are not allowed to view this parcel")
	}
	views, err := q.expand(ctx, []model.Parcel{*parcel})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (q *ParcelQuery) list(ctx context.Context, query ports.ListParcelsQuery, args model.ListParcelsArgs) (*model.ListParcelsResponse, error) {
	for _, status := range args.Statuses {
		if !status.Valid() {
			return nil, model.NewValidationError("Invalid status filter",
				model.ErrorSource{Path: "status", Message: fmt.Sprintf("%q is not a valid status", status)})
		}
	}
	page, limit := normalizePage(args.Page, args.Limit)
	query.Statuses = args.Statuses
	query.CreatedAfter = args.CreatedAfter
	query.CreatedBefore = args.CreatedBefore
	query.Limit = limit
	query.Offset = pageOffset(page, limit)

	res, err := q.parcels.ListParcels(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing parcels on the repository: %w", err)
	}
	views, err := q.expand(ctx, res.Parcels)
	if err != nil {
		return nil, err
	}
	return &model.ListParcelsResponse{
		Parcels: views,
		Meta:    model.PageMeta{Page: page, Limit: limit, Total: res.Total},
	}, nil
}

// expand joins the users referenced by the parcels in a single lookup.
func (q *ParcelQuery) expand(ctx context.Context, parcels []model.Parcel) ([]model.ParcelView, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, p := range parcels {
		add(p.Sender)
		add(p.DeliveryMan)
		for _, entry := range p.StatusHistory {
			add(entry.UpdatedBy)
		}
	}

	summaries := make(map[uuid.UUID]model.UserSummary, len(ids))
	if len(ids) > 0 {
		users, err := q.users.FindUsersByIDs(ctx, ids, ports.IncludeDeleted)
		if err != nil {
			return nil, fmt.Errorf("error expanding parcel users: %w", err)
		}
		for i := range users {
			summaries[users[i].ID] = users[i].Summary()
		}
	}

	views := make([]model.ParcelView, len(parcels))
	for i, p := range parcels {
		view := model.ParcelView{Parcel: p, HistoryActors: make(map[uuid.UUID]model.UserSummary)}
		if s, ok := summaries[p.Sender]; ok {
			view.SenderInfo = &s
		}
		if s, ok := summaries[p.DeliveryMan]; ok {
			view.DeliveryManInfo = &s
		}
		for _, entry := range p.StatusHistory {
			if s, ok := summaries[entry.UpdatedBy]; ok {
				view.HistoryActors[entry.UpdatedBy] = s
			}
		}
		views[i] = view
	}
	return views, nil
}
