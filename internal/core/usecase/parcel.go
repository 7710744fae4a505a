package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const creationNote = "Parcel booking created by sender."

// ParcelServiceArgs contains the mandatory arguments for the ParcelService.
type ParcelServiceArgs struct {
	// Parcels is the parcel store.
	Parcels ports.ParcelRepository

	// Users is the identity store.
	Users ports.UserRepository
}

// ParcelServiceOptArgs are the optional arguments for building a ParcelService
type ParcelServiceOptArgs = func(*ParcelService)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) ParcelServiceOptArgs {
	return func(s *ParcelService) {
		s.nowFunc = nowFunc
	}
}

// WithEventSender publishes a ParcelEvent after every successful mutation.
func WithEventSender(sender ports.EventSender) ParcelServiceOptArgs {
	return func(s *ParcelService) {
		s.sender = sender
	}
}

// WithTransitionRecorder reports every persisted history entry to the recorder.
func WithTransitionRecorder(recorder ports.TransitionRecorder) ParcelServiceOptArgs {
	return func(s *ParcelService) {
		s.recorder = recorder
	}
}

// NewParcelService creates a new ParcelService.
func NewParcelService(args ParcelServiceArgs, optArgs ...ParcelServiceOptArgs) *ParcelService {
	s := &ParcelService{
		parcels:  args.Parcels,
		users:    args.Users,
		resolver: NewRecipientResolver(args.Users),
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range optArgs {
		opt(s)
	}
	return s
}

// ParcelService owns the parcel lifecycle: creation and every status change.
type ParcelService struct {
	parcels  ports.ParcelRepository
	users    ports.UserRepository
	resolver *RecipientResolver
	sender   ports.EventSender
	recorder ports.TransitionRecorder
	nowFunc  func() time.Time
}

// CreateParcel books a parcel on behalf of the sender.
func (s *ParcelService) CreateParcel(ctx context.Context, sender model.Principal, args model.CreateParcelArgs) (*model.Parcel, error) {
	if args.Weight <= 0 {
		return nil, model.NewValidationError("Invalid weight", model.ErrorSource{Path: "weight", Message: "Weight must be greater than 0"})
	}
	if args.DeliveryFee != nil && *args.DeliveryFee < 0 {
		return nil, model.NewValidationError("Invalid delivery fee", model.ErrorSource{Path: "deliveryFee", Message: "Delivery fee cannot be negative"})
	}

	recipient, err := s.resolver.Resolve(ctx, args.Recipient)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	trackingNumber, err := NewTrackingNumber(now)
	if err != nil {
		return nil, fmt.Errorf("error generating tracking number: %w", err)
	}
	parcel := &model.Parcel{
		ID:             uuid.New(),
		TrackingNumber: trackingNumber,
		Sender:         sender.UserID,
		Recipient:      recipient,
		DeliveryFee:    args.DeliveryFee,
		PickupAddress:  strings.TrimSpace(args.PickupAddress),
		Weight:         args.Weight,
		Notes:          args.Notes,
		CreatedAt:      now,
	}
	parcel.Record(model.StatusLog{Status: model.StatusPending, Timestamp: now, UpdatedBy: sender.UserID, Note: creationNote})

	if err := s.parcels.SaveParcel(ctx, parcel); err != nil {
		return nil, fmt.Errorf("error saving parcel in repository: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordTransition("", model.StatusPending)
	}
	s.publish(ctx, model.EventParcelCreated, sender.UserID, parcel)
	return parcel, nil
}

// AssignDeliveryMan assigns a delivery man to a pending parcel. Assignment and pickup are the same step: the parcel
// moves straight to PICKED_UP.
func (s *ParcelService) AssignDeliveryMan(ctx context.Context, admin model.Principal, args model.AssignDeliveryManArgs) (*model.Parcel, error) {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		parcel    *model.Parcel
		candidate *model.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		parcel, err = s.load(gctx, args.ParcelID)
		return err
	})
	g.Go(func() error {
		var err error
		candidate, err = s.users.FindUserByID(gctx, args.DeliveryManID, ports.ExcludeDeleted)
		if errors.Is(err, model.ErrNotFound) {
			return model.NewError(model.ErrNotFound, "Delivery man not found")
		}
		if err != nil {
			return fmt.Errorf("error finding delivery man: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if candidate.Role != model.RoleDeliveryMan {
		return nil, model.NewValidationError("Selected user is not a delivery man",
			model.ErrorSource{Path: "deliveryManId", Message: fmt.Sprintf("user has role %s", candidate.Role)})
	}
	if candidate.ActiveState != model.StateActive {
		return nil, model.NewValidationError("Selected delivery man is not active",
			model.ErrorSource{Path: "deliveryManId", Message: fmt.Sprintf("user is %s", candidate.ActiveState)})
	}
	if err := checkNotBlocked(parcel); err != nil {
		return nil, err
	}
	if err := model.CheckTransition(parcel.CurrentStatus, model.StatusPickedUp, model.ViaAssignment); err != nil {
		return nil, err
	}

	known := len(parcel.StatusHistory)
	parcel.DeliveryMan = candidate.ID
	parcel.Record(model.StatusLog{
		Status:    model.StatusPickedUp,
		Timestamp: s.nowFunc(),
		UpdatedBy: admin.UserID,
		Note:      noteOr(args.Note, fmt.Sprintf("Assigned to delivery man %s", candidate.Name)),
	})
	return s.persist(ctx, parcel, known, model.EventParcelAssigned, admin.UserID)
}

// UpdateDeliveryStatus moves a picked up parcel along the delivery path. The actor must be the assigned delivery man
// or an admin.
func (s *ParcelService) UpdateDeliveryStatus(ctx context.Context, actor model.Principal, args model.UpdateDeliveryStatusArgs) (*model.Parcel, error) {
	if !args.Status.Valid() {
		return nil, model.NewValidationError("Invalid status",
			model.ErrorSource{Path: "status", Message: fmt.Sprintf("%q is not a valid status", args.Status)})
	}
	parcel, err := s.load(ctx, args.ParcelID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleDeliveryMan:
		if parcel.DeliveryMan != actor.UserID {
			return nil, model.NewError(model.ErrForbidden, "You are not assigned to this parcel")
		}
	case model.RoleUser:
		return nil, model.NewError(model.ErrForbidden, "Only the assigned delivery man or an admin can update the delivery status")
	default:
		return nil, model.NewError(model.ErrForbidden, "Unknown role %q", actor.Role)
	}
	if err := checkNotBlocked(parcel); err != nil {
		return nil, err
	}
	if err := model.CheckTransition(parcel.CurrentStatus, args.Status, model.ViaDeliveryUpdate); err != nil {
		return nil, err
	}

	known := len(parcel.StatusHistory)
	parcel.Record(model.StatusLog{
		Status:    args.Status,
		Timestamp: s.nowFunc(),
		UpdatedBy: actor.UserID,
		Note:      noteOr(args.Note, fmt.Sprintf("Status updated to %s by %s", args.Status, actor.Role)),
	})
	return s.persist(ctx, parcel, known, model.EventParcelStatusUpdated, actor.UserID)
}

// CancelParcel cancels a pending parcel. The actor must be the sender or an admin.
func (s *ParcelService) CancelParcel(ctx context.Context, actor model.Principal, args model.TransitionArgs) (*model.Parcel, error) {
	parcel, err := s.load(ctx, args.ParcelID)
	if err != nil {
		return nil, err
	}

	var note string
	switch actor.Role {
	case model.RoleAdmin:
		note = "Parcel cancelled by admin"
	case model.RoleUser, model.RoleDeliveryMan:
		if parcel.Sender != actor.UserID {
			return nil, model.NewError(model.ErrForbidden, "You can only cancel your own parcels")
		}
		note = "Parcel cancelled by sender"
	default:
		return nil, model.NewError(model.ErrForbidden, "Unknown role %q", actor.Role)
	}
	if err := checkNotBlocked(parcel); err != nil {
		return nil, err
	}
	switch parcel.CurrentStatus {
	case model.StatusPickedUp, model.StatusInTransit:
		return nil, model.NewError(model.ErrIllegalTransition, "Parcel cannot be cancelled as it is already in transit")
	}
	if err := model.CheckTransition(parcel.CurrentStatus, model.StatusCancelled, model.ViaCancellation); err != nil {
		return nil, err
	}

	known := len(parcel.StatusHistory)
	parcel.Record(model.StatusLog{
		Status:    model.StatusCancelled,
		Timestamp: s.nowFunc(),
		UpdatedBy: actor.UserID,
		Note:      noteOr(args.Note, note),
	})
	return s.persist(ctx, parcel, known, model.EventParcelCancelled, actor.UserID)
}

// ConfirmDelivery lets an admin mark a picked up or in transit parcel as delivered.
func (s *ParcelService) ConfirmDelivery(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error) {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	parcel, err := s.load(ctx, args.ParcelID)
	if err != nil {
		return nil, err
	}
	if err := checkNotBlocked(parcel); err != nil {
		return nil, err
	}
	if err := model.CheckTransition(parcel.CurrentStatus, model.StatusDelivered, model.ViaDeliveryUpdate); err != nil {
		return nil, err
	}

	known := len(parcel.StatusHistory)
	parcel.Record(model.StatusLog{
		Status:    model.StatusDelivered,
		Timestamp: s.nowFunc(),
		UpdatedBy: admin.UserID,
		Note:      noteOr(args.Note, "Delivery confirmed by admin"),
	})
	return s.persist(ctx, parcel, known, model.EventParcelDeliveryConfirmed, admin.UserID)
}

// BlockParcel puts a parcel on administrative hold. No status change is possible until it is unblocked.
func (s *ParcelService) BlockParcel(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error) {
	return s.setBlocked(ctx, admin, args, true)
}

// UnblockParcel releases the administrative hold of a parcel.
func (s *ParcelService) UnblockParcel(ctx context.Context, admin model.Principal, args model.TransitionArgs) (*model.Parcel, error) {
	return s.setBlocked(ctx, admin, args, false)
}

func (s *ParcelService) setBlocked(ctx context.Context, admin model.Principal, args model.TransitionArgs, blocked bool) (*model.Parcel, error) {
	if err := Authorize(admin, model.RoleAdmin); err != nil {
		return nil, err
	}
	parcel, err := s.load(ctx, args.ParcelID)
	if err != nil {
		return nil, err
	}

	note, eventType := "Parcel blocked by admin", model.EventParcelBlocked
	if blocked {
		if parcel.CurrentStatus.IsTerminal() {
			return nil, model.NewError(model.ErrIllegalTransition, "Cannot block a parcel that is already %s", parcel.CurrentStatus)
		}
		if parcel.IsBlocked {
			return nil, model.NewError(model.ErrIllegalTransition, "Parcel is already blocked")
		}
	} else {
		if !parcel.IsBlocked {
			return nil, model.NewError(model.ErrIllegalTransition, "Parcel is not blocked")
		}
		note, eventType = "Parcel unblocked by admin", model.EventParcelUnblocked
	}

	known := len(parcel.StatusHistory)
	parcel.IsBlocked = blocked
	parcel.Record(model.StatusLog{
		Status:    parcel.CurrentStatus,
		Timestamp: s.nowFunc(),
		UpdatedBy: admin.UserID,
		Note:      noteOr(args.Note, note),
	})
	return s.persist(ctx, parcel, known, eventType, admin.UserID)
}

func (s *ParcelService) load(ctx context.Context, id uuid.UUID) (*model.Parcel, error) {
	parcel, err := s.parcels.FindParcelByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrNotFound, "Parcel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error finding parcel: %w", err)
	}
	return parcel, nil
}

func (s *ParcelService) persist(ctx context.Context, parcel *model.Parcel, known int, eventType model.ParcelEventType, actor uuid.UUID) (*model.Parcel, error) {
	if err := s.parcels.AppendParcelStatus(ctx, parcel, known); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, model.NewError(model.ErrConflict, "Parcel was modified concurrently, please retry")
		}
		return nil, fmt.Errorf("error persisting parcel status: %w", err)
	}
	if s.recorder != nil {
		for i := known; i < len(parcel.StatusHistory); i++ {
			s.recorder.RecordTransition(parcel.StatusHistory[i-1].Status, parcel.StatusHistory[i].Status)
		}
	}
	s.publish(ctx, eventType, actor, parcel)
	return parcel, nil
}

func (s *ParcelService) publish(ctx context.Context, eventType model.ParcelEventType, actor uuid.UUID, parcel *model.Parcel) {
	if s.sender == nil {
		return
	}
	event := model.ParcelEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Actor:      actor,
		Parcel:     *parcel.Clone(),
		OccurredAt: s.nowFunc(),
	}
	if err := s.sender.Send(ctx, event); err != nil {
		log.WithError(err).
			WithField("event_id", event.ID).
			WithField("event_type", eventType).
			WithField("parcel_id", parcel.ID).
			Error("error publishing parcel event")
	}
}

func checkNotBlocked(parcel *model.Parcel) error {
	if parcel.IsBlocked {
		return model.NewError(model.ErrIllegalTransition, "Parcel is blocked")
	}
	return nil
}

func noteOr(note, fallback string) string {
	if n := strings.TrimSpace(note); n != "" {
		return n
	}
	return fallback
}
