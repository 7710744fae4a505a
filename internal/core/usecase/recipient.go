package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const (
	phonePlaceholder   = "Phone not provided"
	addressPlaceholder = "Address not provided"
)

// NewRecipientResolver builds a new RecipientResolver.
func NewRecipientResolver(users ports.UserRepository) *RecipientResolver {
	return &RecipientResolver{users: users}
}

// RecipientResolver turns sender-supplied recipient data into a canonical recipient.
type RecipientResolver struct {
	users ports.UserRepository
}

// Resolve resolves the recipient. A supplied user id wins over manual details. Manual details with an email are
// linked to the matching user when there is one.
func (r *RecipientResolver) Resolve(ctx context.Context, in model.RecipientInput) (model.Recipient, error) {
	if id := strings.TrimSpace(in.UserID); id != "" {
		return r.fromUser(ctx, id)
	}

	recipient := model.Recipient{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
		Email:   model.NormalizeEmail(in.Email),
	}
	if sources := missingRecipientFields(recipient); len(sources) > 0 {
		return model.Recipient{}, model.NewValidationError(
			"Either a recipient user id or the recipient name, phone and address must be provided", sources...)
	}

	if recipient.Email != "" {
		user, err := r.users.FindUserByEmail(ctx, recipient.Email, ports.ExcludeDeleted)
		switch {
		case err == nil:
			recipient.UserID = user.ID
		case errors.Is(err, model.ErrNotFound):
		default:
			log.WithError(err).WithField("email", recipient.Email).Warn("could not look up recipient by email")
		}
	}
	return recipient, nil
}

func (r *RecipientResolver) fromUser(ctx context.Context, rawID string) (model.Recipient, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return model.Recipient{}, model.NewValidationError("Invalid recipient user id",
			model.ErrorSource{Path: "recipient.userId", Message: fmt.Sprintf("%q is not a valid id", rawID)})
	}
	user, err := r.users.FindUserByID(ctx, id, ports.ExcludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return model.Recipient{}, model.NewError(model.ErrNotFound, "Recipient user not found")
	}
	if err != nil {
		return model.Recipient{}, fmt.Errorf("error looking up recipient user: %w", err)
	}

	recipient := model.Recipient{
		Name:    user.Name,
		Phone:   user.Phone,
		Address: user.Address,
		Email:   user.Email,
		UserID:  user.ID,
	}
	if recipient.Phone == "" {
		recipient.Phone = phonePlaceholder
	}
	if recipient.Address == "" {
		recipient.Address = addressPlaceholder
	}
	return recipient, nil
}

func missingRecipientFields(r model.Recipient) []model.ErrorSource {
	var sources []model.ErrorSource
	if r.Name == "" {
		sources = append(sources, model.ErrorSource{Path: "recipient.name", Message: "Recipient name is required"})
	}
	if r.Phone == "" {
		sources = append(sources, model.ErrorSource{Path: "recipient.phone", Message: "Recipient phone is required"})
	}
	if r.Address == "" {
		sources = append(sources, model.ErrorSource{Path: "recipient.address", Message: "Recipient address is required"})
	}
	return sources
}
