package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

// Authorize allows the principal when its role belongs to the allowed set. An empty set allows any known role.
func Authorize(principal model.Principal, allowed ...model.Role) error {
	switch principal.Role {
	case model.RoleAdmin, model.RoleUser, model.RoleDeliveryMan:
	default:
		return model.NewError(model.ErrForbidden, "Unknown role %q", principal.Role)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, role := range allowed {
		if role == principal.Role {
			return nil
		}
	}
	return model.NewError(model.ErrForbidden, "You are not permitted to view this route")
}

// CheckUserState denies users that are deleted, blocked or inactive.
func CheckUserState(user *model.User) error {
	if user.IsDeleted {
		return model.NewError(model.ErrUnauthorized, "User is deleted")
	}
	switch user.ActiveState {
	case model.StateActive:
		return nil
	case model.StateBlocked, model.StateInactive:
		return model.NewError(model.ErrForbidden, "User is %s", strings.ToLower(string(user.ActiveState)))
	default:
		return model.NewError(model.ErrForbidden, "User state %q is not allowed", user.ActiveState)
	}
}

// GateArgs contains the mandatory arguments for the Gate.
type GateArgs struct {
	// Tokens verifies the access tokens.
	Tokens ports.TokenService

	// Users is the identity store.
	Users ports.UserRepository

	// AccessSecret is the secret the access tokens are signed with.
	AccessSecret []byte
}

// NewGate creates a new Gate.
func NewGate(args GateArgs) *Gate {
	return &Gate{tokens: args.Tokens, users: args.Users, accessSecret: args.AccessSecret}
}

// Gate turns access tokens into principals.
type Gate struct {
	tokens       ports.TokenService
	users        ports.UserRepository
	accessSecret []byte
}

// Authenticate verifies the access token and the state of the user it belongs to.
func (g *Gate) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, model.NewError(model.ErrUnauthorized, "No token received")
	}
	claims, err := g.tokens.Verify(token, g.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("error verifying access token: %w", err)
	}
	user, err := g.users.FindUserByID(ctx, claims.UserID, ports.IncludeDeleted)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NewError(model.ErrUnauthorized, "User does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user of access token: %w", err)
	}
	if err := CheckUserState(user); err != nil {
		return nil, err
	}
	return &model.Principal{UserID: user.ID, Email: user.Email, Role: user.Role}, nil
}
