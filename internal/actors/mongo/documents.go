package mongo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

type authDB struct {
	Provider   string `bson:"provider"`
	ProviderID string `bson:"provider_id"`
}

type userDB struct {
	// ID unique identifier of the user.
	ID string `bson:"_id"`

	Name         string   `bson:"name"`
	Email        string   `bson:"email"`
	PasswordHash string   `bson:"password_hash,omitempty"`
	Phone        string   `bson:"phone,omitempty"`
	Address      string   `bson:"address,omitempty"`
	Picture      string   `bson:"picture,omitempty"`
	Role         string   `bson:"role"`
	ActiveState  string   `bson:"is_active"`
	IsDeleted    bool     `bson:"is_deleted"`
	IsVerified   bool     `bson:"is_verified"`
	Auths        []authDB `bson:"auths"`

	// CreatedAt is the time at which the user was created in the system.
	CreatedAt time.Time `bson:"created_at"`

	// UpdatedAt is the time at which the user was last updated
	UpdatedAt time.Time `bson:"updated_at"`
}

type recipientDB struct {
	Name    string `bson:"name"`
	Phone   string `bson:"phone"`
	Address string `bson:"address"`
	Email   string `bson:"email,omitempty"`
	UserID  string `bson:"user_id,omitempty"`
}

type statusLogDB struct {
	Status    string    `bson:"status"`
	Timestamp time.Time `bson:"timestamp"`
	UpdatedBy string    `bson:"updated_by,omitempty"`
	Note      string    `bson:"note,omitempty"`
}

type parcelDB struct {
	// ID unique identifier of the parcel.
	ID string `bson:"_id"`

	TrackingNumber string        `bson:"tracking_number"`
	Sender         string        `bson:"sender"`
	Recipient      recipientDB   `bson:"recipient"`
	DeliveryMan    string        `bson:"delivery_man,omitempty"`
	DeliveryFee    *float64      `bson:"delivery_fee,omitempty"`
	PickupAddress  string        `bson:"pickup_address,omitempty"`
	Weight         float64       `bson:"weight"`
	CurrentStatus  string        `bson:"current_status"`
	StatusHistory  []statusLogDB `bson:"status_history"`
	IsBlocked      bool          `bson:"is_blocked"`
	Notes          string        `bson:"notes,omitempty"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

// optionalID renders uuid.Nil as the empty string so omitempty drops it.
func optionalID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func parseOptionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error parsing stored id %q: %w", s, err)
	}
	return id, nil
}

func toUserDB(user *model.User) *userDB {
	auths := make([]authDB, len(user.Auths))
	for i, a := range user.Auths {
		auths[i] = authDB{Provider: a.Provider, ProviderID: a.ProviderID}
	}
	return &userDB{
		ID:           user.ID.String(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Phone:        user.Phone,
		Address:      user.Address,
		Picture:      user.Picture,
		Role:         string(user.Role),
		ActiveState:  string(user.ActiveState),
		IsDeleted:    user.IsDeleted,
		IsVerified:   user.IsVerified,
		Auths:        auths,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func translateDBToUsers(dbUsers []userDB) ([]model.User, error) {
	models := make([]model.User, 0, len(dbUsers))
	for _, dbUser := range dbUsers {
		user, err := translateDBToUser(dbUser)
		if err != nil {
			return nil, err
		}
		models = append(models, user)
	}
	return models, nil
}

func translateDBToUser(dbUser userDB) (model.User, error) {
	id, err := uuid.Parse(dbUser.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("error parsing user id %q: %w", dbUser.ID, err)
	}
	auths := make([]model.AuthProvider, len(dbUser.Auths))
	for i, a := range dbUser.Auths {
		auths[i] = model.AuthProvider{Provider: a.Provider, ProviderID: a.ProviderID}
	}
	return model.User{
		ID:           id,
		Name:         dbUser.Name,
		Email:        dbUser.Email,
		PasswordHash: dbUser.PasswordHash,
		Phone:        dbUser.Phone,
		Address:      dbUser.Address,
		Picture:      dbUser.Picture,
		Role:         model.Role(dbUser.Role),
		ActiveState:  model.ActiveState(dbUser.ActiveState),
		IsDeleted:    dbUser.IsDeleted,
		IsVerified:   dbUser.IsVerified,
		Auths:        auths,
		CreatedAt:    dbUser.CreatedAt.UTC(),
		UpdatedAt:    dbUser.UpdatedAt.UTC(),
	}, nil
}

func toParcelDB(parcel *model.Parcel) *parcelDB {
	history := make([]statusLogDB, len(parcel.StatusHistory))
	for i, entry := range parcel.StatusHistory {
		history[i] = statusLogDB{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
			UpdatedBy: optionalID(entry.UpdatedBy),
			Note:      entry.Note,
		}
	}
	return &parcelDB{
		ID:             parcel.ID.String(),
		TrackingNumber: parcel.TrackingNumber,
		Sender:         parcel.Sender.String(),
		Recipient: recipientDB{
			Name:    parcel.Recipient.Name,
			Phone:   parcel.Recipient.Phone,
			Address: parcel.Recipient.Address,
			Email:   parcel.Recipient.Email,
			UserID:  optionalID(parcel.Recipient.UserID),
		},
		DeliveryMan:   optionalID(parcel.DeliveryMan),
		DeliveryFee:   parcel.DeliveryFee,
		PickupAddress: parcel.PickupAddress,
		Weight:        parcel.Weight,
		CurrentStatus: string(parcel.CurrentStatus),
		StatusHistory: history,
		IsBlocked:     parcel.IsBlocked,
		Notes:         parcel.Notes,
		CreatedAt:     parcel.CreatedAt,
		UpdatedAt:     parcel.UpdatedAt,
	}
}

func translateDBToParcel(db parcelDB) (model.Parcel, error) {
	id, err := uuid.Parse(db.ID)
	if err != nil {
		return model.Parcel{}, fmt.Errorf("error parsing parcel id %q: %w", db.ID, err)
	}
	sender, err := uuid.Parse(db.Sender)
	if err != nil {
		return model.Parcel{}, fmt.Errorf("error parsing sender id %q: %w", db.Sender, err)
	}
	recipientUser, err := parseOptionalID(db.Recipient.UserID)
	if err != nil {
		return model.Parcel{}, err
	}
	deliveryMan, err := parseOptionalID(db.DeliveryMan)
	if err != nil {
		return model.Parcel{}, err
	}
	history := make([]model.StatusLog, len(db.StatusHistory))
	for i, entry := range db.StatusHistory {
		actor, err := parseOptionalID(entry.UpdatedBy)
		if err != nil {
			return model.Parcel{}, err
		}
		history[i] = model.StatusLog{
			Status:    model.ParcelStatus(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
			UpdatedBy: actor,
			Note:      entry.Note,
		}
	}
	return model.Parcel{
		ID:             id,
		TrackingNumber: db.TrackingNumber,
		Sender:         sender,
		Recipient: model.Recipient{
			Name:    db.Recipient.Name,
			Phone:   db.Recipient.Phone,
			Address: db.Recipient.Address,
			Email:   db.Recipient.Email,
			UserID:  recipientUser,
		},
		DeliveryMan:   deliveryMan,
		DeliveryFee:   db.DeliveryFee,
		PickupAddress: db.PickupAddress,
		Weight:        db.Weight,
		CurrentStatus: model.ParcelStatus(db.CurrentStatus),
		StatusHistory: history,
		IsBlocked:     db.IsBlocked,
		Notes:         db.Notes,
		CreatedAt:     db.CreatedAt.UTC(),
		UpdatedAt:     db.UpdatedAt.UTC(),
	}, nil
}
