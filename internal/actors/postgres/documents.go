package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
)

type authDB struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
}

type userDB struct {
	tableName struct{} `pg:"parcelhub.users"`

	// ID unique identifier of the user.
	ID uuid.UUID `pg:"id,type:uuid,pk"`

	Name         string   `pg:"name,use_zero"`
	Email        string   `pg:"email,use_zero"`
	PasswordHash string   `pg:"password_hash,use_zero"`
	Phone        string   `pg:"phone,use_zero"`
	Address      string   `pg:"address,use_zero"`
	Picture      string   `pg:"picture,use_zero"`
	Role         string   `pg:"role"`
	ActiveState  string   `pg:"is_active"`
	IsDeleted    bool     `pg:"is_deleted,use_zero"`
	IsVerified   bool     `pg:"is_verified,use_zero"`
	Auths        []authDB `pg:"auths,type:jsonb,use_zero"`

	// CreatedAt is the time at which the user was created in the system.
	CreatedAt time.Time `pg:"created_at"`

	// UpdatedAt is the time at which the user was last updated
	UpdatedAt time.Time `pg:"updated_at"`
}

type statusLogDB struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Note      string    `json:"note,omitempty"`
}

type parcelDB struct {
	tableName struct{} `pg:"parcelhub.parcels"`

	// ID unique identifier of the parcel.
	ID uuid.UUID `pg:"id,type:uuid,pk"`

	TrackingNumber   string        `pg:"tracking_number"`
	Sender           uuid.UUID     `pg:"sender,type:uuid"`
	RecipientName    string        `pg:"recipient_name,use_zero"`
	RecipientPhone   string        `pg:"recipient_phone,use_zero"`
	RecipientAddress string        `pg:"recipient_address,use_zero"`
	RecipientEmail   string        `pg:"recipient_email,use_zero"`
	RecipientUserID  uuid.NullUUID `pg:"recipient_user_id,type:uuid"`
	DeliveryMan      uuid.NullUUID `pg:"delivery_man,type:uuid"`
	DeliveryFee      *float64      `pg:"delivery_fee"`
	PickupAddress    string        `pg:"pickup_address,use_zero"`
	Weight           float64       `pg:"weight"`
	CurrentStatus    string        `pg:"current_status"`
	StatusHistory    []statusLogDB `pg:"status_history,type:jsonb"`
	IsBlocked        bool          `pg:"is_blocked,use_zero"`
	Notes            string        `pg:"notes,use_zero"`
	CreatedAt        time.Time     `pg:"created_at"`
	UpdatedAt        time.Time     `pg:"updated_at"`
}

func nullID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func optionalID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func toUserDB(user *model.User) *userDB {
	auths := make([]authDB, len(user.Auths))
	for i, a := range user.Auths {
		auths[i] = authDB{Provider: a.Provider, ProviderID: a.ProviderID}
	}
	return &userDB{
		ID:           user.ID,
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

func translateDBToUsers(dbUsers []userDB) []model.User {
	models := make([]model.User, len(dbUsers))
	for i, dbUser := range dbUsers {
		models[i] = translateDBToUser(dbUser)
	}
	return models
}

func translateDBToUser(dbUser userDB) model.User {
	auths := make([]model.AuthProvider, len(dbUser.Auths))
	for i, a := range dbUser.Auths {
		auths[i] = model.AuthProvider{Provider: a.Provider, ProviderID: a.ProviderID}
	}
	return model.User{
		ID:           dbUser.ID,
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
	}
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
		ID:               parcel.ID,
		TrackingNumber:   parcel.TrackingNumber,
		Sender:           parcel.Sender,
		RecipientName:    parcel.Recipient.Name,
		RecipientPhone:   parcel.Recipient.Phone,
		RecipientAddress: parcel.Recipient.Address,
		RecipientEmail:   parcel.Recipient.Email,
		RecipientUserID:  nullID(parcel.Recipient.UserID),
		DeliveryMan:      nullID(parcel.DeliveryMan),
		DeliveryFee:      parcel.DeliveryFee,
		PickupAddress:    parcel.PickupAddress,
		Weight:           parcel.Weight,
		CurrentStatus:    string(parcel.CurrentStatus),
		StatusHistory:    history,
		IsBlocked:        parcel.IsBlocked,
		Notes:            parcel.Notes,
		CreatedAt:        parcel.CreatedAt,
		UpdatedAt:        parcel.UpdatedAt,
	}
}

func translateDBToParcel(db parcelDB) model.Parcel {
	history := make([]model.StatusLog, len(db.StatusHistory))
	for i, entry := range db.StatusHistory {
		// unparsable actors are dropped rather than failing the read
		actor, _ := uuid.Parse(entry.UpdatedBy)
		history[i] = model.StatusLog{
			Status:    model.ParcelStatus(entry.Status),
			Timestamp: entry.Timestamp.UTC(),
			UpdatedBy: actor,
			Note:      entry.Note,
		}
	}
	return model.Parcel{
		ID:             db.ID,
		TrackingNumber: db.TrackingNumber,
		Sender:         db.Sender,
		Recipient: model.Recipient{
			Name:    db.RecipientName,
			Phone:   db.RecipientPhone,
			Address: db.RecipientAddress,
			Email:   db.RecipientEmail,
			UserID:  db.RecipientUserID.UUID,
		},
		DeliveryMan:   db.DeliveryMan.UUID,
		DeliveryFee:   db.DeliveryFee,
		PickupAddress: db.PickupAddress,
		Weight:        db.Weight,
		CurrentStatus: model.ParcelStatus(db.CurrentStatus),
		StatusHistory: history,
		IsBlocked:     db.IsBlocked,
		Notes:         db.Notes,
		CreatedAt:     db.CreatedAt.UTC(),
		UpdatedAt:     db.UpdatedAt.UTC(),
	}
}
