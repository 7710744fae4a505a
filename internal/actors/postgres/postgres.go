package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/go-pg/pg/v10/orm"
	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
)

const uniqueViolation = "23505"

// PostgresDB is a postgres adapter for persistence.
type PostgresDB struct {
	db      *pg.DB
	nowFunc func() time.Time
}

// PostgresDBArgs are the mandatory arguments for the creation of a PostgresDB
type PostgresDBArgs struct {
	// DB is a postgres database handle
	DB *pg.DB
}

// PostgresDBOptArgs are the optional arguments for building a PostgresDB
type PostgresDBOptArgs = func(*PostgresDB)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) PostgresDBOptArgs {
	return func(p *PostgresDB) {
		p.nowFunc = nowFunc
	}
}

// NewPostgresDB creates a new PostgresDB.
func NewPostgresDB(args PostgresDBArgs, optArgs ...PostgresDBOptArgs) (*PostgresDB, error) {
	if args.DB == nil {
		return nil, errors.New("nil database handle")
	}
	p := &PostgresDB{db: args.DB, nowFunc: func() time.Time { return time.Now().UTC() }}
	for _, opt := range optArgs {
		opt(p)
	}
	return p, nil
}

// SaveUser will save the user in the database.
func (p *PostgresDB) SaveUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to save method")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = p.nowFunc()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if _, err := p.db.ModelContext(ctx, toUserDB(user)).Insert(); err != nil {
		if isUniqueViolation(err) {
			return model.NewError(model.ErrConflict, "User with this email already exists")
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

// UpdateUser will update user. It returns model.ErrNotFound if the input user does not exist.
func (p *PostgresDB) UpdateUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to update method")
	}
	res, err := p.db.ModelContext(ctx, toUserDB(user)).
		WherePK().
		ExcludeColumn("id", "created_at").
		Update()
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewError(model.ErrConflict, "User with this email already exists")
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.RowsAffected() < 1 {
		return model.ErrNotFound
	}
	return nil
}

// FindUserByID returns the user with the given id.
func (p *PostgresDB) FindUserByID(ctx context.Context, id uuid.UUID, visibility ports.Visibility) (*model.User, error) {
	found := new(userDB)
	q := p.db.ModelContext(ctx, found).Where("id = ?", id.String())
	return p.findUser(withVisibility(q, visibility), found)
}

// FindUserByEmail returns the user with the given email. Non-deleted users are preferred over deleted ones.
func (p *PostgresDB) FindUserByEmail(ctx context.Context, email string, visibility ports.Visibility) (*model.User, error) {
	found := new(userDB)
	q := p.db.ModelContext(ctx, found).
		Where("email = ?", email).
		OrderExpr("is_deleted ASC, updated_at DESC").
		Limit(1)
	return p.findUser(withVisibility(q, visibility), found)
}

func (p *PostgresDB) findUser(q *orm.Query, found *userDB) (*model.User, error) {
	if err := q.Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	user := translateDBToUser(*found)
	return &user, nil
}

// FindUsersByIDs returns the visible users among ids.
func (p *PostgresDB) FindUsersByIDs(ctx context.Context, ids []uuid.UUID, visibility ports.Visibility) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []userDB
	q := p.db.ModelContext(ctx, &users).WhereIn("id IN (?)", idStrings(ids))
	if err := withVisibility(q, visibility).Select(); err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, fmt.Errorf("error finding users: %w", err)
	}
	return translateDBToUsers(users), nil
}

// ListUsers list users matching the parameters in input
func (p *PostgresDB) ListUsers(ctx context.Context, query ports.ListUsersQuery) (*ports.ListUsersResult, error) {
	var users []userDB
	q := p.db.ModelContext(ctx, &users).Order("created_at ASC", "id ASC")

	if len(query.Roles) > 0 {
		q = q.WhereIn("role IN (?)", query.Roles)
	}
	if len(query.ActiveStates) > 0 {
		q = q.WhereIn("is_active IN (?)", query.ActiveStates)
	}
	q = withVisibility(q, query.Visibility)
	q = page(q, query.Limit, query.Offset)

	total, err := q.SelectAndCount()
	if err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return &ports.ListUsersResult{
		Users: translateDBToUsers(users),
		Total: int64(total),
	}, nil
}

// SaveParcel will save the parcel in the database.
func (p *PostgresDB) SaveParcel(ctx context.Context, parcel *model.Parcel) error {
	if parcel == nil {
		return errors.New("nil parcel passed to save method")
	}
	if parcel.ID == uuid.Nil {
		parcel.ID = uuid.New()
	}
	if parcel.CreatedAt.IsZero() {
		parcel.CreatedAt = p.nowFunc()
	}
	if parcel.UpdatedAt.IsZero() {
		parcel.UpdatedAt = parcel.CreatedAt
	}
	if _, err := p.db.ModelContext(ctx, toParcelDB(parcel)).Insert(); err != nil {
		if isUniqueViolation(err) {
			return model.NewError(model.ErrConflict, "Tracking number already exists")
		}
		return fmt.Errorf("error inserting parcel: %w", err)
	}
	return nil
}

// FindParcelByID returns the parcel with the given id.
func (p *PostgresDB) FindParcelByID(ctx context.Context, id uuid.UUID) (*model.Parcel, error) {
	found := new(parcelDB)
	return p.findParcel(p.db.ModelContext(ctx, found).Where("id = ?", id.String()), found)
}

// FindParcelByTrackingNumber returns the parcel with the given tracking number.
func (p *PostgresDB) FindParcelByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Parcel, error) {
	found := new(parcelDB)
	return p.findParcel(p.db.ModelContext(ctx, found).Where("tracking_number = ?", trackingNumber), found)
}

func (p *PostgresDB) findParcel(q *orm.Query, found *parcelDB) (*model.Parcel, error) {
	if err := q.Select(); err != nil {
		if errors.Is(err, pg.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error finding parcel: %w", err)
	}
	parcel := translateDBToParcel(*found)
	return &parcel, nil
}

// AppendParcelStatus appends the new history entries if the stored history still has knownHistoryLen entries.
func (p *PostgresDB) AppendParcelStatus(ctx context.Context, parcel *model.Parcel, knownHistoryLen int) error {
	if parcel == nil {
		return errors.New("nil parcel passed to append method")
	}
	if len(parcel.StatusHistory) < knownHistoryLen {
		return model.ErrConflict
	}
	db := toParcelDB(parcel)
	appended, err := json.Marshal(db.StatusHistory[knownHistoryLen:])
	if err != nil {
		return fmt.Errorf("error encoding status history: %w", err)
	}
	res, err := p.db.ModelContext(ctx, &parcelDB{}).
		Set("status_history = status_history || ?::jsonb", string(appended)).
		Set("current_status = ?", db.CurrentStatus).
		Set("delivery_man = ?", db.DeliveryMan).
		Set("is_blocked = ?", db.IsBlocked).
		Set("updated_at = ?", db.UpdatedAt).
		Where("id = ?", db.ID.String()).
		Where("jsonb_array_length(status_history) = ?", knownHistoryLen).
		Update()
	if err != nil {
		return fmt.Errorf("error appending parcel status: %w", err)
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	exists, err := p.db.ModelContext(ctx, &parcelDB{}).Where("id = ?", db.ID.String()).Exists()
	if err != nil {
		return fmt.Errorf("error checking parcel existence: %w", err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrConflict
}

// ListParcels list parcels matching the parameters in input, newest first.
func (p *PostgresDB) ListParcels(ctx context.Context, query ports.ListParcelsQuery) (*ports.ListParcelsResult, error) {
	var parcels []parcelDB
	q := p.db.ModelContext(ctx, &parcels).Order("created_at DESC", "tracking_number DESC")

	if query.Sender != uuid.Nil {
		q = q.Where("sender = ?", query.Sender.String())
	}
	if query.RecipientUserID != uuid.Nil {
		q = q.Where("recipient_user_id = ?", query.RecipientUserID.String())
	}
	if query.DeliveryMan != uuid.Nil {
		q = q.Where("delivery_man = ?", query.DeliveryMan.String())
	}
	if len(query.Statuses) > 0 {
		q = q.WhereIn("current_status IN (?)", query.Statuses)
	}
	if !query.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", query.CreatedAfter)
	}
	if !query.CreatedBefore.IsZero() {
		q = q.Where("created_at <= ?", query.CreatedBefore)
	}
	q = page(q, query.Limit, query.Offset)

	total, err := q.SelectAndCount()
	if err != nil && !errors.Is(err, pg.ErrNoRows) {
		return nil, fmt.Errorf("error listing parcels: %w", err)
	}
	models := make([]model.Parcel, 0, len(parcels))
	for _, db := range parcels {
		models = append(models, translateDBToParcel(db))
	}
	return &ports.ListParcelsResult{Parcels: models, Total: int64(total)}, nil
}

func withVisibility(q *orm.Query, visibility ports.Visibility) *orm.Query {
	if visibility == ports.ExcludeDeleted {
		return q.Where("is_deleted = FALSE")
	}
	return q
}

func page(q *orm.Query, limit, offset uint32) *orm.Query {
	if limit != 0 {
		q = q.Limit(int(limit))
	}
	if offset != 0 {
		q = q.Offset(int(offset))
	}
	return q
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr pg.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
