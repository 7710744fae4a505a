package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbroggi/parcelhub/internal/core/model"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB is a mongo adapter for persistence of users and parcels.
type MongoDB struct {
	userCollection   *mongo.Collection
	parcelCollection *mongo.Collection
	nowFunc          func() time.Time
}

// MongoDBArgs are the mandatory arguments for the creation of a MongoDB
type MongoDBArgs struct {
	// UserCollection is the collection holding the users
	UserCollection *mongo.Collection

	// ParcelCollection is the collection holding the parcels
	ParcelCollection *mongo.Collection
}

// MongoDBOptArgs are the optional arguments for building a MongoDB
type MongoDBOptArgs = func(*MongoDB)

// WithNowFunc can be used to override the nowFunc. Useful for testing.
func WithNowFunc(nowFunc func() time.Time) MongoDBOptArgs {
	return func(p *MongoDB) {
		p.nowFunc = nowFunc
	}
}

// NewMongoDB creates a new MongoDB.
func NewMongoDB(args MongoDBArgs, optArgs ...MongoDBOptArgs) (*MongoDB, error) {
	if args.UserCollection == nil || args.ParcelCollection == nil {
		return nil, errors.New("user and parcel collections are required")
	}
	m := &MongoDB{
		userCollection:   args.UserCollection,
		parcelCollection: args.ParcelCollection,
		nowFunc:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range optArgs {
		opt(m)
	}
	return m, nil
}

// EnsureIndexes creates the indexes backing the uniqueness constraints and the listings.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.userCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("uniq_active_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_deleted", Value: false}}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("error creating user indexes: %w", err)
	}
	_, err = m.parcelCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tracking_number", Value: 1}},
			Options: options.Index().SetName("uniq_tracking_number").SetUnique(true),
		},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient.user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "delivery_man", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("error creating parcel indexes: %w", err)
	}
	return nil
}

// SaveUser will save the user in the database.
func (m *MongoDB) SaveUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to save method")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.nowFunc()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if _, err := m.userCollection.InsertOne(ctx, toUserDB(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.NewError(model.ErrConflict, "User with this email already exists")
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

// UpdateUser will update user. It returns model.ErrNotFound if the input user does not exist.
func (m *MongoDB) UpdateUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("nil user passed to update method")
	}
	db := toUserDB(user)
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: db.Name},
		{Key: "email", Value: db.Email},
		{Key: "password_hash", Value: db.PasswordHash},
		{Key: "phone", Value: db.Phone},
		{Key: "address", Value: db.Address},
		{Key: "picture", Value: db.Picture},
		{Key: "role", Value: db.Role},
		{Key: "is_active", Value: db.ActiveState},
		{Key: "is_deleted", Value: db.IsDeleted},
		{Key: "is_verified", Value: db.IsVerified},
		{Key: "auths", Value: db.Auths},
		{Key: "updated_at", Value: db.UpdatedAt},
	}}}
	res, err := m.userCollection.UpdateByID(ctx, db.ID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.NewError(model.ErrConflict, "User with this email already exists")
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if res.MatchedCount < 1 {
		return model.ErrNotFound
	}
	return nil
}

// FindUserByID returns the user with the given id.
func (m *MongoDB) FindUserByID(ctx context.Context, id uuid.UUID, visibility ports.Visibility) (*model.User, error) {
	return m.findUser(ctx, withVisibility(bson.D{{Key: "_id", Value: id.String()}}, visibility), nil)
}

// FindUserByEmail returns the user with the given email. Non-deleted users win over deleted ones.
func (m *MongoDB) FindUserByEmail(ctx context.Context, email string, visibility ports.Visibility) (*model.User, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "is_deleted", Value: 1}, {Key: "updated_at", Value: -1}})
	return m.findUser(ctx, withVisibility(bson.D{{Key: "email", Value: email}}, visibility), opts)
}

func (m *MongoDB) findUser(ctx context.Context, filter bson.D, opts *options.FindOneOptions) (*model.User, error) {
	if opts == nil {
		opts = options.FindOne()
	}
	found := new(userDB)
	if err := m.userCollection.FindOne(ctx, filter, opts).Decode(found); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	user, err := translateDBToUser(*found)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUsersByIDs returns the visible users among ids.
func (m *MongoDB) FindUsersByIDs(ctx context.Context, ids []uuid.UUID, visibility ports.Visibility) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := withVisibility(bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: idStrings(ids)}}}}, visibility)
	cursor, err := m.userCollection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error finding users: %w", err)
	}
	var users []userDB
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	return translateDBToUsers(users)
}

// ListUsers list users matching the parameters in input, oldest first.
func (m *MongoDB) ListUsers(ctx context.Context, query ports.ListUsersQuery) (*ports.ListUsersResult, error) {
	filters := bson.D{}
	if len(query.Roles) > 0 {
		filters = append(filters, bson.E{Key: "role", Value: bson.D{{Key: "$in", Value: query.Roles}}})
	}
	if len(query.ActiveStates) > 0 {
		filters = append(filters, bson.E{Key: "is_active", Value: bson.D{{Key: "$in", Value: query.ActiveStates}}})
	}
	filters = withVisibility(filters, query.Visibility)

	total, err := m.userCollection.CountDocuments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}
	opts := pageOptions(query.Limit, query.Offset).SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.userCollection.Find(ctx, filters, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	var users []userDB
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("error decoding users: %w", err)
	}
	models, err := translateDBToUsers(users)
	if err != nil {
		return nil, err
	}
	return &ports.ListUsersResult{Users: models, Total: total}, nil
}

// SaveParcel will save the parcel in the database.
func (m *MongoDB) SaveParcel(ctx context.Context, parcel *model.Parcel) error {
	if parcel == nil {
		return errors.New("nil parcel passed to save method")
	}
	if parcel.ID == uuid.Nil {
		parcel.ID = uuid.New()
	}
	if parcel.CreatedAt.IsZero() {
		parcel.CreatedAt = m.nowFunc()
	}
	if parcel.UpdatedAt.IsZero() {
		parcel.UpdatedAt = parcel.CreatedAt
	}
	if _, err := m.parcelCollection.InsertOne(ctx, toParcelDB(parcel)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.NewError(model.ErrConflict, "Tracking number already exists")
		}
		return fmt.Errorf("error inserting parcel: %w", err)
	}
	return nil
}

// FindParcelByID returns the parcel with the given id.
func (m *MongoDB) FindParcelByID(ctx context.Context, id uuid.UUID) (*model.Parcel, error) {
	return m.findParcel(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

// FindParcelByTrackingNumber returns the parcel with the given tracking number.
func (m *MongoDB) FindParcelByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Parcel, error) {
	return m.findParcel(ctx, bson.D{{Key: "tracking_number", Value: trackingNumber}})
}

func (m *MongoDB) findParcel(ctx context.Context, filter bson.D) (*model.Parcel, error) {
	found := new(parcelDB)
	if err := m.parcelCollection.FindOne(ctx, filter).Decode(found); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error finding parcel: %w", err)
	}
	parcel, err := translateDBToParcel(*found)
	if err != nil {
		return nil, err
	}
	return &parcel, nil
}

// AppendParcelStatus pushes the new history entries if the stored history still has knownHistoryLen entries.
func (m *MongoDB) AppendParcelStatus(ctx context.Context, parcel *model.Parcel, knownHistoryLen int) error {
	if parcel == nil {
		return errors.New("nil parcel passed to append method")
	}
	if len(parcel.StatusHistory) < knownHistoryLen {
		return model.ErrConflict
	}
	db := toParcelDB(parcel)
	filter := bson.D{
		{Key: "_id", Value: db.ID},
		{Key: "status_history", Value: bson.D{{Key: "$size", Value: knownHistoryLen}}},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "current_status", Value: db.CurrentStatus},
			{Key: "delivery_man", Value: db.DeliveryMan},
			{Key: "is_blocked", Value: db.IsBlocked},
			{Key: "updated_at", Value: db.UpdatedAt},
		}},
		{Key: "$push", Value: bson.D{
			{Key: "status_history", Value: bson.D{{Key: "$each", Value: db.StatusHistory[knownHistoryLen:]}}},
		}},
	}
	res, err := m.parcelCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error appending parcel status: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := m.parcelCollection.CountDocuments(ctx, bson.D{{Key: "_id", Value: db.ID}})
	if err != nil {
		return fmt.Errorf("error checking parcel existence: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return model.ErrConflict
}

// ListParcels list parcels matching the parameters in input, newest first.
func (m *MongoDB) ListParcels(ctx context.Context, query ports.ListParcelsQuery) (*ports.ListParcelsResult, error) {
	filters := bson.D{}
	if query.Sender != uuid.Nil {
		filters = append(filters, bson.E{Key: "sender", Value: query.Sender.String()})
	}
	if query.RecipientUserID != uuid.Nil {
		filters = append(filters, bson.E{Key: "recipient.user_id", Value: query.RecipientUserID.String()})
	}
	if query.DeliveryMan != uuid.Nil {
		filters = append(filters, bson.E{Key: "delivery_man", Value: query.DeliveryMan.String()})
	}
	if len(query.Statuses) > 0 {
		filters = append(filters, bson.E{Key: "current_status", Value: bson.D{{Key: "$in", Value: query.Statuses}}})
	}
	timeFilter := bson.D{}
	if !query.CreatedAfter.IsZero() {
		timeFilter = append(timeFilter, bson.E{Key: "$gte", Value: query.CreatedAfter})
	}
	if !query.CreatedBefore.IsZero() {
		timeFilter = append(timeFilter, bson.E{Key: "$lte", Value: query.CreatedBefore})
	}
	if len(timeFilter) > 0 {
		filters = append(filters, bson.E{Key: "created_at", Value: timeFilter})
	}

	total, err := m.parcelCollection.CountDocuments(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("error counting parcels: %w", err)
	}
	opts := pageOptions(query.Limit, query.Offset).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "tracking_number", Value: -1}})
	cursor, err := m.parcelCollection.Find(ctx, filters, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing parcels: %w", err)
	}
	var parcels []parcelDB
	if err := cursor.All(ctx, &parcels); err != nil {
		return nil, fmt.Errorf("error decoding parcels: %w", err)
	}
	models := make([]model.Parcel, 0, len(parcels))
	for _, p := range parcels {
		parcel, err := translateDBToParcel(p)
		if err != nil {
			return nil, err
		}
		models = append(models, parcel)
	}
	return &ports.ListParcelsResult{Parcels: models, Total: total}, nil
}

func withVisibility(filter bson.D, visibility ports.Visibility) bson.D {
	if visibility == ports.ExcludeDeleted {
		return append(filter, bson.E{Key: "is_deleted", Value: false})
	}
	return filter
}

func pageOptions(limit, offset uint32) *options.FindOptions {
	opts := options.Find()
	if limit != 0 {
		opts.SetLimit(int64(limit))
	}
	if offset != 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
