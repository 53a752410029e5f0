package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements CredentialStore on a single users collection.
// The blacklist lives on the user document, so every mutation is a
// single-document update and therefore atomic.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore wraps the users collection.
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

type userDocument struct {
	ID               string     `bson:"_id"`
	Name             string     `bson:"name"`
	Email            string     `bson:"email"`
	PasswordHash     string     `bson:"password_hash"`
	Role             string     `bson:"role"`
	Phone            string     `bson:"phone,omitempty"`
	Company          string     `bson:"company,omitempty"`
	Address          string     `bson:"address,omitempty"`
	RefreshTokenHash string     `bson:"refresh_token_hash"`
	TokenBlacklist   []string   `bson:"token_blacklist,omitempty"`
	LastLogin        *time.Time `bson:"last_login_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func (d *userDocument) toUser() (*User, error) {
	role, err := ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", d.ID, err)
	}
	return &User{
		ID:               d.ID,
		Name:             d.Name,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		Role:             role,
		Phone:            d.Phone,
		Company:          d.Company,
		Address:          d.Address,
		RefreshTokenHash: d.RefreshTokenHash,
		LastLogin:        d.LastLogin,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

// EnsureIndexes creates the unique email index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return fmt.Errorf("creating email index: %w", err)
	}
	return nil
}

// FindByID retrieves the full user record.
func (s *MongoStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// FindByEmail retrieves the full user record by email.
func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*User, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: "token_blacklist", Value: 0}})

	var doc userDocument
	err := s.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return doc.toUser()
}

// FindIdentity projects away the secrets and uses $elemMatch so only a
// matching blacklist entry, if any, comes back.
func (s *MongoStore) FindIdentity(ctx context.Context, id, accessTokenHash string) (*Identity, bool, error) {
	projection := bson.D{
		{Key: "_id", Value: 1},
		{Key: "name", Value: 1},
		{Key: "email", Value: 1},
		{Key: "role", Value: 1},
		{Key: "phone", Value: 1},
		{Key: "company", Value: 1},
		{Key: "address", Value: 1},
		{Key: "last_login_at", Value: 1},
		{Key: "created_at", Value: 1},
		{Key: "token_blacklist", Value: bson.D{
			{Key: "$elemMatch", Value: bson.D{{Key: "$eq", Value: accessTokenHash}}},
		}},
	}

	var doc userDocument
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(projection),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying identity: %w", err)
	}

	user, err := doc.toUser()
	if err != nil {
		return nil, false, err
	}
	return user.Identity(), len(doc.TokenBlacklist) > 0, nil
}

// Create inserts a new user document.
func (s *MongoStore) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = newUserID()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	doc := userDocument{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		PasswordHash:     user.PasswordHash,
		Role:             string(user.Role),
		Phone:            user.Phone,
		Company:          user.Company,
		Address:          user.Address,
		RefreshTokenHash: user.RefreshTokenHash,
		LastLogin:        user.LastLogin,
		CreatedAt:        user.CreatedAt,
		UpdatedAt:        user.UpdatedAt,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// SwapRefreshToken filters on the previous hash so a concurrent writer
// makes the update match nothing.
func (s *MongoStore) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "refresh_token_hash", Value: expected},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refresh_token_hash", Value: next},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("swapping refresh token: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return ErrRefreshConflict
}

// StartSession overwrites the refresh token and stamps the login time.
func (s *MongoStore) StartSession(ctx context.Context, id, refreshHash string, at time.Time) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "refresh_token_hash", Value: refreshHash},
		{Key: "last_login_at", Value: at.UTC()},
		{Key: "updated_at", Value: at.UTC()},
	}}}, "starting session")
}

// RevokeSession blacklists the access token and clears the refresh token
// in one update.
func (s *MongoStore) RevokeSession(ctx context.Context, id, accessTokenHash string) error {
	return s.updateByID(ctx, id, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "token_blacklist", Value: accessTokenHash}}},
		{Key: "$set", Value: bson.D{
			{Key: "refresh_token_hash", Value: ""},
			{Key: "updated_at", Value: time.Now().UTC()},
		}},
	}, "revoking session")
}

// UpdatePasswordHash replaces the stored password hash.
func (s *MongoStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "password_hash", Value: hash},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}, "updating password hash")
}

// Count returns the number of user documents.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) updateByID(ctx context.Context, id string, update bson.D, op string) error {
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) exists(ctx context.Context, id string) (bool, error) {
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return true, nil
}
