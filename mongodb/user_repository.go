package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
)

// UserRepository implements domain.UserRepository on MongoDB.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes.
func NewUserRepository(ctx context.Context, db *mongo.Database) (domain.UserRepository, error) {
	repo := &UserRepository{users: db.Collection(UsersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation commonly fails when a compatible index already
		// exists; log and continue.
		log.Warn().Err(err).Msg("failed to ensure user indexes")
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// Uniqueness is scoped to the (email, provider) pair: the same
			// address may exist once per provider.
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			Keys:    bson.D{{Key: "shopify_customer_id", Value: 1}},
			Options: options.Index().SetUnique(false),
		},
	}
	if _, err := r.users.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("create indexes for users collection: %w", err)
	}
	return nil
}

// CreateUser inserts a new user. The ID is assigned here if absent.
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrUserExists
		}
		log.Error().Err(err).Str("email", user.Email).Str("provider", string(user.Provider)).Msg("error inserting user")
		return err
	}
	return nil
}

// GetUserByID retrieves a user by id.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		log.Error().Err(err).Str("id", id).Msg("error getting user by id")
		return nil, err
	}
	return &user, nil
}

// GetUserByEmailAndProvider retrieves a user by its (email, provider) pair.
func (r *UserRepository) GetUserByEmailAndProvider(ctx context.Context, email string, provider domain.Provider) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"email": email, "provider": provider}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		log.Error().Err(err).Str("email", email).Str("provider", string(provider)).Msg("error getting user by email and provider")
		return nil, err
	}
	return &user, nil
}

// GetTokenInfo returns the cached token pair, zero-valued when the user has
// none stored.
func (r *UserRepository) GetTokenInfo(ctx context.Context, userID string) (domain.CustomerToken, error) {
	var doc struct {
		AccessToken string     `bson:"shopify_access_token"`
		ExpiresAt   *time.Time `bson:"shopify_token_expires_at"`
	}
	err := r.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"shopify_access_token": 1, "shopify_token_expires_at": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.CustomerToken{}, apperrors.ErrUserNotFound
		}
		return domain.CustomerToken{}, err
	}

	token := domain.CustomerToken{AccessToken: doc.AccessToken}
	if doc.ExpiresAt != nil {
		token.ExpiresAt = *doc.ExpiresAt
	}
	return token, nil
}

// GetCredentials returns the stored email and encrypted fallback password.
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (domain.Credentials, error) {
	var doc struct {
		Email       string `bson:"email"`
		PasswordEnc string `bson:"shopify_password_enc"`
	}
	err := r.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"email": 1, "shopify_password_enc": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Credentials{}, apperrors.ErrUserNotFound
		}
		return domain.Credentials{}, err
	}
	return domain.Credentials{Email: doc.Email, EncryptedPassword: doc.PasswordEnc}, nil
}

// WriteToken persists a fresh token pair in one update. Both fields land in
// a single $set so readers never observe a token without its expiry.
// Last write wins under concurrent refreshes.
func (r *UserRepository) WriteToken(ctx context.Context, userID string, token domain.CustomerToken) error {
	expiresAt := token.ExpiresAt.UTC()
	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"shopify_access_token":     token.AccessToken,
			"shopify_token_expires_at": expiresAt,
			"updated_at":               time.Now().UTC(),
		}},
	)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("error writing shopify token")
		return err
	}
	if result.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// Ensure interface compliance
var _ domain.UserRepository = (*UserRepository)(nil)
