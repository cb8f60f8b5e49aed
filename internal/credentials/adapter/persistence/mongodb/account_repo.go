package mongodb

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storage-gateway/internal/credentials/domain/model"
	"storage-gateway/internal/credentials/domain/repository"
	apperrors "storage-gateway/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Cipher encrypts token material before it reaches the collection
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// MongoAccountRepository implements AccountRepository using MongoDB.
// Token fields are encrypted at rest via the injected cipher.
type MongoAccountRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	cipher     Cipher
}

// NewMongoAccountRepository creates the repository and its indexes
func NewMongoAccountRepository(db *mongo.Database, cipher Cipher) (*MongoAccountRepository, error) {
	repo := &MongoAccountRepository{
		db:         db,
		collection: db.Collection("external_accounts"),
		cipher:     cipher,
	}

	ctx := context.Background()

	// (provider, account_id) must be unique
	identityIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "provider", Value: 1},
			{Key: "account_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, identityIndex); err != nil {
		return nil, err
	}

	// Owner lookups
	userIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetSparse(true),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, userIndex); err != nil {
		return nil, err
	}

	return repo, nil
}

// Create stores a new external account
func (r *MongoAccountRepository) Create(ctx context.Context, account *model.ExternalAccount) error {
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	sealed, err := r.seal(account)
	if err != nil {
		return err
	}

	_, err = r.collection.InsertOne(ctx, sealed)
	return mapWriteError(err)
}

// mapWriteError translates driver write failures into the gateway taxonomy.
// A duplicate key on (provider, account_id) means the account is already
// connected and must surface as a client error, not an internal one.
func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.New(apperrors.KindValidation, "account already connected for this provider", http.StatusConflict).
			WithCause(err)
	}
	return err
}

// Get fetches one account by (provider, account id)
func (r *MongoAccountRepository) Get(ctx context.Context, provider, accountID string) (*model.ExternalAccount, error) {
	filter := bson.M{"provider": provider, "account_id": accountID}

	var account model.ExternalAccount
	err := r.collection.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.open(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByUser fetches all accounts owned by a gateway user
func (r *MongoAccountRepository) ListByUser(ctx context.Context, userID string) ([]*model.ExternalAccount, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var accounts []*model.ExternalAccount
	for cursor.Next(ctx) {
		var account model.ExternalAccount
		if err := cursor.Decode(&account); err != nil {
			return nil, err
		}
		if err := r.open(&account); err != nil {
			return nil, err
		}
		accounts = append(accounts, &account)
	}
	return accounts, cursor.Err()
}

// UpdateToken applies a refresh outcome to the stored account
func (r *MongoAccountRepository) UpdateToken(ctx context.Context, provider, accountID string, token *model.RefreshedToken) error {
	access, err := r.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return err
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"access_token":   access,
			"refresh_token":  refresh,
			"issued_at":      token.IssuedAt,
			"expires_in":     token.ExpiresIn,
			"last_refreshed": now,
			"updated_at":     now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"provider": provider, "account_id": accountID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

// Delete removes the account on disconnect
func (r *MongoAccountRepository) Delete(ctx context.Context, provider, accountID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"provider": provider, "account_id": accountID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrAccountNotFound
	}
	return nil
}

// seal returns a copy of the account with encrypted token fields
func (r *MongoAccountRepository) seal(account *model.ExternalAccount) (*model.ExternalAccount, error) {
	sealed := *account

	access, err := r.cipher.Encrypt(account.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := r.cipher.Encrypt(account.RefreshToken)
	if err != nil {
		return nil, err
	}

	sealed.AccessToken = access
	sealed.RefreshToken = refresh
	return &sealed, nil
}

// open decrypts token fields in place
func (r *MongoAccountRepository) open(account *model.ExternalAccount) error {
	access, err := r.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.cipher.Decrypt(account.RefreshToken)
	if err != nil {
		return err
	}

	account.AccessToken = access
	account.RefreshToken = refresh
	return nil
}
