// Package mongo provides the MongoDB implementations of the ledger and import job stores.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/household-ledger/internal/domain/ledger"
)

const (
	// TransactionCollectionName is the name of the ledger collection in MongoDB
	TransactionCollectionName = "transactions"

	transactionKeyIndexName = "user_transaction_key_unique"
	duplicateKeyCode        = 11000
)

// transactionDocument is the stored shape of a ledger transaction. Amounts are Decimal128 so
// the store can compare them numerically in $in filters.
type transactionDocument struct {
	ID             string               `bson:"_id"`
	UserID         string               `bson:"user_id"`
	Type           string               `bson:"type"`
	FromAccountID  *string              `bson:"from_account_id,omitempty"`
	ToAccountID    *string              `bson:"to_account_id,omitempty"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Date           time.Time            `bson:"date"`
	Description    string               `bson:"description,omitempty"`
	Category       string               `bson:"category,omitempty"`
	Metadata       bson.M               `bson:"metadata,omitempty"`
	TransactionKey string               `bson:"transaction_key"`
	CreatedAt      time.Time            `bson:"created_at"`
}

// LedgerRepository implements the ledger.Repository interface for MongoDB
type LedgerRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{
		collection: db.Collection(TransactionCollectionName),
		logger:     logger,
	}
}

// EnsureIndexes creates the per-user unique transaction key index and the replay ordering index
func (r *LedgerRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "transaction_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(transactionKeyIndexName),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		r.logger.Error("Failed to create ledger indexes", "error", err)
		return fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	return nil
}

// Find returns the transactions of userID matching filter, ordered by date then creation time
func (r *LedgerRepository) Find(ctx context.Context, userID string, filter ledger.Filter) ([]*ledger.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, buildFilter(userID, filter), opts)
	if err != nil {
		r.logger.Error("Failed to find transactions", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode transactions", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	txns := make([]*ledger.Transaction, 0, len(docs))
	for i := range docs {
		txn, err := fromDocument(&docs[i])
		if err != nil {
			r.logger.Error("Failed to convert transaction document", "id", docs[i].ID, "error", err)
			return nil, fmt.Errorf("failed to decode transactions: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// InsertMany inserts txns unordered so a key collision only rejects its own document
func (r *LedgerRepository) InsertMany(ctx context.Context, txns []*ledger.Transaction) (*ledger.InsertResult, error) {
	if len(txns) == 0 {
		return &ledger.InsertResult{}, nil
	}

	docs := make([]interface{}, len(txns))
	for i, txn := range txns {
		doc, err := toDocument(txn)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return insertedExcept(txns, nil), nil
	}

	var bulkErr mongo.BulkWriteException
	if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil || len(bulkErr.WriteErrors) == 0 {
		r.logger.Error("Failed to insert transactions", "count", len(txns), "error", err)
		return nil, fmt.Errorf("failed to insert transactions: %w", err)
	}

	failed := make(map[int]struct{}, len(bulkErr.WriteErrors))
	for _, we := range bulkErr.WriteErrors {
		failed[we.Index] = struct{}{}
		if we.Code != duplicateKeyCode {
			r.logger.Warn("Transaction rejected by ledger store", "index", we.Index, "code", we.Code, "message", we.Message)
		}
	}
	return insertedExcept(txns, failed), nil
}

// GetByID retrieves a transaction of userID
func (r *LedgerRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (*ledger.Transaction, error) {
	var doc transactionDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String(), "user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return fromDocument(&doc)
}

// Update replaces the stored transaction. The unique index turns a key collision into
// ErrDuplicateKey.
func (r *LedgerRepository) Update(ctx context.Context, txn *ledger.Transaction) error {
	doc, err := toDocument(txn)
	if err != nil {
		return err
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID, "user_id": doc.UserID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateKey{TransactionKey: txn.TransactionKey}
		}
		r.logger.Error("Failed to update transaction", "id", doc.ID, "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.MatchedCount == 0 {
		return ledger.ErrTransactionNotFound{TransactionID: txn.ID}
	}
	return nil
}

// Delete removes a transaction of userID
func (r *LedgerRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id.String(), "user_id": userID})
	if err != nil {
		r.logger.Error("Failed to delete transaction", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if result.DeletedCount == 0 {
		return ledger.ErrTransactionNotFound{TransactionID: id}
	}
	return nil
}

// buildFilter translates a ledger.Filter into a query document scoped to userID
func buildFilter(userID string, f ledger.Filter) bson.M {
	filter := bson.M{"user_id": userID}
	var and []bson.M

	if len(f.DateIn) > 0 || len(f.AmountIn) > 0 {
		var or []bson.M
		if len(f.DateIn) > 0 {
			dates := make([]time.Time, len(f.DateIn))
			for i, d := range f.DateIn {
				dates[i] = ledger.TruncateDate(d)
			}
			or = append(or, bson.M{"date": bson.M{"$in": dates}})
		}
		if len(f.AmountIn) > 0 {
			amounts := make([]primitive.Decimal128, 0, len(f.AmountIn))
			for _, a := range f.AmountIn {
				if d, err := toDecimal128(a); err == nil {
					amounts = append(amounts, d)
				}
			}
			or = append(or, bson.M{"amount": bson.M{"$in": amounts}})
		}
		and = append(and, bson.M{"$or": or})
	}

	if f.Type != "" {
		filter["type"] = string(f.Type)
	}

	if len(f.AccountIDs) > 0 {
		ids := make([]string, len(f.AccountIDs))
		for i, id := range f.AccountIDs {
			ids[i] = id.String()
		}
		and = append(and, bson.M{"$or": []bson.M{
			{"from_account_id": bson.M{"$in": ids}},
			{"to_account_id": bson.M{"$in": ids}},
		}})
	}

	if f.Until != nil {
		filter["date"] = bson.M{"$lte": ledger.TruncateDate(*f.Until)}
	}

	if len(and) > 0 {
		filter["$and"] = and
	}
	return filter
}

// insertedExcept reports every transaction whose index is not in failed as inserted
func insertedExcept(txns []*ledger.Transaction, failed map[int]struct{}) *ledger.InsertResult {
	result := &ledger.InsertResult{InsertedIDs: make([]uuid.UUID, 0, len(txns))}
	for i, txn := range txns {
		if _, ok := failed[i]; ok {
			result.FailedCount++
			continue
		}
		result.InsertedIDs = append(result.InsertedIDs, txn.ID)
	}
	result.InsertedCount = len(result.InsertedIDs)
	return result
}

func toDocument(txn *ledger.Transaction) (*transactionDocument, error) {
	amount, err := toDecimal128(txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for transaction %s: %w", txn.ID, err)
	}

	doc := &transactionDocument{
		ID:             txn.ID.String(),
		UserID:         txn.UserID,
		Type:           string(txn.Type),
		FromAccountID:  uuidString(txn.FromAccountID),
		ToAccountID:    uuidString(txn.ToAccountID),
		Amount:         amount,
		Date:           ledger.TruncateDate(txn.Date),
		Description:    txn.Description,
		Category:       txn.Category,
		TransactionKey: txn.TransactionKey,
		CreatedAt:      txn.CreatedAt.UTC(),
	}
	if len(txn.Metadata) > 0 {
		doc.Metadata = bson.M(txn.Metadata)
	}
	return doc, nil
}

func fromDocument(doc *transactionDocument) (*ledger.Transaction, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", doc.ID, err)
	}
	from, err := parseUUIDPtr(doc.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := parseUUIDPtr(doc.ToAccountID)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(doc.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", doc.Amount.String(), err)
	}

	txn := &ledger.Transaction{
		ID:             id,
		UserID:         doc.UserID,
		Type:           ledger.TransactionType(doc.Type),
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         amount,
		Date:           doc.Date.UTC(),
		Description:    doc.Description,
		Category:       doc.Category,
		TransactionKey: doc.TransactionKey,
		CreatedAt:      doc.CreatedAt.UTC(),
	}
	if len(doc.Metadata) > 0 {
		txn.Metadata = plainMap(doc.Metadata)
	}
	return txn, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", *s, err)
	}
	return &id, nil
}

// plainMap converts decoded BSON containers back into the maps and slices JSON metadata uses
func plainMap(m bson.M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return plainMap(val)
	case bson.D:
		return plainMap(val.Map())
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	default:
		return val
	}
}
