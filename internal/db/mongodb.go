package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
	eventsCollection       = "ledger_events"
)

var lastFour = regexp.MustCompile(`^\*{4}(\d{1,4})$`)

// MongoDB stores accounts, transactions and the ledger event audit trail.
type MongoDB struct {
	client       *mongo.Client
	accounts     *mongo.Collection
	transactions *mongo.Collection
	events       *mongo.Collection
}

// NewMongoDB connects, pings and makes sure the indexes exist.
func NewMongoDB(uri, dbName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetRegistry(newRegistry()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Mongodb: %w", err)
	}

	// pinging the database
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping Mongodb: %w", err)
	}

	database := client.Database(dbName)
	m := &MongoDB{
		client:       client,
		accounts:     database.Collection(accountsCollection),
		transactions: database.Collection(transactionsCollection),
		events:       database.Collection(eventsCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	accountIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "customer_id", Value: 1}},
		},
	}
	if _, err := m.accounts.Indexes().CreateMany(ctx, accountIndexes); err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}

	transactionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
	}
	if _, err := m.transactions.Indexes().CreateMany(ctx, transactionIndexes); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}

	return nil
}

// closes the mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks the connection is still usable.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// creates a new account
func (m *MongoDB) CreateAccount(ctx context.Context, account *models.Account) error {
	if _, err := m.accounts.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// retrieves an account by ID
func (m *MongoDB) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	err := m.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// FindAccountByMaskedNumber matches accounts on the trailing digits a masked
// number still shows.
func (m *MongoDB) FindAccountByMaskedNumber(ctx context.Context, masked string) (*models.Account, error) {
	match := lastFour.FindStringSubmatch(strings.TrimSpace(masked))
	if match == nil {
		return nil, ErrNotFound
	}

	filter := bson.M{"number": primitive.Regex{Pattern: match[1] + "$"}}
	cursor, err := m.accounts.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by number: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*models.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}

	switch len(accounts) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return accounts[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// ListAccounts returns the accounts matching filter, oldest first.
func (m *MongoDB) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	query := bson.M{}
	if filter.CustomerID != "" {
		query["customer_id"] = filter.CustomerID
	}
	if filter.Type != "" {
		query["account_type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	cursor, err := m.accounts.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := make([]*models.Account, 0)
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// AdjustBalance increments the balance in a single conditional update. A
// guarded debit only matches when the current balance covers it, so two
// concurrent debits can never both pass.
func (m *MongoDB) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (*models.Account, error) {
	delta, err := toDecimal128(adj.Delta)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": adj.AccountID}
	if adj.Delta.IsNegative() && !adj.AllowOverdraft {
		required, err := toDecimal128(adj.Delta.Neg())
		if err != nil {
			return nil, err
		}
		filter["balance"] = bson.M{"$gte": required}
	}

	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account models.Account
	err = m.accounts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&account)
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	// The guard or the id did not match; tell the two apart.
	n, err := m.accounts.CountDocuments(ctx, bson.M{"_id": adj.AccountID})
	if err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrInsufficientFunds
}

// UpdateAccountFields sets the allow-listed fields; balance is never part of the update.
func (m *MongoDB) UpdateAccountFields(ctx context.Context, id string, update models.AccountUpdate) (*models.Account, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.InterestRate != nil {
		rate, err := toDecimal128(*update.InterestRate)
		if err != nil {
			return nil, err
		}
		set["interest_rate"] = rate
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account models.Account
	err := m.accounts.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return &account, nil
}

// DeleteAccount removes an account document.
func (m *MongoDB) DeleteAccount(ctx context.Context, id string) error {
	res, err := m.accounts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// creates a new transaction
func (m *MongoDB) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if _, err := m.transactions.InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransactionByID: retrieves the transaction by ID
func (m *MongoDB) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	err := m.transactions.FindOne(ctx, bson.M{"_id": id}).Decode(&transaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &transaction, nil
}

// retrieves transactions for an account
func (m *MongoDB) GetTransactionsByAccountID(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	txs, _, err := m.ListTransactions(ctx, models.TransactionFilter{AccountID: accountID})
	return txs, err
}

func transactionQuery(filter models.TransactionFilter) bson.M {
	query := bson.M{}
	if filter.AccountID != "" {
		query["account_id"] = filter.AccountID
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	timestamp := bson.M{}
	if filter.StartDate != nil {
		timestamp["$gte"] = *filter.StartDate
	}
	if filter.EndDate != nil {
		timestamp["$lte"] = *filter.EndDate
	}
	if len(timestamp) > 0 {
		query["timestamp"] = timestamp
	}
	return query
}

// ListTransactions returns one page of matching transactions, newest first,
// and the number of matches before paging.
func (m *MongoDB) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, int, error) {
	query := transactionQuery(filter)

	total, err := m.transactions.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := m.transactions.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	transactions := make([]*models.Transaction, 0)
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, 0, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return transactions, int(total), nil
}

// updates a transaction's status
func (m *MongoDB) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus) (*models.Transaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var transaction models.Transaction
	err := m.transactions.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&transaction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return &transaction, nil
}

// DeleteTransaction removes a transaction document; a missing id is ErrNotFound.
func (m *MongoDB) DeleteTransaction(ctx context.Context, id string) error {
	res, err := m.transactions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEvent appends a ledger event to the audit trail. Redelivered events
// are ignored.
func (m *MongoDB) RecordEvent(ctx context.Context, event *models.LedgerEvent) error {
	record := *event
	record.RecordedAt = time.Now().UTC()

	if _, err := m.events.InsertOne(ctx, &record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}
