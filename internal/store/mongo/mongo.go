// Package mongo stores users and expenses in MongoDB. Report grouping runs
// as an aggregation pipeline on the server.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expenses/internal/core"
)

const (
	expensesCollection = "expenses"
	usersCollection    = "users"
)

type expenseDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Owner       string             `bson:"user"`
	Title       string             `bson:"title"`
	AmountCents int64              `bson:"amountCents"`
	Date        time.Time          `bson:"date"`
	Category    string             `bson:"category"`
	Notes       string             `bson:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type groupDoc struct {
	Category    string `bson:"_id"`
	TotalAmount int64  `bson:"totalAmount"`
	TotalCount  int64  `bson:"totalCount"`
}

type Store struct {
	client   *mongo.Client
	expenses *mongo.Collection
	users    *mongo.Collection
}

// New connects to uri, verifies the connection and ensures indexes.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		expenses: db.Collection(expensesCollection),
		users:    db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	_, err = s.expenses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create expenses owner index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	doc, err := toExpenseDoc(e)
	if err != nil {
		return core.Expense{}, err
	}
	if _, err := s.expenses.InsertOne(ctx, doc); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) GetExpense(ctx context.Context, owner, id string) (core.Expense, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Expense{}, core.ErrNotFound
	}
	var doc expenseDoc
	err = s.expenses.FindOne(ctx, ownedBy(owner, oid)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("find expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) ListExpenses(ctx context.Context, owner string, f core.Filter) ([]core.Expense, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.expenses.Find(ctx, listFilter(owner, f), opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]core.Expense, 0)
	for cur.Next(ctx) {
		var doc expenseDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode expense: %w", err)
		}
		out = append(out, doc.toCore())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// UpdateExpense is a single FindOneAndUpdate, atomic per document.
func (s *Store) UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch, now time.Time) (core.Expense, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.Expense{}, core.ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc expenseDoc
	err = s.expenses.FindOneAndUpdate(ctx, ownedBy(owner, oid), patchUpdate(p, now), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return doc.toCore(), nil
}

func (s *Store) DeleteExpense(ctx context.Context, owner, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.ErrNotFound
	}
	res, err := s.expenses.DeleteOne(ctx, ownedBy(owner, oid))
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SumByCategory(ctx context.Context, owner string, w core.Window) ([]core.CategoryTotal, error) {
	cur, err := s.expenses.Aggregate(ctx, sumPipeline(owner, w))
	if err != nil {
		return nil, fmt.Errorf("aggregate expenses: %w", err)
	}
	defer cur.Close(ctx)

	var groups []groupDoc
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode category totals: %w", err)
	}
	out := make([]core.CategoryTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, core.CategoryTotal{
			Category:    g.Category,
			TotalAmount: core.Money{Cents: g.TotalAmount},
			TotalCount:  g.TotalCount,
		})
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	u.Email = core.NormalizeEmail(u.Email)
	doc := userDoc{
		ID:           oid,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC().Truncate(time.Millisecond),
	}
	_, err = s.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return core.User{}, core.ErrUserExists
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = doc.CreatedAt
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "email", Value: core.NormalizeEmail(email)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return core.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt.UTC(),
	}, nil
}

func ownedBy(owner string, id primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "user", Value: owner}}
}

// windowMatch returns the date condition for w, or nil for an open window.
func windowMatch(w core.Window) bson.D {
	var cond bson.D
	if !w.From.IsZero() {
		cond = append(cond, bson.E{Key: "$gte", Value: core.CeilMilli(w.From)})
	}
	if !w.To.IsZero() {
		cond = append(cond, bson.E{Key: "$lt", Value: core.CeilMilli(w.To)})
	}
	return cond
}

func listFilter(owner string, f core.Filter) bson.D {
	filter := bson.D{{Key: "user", Value: owner}}
	if cond := windowMatch(f.Window); cond != nil {
		filter = append(filter, bson.E{Key: "date", Value: cond})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}
	return filter
}

func sumPipeline(owner string, w core.Window) mongo.Pipeline {
	match := bson.D{{Key: "user", Value: owner}}
	if cond := windowMatch(w); cond != nil {
		match = append(match, bson.E{Key: "date", Value: cond})
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
			{Key: "totalCount", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// patchUpdate turns the present fields of p into a $set document. Clearing
// notes unsets the field.
func patchUpdate(p core.ExpensePatch, now time.Time) bson.D {
	set := bson.D{}
	if p.Title.Present {
		set = append(set, bson.E{Key: "title", Value: p.Title.Value})
	}
	if p.Amount.Present {
		set = append(set, bson.E{Key: "amountCents", Value: p.Amount.Value.Cents})
	}
	if p.Date.Present {
		set = append(set, bson.E{Key: "date", Value: p.Date.Value.UTC()})
	}
	if p.Category.Present {
		set = append(set, bson.E{Key: "category", Value: p.Category.Value})
	}
	if p.Notes.Present && p.Notes.Value != "" {
		set = append(set, bson.E{Key: "notes", Value: p.Notes.Value})
	}
	set = append(set, bson.E{Key: "updatedAt", Value: now.UTC()})

	update := bson.D{{Key: "$set", Value: set}}
	if p.Notes.Present && p.Notes.Value == "" {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "notes", Value: ""}}})
	}
	return update
}

func toExpenseDoc(e core.Expense) (expenseDoc, error) {
	oid, err := primitive.ObjectIDFromHex(e.ID)
	if err != nil {
		return expenseDoc{}, fmt.Errorf("expense id: %w", err)
	}
	// BSON datetimes carry millisecond precision.
	return expenseDoc{
		ID:          oid,
		Owner:       e.Owner,
		Title:       e.Title,
		AmountCents: e.Amount.Cents,
		Date:        e.Date.UTC().Truncate(time.Millisecond),
		Category:    e.Category,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt.UTC().Truncate(time.Millisecond),
		UpdatedAt:   e.UpdatedAt.UTC().Truncate(time.Millisecond),
	}, nil
}

func (d expenseDoc) toCore() core.Expense {
	return core.Expense{
		ID:        d.ID.Hex(),
		Owner:     d.Owner,
		Title:     d.Title,
		Amount:    core.Money{Cents: d.AmountCents},
		Date:      d.Date.UTC(),
		Category:  d.Category,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
