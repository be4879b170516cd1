package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitquiz-assignment-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection       = "users"
	quizzesCollection     = "quizzes"
	collectionsCollection = "collections"
)

// Store reads and writes the users, quizzes and collections collections of
// one database. Ids are opaque strings stored in _id.
type Store struct {
	users       *mongo.Collection
	quizzes     *mongo.Collection
	collections *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		users:       db.Collection(usersCollection),
		quizzes:     db.Collection(quizzesCollection),
		collections: db.Collection(collectionsCollection),
	}
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (s *Store) FindUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.TenantID != "" {
		query["tenantId"] = filter.TenantID
	}
	cursor, err := s.users.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []domain.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// SaveUser sets the assignment sub-documents only.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	update := bson.M{"$set": bson.M{
		"pendingQuizzes":      orEmpty(user.PendingQuizzes),
		"quizResults":         orEmpty(user.QuizResults),
		"skippedQuizzes":      orEmpty(user.SkippedQuizzes),
		"assignedCollections": orEmpty(user.AssignedCollections),
	}}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AddPendingQuiz appends one pending entry. The filter refuses quizzes that
// are already pending, completed or skipped.
func (s *Store) AddPendingQuiz(ctx context.Context, userID string, entry domain.PendingQuiz) (bool, error) {
	filter := bson.M{
		"_id":                   userID,
		"pendingQuizzes.quizId": bson.M{"$ne": entry.QuizID},
		"quizResults.quizId":    bson.M{"$ne": entry.QuizID},
		"skippedQuizzes.quizId": bson.M{"$ne": entry.QuizID},
	}
	// A pipeline update so a null or missing list is treated as empty.
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"pendingQuizzes": bson.M{"$concatArrays": bson.A{
			bson.M{"$ifNull": bson.A{"$pendingQuizzes", bson.A{}}},
			bson.M{"$literal": bson.A{entry}},
		}},
	}}}}
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("add pending quiz: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return false, domain.ErrUserNotFound
	}
	return false, nil
}

// PutUser inserts or fully replaces a user document.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *Store) FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.quizzes.FindOne(ctx, bson.M{"_id": id}).Decode(&quiz)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return &quiz, nil
}

func (s *Store) FindQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	query := bson.M{}
	if filter.IsActive != nil {
		query["isActive"] = *filter.IsActive
	}
	if filter.TriggerType != "" {
		query["triggerType"] = filter.TriggerType
	}
	if filter.TenantID != "" {
		query["tenantId"] = filter.TenantID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.quizzes.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer cursor.Close(ctx)

	quizzes := []domain.Quiz{}
	if err := cursor.All(ctx, &quizzes); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	return quizzes, nil
}

func (s *Store) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	_, err := s.quizzes.ReplaceOne(ctx, bson.M{"_id": quiz.ID}, quiz, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.quizzes.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	err := s.collections.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return &c, nil
}

// PutCollection inserts or replaces a collection.
func (s *Store) PutCollection(ctx context.Context, c domain.Collection) error {
	_, err := s.collections.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put collection: %w", err)
	}
	return nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
