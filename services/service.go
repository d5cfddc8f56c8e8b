package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/seking31/tms-server/logging"
	"github.com/seking31/tms-server/validation"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidID         = errors.New("invalid id format")
	ErrMissingSearchTerm = errors.New("missing search term")
)

// NewStoreBreaker builds the circuit breaker guarding one collection. Only
// infrastructure failures count against it: a missing document or a
// duplicate key is an answer from a healthy server.
func NewStoreBreaker(name string, timeout time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Logger.Infof("Event ID: CIRCUIT_BREAKER_STATE_CHANGE, Description: Circuit Breaker '%s' changed from '%s' to '%s'", name, from.String(), to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, mongo.ErrNoDocuments) ||
				errors.Is(err, context.Canceled) ||
				mongo.IsDuplicateKeyError(err)
		},
	})
}

// guard runs one store round trip through the breaker.
func guard[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// searchFilter matches term literally and case-insensitively in any of fields.
func searchFilter(term string, fields ...string) (bson.M, error) {
	if strings.TrimSpace(term) == "" {
		return nil, ErrMissingSearchTerm
	}
	if !utf8.ValidString(term) || strings.ContainsRune(term, 0) {
		return nil, validation.Problem("Invalid search term")
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	clauses := make(bson.A, 0, len(fields))
	for _, field := range fields {
		clauses = append(clauses, bson.M{field: pattern})
	}
	return bson.M{"$or": clauses}, nil
}

func findMany[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, coll *mongo.Collection, filter bson.M) ([]T, error) {
	// Encoded outside the breaker: an unencodable filter is not a store failure.
	raw, err := bson.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}
	return guard(cb, func() ([]T, error) {
		cursor, err := coll.Find(ctx, raw)
		if err != nil {
			return nil, err
		}
		defer cursor.Close(ctx)

		var results []T
		if err := cursor.All(ctx, &results); err != nil {
			return nil, err
		}
		if results == nil {
			results = []T{}
		}
		return results, nil
	})
}

func findOne[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, coll *mongo.Collection, id primitive.ObjectID) (*T, error) {
	record, err := guard(cb, func() (*T, error) {
		var record T
		if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
			return nil, err
		}
		return &record, nil
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	return record, err
}

func replaceOne(ctx context.Context, cb *gobreaker.CircuitBreaker, coll *mongo.Collection, id primitive.ObjectID, record interface{}) error {
	result, err := guard(cb, func() (*mongo.UpdateResult, error) {
		return coll.ReplaceOne(ctx, bson.M{"_id": id}, record)
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteOne(ctx context.Context, cb *gobreaker.CircuitBreaker, coll *mongo.Collection, id primitive.ObjectID) error {
	result, err := guard(cb, func() (*mongo.DeleteResult, error) {
		return coll.DeleteOne(ctx, bson.M{"_id": id})
	})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes the stores rely on: unique external
// project ids, unique task titles and a lookup index on task project ids.
func EnsureIndexes(ctx context.Context, projects, tasks *mongo.Collection) error {
	if _, err := projects.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "projectId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create unique index on project projectId: %w", err)
	}

	if _, err := tasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "projectId", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}
