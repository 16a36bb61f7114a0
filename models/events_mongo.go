package models

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

type mongoEventRepo struct {
	col *mongo.Collection
}

func NewMongoEventRepository(col *mongo.Collection) EventRepository {
	return &mongoEventRepo{col: col}
}

// EnsureEventIndexes creates the unique indexes the events collection relies on.
func EnsureEventIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	return errors.Wrap(err, "create event indexes")
}

func (r *mongoEventRepo) find(ctx context.Context, filter bson.M) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find events")
	}
	defer cur.Close(ctx)

	out := []Event{}
	for cur.Next(ctx) {
		var e Event
		if err := cur.Decode(&e); err != nil {
			return nil, errors.Wrap(err, "decode event")
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (r *mongoEventRepo) findOne(ctx context.Context, filter bson.M) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var e Event
	if err := r.col.FindOne(ctx, filter).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, errors.Wrap(err, "find event")
	}
	return e, nil
}

func (r *mongoEventRepo) ListByOwner(ctx context.Context, ownerID int64) ([]Event, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *mongoEventRepo) ListByIDs(ctx context.Context, ids []string) ([]Event, error) {
	if len(ids) == 0 {
		return []Event{}, nil
	}
	return r.find(ctx, bson.M{"id": bson.M{"$in": ids}})
}

func (r *mongoEventRepo) GetByID(ctx context.Context, id string) (Event, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *mongoEventRepo) GetBySlug(ctx context.Context, slug string) (Event, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *mongoEventRepo) Create(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "insert event")
	}
	return nil
}

func (r *mongoEventRepo) Update(ctx context.Context, e *Event) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	// 只更新可編輯欄位；owner / premium / archived 不經過這裡
	set := bson.M{
		"title":      e.Title,
		"slug":       e.Slug,
		"metadata":   e.Metadata,
		"updated_at": e.UpdatedAt,
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"id": e.ID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return errors.Wrap(err, "update event")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoEventRepo) SetArchived(ctx context.Context, id string, at *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{
		"archived_at": at,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return errors.Wrap(err, "archive event")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoEventRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return errors.Wrap(err, "delete event")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
