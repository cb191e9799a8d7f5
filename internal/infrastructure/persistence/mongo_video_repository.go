package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/molpadia/molpalearn/internal/domain/entity"
	"github.com/molpadia/molpalearn/internal/domain/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const videosCollection = "videos"

type MongoVideoRepository struct {
	coll *mongo.Collection
}

var _ repository.VideoRepository = (*MongoVideoRepository)(nil)

// Connect to the MongoDB deployment and verify it answers.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// NewMongoVideoRepository ensures the indexes used by listings exist.
func NewMongoVideoRepository(ctx context.Context, db *mongo.Database) (*MongoVideoRepository, error) {
	coll := db.Collection(videosCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return &MongoVideoRepository{coll: coll}, nil
}

func (r *MongoVideoRepository) Create(ctx context.Context, video *entity.Video) error {
	if _, err := r.coll.InsertOne(ctx, video); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("video ID %s already exists", video.Id)
		}
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *MongoVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	var v entity.Video
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find video: %w", err)
	}
	return &v, nil
}

// Build the query document of the filter.
func mongoFilter(f entity.VideoFilter) bson.M {
	q := bson.M{}
	if f.OwnerId != "" {
		q["owner_id"] = f.OwnerId
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}
	if f.Subject != "" {
		q["subject"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Subject), Options: "i"}
	}
	return q
}

func (r *MongoVideoRepository) List(ctx context.Context, filter entity.VideoFilter, page entity.PageRequest) ([]*entity.Video, int64, error) {
	q := mongoFilter(filter)
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.PerPage))
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find videos: %w", err)
	}
	videos := []*entity.Video{}
	if err := cur.All(ctx, &videos); err != nil {
		return nil, 0, fmt.Errorf("failed to decode videos: %w", err)
	}
	return videos, total, nil
}

func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("video ID %s does not exist", id)
	}
	return nil
}

func (r *MongoVideoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete video: %w", err)
	}
	return res.DeletedCount > 0, nil
}
