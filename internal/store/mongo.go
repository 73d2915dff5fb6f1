package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/project-tracker/internal/models"
)

// MongoStore handles user and project CRUD in MongoDB. Ids are UUID strings
// so they validate the same way as with the Postgres driver.
type MongoStore struct {
	users    *mongo.Collection
	projects *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{users: db.Collection("users"), projects: db.Collection("projects")}
}

// Migrate creates the indexes the queries rely on, including the unique
// email index that backs duplicate detection.
func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo users index: %w", err)
	}
	_, err = s.projects.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo projects index: %w", err)
	}
	return nil
}

// BSON datetimes have millisecond precision.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	created := *u
	created.ID = uuid.NewString()
	created.CreatedAt = mongoNow()
	created.UpdatedAt = created.CreatedAt

	if _, err := s.users.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrDuplicate
		}
		return nil, fmt.Errorf("mongo insert user: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, fmt.Errorf("mongo find user: %w", mongoError(err))
	}
	return &u, nil
}

// DeleteUser removes a user and their projects. Used by test cleanup; it is
// not part of auth.UserStore and nothing in the HTTP surface calls it.
func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	if _, err := s.projects.DeleteMany(ctx, bson.M{"owner_id": id}); err != nil {
		return fmt.Errorf("mongo delete user projects: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": p.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("mongo check owner: %w", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}

	created := *p
	created.ID = uuid.NewString()
	created.CreatedAt = mongoNow()
	created.UpdatedAt = created.CreatedAt

	if _, err := s.projects.InsertOne(ctx, created); err != nil {
		return nil, fmt.Errorf("mongo insert project: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) FindProjectByID(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	if err := s.projects.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, fmt.Errorf("mongo find project: %w", mongoError(err))
	}
	return &p, nil
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

func (s *MongoStore) ListProjectsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Project, int, error) {
	filter := bson.M{"owner_id": ownerID}
	total, err := s.projects.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count projects: %w", err)
	}

	opts := options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit))
	cur, err := s.projects.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo list projects: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Project{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("mongo decode projects: %w", err)
	}
	return out, int(total), nil
}

func (s *MongoStore) ListAllProjectsWithOwner(ctx context.Context, limit, offset int) ([]models.ProjectWithOwner, int, error) {
	total, err := s.projects.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count projects: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: newestFirst}},
		{{Key: "$skip", Value: int64(offset)}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: s.users.Name()},
			{Key: "localField", Value: "owner_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$unwind", Value: "$owner"}},
		{{Key: "$project", Value: bson.D{
			{Key: "owner.password_hash", Value: 0},
			{Key: "owner.role", Value: 0},
		}}},
	}
	cur, err := s.projects.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo aggregate projects: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.ProjectWithOwner{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("mongo decode projects: %w", err)
	}
	return out, int(total), nil
}

func (s *MongoStore) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	if patch.Empty() {
		return s.FindProjectByID(ctx, id)
	}

	set := bson.M{"updated_at": mongoNow()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			set["description"] = nil
		} else {
			set["description"] = *patch.Description
		}
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}

	var p models.Project
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := s.projects.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, fmt.Errorf("mongo update project: %w", mongoError(err))
	}
	return &p, nil
}

func (s *MongoStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.projects.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo delete project: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func mongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}
