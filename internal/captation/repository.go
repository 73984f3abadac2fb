package captation

import (
	"context"
	"errors"
	"regexp"
	"time"

	"workflow-backend/internal/db"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateSite = errors.New("site already exists")
)

// ReferenceRepository stores the taxonomy rows shared by captation sites.
type ReferenceRepository interface {
	FindStateByAbbreviation(ctx context.Context, abbreviation string) (State, error)
	FindStateByID(ctx context.Context, id string) (State, error)
	ListStates(ctx context.Context) ([]State, error)
	FindCity(ctx context.Context, stateID, nameKey string) (City, error)
	GetOrCreateCity(ctx context.Context, city City) (City, error)
	ListCities(ctx context.Context, stateID string) ([]City, error)
	FindCategoryByID(ctx context.Context, id string) (Category, error)
	GetOrCreateCategory(ctx context.Context, category Category) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type SiteRepository interface {
	ExistsByName(ctx context.Context, cityID, nameKey string) (bool, error)
	ExistsByPhoneSuffix(ctx context.Context, cityID, suffix string) (bool, error)
	Insert(ctx context.Context, site Site) error
	List(ctx context.Context, filter SiteFilter, limit, offset int64) ([]Site, error)
	Count(ctx context.Context, filter SiteFilter) (int64, error)
	GetByID(ctx context.Context, id string) (Site, error)
	Update(ctx context.Context, id string, update SiteUpdate) (Site, error)
}

type MongoRepository struct {
	states     *mongo.Collection
	cities     *mongo.Collection
	categories *mongo.Collection
	sites      *mongo.Collection
}

func NewRepository(cols *db.Collections) *MongoRepository {
	return &MongoRepository{
		states:     cols.States,
		cities:     cols.Cities,
		categories: cols.Categories,
		sites:      cols.CaptationSites,
	}
}

func (r *MongoRepository) FindStateByAbbreviation(ctx context.Context, abbreviation string) (State, error) {
	return findOne[State](ctx, r.states, bson.M{"abbreviation": abbreviation})
}

func (r *MongoRepository) FindStateByID(ctx context.Context, id string) (State, error) {
	return findOne[State](ctx, r.states, bson.M{"_id": id})
}

// EnsureState inserts a state keyed by its abbreviation if it is missing.
func (r *MongoRepository) EnsureState(ctx context.Context, abbreviation, name string) (State, error) {
	filter := bson.M{"abbreviation": abbreviation}
	insert := bson.M{"_id": newID(), "name": name}
	return upsertOne[State](ctx, r.states, filter, insert)
}

func (r *MongoRepository) ListStates(ctx context.Context) ([]State, error) {
	opts := options.Find().SetSort(bson.D{{Key: "abbreviation", Value: 1}})
	return findAll[State](ctx, r.states, bson.M{}, opts)
}

func (r *MongoRepository) FindCity(ctx context.Context, stateID, nameKey string) (City, error) {
	return findOne[City](ctx, r.cities, bson.M{"state_id": stateID, "name_key": nameKey})
}

func (r *MongoRepository) GetOrCreateCity(ctx context.Context, city City) (City, error) {
	filter := bson.M{"state_id": city.StateID, "name_key": city.NameKey}
	insert := bson.M{
		"_id":        primitive.NewObjectID().Hex(),
		"name":       city.Name,
		"population": city.Population,
		"created_at": city.CreatedAt,
	}
	return upsertOne[City](ctx, r.cities, filter, insert)
}

func (r *MongoRepository) ListCities(ctx context.Context, stateID string) ([]City, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}})
	return findAll[City](ctx, r.cities, bson.M{"state_id": stateID}, opts)
}

func (r *MongoRepository) FindCategoryByID(ctx context.Context, id string) (Category, error) {
	return findOne[Category](ctx, r.categories, bson.M{"_id": id})
}

func (r *MongoRepository) GetOrCreateCategory(ctx context.Context, category Category) (Category, error) {
	filter := bson.M{"name_key": category.NameKey}
	insert := bson.M{
		"_id":         primitive.NewObjectID().Hex(),
		"name":        category.Name,
		"description": category.Description,
		"color":       category.Color,
		"created_at":  category.CreatedAt,
	}
	return upsertOne[Category](ctx, r.categories, filter, insert)
}

func (r *MongoRepository) ListCategories(ctx context.Context) ([]Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}})
	return findAll[Category](ctx, r.categories, bson.M{}, opts)
}

func (r *MongoRepository) ExistsByName(ctx context.Context, cityID, nameKey string) (bool, error) {
	return r.exists(ctx, bson.M{"city_id": cityID, "name_key": nameKey})
}

func (r *MongoRepository) ExistsByPhoneSuffix(ctx context.Context, cityID, suffix string) (bool, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(suffix)}
	return r.exists(ctx, bson.M{"city_id": cityID, "phone": pattern})
}

func (r *MongoRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := r.sites.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoRepository) Insert(ctx context.Context, site Site) error {
	_, err := r.sites.InsertOne(ctx, site)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateSite
	}
	return err
}

func (r *MongoRepository) List(ctx context.Context, filter SiteFilter, limit, offset int64) ([]Site, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)
	return findAll[Site](ctx, r.sites, r.filterToBSON(filter), opts)
}

func (r *MongoRepository) Count(ctx context.Context, filter SiteFilter) (int64, error) {
	return r.sites.CountDocuments(ctx, r.filterToBSON(filter))
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (Site, error) {
	return findOne[Site](ctx, r.sites, bson.M{"_id": id})
}

func (r *MongoRepository) Update(ctx context.Context, id string, update SiteUpdate) (Site, error) {
	set := bson.M{"updated_at": update.UpdatedAt}
	if update.ProposalStatus != nil {
		set["proposal_status"] = *update.ProposalStatus
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.WebsiteURL != nil {
		set["website_url"] = *update.WebsiteURL
	}
	if update.ContactLink != nil {
		set["contact_link"] = *update.ContactLink
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
	}
	if update.CategoryID != nil {
		set["category_id"] = *update.CategoryID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Site
	if err := r.sites.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Site{}, ErrNotFound
		}
		return Site{}, err
	}
	return updated, nil
}

func (r *MongoRepository) filterToBSON(filter SiteFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["proposal_status"] = filter.Status
	}
	if filter.CityID != "" {
		query["city_id"] = filter.CityID
	}
	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	if filter.Search != "" {
		query["name_key"] = primitive.Regex{Pattern: regexp.QuoteMeta(NameKey(filter.Search))}
	}
	return query
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.M) (T, error) {
	var out T
	if err := col.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, ErrNotFound
		}
		return out, err
	}
	return out, nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]T, 0)
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// upsertOne inserts the document matching filter if it does not exist yet and
// returns the stored row. Two concurrent upserts on the same unique key can
// both miss; the loser gets a duplicate key error and reads the winner's row.
func upsertOne[T any](ctx context.Context, col *mongo.Collection, filter, insert bson.M) (T, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var out T
	err := col.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": insert}, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		return findOne[T](ctx, col, filter)
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func nowIn(loc *time.Location) time.Time {
	if loc == nil {
		return time.Now()
	}
	return time.Now().In(loc)
}
