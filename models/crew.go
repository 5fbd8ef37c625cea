package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/utils"
)

const CrewStatusActive = "active"

// ErrCrewNotFound is returned when a named crew does not resolve. Scope
// resolution fails fast on it, before any ledger is touched. It wraps the
// shared not-found sentinel so callers can match either.
var ErrCrewNotFound = fmt.Errorf("crew not found: %w", utils.ErrorRecordNotFound)

// Crew is an operational field unit. Crew ids are operator-assigned
// (e.g. "c_K13_MOTO") and double as the partition key of the sub-ledgers.
type Crew struct {
	ID          string   `bson:"_id" json:"id"`
	Name        string   `bson:"name" json:"name"`
	Status      string   `bson:"status,omitempty" json:"status,omitempty"`
	Technicians []string `bson:"technicians,omitempty" json:"technicians,omitempty"`
}

func (c Crew) IsActive() bool {
	return c.Status == CrewStatusActive
}

// ListCrews returns the crew directory, optionally filtered to active crews.
// Results are cached in Redis (TTL via CACHE_LIFESPAN hours); the directory
// changes rarely and this path runs on every orchestration.
func (s *Store) ListCrews(ctx context.Context, activeOnly bool) ([]Crew, error) {
	const op = "models.ListCrews"

	cacheKey := "CrewList"
	if activeOnly {
		cacheKey = "CrewList:active"
	}
	var cached []Crew
	if ok, err := config.GetRedisObject(cacheKey, &cached); err == nil && ok {
		return cached, nil
	}

	filter := bson.M{}
	if activeOnly {
		filter["status"] = CrewStatusActive
	}
	cur, err := s.crews().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var crews []Crew
	if err := cur.All(ctx, &crews); err != nil {
		return nil, fmt.Errorf("%s decode: %w", op, err)
	}

	if err := config.SetRedisObject(cacheKey, crews, cacheLifespan()); err != nil {
		config.LogError(config.GetLogger(), "crew.go", "ListCrews", "caching crew list", cacheKey, err)
	}
	return crews, nil
}

func (s *Store) GetCrew(ctx context.Context, id string) (*Crew, error) {
	const op = "models.GetCrew"

	var crew Crew
	err := s.crews().FindOne(ctx, bson.M{"_id": id}).Decode(&crew)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCrewNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &crew, nil
}

func cacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}
