// Package store is the durable persistence layer: two independent named
// collections (wishlist and saved projects) kept as whole JSON arrays under
// fixed Redis keys. Storing whole collections keeps every mutation
// read-modify-write atomic against the durable medium, so no update can be
// lost even under an interleaving host.
//
// Hydration is defensive: a missing key is a first run, and malformed or
// schema-invalid stored data degrades to an empty collection, logged and
// never fatal.
package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
)

const (
	wishlistKey = "casai:wishlist"
	projectsKey = "casai:projects"
)

// Stored arrays are schema-checked before acceptance so a corrupted write
// cannot crash re-hydration.
const (
	wishlistSchemaJSON = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["name", "productUrl"],
			"properties": {
				"name":       {"type": "string"},
				"price":      {"type": "string"},
				"imageRef":   {"type": "string"},
				"productUrl": {"type": "string"}
			}
		}
	}`
	projectsSchemaJSON = `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["id", "date"],
			"properties": {
				"id":     {"type": "string"},
				"image":  {"type": "string"},
				"date":   {"type": "string"},
				"vision": {"type": "string"}
			}
		}
	}`
)

// Store exposes the two collections. Both share one Redis connection.
type Store struct {
	Wishlist *Wishlist
	Projects *Projects
}

func New(rdb *redis.Client, log logger.Logger) (*Store, error) {
	wishlistSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(wishlistSchemaJSON))
	if err != nil {
		return nil, err
	}
	projectsSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(projectsSchemaJSON))
	if err != nil {
		return nil, err
	}

	return &Store{
		Wishlist: &Wishlist{
			rdb:    rdb,
			schema: wishlistSchema,
			logger: log.With(map[string]interface{}{"collection": "wishlist"}),
		},
		Projects: &Projects{
			rdb:    rdb,
			schema: projectsSchema,
			logger: log.With(map[string]interface{}{"collection": "projects"}),
		},
	}, nil
}

// hydrate parses and schema-checks one stored collection into out (a pointer
// to a slice). Corruption resets to empty and reports handled=false via the
// returned error only for transport problems; data problems never error.
func hydrate(raw string, schema *gojsonschema.Schema, collection string, log logger.Logger, out interface{}) {
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		corrupt := errors.NewPersistenceCorruptError(collection, err)
		log.Warn(corrupt.Message, map[string]interface{}{"details": corrupt.Details})
		return
	}
	if !result.Valid() {
		corrupt := errors.NewPersistenceCorruptError(collection, schemaErrors(result))
		log.Warn(corrupt.Message, map[string]interface{}{"details": corrupt.Details})
		return
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		corrupt := errors.NewPersistenceCorruptError(collection, err)
		log.Warn(corrupt.Message, map[string]interface{}{"details": corrupt.Details})
	}
}

type schemaErrorList struct {
	result *gojsonschema.Result
}

func (s schemaErrorList) Error() string {
	msg := "schema violations:"
	for _, desc := range s.result.Errors() {
		msg += " " + desc.String() + ";"
	}
	return msg
}

func schemaErrors(result *gojsonschema.Result) error {
	return schemaErrorList{result: result}
}

// loadRaw fetches a stored collection, distinguishing first-run absence from
// transport failure.
func loadRaw(ctx context.Context, rdb *redis.Client, key, collection string) (string, bool, error) {
	raw, err := rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewPersistenceFailedError(collection, err)
	}
	return raw, true, nil
}
