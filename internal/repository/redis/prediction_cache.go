package redis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/metrics"
	"riskstrat/pkg/errors"
)

// KeyPrefix namespaces cached predictions
const KeyPrefix = "prediction:"

// Compile-time check
var _ patient.PredictionCache = (*PredictionCache)(nil)

// PredictionCache memoizes predictions keyed by model version and feature vector.
// Entries never carry the patient identifier.
type PredictionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPredictionCache creates a cache with the given entry TTL
func NewPredictionCache(client *redis.Client, ttl time.Duration) *PredictionCache {
	return &PredictionCache{client: client, ttl: ttl}
}

// Key derives the cache key; vectors differing in any bit map to different keys
func Key(modelVersion string, v patient.FeatureVector) string {
	h := sha256.New()
	h.Write([]byte(modelVersion))
	var buf [8]byte
	for i, x := range v.Values {
		if i < len(v.Names) {
			h.Write([]byte(v.Names[i]))
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	return KeyPrefix + modelVersion + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns a cached prediction. A miss is (nil, false, nil).
func (c *PredictionCache) Get(ctx context.Context, modelVersion string, v patient.FeatureVector) (*patient.Prediction, bool, error) {
	data, err := c.client.Get(ctx, Key(modelVersion, v)).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheLookup(false, nil)
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordCacheLookup(false, err)
		return nil, false, errors.Wrap(err, "failed to read cached prediction")
	}

	var pred patient.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		metrics.RecordCacheLookup(false, err)
		return nil, false, errors.Wrap(err, "failed to decode cached prediction")
	}
	metrics.RecordCacheLookup(true, nil)
	return &pred, true, nil
}

// Set stores the model output of a prediction, stripped of patient identity
func (c *PredictionCache) Set(ctx context.Context, modelVersion string, v patient.FeatureVector, pred *patient.Prediction) error {
	if pred == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil prediction")
	}
	entry := *pred
	entry.PatientID = ""
	entry.ID = uuid.Nil
	entry.CreatedAt = time.Time{}

	data, err := json.Marshal(&entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode prediction")
	}
	if err := c.client.Set(ctx, Key(modelVersion, v), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to cache prediction")
	}
	return nil
}

// Invalidate removes every cached entry of a model version
func (c *PredictionCache) Invalidate(ctx context.Context, modelVersion string) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, KeyPrefix+modelVersion+":*", 500).Iterator()
	keys := make([]string, 0, 500)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, keys...).Result()
		removed += int(n)
		keys = keys[:0]
		return err
	}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == cap(keys) {
			if err := flush(); err != nil {
				return removed, errors.Wrap(err, "failed to invalidate cache")
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.Wrap(err, "failed to scan cache")
	}
	if err := flush(); err != nil {
		return removed, errors.Wrap(err, "failed to invalidate cache")
	}
	return removed, nil
}
