package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"bitbucket.org/redfibra/fieldops_backend/utils"
)

var (
	rdb *redis.Client
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

// ConnectRedisWithRetry connects and sets the global Redis client.
// Redis is optional: when REDIS_ADDRESS is unset the cache helpers become no-ops.
func ConnectRedisWithRetry() {
	address := os.Getenv("REDIS_ADDRESS")
	if address == "" {
		log.Println("REDIS_ADDRESS not set; running without cache")
		return
	}

	var attempt int
	for {
		attempt++
		c := redis.NewClient(&redis.Options{
			Addr:     address,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := c.Ping(ctx).Err(); err == nil {
			rdb = c
			log.Printf("connected to redis (attempt=%d)", attempt)
			return
		} else {
			_ = c.Close()
			sleep := time.Second * time.Duration(1<<min(attempt, 5))
			if sleep > 30*time.Second {
				sleep = 30 * time.Second
			}
			log.Printf("failed to connect redis (attempt=%d): %v; retrying in %s", attempt, err, sleep)
			time.Sleep(sleep)
		}
	}
}

// GetRedisObject unmarshals the cached value into dest.
// Returns false without error when the key does not exist or Redis is disabled.
func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := utils.UnmarshalFromJSON([]byte(val), &dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	payload, err := utils.MarshalToJSON(obj)
	if err != nil {
		return err
	}
	if err = rdb.Set(ctx, key, payload, exp).Err(); err != nil {
		return err
	}
	return nil
}
