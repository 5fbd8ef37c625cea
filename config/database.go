package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const SearchLimit = 10

// ErrDBNotInitialized is returned when the Mongo connection has not been established.
var ErrDBNotInitialized = errors.New("database not initialized")

var (
	client *mongo.Client
	db     *mongo.Database
)

func GetDB() *mongo.Database {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
	// IMPORTANT (Cloud Run):
	// Do NOT block startup in init() waiting for DB.
	// Cloud Run requires the container to start listening on $PORT quickly.
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	uri := strings.TrimSpace(os.Getenv("MONGO_URI"))
	if uri == "" {
		host := envOrDefault("MONGO_HOST", "127.0.0.1")
		port := envOrDefault("MONGO_PORT", "27017")
		user := os.Getenv("MONGO_USER")
		password := os.Getenv("MONGO_PASSWORD")
		authDB := envOrDefault("MONGO_AUTH_DB", "admin")
		if user != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%s/?authSource=%s", user, password, host, port, authDB)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%s", host, port)
		}
	}
	dbName := envOrDefault("MONGO_DATABASE", "fieldops")

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(uint64(intFromEnv("MONGO_MAX_POOL_SIZE", 50))).
		SetMinPoolSize(uint64(intFromEnv("MONGO_MIN_POOL_SIZE", 5))).
		SetMaxConnIdleTime(time.Duration(intFromEnv("MONGO_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second)

	var attempt int
	for {
		attempt++
		c, err := mongo.Connect(opts)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = c.Ping(pingCtx, readpref.Primary())
			cancel()
			if err == nil {
				client = c
				db = c.Database(dbName)
				log.Printf("connected to database %q (attempt=%d)", dbName, attempt)
				return
			}
			_ = c.Disconnect(context.Background())
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// DisconnectDatabase closes the Mongo client (best-effort, for shutdown paths).
func DisconnectDatabase(ctx context.Context) {
	if client == nil {
		return
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("failed to disconnect database: %v", err)
	}
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
