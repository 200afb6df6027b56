package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/corridor/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const queueConnectionTag = "corridor"

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["CORRIDOR_REDIS_ADDRESS"] != "" {
		address = env["CORRIDOR_REDIS_ADDRESS"]
	}

	if env["CORRIDOR_REDIS_PASSWORD"] != "" {
		password = env["CORRIDOR_REDIS_PASSWORD"]
	}

	if env["CORRIDOR_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["CORRIDOR_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	return Setup(redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	}))
}

// Setup installs an already constructed client and opens the queue connection on it
func Setup(client *redis.Client) error {
	statusCmd := client.Ping(context.Background())
	if err := statusCmd.Err(); err != nil {
		return err
	}

	queueConnection, err := rmq.OpenConnectionWithRedisClient(queueConnectionTag, client, nil)
	if err != nil {
		return err
	}

	Client = client
	QueueConnection = queueConnection

	return nil
}
