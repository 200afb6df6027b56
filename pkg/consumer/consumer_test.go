package consumer

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/redis_client"
)

type recordingConsumer struct {
	mutex    sync.Mutex
	payloads []string
}

func (c *recordingConsumer) Consume(batch rmq.Deliveries) {
	c.mutex.Lock()
	c.payloads = append(c.payloads, batch.Payloads()...)
	c.mutex.Unlock()

	batch.Ack()
}

func (c *recordingConsumer) count() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.payloads)
}

func TestRedisConsumer(t *testing.T) {
	server := miniredis.RunT(t)
	require.NoError(t, redis_client.Setup(redis.NewClient(&redis.Options{Addr: server.Addr()})))

	recorder := &recordingConsumer{}
	redisConsumer := RedisConsumer{
		QueueName:       "test-queue",
		NumberConsumers: 2,
		BatchSize:       5,
		Timeout:         50 * time.Millisecond,
		Consumer:        recorder,
	}
	require.NoError(t, redisConsumer.Setup())
	defer func() { <-redis_client.QueueConnection.StopAllConsuming() }()

	queue, err := redis_client.QueueConnection.OpenQueue("test-queue")
	require.NoError(t, err)
	require.NoError(t, queue.Publish("one", "two", "three"))

	require.Eventually(t, func() bool {
		return recorder.count() == 3
	}, 5*time.Second, 20*time.Millisecond)

	recorder.mutex.Lock()
	assert.ElementsMatch(t, []string{"one", "two", "three"}, recorder.payloads)
	recorder.mutex.Unlock()
}

func TestHealthHandler(t *testing.T) {
	server := miniredis.RunT(t)
	require.NoError(t, redis_client.Setup(redis.NewClient(&redis.Options{Addr: server.Addr()})))

	recorder := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())

	server.Close()

	recorder = httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestStatsHandler(t *testing.T) {
	server := miniredis.RunT(t)
	require.NoError(t, redis_client.Setup(redis.NewClient(&redis.Options{Addr: server.Addr()})))

	queue, err := redis_client.QueueConnection.OpenQueue("stats-queue")
	require.NoError(t, err)
	require.NoError(t, queue.Publish("pending"))

	recorder := httptest.NewRecorder()
	NewStatsHandler(redis_client.QueueConnection).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/stats-queue/stats", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "stats-queue")
}
