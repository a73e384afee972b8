package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPaymentLock_RealRedis runs the lock against a real Redis server in a
// container. Skipped in short mode.
func TestPaymentLock_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	r := NewRedis(client)
	identifier := "integration-order-1"

	locked, err := r.LockPayment(identifier)
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = r.LockPayment(identifier)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, r.UnlockPayment(identifier))

	locked, err = r.LockPayment(identifier)
	require.NoError(t, err)
	assert.True(t, locked)
}
