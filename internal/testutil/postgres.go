// Package testutil provides the warehouse database for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DSNEnv points the integration tests at an existing database.
	DSNEnv = "FERN_TEST_DB_CONN"
	// ContainersEnv starts a disposable Postgres container instead.
	ContainersEnv = "FERN_TEST_CONTAINERS"

	postgresImage = "postgres:15-alpine"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// PostgresDSN returns the DSN of the test warehouse and skips the test when
// none is configured. One container is shared by every test in the process;
// Ryuk removes it when the process exits.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if dsn := os.Getenv(DSNEnv); dsn != "" {
		return dsn
	}
	if os.Getenv(ContainersEnv) == "" {
		t.Skipf("set %s or %s=1 to run warehouse integration tests", DSNEnv, ContainersEnv)
	}

	containerOnce.Do(func() {
		containerDSN, containerErr = startPostgres(context.Background())
	})
	if containerErr != nil {
		t.Fatalf("failed to start postgres container: %v", containerErr)
	}
	return containerDSN
}

func startPostgres(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fern",
			"POSTGRES_PASSWORD": "fern",
			"POSTGRES_DB":       "fern_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("postgres://fern:fern@%s:%s/fern_test?sslmode=disable", host, port.Port()), nil
}
