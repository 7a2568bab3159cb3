//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MosquittoContainer is an anonymous MQTT broker.
type MosquittoContainer struct {
	Container testcontainers.Container
	BrokerURL string
}

func NewMosquittoContainer(t *testing.T) *MosquittoContainer {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start mosquitto container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mosquitto host: %v", err)
	}
	port, err := container.MappedPort(ctx, "1883")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get mosquitto port: %v", err)
	}

	return &MosquittoContainer{
		Container: container,
		BrokerURL: fmt.Sprintf("tcp://%s:%s", host, port.Port()),
	}
}
