//go:build integration

// Package containers starts the shared backing services for integration
// tests. Each container is started once per test binary and reused by every
// suite; Ryuk removes them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers.
type Manager struct {
	mu        sync.Mutex
	postgres  *PostgresContainer
	redis     *RedisContainer
	redpanda  *RedpandaContainer
	mosquitto *MosquittoContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns the shared PostGIS container with the schema applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetRedis returns the shared Redis container.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetRedpanda returns the shared Kafka-compatible broker.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}

// GetMosquitto returns the shared MQTT broker.
func (m *Manager) GetMosquitto(t *testing.T) *MosquittoContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mosquitto == nil {
		m.mosquitto = NewMosquittoContainer(t)
	}
	return m.mosquitto
}
