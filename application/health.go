package application

import (
	"encoding/json"
	"sync"
	"time"
)

// ServiceStatus represents the lifecycle state of a service.
type ServiceStatus string

const (
	// ServiceStatusNotStarted indicates service has not started yet.
	ServiceStatusNotStarted ServiceStatus = "NOT_STARTED"
	// ServiceStatusStarted indicates service is currently running.
	ServiceStatusStarted ServiceStatus = "STARTED"
	// ServiceStatusStopped indicates service returned after shutdown.
	ServiceStatusStopped ServiceStatus = "STOPPED"
	// ServiceStatusError indicates service finished with an error.
	ServiceStatusError ServiceStatus = "ERROR"
)

// ServiceHealth contains health information for a single service.
type ServiceHealth struct {
	Status    ServiceStatus `json:"status"`
	StartedAt *time.Time    `json:"startedAt"`
	StoppedAt *time.Time    `json:"stoppedAt,omitempty"`
	Error     string        `json:"error,omitempty"`
	Data      any           `json:"data,omitempty"`
}

// Health contains overall application health, service states and database checks.
type Health struct {
	mu        sync.RWMutex
	StartedAt time.Time                 `json:"startedAt"`
	Services  map[string]*ServiceHealth `json:"services"`
	Databases map[string]any            `json:"databases,omitempty"`
}

// NewHealth creates a Health with initialized storage.
func NewHealth() *Health {
	return &Health{Services: make(map[string]*ServiceHealth), Databases: make(map[string]any)}
}

// AddService registers serviceName as not started, replacing any previous state.
func (h *Health) AddService(serviceName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Services[serviceName] = &ServiceHealth{Status: ServiceStatusNotStarted}
}

// StartService marks the given service as started and stores start time.
func (h *Health) StartService(serviceName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if service, ok := h.Services[serviceName]; ok {
		service.Status = ServiceStatusStarted

		st := time.Now()
		service.StartedAt = &st
	}
}

// StopService marks the given service as stopped without error.
func (h *Health) StopService(serviceName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if service, ok := h.Services[serviceName]; ok {
		service.Status = ServiceStatusStopped

		st := time.Now()
		service.StoppedAt = &st
	}
}

// FailService marks the given service as failed and stores the error.
func (h *Health) FailService(serviceName string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if service, ok := h.Services[serviceName]; ok {
		service.Status = ServiceStatusError

		st := time.Now()
		service.StoppedAt = &st

		service.Error = err.Error()
	}
}

// SetServiceData stores additional health payload for the given service.
func (h *Health) SetServiceData(serviceName string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if service, ok := h.Services[serviceName]; ok {
		service.Data = data
	}
}

// SetDatabaseData stores the healthcheck result of the named database.
func (h *Health) SetDatabaseData(dbName string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Databases[dbName] = data
}

// StartApplication marks application start time.
func (h *Health) StartApplication() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.StartedAt = time.Now()
}

// Healthy reports whether no service has failed.
func (h *Health) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, service := range h.Services {
		if service.Status == ServiceStatusError {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a consistent snapshot of h.
func (h *Health) MarshalJSON() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	type health struct {
		StartedAt time.Time                 `json:"startedAt"`
		Services  map[string]*ServiceHealth `json:"services"`
		Databases map[string]any            `json:"databases,omitempty"`
	}
	return json.Marshal(health{StartedAt: h.StartedAt, Services: h.Services, Databases: h.Databases})
}

func (h *Health) String() string {
	b, _ := json.Marshal(h)
	return string(b)
}
