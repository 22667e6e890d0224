// Package application wires databases, startup tasks and services into one process lifecycle.
package application

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/log"
)

// ErrDatabaseMigrationFailed is an error type that represents a failed database migration.
type ErrDatabaseMigrationFailed struct {
	database string
	err      error
}

// Error returns the formatted error message for ErrDatabaseMigrationFailed.
func (e *ErrDatabaseMigrationFailed) Error() string {
	return fmt.Sprintf("failed to migrate database %q: %v", e.database, e.err)
}

// Unwrap returns the underlying error for ErrDatabaseMigrationFailed.
func (e *ErrDatabaseMigrationFailed) Unwrap() error {
	return e.err
}

// Database is a registered database the application can migrate and health check.
type Database interface {
	Migrate(ctx context.Context, fsys fs.FS) (*database.Report, error)
	Healthcheck(ctx context.Context) any
}

// Application manages startup tasks and services for the application lifecycle.
type Application struct {
	mu             sync.Mutex
	startupTasks   []startupTask
	services       map[string]Runner
	healthcheckers map[string]Healthchecker
	databases      map[string]Database
	health         *Health
}

// New creates and returns a new Application instance.
func New() *Application {
	return &Application{
		services:       make(map[string]Runner),
		healthcheckers: make(map[string]Healthchecker),
		databases:      make(map[string]Database),
		health:         NewHealth(),
	}
}

// Health returns the current health status of the application.
func (a *Application) Health(ctx context.Context) *Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	for hcName, hc := range a.healthcheckers {
		a.health.SetServiceData(hcName, hc.Healthcheck(ctx))
	}
	for dbName, db := range a.databases {
		a.health.SetDatabaseData(dbName, db.Healthcheck(ctx))
	}
	return a.health
}

// OnStart registers a new startup task with the given runner and configuration.
func (a *Application) OnStart(task Runner, config StartupTaskConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.startupTasks = append(a.startupTasks, startupTask{task, config})
}

// OnStartFunc registers a function as a startup task.
func (a *Application) OnStartFunc(task RunnerFunc, config StartupTaskConfig) {
	a.OnStart(task, config)
}

// RegisterDatabase adds a database to the application.
func (a *Application) RegisterDatabase(dbName string, db Database) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.databases[dbName] = db
}

// RegisterService adds a named service to the application.
func (a *Application) RegisterService(serviceName string, service Runner) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.services[serviceName] = service
	a.health.AddService(serviceName)

	healthcheckerService, ok := service.(Healthchecker)
	if ok {
		a.healthcheckers[serviceName] = healthcheckerService
	}
}

// Migrate applies the scripts in fsys to every registered database in name order.
// It stops at the first database that fails.
func (a *Application) Migrate(ctx context.Context, fsys fs.FS) error {
	a.mu.Lock()
	names := slices.Sorted(maps.Keys(a.databases))
	a.mu.Unlock()

	if len(names) == 0 {
		log.WarnContext(ctx, "no databases registered")
		return nil
	}

	for _, dbName := range names {
		log.InfoContext(ctx, "migrating database", "database", dbName)

		report, err := a.databases[dbName].Migrate(ctx, fsys)
		if err != nil {
			log.ErrorContext(ctx, "error in database migration", "error", err, "database", dbName)
			return &ErrDatabaseMigrationFailed{database: dbName, err: err}
		}

		log.InfoContext(ctx, "database migrated", "database", dbName,
			"applied", report.Count(database.StatusApplied),
			"reapplied", report.Count(database.StatusReapplied),
			"skipped", report.Count(database.StatusSkipped),
		)
	}

	return nil
}

// Serve runs the startup tasks in registration order, then every service until ctx is cancelled
// or the process receives an interrupt.
func (a *Application) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a.mu.Lock()
	tasks := slices.Clone(a.startupTasks)
	services := maps.Clone(a.services)
	a.mu.Unlock()

	log.InfoContext(ctx, "starting application", "startupTasks", len(tasks))

	for i, task := range tasks {
		log.InfoContext(ctx, "running task", "task", task.config.Name, "index", i)

		taskCtx := context.WithValue(ctx, log.StartupTaskKey, task.config.Name)

		err := task.runner.Run(taskCtx)
		if err != nil {
			log.ErrorContext(ctx, "error in startup task", "error", err, "task", task.config.Name)

			if task.config.AbortOnError {
				return &ErrStartupTaskFailed{task: task.config.Name, err: err}
			}
		}
	}

	var wg sync.WaitGroup

	for serviceName, service := range services {
		wg.Add(1)

		serviceCtx := context.WithValue(ctx, log.ServiceNameKey, serviceName)

		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.health.FailService(serviceName, fmt.Errorf("panic: %v", r))
					log.ErrorContext(serviceCtx, "service panicked", "panic", r)
				}
			}()

			log.InfoContext(serviceCtx, "starting service")
			a.health.StartService(serviceName)

			err := service.Run(serviceCtx)
			if err != nil && ctx.Err() == nil {
				a.health.FailService(serviceName, err)
				log.ErrorContext(serviceCtx, "error in service", "error", err)
				return
			}
			a.health.StopService(serviceName)
		}()
	}

	a.health.StartApplication()

	wg.Wait()

	log.InfoContext(ctx, "application stopped")

	return nil
}
