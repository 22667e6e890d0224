package log

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Event is a wide event: one unit of work (a migration run, a request)
// accumulated while it happens and written as a single log record.
type Event struct {
	mu sync.Mutex

	name      string
	timestamp time.Time
	level     slog.Level
	duration  time.Duration
	attrs     map[string]any
	counters  map[string]int
	steps     []stepRecord
	errors    []errorRecord
}

// NewEvent creates a new wide event.
func NewEvent(name string) *Event {
	return &Event{
		name:      name,
		timestamp: time.Now(),
		level:     slog.LevelInfo,
		attrs:     map[string]any{},
		counters:  map[string]int{},
	}
}

// SetAttr sets a single attribute.
func (e *Event) SetAttr(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.attrs[key] = value
}

// AddAttrs adds attributes to event data.
func (e *Event) AddAttrs(attrs map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	maps.Copy(e.attrs, attrs)
}

// Inc increments the named counter.
func (e *Event) Inc(counter string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.counters[counter]++
}

// Counter returns the current value of the named counter.
func (e *Event) Counter(counter string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.counters[counter]
}

// AddStep appends a step with optional key/value details and escalates the level if needed.
func (e *Event) AddStep(level slog.Level, name string, details ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if level > e.level {
		e.level = level
	}

	step := stepRecord{Timestamp: time.Now(), Level: level, Name: name}
	for i := 0; i+1 < len(details); i += 2 {
		key, ok := details[i].(string)
		if !ok {
			continue
		}
		if step.Details == nil {
			step.Details = map[string]any{}
		}
		step.Details[key] = details[i+1]
	}

	e.steps = append(e.steps, step)
}

// AddError appends an error and escalates event level to error.
func (e *Event) AddError(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = slog.LevelError
	e.errors = append(e.errors, errorRecord{Timestamp: time.Now(), Error: err.Error()})
}

// Finish stores current event duration.
func (e *Event) Finish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.duration = time.Since(e.timestamp)
}

// HasErrors returns true if the event has errors.
func (e *Event) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.errors) > 0
}

// Duration returns the event duration.
func (e *Event) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.duration
}

// Level returns the event level.
func (e *Event) Level() slog.Level {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.level
}

// Name returns the event name.
func (e *Event) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.name
}

// StepNames returns the names of recorded steps in order.
func (e *Event) StepNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.steps))
	for _, s := range e.steps {
		names = append(names, s.Name)
	}
	return names
}

// ToAttrs converts event to slog attributes.
// Custom attributes never override the built-in ones.
func (e *Event) ToAttrs() []slog.Attr {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := make([]map[string]any, 0, len(e.steps))
	for _, step := range e.steps {
		s := map[string]any{
			"timestamp": step.Timestamp,
			"level":     step.Level.String(),
			"name":      step.Name,
		}
		maps.Copy(s, step.Details)
		steps = append(steps, s)
	}

	eventErrors := make([]map[string]any, 0, len(e.errors))
	for _, eventError := range e.errors {
		eventErrors = append(eventErrors, map[string]any{
			"timestamp": eventError.Timestamp,
			"error":     eventError.Error,
		})
	}

	attrs := []slog.Attr{
		slog.String("name", e.name),
		slog.Time("timestamp", e.timestamp),
		slog.Duration("duration", e.duration),
		slog.Any("counters", maps.Clone(e.counters)),
		slog.Any("steps", steps),
		slog.Any("errors", eventErrors),
	}

	for _, key := range slices.Sorted(maps.Keys(e.attrs)) {
		if slices.Contains(builtinAttrKeys, key) {
			continue
		}
		attrs = append(attrs, slog.Any(key, e.attrs[key]))
	}

	return attrs
}

var builtinAttrKeys = []string{"name", "timestamp", "duration", "counters", "steps", "errors"} //nolint:gochecknoglobals

type stepRecord struct {
	Timestamp time.Time
	Level     slog.Level
	Name      string
	Details   map[string]any
}

type errorRecord struct {
	Timestamp time.Time
	Error     string
}
