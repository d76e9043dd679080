// Package config parses the properties map accepted by every adaptor's
// create(adaptor, location, credential, properties) constructor (spec
// §6). Unknown keys and malformed values are reported with the same
// taxonomy kinds the rest of xenon uses, rather than being silently
// ignored or panicking.
package config

import (
	"strconv"

	"xenon/xenonerr"
)

// Known property keys. Adaptors are free to recognize additional keys;
// these are the ones the core engines themselves consume.
const (
	// MultiQueueWorkers sets the worker-pool size of the "multi" queue.
	MultiQueueWorkers = "xenon.queue.multi.workerCount"
	// PollingDelayMillis sets the job executor's polling delay, in
	// milliseconds; must be in [100, 60000] per spec §4.1.
	PollingDelayMillis = "xenon.poll.delay"
	// SchedulerName names a scheduler-name property; no engine in this
	// module reads it, and generated submit scripts do not depend on it.
	SchedulerName = "xenon.scheduler.name"
	// DefaultRuntimeMinutes sets the wall-clock limit, in minutes, a job
	// submitted with maxRuntime == -1 ("adaptor default") actually runs
	// under; 0 means unlimited.
	DefaultRuntimeMinutes = "xenon.scheduler.defaultRuntimeMinutes"
)

// Properties wraps a map[string]string with typed, validating accessors.
type Properties struct {
	adaptorName string
	values      map[string]string
	known       map[string]struct{}
}

// New creates a Properties view over values, scoped to adaptorName for
// error messages. known lists every key the caller will query; any key
// present in values but absent from known is reported by Validate as
// UnknownProperty.
func New(adaptorName string, values map[string]string, known ...string) *Properties {
	k := make(map[string]struct{}, len(known))
	for _, key := range known {
		k[key] = struct{}{}
	}
	return &Properties{adaptorName: adaptorName, values: values, known: k}
}

// Validate reports an UnknownProperty error for the first key in values
// that was not declared via known in New.
func (p *Properties) Validate() error {
	for key := range p.values {
		if _, ok := p.known[key]; !ok {
			return xenonerr.New(p.adaptorName, xenonerr.UnknownProperty, "unknown property: "+key)
		}
	}
	return nil
}

// String returns the string value for key, or def if unset.
func (p *Properties) String(key, def string) string {
	if v, ok := p.values[key]; ok {
		return v
	}
	return def
}

// Int returns the integer value for key, or def if unset. A present but
// unparseable value is an InvalidProperty error.
func (p *Properties) Int(key string, def int) (int, error) {
	v, ok := p.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, xenonerr.Wrap(p.adaptorName, xenonerr.InvalidProperty, "property "+key+" is not an integer", err)
	}
	return n, nil
}

// IntRange is like Int, but additionally rejects values outside
// [min, max] as InvalidProperty.
func (p *Properties) IntRange(key string, def, min, max int) (int, error) {
	n, err := p.Int(key, def)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, xenonerr.New(p.adaptorName, xenonerr.InvalidProperty, "property "+key+" out of range")
	}
	return n, nil
}
