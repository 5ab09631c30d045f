// Package sharedlog provides a fluent builder for structured logging
// fields shared across the strategist core, on top of logrus.Fields.
package sharedlog

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Fields is logrus.Fields with chainable setters for the handful of
// dimensions every component logs against: component, operation, resource,
// duration and error.
type Fields logrus.Fields

// NewFields returns an empty, ready-to-chain Fields map.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

// Resource tags a resource type and, when non-empty, its name.
func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

// Error sets the error field when err is non-nil; a nil err leaves the map
// untouched so call sites can chain it unconditionally.
func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) RunID(runID string) Fields {
	f["run_id"] = runID
	return f
}

func (f Fields) ProjectID(projectID string) Fields {
	f["project_id"] = projectID
	return f
}

// Logrus converts Fields back into logrus.Fields for use with a *logrus.Entry.
func (f Fields) Logrus() logrus.Fields {
	return logrus.Fields(f)
}
