// Package logging provides a small structured-fields builder on top of
// logrus.Fields so call sites compose log context instead of formatting it.
package logging

import "time"

// Fields is a logrus.Fields-compatible map with chainable helpers for the
// standard dimensions used across the ingest pipeline.
type Fields map[string]interface{}

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

func (f Fields) Namespace(namespace string) Fields {
	f["namespace"] = namespace
	return f
}

func (f Fields) Err(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}
