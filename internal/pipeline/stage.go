// Package pipeline turns score files into their derived artifacts:
// measure maps, annotation tables, melody scores, lightweight summaries,
// and part-relationship summaries. A Runner drains pending corpus items
// through the stage sequence with a bounded worker pool.
package pipeline

import (
	"context"

	"hauptstimme/internal/corpus"
)

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Handler describes the contract the runner needs from each stage.
type Handler interface {
	// Prepare validates inputs and updates item progress before Execute.
	Prepare(context.Context, *corpus.Item) error
	// Execute performs the stage work and records artifact paths on the item.
	Execute(context.Context, *corpus.Item) error
	// HealthCheck reports whether the stage can run at all.
	HealthCheck(context.Context) Health
}

// stageBinding pairs a handler with the store status it runs under.
type stageBinding struct {
	name    string
	status  corpus.Status
	handler Handler
}
