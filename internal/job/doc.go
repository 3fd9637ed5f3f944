// Package job defines the render job model: the immutable submission spec,
// the lifecycle state machine, and the structured failure taxonomy shared by
// the scheduler, registry, and API layers.
package job
