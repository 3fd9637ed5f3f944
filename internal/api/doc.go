// Package api exposes the render engine over HTTP: submission, status
// polling, artifact delivery, and cancellation. It owns the JSON DTOs and the
// mapping from the engine's error taxonomy onto stable response categories.
package api
