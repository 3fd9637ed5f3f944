// Package renderer builds and supervises one external rendering subprocess
// per job. It owns argument construction (always a discrete argv, never a
// shell string), the render deadline with escalating process-group
// termination, bounded output capture, and the mapping from exit status to a
// terminal outcome.
package renderer
