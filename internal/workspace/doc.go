// Package workspace owns per-job scratch directories: isolated allocation,
// exactly-once release, a byte quota across active workspaces, and reclamation
// of directories left behind by previous runs of the service.
package workspace
