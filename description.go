package flowbus

import "fmt"

// Description is shared among all clones of a tracer and recorded in the
// registry's catalog; it never changes after a flow is created.
type Description struct {
	Path       Path   `json:"path"`
	Info       string `json:"info"`
	StreamType string `json:"stream_type"`
}

// DefaultInfo reproduces the Rust original's human-readable info string
// ("path - stream_type") used whenever a flow constructor doesn't set one
// explicitly (see rill/src/providers/counter.rs).
func DefaultInfo(path Path, streamType string) string {
	return fmt.Sprintf("%s - %s", path.String(), streamType)
}
