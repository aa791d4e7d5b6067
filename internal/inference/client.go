// Package inference is the boundary to the external text-generation
// capability. The capability is opaque: a prompt goes in, a candidate
// payload or a typed error comes out. Nothing here inspects workout
// semantics.
package inference

import "context"

// Request carries the fixed system contract plus the per-call instruction.
type Request struct {
	System      string
	Instruction string
}

// Response holds the raw candidate payload text. The caller owns decoding
// and validation; the payload is untrusted by definition.
type Response struct {
	Text string
}

// Client invokes the generation capability exactly once per call. Errors are
// classified via IsTransient; anything not transient is fatal to the caller.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}
