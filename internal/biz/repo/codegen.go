package repo

import "context"

// CodegenKind selects the artifact a generation request is for.
type CodegenKind string

const (
	CodegenAction  CodegenKind = "action"
	CodegenTrigger CodegenKind = "trigger"
)

// CodegenRepo is the opaque code-generation collaborator. Generate returns
// the generated source text, or an empty string when the provider is
// unavailable; callers fall back to a deterministic template on empty output
// or error.
type CodegenRepo interface {
	Generate(ctx context.Context, kind CodegenKind, payload any) (string, error)
}
