package core

import (
	"context"

	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// ImportContext identifies who an import runs for. It is passed explicitly to
// Gateway.ImportRows and carried on the context so stores can stamp records.
type ImportContext struct {
	ProjectID   string `json:"project_id"`
	SessionID   string `json:"session_id"`
	RequestedBy string `json:"requested_by,omitempty"`
}

type contextKey string

const ctxKeyImport contextKey = "import_context"

// WithImportContext returns a context carrying ic. Loggers obtained through
// logging.FromContext include its identifiers.
func WithImportContext(ctx context.Context, ic ImportContext) context.Context {
	ctx = context.WithValue(ctx, ctxKeyImport, ic)
	return logging.ContextWithAttrs(ctx,
		"session_id", ic.SessionID,
		"project_id", ic.ProjectID,
	)
}

// ImportContextFrom extracts the ImportContext stored by WithImportContext.
func ImportContextFrom(ctx context.Context) (ImportContext, bool) {
	ic, ok := ctx.Value(ctxKeyImport).(ImportContext)
	return ic, ok
}
