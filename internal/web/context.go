package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// requestedByHeader names the caller when the dashboard shell forwards it.
const requestedByHeader = "X-Requested-By"

// openWizardRequest is the optional body of POST /api/wizards.
type openWizardRequest struct {
	ProjectID   string `json:"project_id"`
	RequestedBy string `json:"requested_by"`
}

// importContextFor builds the identity a new wizard imports under. The
// session id is left empty so the wizard assigns one.
func importContextFor(r *http.Request, defaultProject string, req openWizardRequest) core.ImportContext {
	ic := core.ImportContext{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		RequestedBy: strings.TrimSpace(req.RequestedBy),
	}
	if ic.ProjectID == "" {
		ic.ProjectID = defaultProject
	}
	if ic.RequestedBy == "" {
		ic.RequestedBy = strings.TrimSpace(r.Header.Get(requestedByHeader))
	}
	if ic.RequestedBy == "" {
		ic.RequestedBy = r.RemoteAddr // already resolved by TrustedRealIP
	}
	return ic
}

// wizardContext tags the request context with the wizard's identifiers so
// request logs and the wizard's own logs correlate.
func wizardContext(ctx context.Context, w *core.Wizard) context.Context {
	ic := w.ImportContext()
	return logging.ContextWithAttrs(ctx, "session_id", ic.SessionID, "project_id", ic.ProjectID)
}
