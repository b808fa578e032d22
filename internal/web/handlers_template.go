package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/bulkimport/internal/core"
)

// handleDownloadTemplate serves the import template: the header row and no
// data. A successful download is announced to the dashboard.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	data := core.TemplateCSV()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.TemplateFileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	if _, err := w.Write(data); err != nil {
		return
	}
	s.emitter.TemplateDownloaded(r.Context())
}
