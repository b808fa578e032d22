package web

// views.go renders the HTML fragments HTMX clients swap into the dashboard
// shell. The wizard panel is a single component keyed by step.

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/a-h/templ"
)

// previewRowLimit caps the rows rendered in the preview table. The JSON
// snapshot always carries every row.
const previewRowLimit = 50

var stepTitles = map[core.WizardStep]string{
	core.StepSelectFile: "Select a CSV file",
	core.StepPreview:    "Preview",
	core.StepImporting:  "Importing",
	core.StepSuccess:    "Import complete",
	core.StepFailed:     "Import failed",
	core.StepClosed:     "Closed",
}

// ErrorAlert renders a dismissible error message with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert alert-error" role="alert">`)
		h.el("p", "alert-message", message)
		if action != "" {
			h.el("p", "alert-action", action)
		}
		h.el("span", "alert-code", code)
		h.raw(`</div>`)
		return h.err
	})
}

// WizardPanel renders the wizard for its current step.
func WizardPanel(snap core.WizardSnapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		base := "/api/wizards/" + templ.EscapeString(url.PathEscape(snap.ID))

		h.raw(`<section id="wizard" class="wizard" data-step="` + templ.EscapeString(string(snap.Step)) + `">`)
		h.el("h2", "wizard-title", stepTitles[snap.Step])
		h.raw(`<div id="wizard-errors"></div>`)

		if len(snap.Messages) > 0 {
			h.raw(`<ul class="wizard-messages">`)
			for _, m := range snap.Messages {
				h.el("li", "", m)
			}
			h.raw(`</ul>`)
		}

		switch snap.Step {
		case core.StepSelectFile:
			h.raw(`<form hx-post="` + base + `/file" hx-encoding="multipart/form-data" hx-target="#wizard" hx-swap="outerHTML">`)
			h.raw(`<input type="file" name="file" accept=".csv,text/csv">`)
			h.raw(`<button type="submit">Upload</button></form>`)
			if snap.FileName != "" {
				h.el("p", "wizard-file", snap.FileName)
			}
			h.button(base+"/next", "Next", !snap.CanAdvance)
			h.raw(`<a href="/api/template" download>Download template</a>`)

		case core.StepPreview:
			h.el("p", "wizard-file", fmt.Sprintf("%s: %d rows", snap.FileName, snap.RowCount))
			renderPreviewTable(h, snap)
			h.button(base+"/back", "Back", false)
			h.button(base+"/import", "Import", !snap.CanImport)

		case core.StepImporting:
			p := snap.Progress
			h.raw(fmt.Sprintf(`<progress max="100" value="%d"></progress>`, p.Percent()))
			h.el("p", "wizard-progress", fmt.Sprintf("%d of %d rows", p.Done, p.Total))
			// Poll until the import settles.
			h.raw(`<div hx-get="` + base + `" hx-trigger="every 1s" hx-target="#wizard" hx-swap="outerHTML"></div>`)

		case core.StepSuccess, core.StepFailed:
			if snap.Result != nil {
				h.el("p", "wizard-summary", fmt.Sprintf("%d imported, %d failed",
					len(snap.Result.Succeeded), len(snap.Result.Failed)))
				if len(snap.Result.Failed) > 0 {
					h.raw(`<ul class="wizard-failed">`)
					for _, f := range snap.Result.Failed {
						h.el("li", "", fmt.Sprintf("Row %d: %s", f.RowIndex, f.Reason))
					}
					h.raw(`</ul>`)
				}
			}
		}

		if snap.Step != core.StepClosed {
			h.raw(`<button hx-delete="` + base + `" hx-target="#wizard" hx-swap="delete">Close</button>`)
		}
		h.raw(`</section>`)
		return h.err
	})
}

func renderPreviewTable(h *htmlWriter, snap core.WizardSnapshot) {
	h.raw(`<table class="preview"><thead><tr><th>#</th>`)
	for _, col := range snap.Headers {
		h.el("th", "", col)
	}
	h.raw(`</tr></thead><tbody>`)

	for i, row := range snap.Rows {
		if i == previewRowLimit {
			break
		}
		rowIndex := i + 1
		errs := snap.Report.ErrorsForRow(rowIndex)

		if len(errs) > 0 {
			msgs := make([]string, len(errs))
			for j, e := range errs {
				msgs[j] = e.Message
			}
			h.raw(`<tr class="row-error" title="` + templ.EscapeString(strings.Join(msgs, "; ")) + `">`)
		} else {
			h.raw(`<tr>`)
		}
		h.el("td", "", fmt.Sprint(rowIndex))
		for _, col := range snap.Headers {
			h.el("td", "", row[col])
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table>`)

	if snap.RowCount > previewRowLimit {
		h.el("p", "preview-more", fmt.Sprintf("and %d more rows", snap.RowCount-previewRowLimit))
	}
}

// htmlWriter writes markup and remembers the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// el writes a single element with escaped text content.
func (h *htmlWriter) el(tag, class, text string) {
	if class != "" {
		h.raw("<" + tag + ` class="` + class + `">`)
	} else {
		h.raw("<" + tag + ">")
	}
	h.raw(templ.EscapeString(text))
	h.raw("</" + tag + ">")
}

func (h *htmlWriter) button(target, label string, disabled bool) {
	attrs := ` hx-post="` + target + `" hx-target="#wizard" hx-swap="outerHTML"`
	if disabled {
		attrs += " disabled"
	}
	h.raw("<button" + attrs + ">" + templ.EscapeString(label) + "</button>")
}
