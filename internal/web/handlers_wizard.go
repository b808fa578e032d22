package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the allowance for form boundaries and part headers on
// top of the file size limit.
const multipartOverhead = 1 << 20

// wizardFromRequest resolves the {id} route parameter.
func (s *Server) wizardFromRequest(w http.ResponseWriter, r *http.Request) (*core.Wizard, *http.Request, bool) {
	wz, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return nil, r, false
	}
	return wz, r.WithContext(wizardContext(r.Context(), wz)), true
}

// respondWizard writes the wizard's snapshot: a panel fragment for HTMX,
// JSON otherwise.
func respondWizard(w http.ResponseWriter, r *http.Request, status int, wz *core.Wizard) {
	snap := wz.Snapshot()

	if !isHTMX(r) {
		writeJSON(w, status, snap)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := WizardPanel(snap).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render wizard panel", "error", err)
	}
}

// handleOpenWizard opens a wizard in the SelectFile step.
func (s *Server) handleOpenWizard(w http.ResponseWriter, r *http.Request) {
	var req openWizardRequest
	if r.ContentLength > 0 && !isHTMX(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			respondError(w, r, fmt.Errorf("decode open request: %w", err), http.StatusBadRequest)
			return
		}
	}

	wz := s.registry.Open(importContextFor(r, s.cfg.Import.ProjectID, req))
	r = r.WithContext(wizardContext(r.Context(), wz))
	logging.FromContext(r.Context()).Info("wizard opened")

	w.Header().Set("Location", "/api/wizards/"+wz.ID())
	respondWizard(w, r, http.StatusCreated, wz)
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}
	respondWizard(w, r, http.StatusOK, wz)
}

// handleSelectFile attaches the uploaded "file" form field to the wizard.
// A file that is not CSV or cannot be parsed is accepted and reported in the
// snapshot's messages.
func (s *Server) handleSelectFile(w http.ResponseWriter, r *http.Request) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		respondError(w, r, fmt.Errorf("%w: %d bytes", errFileTooLarge, header.Size), http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	fh := core.FileHandle{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}
	if err := wz.SelectFile(fh); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("file selected",
		"file", fh.Name,
		"size", fh.Size,
		"step", wz.CurrentStep(),
	)
	respondWizard(w, r, http.StatusOK, wz)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.applyStep(w, r, (*core.Wizard).Validate)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.applyStep(w, r, (*core.Wizard).Back)
}

// handleNext advances the wizard. From Preview it starts the import and
// goes through the import limiter like handleStartImport.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}

	if wz.CurrentStep() == core.StepPreview {
		s.startImport(w, r, wz, wz.NextImport)
		return
	}

	if err := wz.Next(); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondWizard(w, r, http.StatusOK, wz)
}

func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}
	s.startImport(w, r, wz, wz.StartImport)
}

// startImport takes an import slot, runs start and holds the slot until the
// wizard settles. The request returns 202 as soon as the import is running.
func (s *Server) startImport(w http.ResponseWriter, r *http.Request, wz *core.Wizard, start func(context.Context) error) {
	release, err := s.deps.Limiter.Acquire(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if err := start(r.Context()); err != nil {
		release()
		respondError(w, r, err, statusFor(err))
		return
	}

	go func() {
		defer release()
		_, _ = wz.Wait(context.Background())
	}()

	logging.FromContext(r.Context()).Info("import started", "rows", wz.Snapshot().RowCount)
	respondWizard(w, r, http.StatusAccepted, wz)
}

func (s *Server) applyStep(w http.ResponseWriter, r *http.Request, op func(*core.Wizard) error) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}
	if err := op(wz); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	respondWizard(w, r, http.StatusOK, wz)
}

// handleCloseWizard closes the wizard, cancelling a running import.
func (s *Server) handleCloseWizard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Remove(id); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("wizard closed", "session_id", id)

	if isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWizardProgress streams import progress via Server-Sent Events. The
// event id is the number of rows done, so a reconnecting client can pass
// lastEventId to skip what it already has. The stream ends with a complete
// event carrying the final snapshot.
func (s *Server) handleWizardProgress(w http.ResponseWriter, r *http.Request) {
	wz, r, ok := s.wizardFromRequest(w, r)
	if !ok {
		return
	}

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if lastEventIDStr == "" {
		lastEventIDStr = r.Header.Get("Last-Event-ID")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	updates, unsubscribe := wz.Subscribe()
	defer unsubscribe()

	setSSEHeaders(w)
	rc := http.NewResponseController(w)
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				data, _ := json.Marshal(wz.Snapshot())
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				_ = rc.Flush()
				return
			}
			if p.Done <= lastEventID && p.Step == core.StepImporting {
				continue
			}
			lastEventID = p.Done

			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", p.Done, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
