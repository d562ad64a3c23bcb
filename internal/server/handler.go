package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resumeflow/internal/builder"
	"resumeflow/internal/errors"
	"resumeflow/internal/formatters"
	"resumeflow/internal/session"
	"resumeflow/internal/types"
)

// uploadField is the multipart field carrying the résumé file
const uploadField = "file"

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

// uploadHandler sends an uploaded résumé for parsing and waits for the outcome
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.MaxRequestSize); err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, fmt.Sprintf("Invalid upload: %v", err), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeErrorResponse(w, errors.ErrCodeNoFile, "Please select a file to upload", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		writeErrorResponse(w, errors.ErrCodeFileNotReadable, "The uploaded file could not be read", http.StatusBadRequest)
		return
	}

	upload := types.Upload{FileName: header.Filename, Content: content}
	// Browsers and curl default to octet-stream; let the session sniff those.
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		upload.MimeType = ct
	}
	s.Logger.Debug("Received upload", "file", upload.FileName, "size", len(content), "mime_type", upload.MimeType)

	if err := s.Session.Parse(context.WithoutCancel(r.Context()), upload); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

func (s *Server) startBuilderHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Session.StartBuilder(); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

// builderResumeHandler replaces the wizard's résumé with the posted one
func (s *Server) builderResumeHandler(w http.ResponseWriter, r *http.Request) {
	var resume types.Resume
	if err := parseJSONRequest(r, &resume); err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	s.builderAction(w, func(wz *builder.Wizard) error {
		return wz.Update(func(current *types.Resume) { *current = resume })
	})
}

func (s *Server) builderNextHandler(w http.ResponseWriter, r *http.Request) {
	s.builderAction(w, func(wz *builder.Wizard) error { return wz.Next() })
}

func (s *Server) builderBackHandler(w http.ResponseWriter, r *http.Request) {
	s.builderAction(w, func(wz *builder.Wizard) error {
		wz.Back()
		return nil
	})
}

func (s *Server) builderAction(w http.ResponseWriter, fn func(*builder.Wizard) error) {
	if err := s.Session.WithBuilder(fn); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

func (s *Server) builderCompleteHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.CompleteBuilder)
}

func (s *Server) builderSkipHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.SkipBuilder)
}

func (s *Server) builderCancelHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.CancelBuilder)
}

// updateResumeHandler replaces the résumé under review with the posted edit
func (s *Server) updateResumeHandler(w http.ResponseWriter, r *http.Request) {
	var resume types.Resume
	if err := parseJSONRequest(r, &resume); err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	s.sessionAction(w, func() error {
		return s.Session.UpdateResume(func(current *types.Resume) { *current = resume })
	})
}

func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.Continue)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.CancelReview)
}

func (s *Server) backHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, s.Session.BackToReview)
}

// optimizeHandler submits the job description and waits for the optimized résumé
func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	err := s.Session.Optimize(context.WithoutCancel(r.Context()), session.OptimizeInput{
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		Company:        req.Company,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

func (s *Server) skipHandler(w http.ResponseWriter, r *http.Request) {
	s.Session.SkipAnimation()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	s.Session.Restart()
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

func (s *Server) sessionAction(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

// resultsExport returns the documents of the results stage
func (s *Server) resultsExport() (formatters.Export, bool) {
	snap := s.Session.Snapshot()
	if snap.Stage != session.StageResults || snap.Optimized == nil || snap.CoverLetter == nil || snap.Resume == nil {
		return formatters.Export{}, false
	}
	return formatters.Export{
		Original:    *snap.Resume,
		Optimized:   snap.Optimized.Resume,
		CoverLetter: *snap.CoverLetter,
	}, true
}

// downloadHandler serves one of the result documents as a file
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, format, err := formatters.ParseExportName(name)
	if err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, err.Error(), http.StatusNotFound)
		return
	}

	export, ok := s.resultsExport()
	if !ok {
		writeErrorResponse(w, errors.ErrCodeInvalidStage, "No results are available yet", http.StatusConflict)
		return
	}

	body, err := export.Render(doc, format)
	if err != nil {
		writeErrorResponse(w, errors.ErrCodeInvalidFormat, err.Error(), http.StatusBadRequest)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == formatters.FormatMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// copyHandler returns clipboard text for the optimized résumé or the cover letter
func (s *Server) copyHandler(w http.ResponseWriter, r *http.Request) {
	export, ok := s.resultsExport()
	if !ok {
		writeErrorResponse(w, errors.ErrCodeInvalidStage, "No results are available yet", http.StatusConflict)
		return
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(r.PathValue("doc")) {
	case "resume":
		text, err = formatters.CopyResume(export.Optimized)
	case "cover-letter":
		text = formatters.CopyCoverLetter(export.CoverLetter)
	default:
		writeErrorResponse(w, errors.ErrCodeInvalidRequest, "Unknown document; use resume or cover-letter", http.StatusNotFound)
		return
	}
	if err != nil {
		s.Logger.LogError(err, "Failed to render clipboard text")
		writeErrorResponse(w, errors.ErrCodeOperationFailed, "Failed to copy", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}
