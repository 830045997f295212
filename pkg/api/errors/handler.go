// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the top-level error path of HTTP handlers.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tryextra/extra-oidc/pkg/errors"
	"github.com/tryextra/extra-oidc/pkg/logger"
)

// HandlerWithError is an HTTP handler that can return an error.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// Page is what the error page shows.
type Page struct {
	Status int
	Reason string

	// Message is set when the error is user-facing or in development mode.
	Message string

	// Detail is the full diagnostic, set in development mode only.
	Detail string
}

// Renderer writes an HTML error page.
type Renderer interface {
	RenderError(w http.ResponseWriter, page Page) error
}

// Writer renders errors returned by handlers.
type Writer struct {
	renderer    Renderer
	development bool
}

// NewWriter creates a Writer. renderer may be nil, in which case errors are
// written as plain text.
func NewWriter(renderer Renderer, development bool) *Writer {
	return &Writer{renderer: renderer, development: development}
}

// ErrorHandler wraps a HandlerWithError and renders any error it returns.
func (wr *Writer) ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			// No error returned, handler already wrote the response
			return
		}
		wr.WriteError(w, r, err)
	}
}

// BuildPage derives the page shown for err.
func (wr *Writer) BuildPage(err error) Page {
	code := errors.Code(err)
	page := Page{
		Status: code,
		Reason: http.StatusText(code),
	}
	if errors.IsExposed(err) || wr.development {
		page.Message = errors.Message(err)
	}
	if wr.development {
		page.Detail = fmt.Sprintf("%+v", err)
	}
	return page
}

// WriteError renders err with its status code.
func (wr *Writer) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	page := wr.BuildPage(err)

	log := logger.FromContext(r.Context())

	// For 5xx errors, log the full error
	if page.Status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", page.Status, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", page.Status, "error", err)
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(page.Status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             errors.TypeOf(err),
			"error_description": firstNonEmpty(page.Message, page.Reason),
		})
		return
	}

	if wr.renderer != nil {
		renderErr := wr.renderer.RenderError(w, page)
		if renderErr == nil {
			return
		}
		log.Error("failed to render error page", "error", renderErr)
	}

	http.Error(w, firstNonEmpty(page.Message, page.Reason), page.Status)
}

// wantsJSON reports whether the client prefers JSON over HTML.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
