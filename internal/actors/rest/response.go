package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rbroggi/parcelhub/internal/core/model"
	log "github.com/sirupsen/logrus"
)

const unexpectedMessage = "Something went wrong!"

// envelope is the body of every successful response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    any             `json:"data"`
	Meta    *model.PageMeta `json:"meta,omitempty"`
}

// errorEnvelope is the body of every failed response.
type errorEnvelope struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	ErrorSources []model.ErrorSource `json:"errorSources"`
	Stack        string              `json:"stack,omitempty"`
}

// responder writes envelopes. Stacks are only exposed outside production.
type responder struct {
	production bool
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("error encoding response body")
	}
}

func (rs responder) ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (rs responder) page(w http.ResponseWriter, message string, data any, meta model.PageMeta) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data, Meta: &meta})
}

// writeError translates err into a status code and an error envelope.
func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := rs.translate(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).
			WithField("request_id", middleware.GetReqID(r.Context())).
			WithField("path", r.URL.Path).
			Error("unexpected error serving request")
	}
	writeJSON(w, status, body)
}

func (rs responder) translate(err error) (int, errorEnvelope) {
	domainErr, ok := model.AsError(err)
	if !ok {
		body := errorEnvelope{
			Message:      unexpectedMessage,
			ErrorSources: []model.ErrorSource{{Path: "", Message: unexpectedMessage}},
		}
		if !rs.production {
			body.Stack = fmt.Sprintf("%+v", err)
		}
		return http.StatusInternalServerError, body
	}

	status := statusOf(domainErr.Kind)
	sources := domainErr.Sources
	if len(sources) == 0 {
		sources = []model.ErrorSource{{Path: "", Message: domainErr.Message}}
	}
	body := errorEnvelope{Message: domainErr.Message, ErrorSources: sources}
	if !rs.production {
		body.Stack = err.Error()
	}
	return status, body
}

func statusOf(kind error) int {
	switch {
	case errors.Is(kind, model.ErrValidation), errors.Is(kind, model.ErrIllegalTransition):
		return http.StatusBadRequest
	case errors.Is(kind, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, model.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, model.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
