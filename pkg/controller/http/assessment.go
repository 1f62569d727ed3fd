package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/usecase"
	"github.com/mintenance/surveyor/pkg/utils/errutil"
	"github.com/mintenance/surveyor/pkg/utils/safe"
)

type createAssessmentRequest struct {
	ImageURLs []string                 `json:"image_urls"`
	Context   *model.AssessmentContext `json:"context,omitempty"`
}

type assessmentResponse struct {
	*model.AssessmentRecord
	AutoValidation *usecase.Decision `json:"auto_validation,omitempty"`
}

func (s *Server) createAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createAssessmentRequest
	if err := s.decodeBody(r, &req); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	record, decision, err := s.assessment.AssessAndRecord(ctx, req.ImageURLs, req.Context)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusCreated, assessmentResponse{
		AssessmentRecord: record,
		AutoValidation:   &decision,
	})
}

func (s *Server) getAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.AssessmentID(chi.URLParam(r, "id"))

	record, err := s.records.Get(ctx, id)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, assessmentResponse{AssessmentRecord: record})
}

// getAutoValidation evaluates the gate without changing the record
func (s *Server) getAutoValidation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.AssessmentID(chi.URLParam(r, "id"))

	record, err := s.records.Get(ctx, id)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, s.validation.CanAutoValidate(ctx, record.Assessment, record.ID))
}

func (s *Server) reviewAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := model.AssessmentID(chi.URLParam(r, "id"))

	var input usecase.ReviewInput
	if err := s.decodeBody(r, &input); err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
		return
	}

	record, err := s.validation.Review(ctx, id, input)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusFor(err))
		return
	}

	writeJSON(ctx, w, http.StatusOK, assessmentResponse{AssessmentRecord: record})
}

func (s *Server) decodeBody(r *http.Request, v any) error {
	defer safe.Close(r.Context(), r.Body)

	body, err := safe.ReadLimited(r.Body, s.maxBody)
	if err != nil {
		return goerr.Wrap(err, "failed to read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return goerr.Wrap(err, "invalid JSON request body")
	}
	return nil
}

// statusFor maps use case errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrAssessmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, usecase.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
