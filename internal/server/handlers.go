/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/loader"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/pipeline"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/recommender"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/upload"
	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	reasonTooLarge = "File too large"
)

// envelope is the body of every response. Data is set on success and
// Details on failure.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

type uploadData struct {
	Filename string             `json:"filename"`
	Types    classifier.TypeMap `json:"types"`
	Preview  dataset.Preview    `json:"preview"`
}

type preprocessData struct {
	Preview dataset.Preview `json:"preview"`
}

type recommendData struct {
	Types           classifier.TypeMap           `json:"types"`
	Recommendations []recommender.Recommendation `json:"recommendations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receive(w, r)
	if !ok {
		return
	}
	classified := s.svc.Classify(res.Table)
	s.success(w, "File uploaded successfully", uploadData{
		Filename: res.Filename,
		Types:    classified.Types,
		Preview:  classified.Table.Preview(uploadPreviewRows),
	})
}

func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receive(w, r)
	if !ok {
		return
	}
	cleaned, err := s.svc.Preprocess(r.Context(), res.Table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, "Data preprocessed successfully", preprocessData{
		Preview: cleaned.Preview(preprocessPreviewRows),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receive(w, r)
	if !ok {
		return
	}
	s.success(w, "Data profiled successfully", s.svc.Profile(res.Table))
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receive(w, r)
	if !ok {
		return
	}
	classified := s.svc.Classify(res.Table)
	s.success(w, "Recommendations generated successfully", recommendData{
		Types:           classified.Types,
		Recommendations: s.svc.Recommend(res.Table),
	})
}

// handleAnalyze runs the full analysis. Form fields "insights" (a boolean)
// and "context" control insight generation.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receive(w, r)
	if !ok {
		return
	}
	opts := analysis.AnalyzeOptions{Context: r.FormValue("context")}
	if v := r.FormValue("insights"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, &analysis.ErrInvalidInput{Msg: "insights must be a boolean", Err: err})
			return
		}
		opts.Insights = b
	}
	report, err := s.svc.Analyze(r.Context(), res.Table, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, "Analysis completed successfully", report)
}

// receive reads the multipart "file" field through the upload intake. On
// failure the error response has already been written.
func (s *Server) receive(w http.ResponseWriter, r *http.Request) (*upload.Result, bool) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.fail(w, r, &upload.Error{Reason: reasonTooLarge})
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, &upload.Error{Reason: reasonTooLarge, Err: err})
			return nil, false
		}
		s.fail(w, r, &upload.Error{Reason: upload.ReasonNoFile, Err: err})
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, &upload.Error{Reason: upload.ReasonNoFile, Err: err})
		return nil, false
	}
	defer file.Close()

	res, err := s.intake.Receive(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return res, true
}

func (s *Server) success(w http.ResponseWriter, message string, data any) {
	s.writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: message, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message, details := describeError(err)
	fields := []zap.Field{
		zap.String("requestId", RequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Warn("request rejected", fields...)
	}
	s.writeJSON(w, status, envelope{Status: statusError, Message: message, Details: details})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

type treatmentDetails struct {
	Stage  string `json:"stage"`
	Column string `json:"column,omitempty"`
	Cause  string `json:"cause"`
}

// describeError maps err to a status code, a client-facing message and
// optional structured details.
func describeError(err error) (int, string, any) {
	var (
		uploadErr     *upload.Error
		loadErr       *loader.LoadError
		validationErr *pipeline.ValidationError
		invalidErr    *analysis.ErrInvalidInput
		treatmentErr  *pipeline.TreatmentError
	)
	switch {
	case errors.As(err, &uploadErr):
		if uploadErr.Err != nil {
			return http.StatusBadRequest, uploadErr.Reason, uploadErr.Err.Error()
		}
		return http.StatusBadRequest, uploadErr.Reason, nil
	case errors.As(err, &loadErr):
		return http.StatusBadRequest, upload.ReasonNoData, loadErr.Error()
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "Data validation failed", validationErr.Failures
	case errors.As(err, &invalidErr):
		return http.StatusBadRequest, invalidErr.Msg, nil
	case errors.As(err, &treatmentErr):
		var cause string
		if treatmentErr.Err != nil {
			cause = treatmentErr.Err.Error()
		}
		return http.StatusUnprocessableEntity, "Data treatment failed", treatmentDetails{
			Stage:  treatmentErr.Stage,
			Column: treatmentErr.Column,
			Cause:  cause,
		}
	default:
		return http.StatusInternalServerError, "Internal server error", nil
	}
}
