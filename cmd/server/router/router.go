// Package router configures HTTP routes for the prediction server.
//
// Routes configured:
//   - POST /predict - Classify a feature vector (JSON body or form fields)
//   - POST /predict-form - Classify a submitted form, all fields required
//   - GET /health - Model readiness with accuracy
//   - GET /model-info - Metadata record of the loaded model
//   - GET /healthz - Liveness check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Client input errors are answered with 400, everything else that goes
// wrong while predicting with 500. Both carry {"error": "<message>"}.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"

	"github.com/HatiCode/sepal/cmd/server/metrics"
	"github.com/HatiCode/sepal/pkg/dataset"
	"github.com/HatiCode/sepal/pkg/httpx"
	"github.com/HatiCode/sepal/pkg/serving"
)

const maxBodyBytes = 1 << 20

// SetupRoutes configures HTTP endpoints for the prediction server.
// m may be nil.
func SetupRoutes(svc *serving.Service, m *metrics.Metrics, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, metrics: m, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /predict", h.predict)
	mux.HandleFunc("POST /predict-form", h.predictForm)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /model-info", h.modelInfo)

	// Liveness check endpoint
	mux.Handle("GET /healthz", httpx.HealthHandler())

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type handlers struct {
	svc     *serving.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// requestError is an error answered with a specific status code.
type requestError struct {
	status int
	reason string
	msg    string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(reason, format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, reason: reason, msg: fmt.Sprintf(format, args...)}
}

func serverError(reason, format string, args ...any) *requestError {
	return &requestError{status: http.StatusInternalServerError, reason: reason, msg: fmt.Sprintf(format, args...)}
}

// predict handles POST /predict.
func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/predict"

	if !h.svc.Loaded() {
		h.fail(w, endpoint, serverError("not_loaded", "%s", serving.ErrModelNotLoaded.Error()))
		return
	}

	var (
		features []float64
		err      error
	)
	if isJSON(r) {
		features, err = featuresFromJSON(r)
	} else {
		features, err = featuresFromForm(r)
	}
	if err != nil {
		h.fail(w, endpoint, err)
		return
	}

	h.respond(w, r, endpoint, features)
}

// predictForm handles POST /predict-form.
func (h *handlers) predictForm(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/predict-form"

	features, err := featuresFromStrictForm(r)
	if err != nil {
		h.fail(w, endpoint, badRequest("invalid_form", "Invalid form data: %s", err.Error()))
		return
	}

	h.respond(w, r, endpoint, features)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, endpoint string, features []float64) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	prediction, err := h.svc.Predict(ctx, features)
	if err != nil {
		var (
			fcErr *serving.FeatureCountError
			nfErr *serving.NonFiniteFeatureError
		)
		switch {
		case errors.Is(err, serving.ErrModelNotLoaded):
			h.fail(w, endpoint, serverError("not_loaded", "%s", err.Error()))
		case errors.As(err, &fcErr):
			h.fail(w, endpoint, badRequest("feature_count", "%s", err.Error()))
		case errors.As(err, &nfErr):
			h.fail(w, endpoint, badRequest("invalid_features", "%s", err.Error()))
		default:
			h.fail(w, endpoint, serverError("internal", "%s", err.Error()))
		}
		return
	}
	h.metrics.RecordPrediction(prediction.ClassName, time.Since(start).Seconds())

	h.logger.Debug("prediction",
		"features", features,
		"class", prediction.ClassName,
	)

	if err := httpx.WriteJSON(w, http.StatusOK, prediction); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *handlers) fail(w http.ResponseWriter, endpoint string, err error) {
	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		reqErr = serverError("internal", "%s", err.Error())
	}

	h.metrics.RecordError(endpoint, reqErr.reason)
	if reqErr.status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", "endpoint", endpoint, "reason", reqErr.reason, "error", reqErr.msg)
	} else {
		h.logger.Warn("rejected prediction request", "endpoint", endpoint, "reason", reqErr.reason, "error", reqErr.msg)
	}
	httpx.WriteError(w, reqErr.status, reqErr)
}

// health handles GET /health.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	md, ok := h.svc.Metadata()
	if !ok {
		if err := httpx.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"status":       "unhealthy",
			"model_loaded": false,
		}); err != nil {
			h.logger.Error("failed to write JSON response", "error", err)
		}
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": true,
		"accuracy":     md.Accuracy,
	}); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// modelInfo handles GET /model-info.
func (h *handlers) modelInfo(w http.ResponseWriter, r *http.Request) {
	md, ok := h.svc.Metadata()
	if !ok {
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "Model info not available")
		return
	}
	if err := httpx.WriteJSON(w, http.StatusOK, md); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

// isJSON reports whether the request declares a JSON body
// (application/json or application/*+json).
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	if mediaType == "application/json" {
		return true
	}
	return strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json")
}

// featuresFromJSON extracts the "features" array of a JSON body.
func featuresFromJSON(r *http.Request) ([]float64, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("invalid_json", "failed to read request body: %s", err.Error())
	}
	if !gjson.ValidBytes(body) {
		return nil, badRequest("invalid_json", "Invalid JSON body")
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, badRequest("missing_features", "No features provided")
	}
	result := root.Get("features")
	if !result.Exists() {
		return nil, badRequest("missing_features", "No features provided")
	}
	if !result.IsArray() {
		return nil, badRequest("invalid_features", "features must be an array of numbers")
	}

	values := result.Array()
	features := make([]float64, len(values))
	for i, v := range values {
		if v.Type != gjson.Number {
			return nil, serverError("invalid_features", "could not convert feature %d to float: %s", i, v.Raw)
		}
		features[i] = v.Float()
	}
	return features, nil
}

// featuresFromForm reads the four measurement fields. An absent field
// counts as 0; a present but unparsable one is a server error.
func featuresFromForm(r *http.Request) ([]float64, error) {
	if err := parsePostForm(r); err != nil {
		return nil, badRequest("invalid_form", "failed to parse form: %s", err.Error())
	}

	features := make([]float64, len(dataset.FormFields))
	for i, field := range dataset.FormFields {
		values, ok := r.PostForm[field]
		if !ok || len(values) == 0 {
			continue
		}
		v, err := parseFloat(values[0])
		if err != nil {
			return nil, serverError("invalid_features", "%s", err.Error())
		}
		features[i] = v
	}
	return features, nil
}

// featuresFromStrictForm reads the four measurement fields, all required.
func featuresFromStrictForm(r *http.Request) ([]float64, error) {
	if err := parsePostForm(r); err != nil {
		return nil, err
	}

	features := make([]float64, len(dataset.FormFields))
	for i, field := range dataset.FormFields {
		values, ok := r.PostForm[field]
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("missing field %q", field)
		}
		v, err := parseFloat(values[0])
		if err != nil {
			return nil, err
		}
		features[i] = v
	}
	return features, nil
}

// parsePostForm fills r.PostForm from a urlencoded or multipart body.
func parsePostForm(r *http.Request) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	err := r.ParseMultipartForm(maxBodyBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("could not convert string to float: %q", raw)
	}
	return v, nil
}
