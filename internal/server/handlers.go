package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ModelsResponse lists the loaded model families.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
	Count   int      `json:"count"`
}

// PredictRequest is the body of POST /predict_region_group.
type PredictRequest struct {
	Rows []map[string]any `json:"rows"`
}

// PredictResponse echoes each row with predicted_region and predicted_group.
type PredictResponse struct {
	Results []map[string]any `json:"results"`
}

// CropResponse carries the cleaned cutout as a PNG data URI.
type CropResponse struct {
	CroppedImage string `json:"cropped_image"`
}

const healthTimeLayout = "2006-01-02 15:04:05"

// Client facing messages for pipeline rejections.
const (
	msgNoImages      = "No images uploaded"
	msgNoValidImages = "No valid images found"
	msgNoTeaCircle   = "No tea circle detected"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	status, msg := "healthy", "Backend is running fine"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		status, msg = "unhealthy", "Database unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:      status,
		Timestamp:   s.now().Format(healthTimeLayout),
		Message:     msg,
		ModelLoaded: s.classifier != nil,
	})
}

// modelsHandler returns the loaded model families.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	resp := ModelsResponse{Models: []string{}}
	if s.classifier != nil {
		reg := s.classifier.Registry()
		resp.Models = reg.Names()
		resp.Default = reg.Default()
	}
	resp.Count = len(resp.Models)
	writeJSON(w, http.StatusOK, resp)
}

// modelName picks the requested family: header, then configured default.
func (s *Server) modelName(r *http.Request) string {
	if name := strings.TrimSpace(r.Header.Get(HeaderModelName)); name != "" {
		return strings.ToLower(name)
	}
	if s.classifier != nil && s.classifier.Registry().Default() != "" {
		return s.classifier.Registry().Default()
	}
	return s.defaultModel
}

// predictHandler classifies feature rows with the model named in
// X-Model-Name.
func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if s.classifier == nil {
		writeErrorResponse(w, "Models are not loaded", http.StatusServiceUnavailable)
		return
	}

	model := s.modelName(r)
	if _, err := s.classifier.Registry().Family(model); err != nil {
		predictionsTotal.WithLabelValues(model, "unknown_model").Inc()
		writeErrorResponse(w, fmt.Sprintf("Model '%s' not available", model), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit())
	var req struct {
		Rows *[]map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rows == nil {
		writeErrorResponse(w, "No data provided", http.StatusBadRequest)
		return
	}
	if len(*req.Rows) == 0 {
		writeJSON(w, http.StatusOK, PredictResponse{Results: []map[string]any{}})
		return
	}

	results, err := s.classifier.PredictRows(model, *req.Rows)
	if err != nil {
		predictionsTotal.WithLabelValues(model, "error").Inc()
		var convErr *classify.ConversionError
		var scaleErr *classify.ScalerError
		var predErr *classify.PredictionError
		switch {
		case errors.As(err, &convErr):
			writeErrorResponse(w, "Feature conversion error: "+convErr.Err.Error(), http.StatusBadRequest)
		case errors.As(err, &scaleErr):
			writeErrorResponse(w, "Scaler transform error: "+scaleErr.Err.Error(), http.StatusInternalServerError)
		case errors.As(err, &predErr):
			writeErrorResponse(w, "Prediction error: "+predErr.Err.Error(), http.StatusInternalServerError)
		default:
			writeErrorResponse(w, "Unexpected error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	predictionsTotal.WithLabelValues(model, "ok").Add(float64(len(results)))
	writeJSON(w, http.StatusOK, PredictResponse{Results: results})
}

// parseMultipart applies the upload limit and parses the form.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit())
	if err := r.ParseMultipartForm(s.uploadLimit()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
			return false
		}
		writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return false
	}
	return true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	uploadSizeBytes.Observe(float64(fh.Size))
	return io.ReadAll(f)
}

// extractFeaturesHandler runs batch extraction over the uploaded images
// and returns the training CSV as an attachment.
func (s *Server) extractFeaturesHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeErrorResponse(w, msgNoImages, http.StatusBadRequest)
		return
	}

	sources := make([]pipeline.Source, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			slog.Warn("skipping unreadable upload", "file", fh.Filename, "error", err)
			continue
		}
		sources = append(sources, pipeline.Source{Name: filepath.Base(fh.Filename), Data: data})
	}

	res, err := s.extractor.Run(r.Context(), sources, pipeline.BatchConfig{
		Workers:  s.batchWorkers,
		Progress: pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug, 10),
	})
	if res != nil {
		imagesExtractedTotal.WithLabelValues("http", "ok").Add(float64(len(res.Samples)))
		imagesExtractedTotal.WithLabelValues("http", "skipped").Add(float64(len(res.Skipped)))
		extractionDuration.WithLabelValues("http").Observe(res.Duration.Seconds())
	}
	switch {
	case errors.Is(err, pipeline.ErrNoValidImages), errors.Is(err, pipeline.ErrNoSources):
		writeErrorResponse(w, msgNoValidImages, http.StatusBadRequest)
		return
	case err != nil:
		writeErrorResponse(w, "Unexpected error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := pipeline.WriteFeaturesCSV(&buf, res.Samples); err != nil {
		writeErrorResponse(w, "Unexpected error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	name := csvFilename(r.FormValue("output_csv"))
	slog.Info("features extracted", "images", len(res.Samples), "skipped", len(res.Skipped),
		"workers", res.Workers, "duration", res.Duration)
	writeAttachment(w, name, buf.Bytes())
}

// csvFilename sanitises a requested download name.
func csvFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return pipeline.DefaultOutputCSV
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	return name
}

func writeAttachment(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write attachment", "file", name, "error", err)
	}
}

// cropper returns a cropper for one request.
func (s *Server) cropper() *crop.Cropper {
	if s.cropSeed != 0 {
		return crop.NewSeededCropper(s.remover, s.cropSeed)
	}
	return crop.NewSeededCropper(s.remover, rand.Uint64())
}

// cropReflectionHandler locates the sample circle of an upload, removes
// highlights and returns the circular cutout.
func (s *Server) cropReflectionHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	if !s.parseMultipart(w, r) {
		return
	}
	_, fh, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	data, err := readPart(fh)
	if err != nil {
		writeErrorResponse(w, "Failed to read upload", http.StatusBadRequest)
		return
	}
	buf, err := utils.DecodeImage(data)
	if err != nil {
		cropsTotal.WithLabelValues("invalid").Inc()
		writeErrorResponse(w, "Invalid image", http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := pipeline.CropSample(buf, s.locator, s.cropper())
	switch {
	case errors.Is(err, pipeline.ErrNoSampleRegion):
		cropsTotal.WithLabelValues("no_circle").Inc()
		writeErrorResponse(w, msgNoTeaCircle, http.StatusBadRequest)
		return
	case err != nil:
		cropsTotal.WithLabelValues("error").Inc()
		writeErrorResponse(w, "Unexpected error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	cropsTotal.WithLabelValues("ok").Inc()
	slog.Debug("sample cropped", "file", fh.Filename, "circle", res.Circle.String(), "duration", time.Since(start))
	writeJSON(w, http.StatusOK, CropResponse{CroppedImage: res.DataURI})
}
