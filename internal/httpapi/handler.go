package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/imaging"
	"github.com/ironsheep/boardscan/internal/ocr"
	"github.com/ironsheep/boardscan/internal/scan"
)

const (
	defaultMaxUpload = 32 << 20
	defaultTimeout   = 60 * time.Second
	imageField       = "image"
	imageB64Field    = "image_b64"
)

// Options configures a Handler.
type Options struct {
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Version        string
	Debug          bool
}

// Handler serves the scanning API.
type Handler struct {
	scanner *scan.Scanner
	engine  ocr.Engine
	opts    Options
}

// NewHandler returns a Handler. engine is only used for health reporting;
// scanning goes through scanner.
func NewHandler(scanner *scan.Scanner, engine ocr.Engine, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultTimeout
	}
	return &Handler{scanner: scanner, engine: engine, opts: opts}
}

// Routes returns the HTTP handler with all routes and middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.IndexHandler)
	mux.HandleFunc("GET /health", h.HealthHandler)
	mux.HandleFunc("POST /process_image", h.ProcessImageHandler)
	mux.HandleFunc("GET /regions", h.RegionsHandler)
	mux.HandleFunc("POST /overlay", h.OverlayHandler)

	return requestIDMiddleware(corsMiddleware(accessLogMiddleware(h.opts.Debug, mux)))
}

// IndexHandler answers GET / with a liveness message.
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "BoardScan backend is running. POST an image to /process_image.")
}

type healthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Catalog string   `json:"catalog"`
	Regions []string `json:"regions"`
	OCR     ocr.Info `json:"ocr"`
}

// HealthHandler reports service and OCR engine status. An unavailable
// engine is reported as "degraded" with status 503.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	cat := h.scanner.Catalog()
	resp := healthResponse{
		Status:  "ok",
		Version: h.opts.Version,
		Catalog: cat.Name(),
		Regions: cat.Names(),
		OCR:     ocr.GetInfo(ctx, h.engine),
	}
	status := http.StatusOK
	if !resp.OCR.Available {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, resp, status)
}

type processResponse struct {
	Message       string         `json:"message"`
	RequestID     string         `json:"request_id"`
	Catalog       string         `json:"catalog"`
	ExtractedData extract.Record `json:"extracted_data"`
	Payload       *string        `json:"payload"`
	QRImageB64    *string        `json:"qr_image_b64"`
	Warnings      []string       `json:"warnings"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

// ProcessImageHandler handles POST /process_image. The image comes as the
// multipart field "image", as JSON {"image": "<base64 or data URL>"}, or as
// a raw image body.
func (h *Handler) ProcessImageHandler(w http.ResponseWriter, r *http.Request) {
	data, err := h.readImage(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.RequestTimeout)
	defer cancel()

	result, err := h.scanner.Process(ctx, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := processResponse{
		Message:       "Image processed successfully",
		RequestID:     RequestID(r.Context()),
		Catalog:       result.Catalog,
		ExtractedData: result.Record,
		QRImageB64:    result.QRBase64(),
		Warnings:      result.Warnings,
		Width:         result.Width,
		Height:        result.Height,
		ElapsedMS:     result.Elapsed.Milliseconds(),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if result.QR != nil {
		resp.Payload = &result.Payload
	} else {
		resp.Message = "Image processed, but no text was extracted; no QR code generated"
	}
	respondJSON(w, resp, http.StatusOK)
}

type regionView struct {
	catalog.Region
	Pixels *imaging.Box `json:"pixels,omitempty"`
}

type regionsResponse struct {
	Catalog string       `json:"catalog"`
	Regions []regionView `json:"regions"`
}

// RegionsHandler lists the catalog. With ?width=W&height=H each region also
// carries its pixel box for an image of that size.
func (h *Handler) RegionsHandler(w http.ResponseWriter, r *http.Request) {
	width, height, err := sizeParams(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cat := h.scanner.Catalog()
	resp := regionsResponse{Catalog: cat.Name()}
	for _, region := range cat.Regions() {
		view := regionView{Region: region}
		if width > 0 {
			box := region.PixelBox(width, height)
			view.Pixels = &box
		}
		resp.Regions = append(resp.Regions, view)
	}
	respondJSON(w, resp, http.StatusOK)
}

func sizeParams(r *http.Request) (int, int, error) {
	ws, hs := r.URL.Query().Get("width"), r.URL.Query().Get("height")
	if ws == "" && hs == "" {
		return 0, 0, nil
	}
	width, err1 := strconv.Atoi(ws)
	height, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, errors.New("width and height must both be positive integers")
	}
	return width, height, nil
}

// OverlayHandler draws the catalog regions on the uploaded image.
func (h *Handler) OverlayHandler(w http.ResponseWriter, r *http.Request) {
	data, err := h.readImage(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	img, err := imaging.Decode(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := imaging.RegionOverlay(img.Image, h.scanner.Catalog().PixelBoxes(img.Width, img.Height))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

// readImage extracts the image bytes from the request body.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
			return nil, fmt.Errorf("%w: failed to parse form: %w", errBadRequest, err)
		}
		file, header, err := r.FormFile(imageField)
		if err != nil {
			return nil, fmt.Errorf("%w: no %q file in the request", scan.ErrInputMissing, imageField)
		}
		defer file.Close()
		if header.Filename == "" {
			return nil, fmt.Errorf("%w: empty file name", scan.ErrInputMissing)
		}
		return io.ReadAll(file)

	case mediaType == "application/json":
		var body struct {
			Image    string `json:"image"`
			ImageB64 string `json:"image_b64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
		}
		encoded := body.Image
		if strings.TrimSpace(encoded) == "" {
			encoded = body.ImageB64
		}
		if strings.TrimSpace(encoded) == "" {
			return nil, fmt.Errorf("%w: %q and %q are empty", scan.ErrInputMissing, imageField, imageB64Field)
		}
		return imaging.DecodeBase64(encoded)

	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, scan.ErrInputMissing
		}
		return data, nil
	}
}

var errBadRequest = errors.New("bad request")

// statusClientClosed marks a request the client abandoned (nginx's 499).
const statusClientClosed = 499

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, scan.ErrInputMissing), errors.Is(err, imaging.ErrDecode), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	default:
		// payload.ErrEncode and anything unexpected
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == statusClientClosed {
		if h.opts.Debug {
			log.Printf("DEBUG: request %s abandoned by client: %v", RequestID(r.Context()), err)
		}
		respondError(w, err.Error(), status)
		return
	}
	if status >= http.StatusInternalServerError {
		log.Printf("Request %s failed: %v", RequestID(r.Context()), err)
	}
	respondError(w, err.Error(), status)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
