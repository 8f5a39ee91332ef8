package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"genre-swap/pkg/audio"
	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/history"
	"genre-swap/pkg/models"
	"genre-swap/pkg/pipeline"
	"genre-swap/pkg/storage"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	maxUploadMemory = 32 << 20
	maxUploadSize   = 512 << 20
)

type Handlers struct {
	coord   *pipeline.Coordinator
	store   *storage.AudioStore
	genres  *genre.Registry
	history *history.Ledger
	logger  *slog.Logger
}

// NewHandlers wires the HTTP surface. ledger may be nil, in which case
// /history answers 404.
func NewHandlers(coord *pipeline.Coordinator, store *storage.AudioStore, genres *genre.Registry,
	ledger *history.Ledger, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		coord:   coord,
		store:   store,
		genres:  genres,
		history: ledger,
		logger:  logger.With("component", "api"),
	}
}

func (h *Handlers) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/tracks", h.UploadTrackHandler).Methods("POST")
	router.HandleFunc("/swaps", h.RequestSwapHandler).Methods("POST")
	router.HandleFunc("/jobs/{id}", h.GetJobHandler).Methods("GET")
	router.HandleFunc("/jobs/{id}", h.CancelJobHandler).Methods("DELETE")
	router.HandleFunc("/results/{cacheKey}", h.GetResultHandler).Methods("GET")
	router.HandleFunc("/assets/{id}", h.GetAssetHandler).Methods("GET")
	router.HandleFunc("/genres", h.ListGenresHandler).Methods("GET")
	router.HandleFunc("/history", h.HistoryHandler).Methods("GET")
	router.HandleFunc("/ws/jobs/{id}", h.WebSocketHandler)
	return router
}

// UploadTrackHandler ingests a multipart "audio" file. Files named *.pcm or
// *.raw (or format=pcm) are taken as 16-bit stereo PCM at 44.1kHz; anything
// else is decoded with ffmpeg.
func (h *Handlers) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	trackID := strings.TrimSpace(r.FormValue("track_id"))
	if trackID == "" {
		trackID = uuid.New().String()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var pcm []byte
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if r.FormValue("format") == "pcm" || ext == ".pcm" || ext == ".raw" {
		pcm, err = io.ReadAll(file)
		if err != nil {
			http.Error(w, "Failed to read audio file", http.StatusInternalServerError)
			return
		}
	} else {
		pcm, err = h.decodeUpload(r, file, ext)
		if err != nil {
			h.logger.Warn("API: decode failed", "track_id", trackID, "error", err)
			http.Error(w, "Failed to decode audio file", http.StatusUnprocessableEntity)
			return
		}
	}

	frame := audio.Channels * models.BytesPerSample
	pcm = pcm[:len(pcm)-len(pcm)%frame]
	if len(pcm) == 0 {
		http.Error(w, "audio file is empty", http.StatusBadRequest)
		return
	}

	asset := models.NewAudioAsset(pcm, audio.SampleRate, audio.Channels)
	if err := h.store.IngestTrack(trackID, asset); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("API: track ingested", "track_id", trackID, "asset_id", asset.ID,
		"duration", asset.DurationSeconds, "size", humanize.Bytes(uint64(asset.Size())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"track_id":         trackID,
		"asset_id":         asset.ID,
		"duration_seconds": asset.DurationSeconds,
		"size":             humanize.Bytes(uint64(asset.Size())),
	})
}

func (h *Handlers) decodeUpload(r *http.Request, file io.Reader, ext string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		return nil, err
	}
	return audio.DecodeFile(r.Context(), tmp.Name())
}

type swapRequest struct {
	TrackID string             `json:"track_id"`
	Options models.SwapOptions `json:"options"`
}

func (h *Handlers) RequestSwapHandler(w http.ResponseWriter, r *http.Request) {
	// omitted option fields keep their defaults
	req := swapRequest{Options: models.DefaultSwapOptions("")}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TrackID == "" || strings.TrimSpace(req.Options.TargetGenreID) == "" {
		http.Error(w, "track_id and options.target_genre_id are required", http.StatusBadRequest)
		return
	}

	handle, err := h.coord.RequestSwap(req.TrackID, req.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}
	st := handle.Status()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    handle.JobID,
		"cache_key": handle.CacheKey,
		"status":    st.Status,
		"cache_hit": st.CacheHit,
	})
}

func (h *Handlers) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	job, err := h.coord.Job(jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := map[string]any{"job": job}
	if job.Status == models.StatusDone {
		if res, ok := h.store.GetResult(job.CacheKey); ok {
			response["result"] = res
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if err := h.coord.Cancel(jobID); err != nil {
		h.writeError(w, err)
		return
	}
	job, err := h.coord.Job(jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     jobID,
		"status":     job.Status,
		"cancelling": !job.Status.Terminal(),
	})
}

func (h *Handlers) GetResultHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["cacheKey"]
	res, ok := h.store.GetResult(key)
	if !ok {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetAssetHandler serves an asset as a WAV file.
func (h *Handlers) GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	asset, err := h.store.GetAsset(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	wav := audio.EncodeWAV(asset.Data, asset.SampleRate, asset.Channels)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".wav"))
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// ListGenresHandler lists every profile, or with min_nicheness the
// profiles at or above it, most niche first.
func (h *Handlers) ListGenresHandler(w http.ResponseWriter, r *http.Request) {
	var profiles []models.GenreProfile
	if s := r.URL.Query().Get("min_nicheness"); s != "" {
		floor, err := strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, "min_nicheness must be a number", http.StatusBadRequest)
			return
		}
		profiles = h.genres.Discover(floor)
	} else {
		profiles = h.genres.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"genres": profiles,
		"count":  len(profiles),
	})
}

func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}
	limit := history.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.history.Recent(r.Context(), r.URL.Query().Get("track_id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrTrackNotFound),
		errors.Is(err, apperrors.ErrJobNotFound),
		errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperrors.ErrTrackExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperrors.ErrQueueFull):
		w.Header().Set("Retry-After", "5")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, apperrors.ErrShuttingDown):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("API: request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
