package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"skillreel.org/internal/blob"
	"skillreel.org/internal/obs"
	"skillreel.org/internal/points"
	"skillreel.org/internal/stream"
)

type uploadVideoRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ContentURL  string `json:"content_url"`
}

func (a *API) handleVideosCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videos, err := a.svc.ListVideos(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"videos": videos,
		})
	case http.MethodPost:
		a.handleUploadVideo(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUploadVideo accepts either a JSON body referencing already
// stored content or a multipart form carrying the raw bytes. Bytes are
// pushed to the blob gateway before the registry insert, so a gateway
// failure never leaves a half-registered video.
func (a *API) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	creator, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var in points.VideoInput
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		var err error
		in, err = a.decodeMultipartUpload(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
	} else {
		var req uploadVideoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		ref, err := blob.FromURL(req.ContentURL)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "content_url must be a valid http(s) URL")
			return
		}
		in = points.VideoInput{
			ID:          strings.TrimSpace(req.ID),
			Title:       strings.TrimSpace(req.Title),
			Description: strings.TrimSpace(req.Description),
			Category:    strings.TrimSpace(req.Category),
			Content:     ref,
		}
	}

	video, err := a.svc.UploadVideo(r.Context(), creator, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "video.uploaded", "video", video.ID, map[string]string{
		"category": video.Category,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"video": video,
	})
}

func (a *API) decodeMultipartUpload(r *http.Request) (points.VideoInput, error) {
	if a.blobs == nil {
		return points.VideoInput{}, errors.New("raw uploads are not configured")
	}
	// Metadata fields parse into memory; the content part stays streamed.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return points.VideoInput{}, points.ErrInvalidArgument
	}
	file, header, err := r.FormFile("content")
	if err != nil {
		return points.VideoInput{}, points.ErrInvalidArgument
	}
	defer file.Close()

	ref, err := a.blobs.Upload(r.Context(), file, header.Size, nil)
	if err != nil {
		return points.VideoInput{}, err
	}
	return points.VideoInput{
		ID:          strings.TrimSpace(r.FormValue("id")),
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Content:     ref,
	}, nil
}

// handleVideoResource routes GET /v1/videos/{id} and POST
// /v1/videos/{id}/watch.
func (a *API) handleVideoResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/videos/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "video id is required")
		return
	}
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		video, err := a.svc.GetVideo(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"video": video,
		})
	case "watch":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.handleWatchVideo(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// handleWatchVideo runs one watch transaction for the caller.
func (a *API) handleWatchVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	viewer, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	record, err := a.svc.WatchVideo(r.Context(), viewer, videoID)
	if err != nil {
		obs.CountWatch(watchOutcome(err))
		handleServiceError(w, r, err)
		return
	}
	obs.CountWatch("ok")

	a.audit(r.Context(), "video.watched", "video", videoID, map[string]string{
		"watch_id": record.ID,
	})

	if a.stream != nil {
		creator := ""
		if video, err := a.svc.GetVideo(r.Context(), videoID); err == nil {
			creator = video.Creator
		}
		a.stream.Publish(stream.WatchEvent{
			VideoID:   videoID,
			Viewer:    viewer,
			Creator:   creator,
			Points:    points.WatchFee,
			Timestamp: record.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"watch": record,
	})
}

func watchOutcome(err error) string {
	switch {
	case errors.Is(err, points.ErrVideoNotFound):
		return "video_not_found"
	case errors.Is(err, points.ErrSelfWatch):
		return "self_watch"
	case errors.Is(err, points.ErrProfileRequired):
		return "profile_required"
	case errors.Is(err, points.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, points.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
