package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dudumedia/kodo-upload-api/internal/kodo"
	"github.com/dudumedia/kodo-upload-api/internal/object"
	"github.com/dudumedia/kodo-upload-api/internal/persistent"
	"github.com/dudumedia/kodo-upload-api/internal/upload"
)

// Handlers contains the HTTP handlers for the gateway.
type Handlers struct {
	service   *upload.Service
	issuer    *kodo.TokenIssuer
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *upload.Service, issuer *kodo.TokenIssuer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		issuer:    issuer,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// IssueToken handles POST /uptoken requests.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Overrides must be a JSON object; anything else is rejected before
	// any policy is built.
	var overrides map[string]any
	if len(req.Policy) > 0 && string(req.Policy) != "null" {
		if err := json.Unmarshal(req.Policy, &overrides); err != nil {
			writeError(w, http.StatusBadRequest, "policy must be a JSON object", "INVALID_POLICY")
			return
		}
	}

	token, err := h.issuer.Issue(req.Dir, overrides)
	if err != nil {
		if errors.Is(err, kodo.ErrInvalidSaveKey) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_POLICY")
			return
		}
		h.logger.Error("failed to issue upload token",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to issue token", "TOKEN_ISSUE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// UploadCallback handles POST /qiniu/callback requests, the webhook the
// storage provider calls after a successful upload. The body is
// form-encoded per the upload policy's callback body template.
func (h *Handlers) UploadCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body", "INVALID_FORM")
		return
	}

	data := upload.CompletionData{
		Bucket:    r.PostFormValue("bucket"),
		Key:       r.PostFormValue("key"),
		Etag:      r.PostFormValue("etag"),
		Fname:     r.PostFormValue("fname"),
		MimeType:  r.PostFormValue("mime_type"),
		EndUser:   r.PostFormValue("end_user"),
		ImageInfo: r.PostFormValue("image_info"),
		AVInfo:    r.PostFormValue("avinfo"),
		Ext:       r.PostFormValue("ext"),
		Base:      r.PostFormValue("base") == "1",
	}
	if data.Bucket == "" || data.Key == "" || data.MimeType == "" {
		writeError(w, http.StatusBadRequest, "bucket, key and mime_type are required", "MISSING_FIELD")
		return
	}
	if fsize := r.PostFormValue("fsize"); fsize != "" {
		n, err := strconv.ParseInt(fsize, 10, 64)
		if err == nil {
			data.Fsize = n
		}
	}

	res, err := h.service.HandleCompletion(r.Context(), data)
	if err != nil {
		h.logger.Error("failed to handle upload completion",
			slog.String("key", data.Key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to persist object", "OBJECT_SAVE_FAILED")
		return
	}

	resp := CompletionResponse{
		ObjID:      res.ObjID,
		URL:        res.URL,
		AvthumbImg: res.AvthumbImg,
		AvthumbMp4: res.AvthumbMp4,
		Duration:   res.Duration,
		ImageInfo:  rawOrQuoted(res.ImageInfo),
		MD5:        res.MD5,
	}
	writeJSON(w, http.StatusOK, resp)
}

// PersistentNotify handles POST /qiniu/persistent-notify requests, the
// webhook the processing pipeline calls when a persistent operation
// completes.
func (h *Handlers) PersistentNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", "INVALID_BODY")
		return
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	err = h.service.ReconcileNotification(r.Context(), upload.Notification{
		ID:   payload.ID,
		Body: body,
	})
	if err != nil {
		if errors.Is(err, upload.ErrTaskIDRequired) {
			writeError(w, http.StatusBadRequest, "task id is required", "MISSING_TASK_ID")
			return
		}
		h.logger.Error("failed to reconcile notification",
			slog.String("pid", payload.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to reconcile notification", "RECONCILE_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, NotifyResponse{Status: "ok"})
}

// GetObject handles GET /objects/{id} requests.
func (h *Handlers) GetObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "object ID is required", "MISSING_OBJECT_ID")
		return
	}

	obj, err := h.service.GetObject(r.Context(), id)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "object not found", "OBJECT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get object",
			slog.String("obj_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get object", "OBJECT_FETCH_FAILED")
		return
	}

	resp := ObjectResponse{
		ID:        obj.ID,
		Bucket:    obj.Bucket,
		Key:       obj.Key,
		Etag:      obj.Etag,
		Fname:     obj.Fname,
		Fsize:     obj.Fsize,
		MimeType:  obj.MimeType,
		EndUser:   obj.EndUser,
		ImageInfo: rawOrQuoted(obj.ImageInfo),
		AVInfo:    rawOrQuoted(obj.AVInfo),
		Ext:       obj.Ext,
		CreatedAt: obj.CreatedAt.Format(time.RFC3339),
	}
	if obj.PersistentInfo != nil {
		resp.PersistentInfo = obj.PersistentInfo
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPersistent handles GET /objects/{id}/persistents/{flag} requests.
func (h *Handlers) GetPersistent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flag := r.PathValue("flag")
	if id == "" || flag == "" {
		writeError(w, http.StatusBadRequest, "object ID and flag are required", "MISSING_FIELD")
		return
	}

	task, err := h.service.GetPersistent(r.Context(), id, flag)
	if err != nil {
		if errors.Is(err, persistent.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task record not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task record",
			slog.String("obj_id", id),
			slog.String("flag", flag),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task record", "TASK_FETCH_FAILED")
		return
	}

	resp := TaskResponse{
		ID:        task.ID,
		ObjID:     task.ObjectID,
		Flag:      task.Flag,
		Bucket:    task.Bucket,
		Key:       task.Key,
		PID:       task.PID,
		Ops:       task.Ops,
		Pipeline:  task.Pipeline,
		Result:    task.Result,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
	if task.CompletedAt != nil {
		resp.CompletedAt = task.CompletedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// rawOrQuoted passes s through verbatim when it is valid JSON and quotes
// it as a JSON string otherwise. Empty input stays omitted.
func rawOrQuoted(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return quoted
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
