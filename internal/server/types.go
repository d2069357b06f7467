// Package server provides the HTTP surface for the upload gateway.
// It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

import "encoding/json"

// TokenRequest is the HTTP request body for issuing an upload token.
type TokenRequest struct {
	// Dir is the logical directory the upload is namespaced under.
	// Defaults to "public".
	Dir string `json:"dir" validate:"omitempty,max=100"`
	// Policy holds per-call policy overrides; must be a JSON object.
	Policy json.RawMessage `json:"policy,omitempty"`
}

// TokenResponse is the HTTP response carrying an issued upload token.
type TokenResponse struct {
	// Token is the signed upload token.
	Token string `json:"token"`
}

// CompletionResponse is the HTTP response of the upload-completion webhook.
type CompletionResponse struct {
	// ObjID is the identity of the persisted object record.
	ObjID string `json:"obj_id"`
	// URL is the public download URL of the uploaded object.
	URL string `json:"url"`
	// AvthumbImg is the public URL of the extracted thumbnail (videos).
	AvthumbImg string `json:"avthumb_img,omitempty"`
	// AvthumbMp4 is the public URL of the transcoded video (videos).
	AvthumbMp4 string `json:"avthumb_mp4,omitempty"`
	// Duration is the video duration in seconds, two decimal places.
	Duration string `json:"duration,omitempty"`
	// ImageInfo is the provider image metadata, passed through verbatim.
	ImageInfo json.RawMessage `json:"image_info,omitempty"`
	// MD5 is the object content hash (images, best effort).
	MD5 string `json:"md5,omitempty"`
}

// NotifyResponse acknowledges a pipeline completion callback.
type NotifyResponse struct {
	// Status is "ok" once the notification was accepted.
	Status string `json:"status"`
}

// ObjectResponse is the HTTP representation of a stored object record.
type ObjectResponse struct {
	ID             string          `json:"id"`
	Bucket         string          `json:"bucket"`
	Key            string          `json:"key"`
	Etag           string          `json:"etag,omitempty"`
	Fname          string          `json:"fname,omitempty"`
	Fsize          int64           `json:"fsize"`
	MimeType       string          `json:"mime_type"`
	EndUser        string          `json:"end_user,omitempty"`
	ImageInfo      json.RawMessage `json:"image_info,omitempty"`
	AVInfo         json.RawMessage `json:"avinfo,omitempty"`
	Ext            string          `json:"ext,omitempty"`
	PersistentInfo any             `json:"persistent_info,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// TaskResponse is the HTTP representation of a persistent task record.
type TaskResponse struct {
	ID          string          `json:"id"`
	ObjID       string          `json:"obj_id"`
	Flag        string          `json:"flag"`
	Bucket      string          `json:"bucket"`
	Key         string          `json:"key"`
	PID         string          `json:"pid"`
	Ops         string          `json:"ops"`
	Pipeline    string          `json:"pipeline,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
