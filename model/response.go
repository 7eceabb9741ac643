package model

// ErrorResponse 错误响应
//
// Filename is set only when the upload was stored but segmentation failed,
// so the client can still address the image.
type ErrorResponse struct {
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status          string `json:"status"`
	MediaPathExists bool   `json:"media_path_exists"`
}
