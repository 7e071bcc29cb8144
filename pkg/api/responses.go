package api

// ApiResponse is the uniform envelope for non-chat endpoints.
type ApiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func okResponse(message string, data any) ApiResponse {
	return ApiResponse{Success: true, Message: message, Data: data}
}

func errorResponse(message, detail string) ApiResponse {
	return ApiResponse{Success: false, Message: message, Error: detail}
}
