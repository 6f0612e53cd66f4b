package response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

type ListResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Data    interface{} `json:"data"`
}

type CreatedResponse struct {
	Success      bool        `json:"success"`
	SubmissionID string      `json:"submissionId"`
	Data         interface{} `json:"data"`
}

type TemplateListResponse struct {
	Success   bool        `json:"success"`
	Templates interface{} `json:"templates"`
	Count     int         `json:"count"`
}

type UserResponse struct {
	Success bool        `json:"success"`
	User    interface{} `json:"user"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
