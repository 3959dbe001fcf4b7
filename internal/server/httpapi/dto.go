package httpapi

import "time"

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type uploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

type fileInfo struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	UploadDate   time.Time `json:"uploadDate"`
	MimeType     string    `json:"mimeType"`
}

type listResponse struct {
	Files []fileInfo `json:"files"`
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

// renameRequest accepts the old name as oldFilename or filename.
type renameRequest struct {
	OldFilename string `json:"oldFilename"`
	Filename    string `json:"filename"`
	NewFilename string `json:"newFilename"`
}

func (r renameRequest) old() string {
	if r.OldFilename != "" {
		return r.OldFilename
	}
	return r.Filename
}
