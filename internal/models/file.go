package models

// FileRecord is a file known to the server.
// UniqueName is the only key used for selection, lookup and deletion;
// OriginalName is for display and may repeat.
type FileRecord struct {
	UniqueName   string `json:"uniqueName"`
	OriginalName string `json:"originalName"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the body returned by a successful login
type LoginResponse struct {
	Token string `json:"token"`
}

// BatchDeleteRequest is the body of POST /delete-batch
type BatchDeleteRequest struct {
	Filenames []string `json:"filenames"`
}

// BatchDeleteResult reports per-name outcomes of a batch delete.
// Names in Success were deleted; names in Failed were not.
type BatchDeleteResult struct {
	Success []string `json:"success"`
	Failed  []string `json:"failed"`
}
