package backend

// CSRFTokenResponse is returned by POST /auth/csrf.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login. UserID is omitted by some
// backend versions.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id,omitempty"`
}

// QueryRequest is the body of POST /rag/query. The zero values of the
// optional tuning fields defer to the backend defaults.
type QueryRequest struct {
	ProjectID   int     `json:"project_id"`
	Query       string  `json:"query"`
	NResults    int     `json:"n_results,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// RetrievedChunk is one retrieval hit in a query response. Metadata carries
// whatever the ingestion pipeline attached to the chunk (title, filename,
// url, source).
type RetrievedChunk struct {
	ChunkID         int            `json:"chunk_id"`
	AssetID         int            `json:"asset_id"`
	Content         string         `json:"content"`
	SimilarityScore float64        `json:"similarity_score"`
	Metadata        map[string]any `json:"metadata"`
}

// QueryResponse is returned by POST /rag/query.
type QueryResponse struct {
	Status           string           `json:"status"`
	ProjectID        int              `json:"project_id"`
	Query            string           `json:"query"`
	RetrievedChunks  []RetrievedChunk `json:"retrieved_chunks"`
	RetrievedCount   int              `json:"retrieved_count"`
	Response         string           `json:"response"`
	GenerationStatus string           `json:"generation_status"`
}

// UploadResponse is returned by POST /data/upload/{project_id}.
type UploadResponse struct {
	AssetID  int    `json:"asset_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ProcessResponse is returned by POST /data/process/{project_id}.
type ProcessResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// DeletionRequest is the body of POST /gdpr/delete.
type DeletionRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// DeletionResponse is returned by POST /gdpr/delete.
type DeletionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
