package api

import "time"

// Identity is a registered user's durable authentication record.
// Email is the unique, case-sensitive key. PasswordHash is never serialized.
type Identity struct {
	Email        string    `json:"email"`
	DisplayName  string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Document is an uploaded study material with its extracted text.
type Document struct {
	ID          string    `json:"id"`
	Owner       string    `json:"-"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Content     string    `json:"-"`
	BlobKey     string    `json:"-"`
	Size        int64     `json:"size"`
	Characters  int       `json:"characters"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest is the body of POST /api/auth/login. It carries no
// validation rules: a missing or empty field fails as invalid credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserProfile holds the public fields of an Identity.
type UserProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	User      UserProfile `json:"user"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned after a document was ingested.
type UploadResponse struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	Characters int    `json:"characters"`
	Message    string `json:"message"`
}

// DocumentList is returned by GET /api/documents.
type DocumentList struct {
	Data []*Document `json:"data"`
}

// AnalyzeRequest asks for the key concepts of an uploaded document.
type AnalyzeRequest struct {
	FileName string `json:"fileName" validate:"required"`
}

// FeynmanCheckRequest asks the tutor to grade an explanation.
type FeynmanCheckRequest struct {
	Concept     string `json:"concept" validate:"required,max=500"`
	Explanation string `json:"explanation" validate:"required,max=20000"`
	Difficulty  string `json:"difficulty" validate:"max=20"`
}

// AnalogyRequest asks the tutor for an analogy.
type AnalogyRequest struct {
	Concept    string `json:"concept" validate:"required,max=500"`
	Difficulty string `json:"difficulty" validate:"max=20"`
}
