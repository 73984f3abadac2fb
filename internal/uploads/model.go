package uploads

import "time"

const (
	SessionOpen      = "open"
	SessionCompleted = "completed"

	// PartSize is the fixed chunk size. Storage refuses to compose non-final
	// parts smaller than 5 MiB, so every part but the last is exactly this.
	PartSize int64 = 5 << 20
)

// Session tracks a chunked upload until its parts are composed.
type Session struct {
	ID            string     `bson:"_id" json:"id"`
	Filename      string     `bson:"filename" json:"filename"`
	ContentType   string     `bson:"content_type" json:"content_type"`
	Size          int64      `bson:"size" json:"size"`
	PartSize      int64      `bson:"part_size" json:"part_size"`
	TotalParts    int        `bson:"total_parts" json:"total_parts"`
	UploadedParts []int      `bson:"uploaded_parts" json:"uploaded_parts"`
	ObjectKey     string     `bson:"object_key" json:"object_key"`
	Status        string     `bson:"status" json:"status"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

type StartSessionRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"omitempty,max=255"`
	Size        int64  `json:"size" validate:"required,gt=0"`
}

type Result struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ExpectedPartSize returns the exact byte count part n (1-based) must have.
func (session Session) ExpectedPartSize(n int) int64 {
	if n < session.TotalParts {
		return session.PartSize
	}
	return session.Size - int64(session.TotalParts-1)*session.PartSize
}
