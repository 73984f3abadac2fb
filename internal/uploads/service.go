package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"workflow-backend/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge        = errors.New("file exceeds size limit")
	ErrEmptyFile           = errors.New("file is empty")
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	ErrSessionNotFound     = errors.New("upload session not found")
	ErrSessionClosed       = errors.New("upload session already completed")
	ErrInvalidPart         = errors.New("invalid part number")
	ErrPartSize            = errors.New("part size does not match session")
	ErrIncomplete          = errors.New("upload session has missing parts")
)

var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".odt": {}, ".txt": {},
	".xls": {}, ".xlsx": {}, ".csv": {}, ".ppt": {}, ".pptx": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}, ".gif": {}, ".svg": {},
	".ai": {}, ".psd": {}, ".fig": {}, ".zip": {},
}

// ObjectStore is the subset of the bucket client uploads need.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Compose(ctx context.Context, dst string, parts []string, contentType string) (int64, error)
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

type Service struct {
	store    ObjectStore
	sessions SessionRepository
	maxBytes int64
	location *time.Location
	log      *slog.Logger
	newID    func() string
}

func NewService(store ObjectStore, sessions SessionRepository, maxBytes int64, location *time.Location, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		sessions: sessions,
		maxBytes: maxBytes,
		location: location,
		log:      log,
		newID:    uuid.NewString,
	}
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores a whole file in one request.
func (s *Service) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (Result, error) {
	ext, err := s.validate(filename, size)
	if err != nil {
		return Result{}, err
	}
	contentType = resolveContentType(contentType, ext)
	key := s.objectKey(filename, ext)

	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return Result{}, err
	}
	return s.result(ctx, key, filename, contentType, size)
}

func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (Session, error) {
	filename := strings.TrimSpace(req.Filename)
	ext, err := s.validate(filename, req.Size)
	if err != nil {
		return Session{}, err
	}
	session := Session{
		ID:            s.newID(),
		Filename:      filename,
		ContentType:   resolveContentType(req.ContentType, ext),
		Size:          req.Size,
		PartSize:      PartSize,
		TotalParts:    int((req.Size + PartSize - 1) / PartSize),
		UploadedParts: []int{},
		ObjectKey:     s.objectKey(filename, ext),
		Status:        SessionOpen,
		CreatedAt:     time.Now().In(s.location),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) PutPart(ctx context.Context, id string, n int, size int64, r io.Reader) (Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if session.Status != SessionOpen {
		return Session{}, ErrSessionClosed
	}
	if n < 1 || n > session.TotalParts {
		return Session{}, ErrInvalidPart
	}
	if size != session.ExpectedPartSize(n) {
		return Session{}, ErrPartSize
	}
	if err := s.store.Put(ctx, partKey(session.ID, n), r, size, "application/octet-stream"); err != nil {
		return Session{}, err
	}
	return s.sessions.AddPart(ctx, session.ID, n)
}

// Complete composes the uploaded parts into the final object and removes the
// parts. Part cleanup failures are logged, not returned.
func (s *Service) Complete(ctx context.Context, id string) (Result, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if session.Status != SessionOpen {
		return Result{}, ErrSessionClosed
	}
	if missing := missingParts(session); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}

	parts := make([]string, 0, session.TotalParts)
	for n := 1; n <= session.TotalParts; n++ {
		parts = append(parts, partKey(session.ID, n))
	}
	size, err := s.store.Compose(ctx, session.ObjectKey, parts, session.ContentType)
	if err != nil {
		return Result{}, err
	}
	if err := s.sessions.Complete(ctx, session.ID, time.Now().In(s.location)); err != nil {
		return Result{}, err
	}

	for _, part := range parts {
		if err := s.store.Remove(ctx, part); err != nil {
			s.log.Warn("uploads complete: part cleanup failed",
				slog.String("session_id", session.ID),
				slog.String("part", part),
				slog.String("error", err.Error()),
			)
		}
	}
	return s.result(ctx, session.ObjectKey, session.Filename, session.ContentType, size)
}

func (s *Service) result(ctx context.Context, key, filename, contentType string, size int64) (Result, error) {
	url, err := s.store.PresignedURL(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Key:         key,
		URL:         url,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *Service) validate(filename string, size int64) (string, error) {
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrExtensionNotAllowed
	}
	return ext, nil
}

func (s *Service) objectKey(filename, ext string) string {
	base := utils.Slugify(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if base == "" {
		base = "arquivo"
	}
	if len(base) > 60 {
		base = strings.Trim(base[:60], "-")
	}
	now := time.Now().In(s.location)
	return fmt.Sprintf("uploads/%04d/%02d/%s-%s%s", now.Year(), int(now.Month()), s.newID(), base, ext)
}

func partKey(sessionID string, n int) string {
	return fmt.Sprintf("uploads/parts/%s/%05d", sessionID, n)
}

func missingParts(session Session) []int {
	have := make(map[int]struct{}, len(session.UploadedParts))
	for _, n := range session.UploadedParts {
		have[n] = struct{}{}
	}
	missing := make([]int, 0)
	for n := 1; n <= session.TotalParts; n++ {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

func resolveContentType(contentType, ext string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
