package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"HeadTurner/internal/entity"

	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile        = errors.New("no file uploaded")
	ErrFileTooLarge  = errors.New("file size exceeds limit")
	ErrNotAnImage    = errors.New("uploaded file is not an image")
	ErrInvalidBase64 = errors.New("invalid base64 image data")
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadImageFile(file *multipart.FileHeader) (entity.Image, error)
	DecodeBase64Image(encoded string, mimeType string) (entity.Image, error)
}

type utils struct {
	maxFileSize int64
}

func New() IUtils {
	return &utils{
		maxFileSize: 10 * 1024 * 1024,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotAnImage
	}

	return nil
}

// ReadImageFile returns the upload's bytes with a sniffed content type; the
// client-supplied header is only trusted for the image/ prefix check.
func (u *utils) ReadImageFile(file *multipart.FileHeader) (entity.Image, error) {
	if err := u.ValidateImageFile(file); err != nil {
		return entity.Image{}, err
	}

	f, err := file.Open()
	if err != nil {
		return entity.Image{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, u.maxFileSize+1))
	if err != nil {
		return entity.Image{}, err
	}

	return u.toImage(data)
}

func (u *utils) DecodeBase64Image(encoded string, mimeType string) (entity.Image, error) {
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i > 0 {
		if mimeType == "" {
			mimeType = encoded[len("data:"):i]
		}
		encoded = encoded[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return entity.Image{}, ErrInvalidBase64
	}

	img, err := u.toImage(data)
	if err != nil {
		return entity.Image{}, err
	}
	if mimeType != "" && allowedImageTypes[mimeType] && img.MimeType != mimeType {
		return entity.Image{}, ErrNotAnImage
	}
	return img, nil
}

func (u *utils) toImage(data []byte) (entity.Image, error) {
	if len(data) == 0 {
		return entity.Image{}, ErrNoFile
	}
	if int64(len(data)) > u.maxFileSize {
		return entity.Image{}, ErrFileTooLarge
	}

	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return entity.Image{}, ErrNotAnImage
	}

	return entity.Image{Data: data, MimeType: mimeType}, nil
}
