package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageSize is the upload limit for post and profile images.
const MaxImageSize = 10 << 20

// ImageStore keeps an uploaded image and returns the URL it is served from.
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// CheckImage rejects non-image content types and oversized files.
func CheckImage(contentType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return invalidFormat("이미지 파일만 업로드할 수 있습니다.")
	}
	if size > MaxImageSize {
		return invalidFormat("이미지는 10MB 이하만 업로드할 수 있습니다.")
	}
	return nil
}

// imageExt picks a file extension from the original name, falling back to
// the content type.
func imageExt(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		return ext
	}
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// LocalImageStore writes images below Dir; they are served under URLPrefix.
type LocalImageStore struct {
	Dir       string
	URLPrefix string
}

func NewLocalImageStore(dir, urlPrefix string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalImageStore{Dir: dir, URLPrefix: urlPrefix}, nil
}

func (s *LocalImageStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	day := time.Now().Format("20060102")
	dir := filepath.Join(s.Dir, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	file := uuid.NewString() + imageExt(name, contentType)
	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > MaxImageSize {
		os.Remove(f.Name())
		return "", CheckImage(contentType, n)
	}
	return path.Join(s.URLPrefix, day, file), nil
}

// ImgurResponse is the subset of the Imgur upload response we read.
type ImgurResponse struct {
	Data struct {
		ID         string `json:"id"`
		Link       string `json:"link"`
		DeleteHash string `json:"deletehash"`
		Type       string `json:"type"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// ImgurImageStore uploads anonymously with a client id.
type ImgurImageStore struct {
	ClientID string
	Endpoint string
	Client   *http.Client
}

func NewImgurImageStore(clientID string) *ImgurImageStore {
	return &ImgurImageStore{
		ClientID: clientID,
		Endpoint: "https://api.imgur.com/3/image",
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ImgurImageStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if s.ClientID == "" {
		return "", fmt.Errorf("IMGUR_CLIENT_ID is not set")
	}

	fileBytes, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := CheckImage(contentType, int64(len(fileBytes))); err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("image", base64.StdEncoding.EncodeToString(fileBytes)); err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if err := writer.WriteField("type", "base64"); err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if err := writer.WriteField("name", name); err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.ClientID)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	var imgurResp ImgurResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgurResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !imgurResp.Success || imgurResp.Data.Link == "" {
		return "", fmt.Errorf("imgur upload failed: status %d", imgurResp.Status)
	}
	return imgurResp.Data.Link, nil
}
