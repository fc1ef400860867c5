// Package storage uploads binary files to an object-storage provider and
// hands back public URLs. The identity core never inspects image bytes —
// avatar uploads pass straight through to the provider.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ngampusin/identity/internal/apperror"
)

// UploadResult is what a successful upload yields: the public URL persisted
// on the profile, and the provider's file ID for later deletion.
type UploadResult struct {
	URL    string `json:"url"`
	FileID string `json:"fileId"`
}

// Uploader is the object-storage collaborator as the service layer sees it.
type Uploader interface {
	Upload(ctx context.Context, data []byte, fileName, folder string) (*UploadResult, error)
	Delete(ctx context.Context, fileID string) error
}

// ImageKit talks to the ImageKit upload REST API
// (https://docs.imagekit.io/api-reference/upload-file-api). Authentication
// is HTTP basic with the private key as username and an empty password;
// the file travels base64-encoded in a multipart form.
type ImageKit struct {
	privateKey string
	uploadURL  string
	apiURL     string
	client     *http.Client
}

const (
	imagekitUploadURL = "https://upload.imagekit.io/api/v1/files/upload"
	imagekitAPIURL    = "https://api.imagekit.io/v1/files"
)

// NewImageKit creates an ImageKit client with the given private API key.
func NewImageKit(privateKey string) *ImageKit {
	return &ImageKit{
		privateKey: privateKey,
		uploadURL:  imagekitUploadURL,
		apiURL:     imagekitAPIURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// newImageKitForTest points the client at a stub server.
func newImageKitForTest(privateKey, uploadURL, apiURL string) *ImageKit {
	return &ImageKit{
		privateKey: privateKey,
		uploadURL:  uploadURL,
		apiURL:     apiURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Upload sends the file to ImageKit and returns its public URL. fileName is
// prefixed with a millisecond timestamp so repeated uploads of the same
// file never collide.
func (ik *ImageKit) Upload(ctx context.Context, data []byte, fileName, folder string) (*UploadResult, error) {
	var body strings.Builder
	form := multipart.NewWriter(&body)

	fields := map[string]string{
		"file":     base64.StdEncoding.EncodeToString(data),
		"fileName": fmt.Sprintf("%d_%s", time.Now().UnixMilli(), fileName),
		"folder":   folder,
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, apperror.StorageFailure(fmt.Errorf("encoding upload form: %w", err))
		}
	}
	if err := form.Close(); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("closing upload form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ik.uploadURL, strings.NewReader(body.String()))
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.SetBasicAuth(ik.privateKey, "")

	resp, err := ik.client.Do(req)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("calling upload API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperror.StorageFailure(fmt.Errorf("upload API returned status %d: %s", resp.StatusCode, msg))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("decoding upload response: %w", err))
	}
	if result.URL == "" {
		return nil, apperror.StorageFailure(fmt.Errorf("upload API returned no URL"))
	}

	return &result, nil
}

// Delete removes a previously uploaded file by its provider ID.
func (ik *ImageKit) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, ik.apiURL+"/"+fileID, nil)
	if err != nil {
		return apperror.StorageFailure(err)
	}
	req.SetBasicAuth(ik.privateKey, "")

	resp, err := ik.client.Do(req)
	if err != nil {
		return apperror.StorageFailure(fmt.Errorf("calling delete API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apperror.StorageFailure(fmt.Errorf("delete API returned status %d", resp.StatusCode))
	}
	return nil
}
