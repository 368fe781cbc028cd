package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"anoa.com/homeworktracker/pkg/metrics"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sirupsen/logrus"
)

const backendCloudinary = "cloudinary"

// CloudinaryStore keeps attachments in Cloudinary. Locators are the secure
// delivery URLs.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *logrus.Logger
}

// NewCloudinaryStore expects CLOUDINARY_URL to be configured in the
// environment (see Cloudinary Go SDK docs).
func NewCloudinaryStore(folder string, logger *logrus.Logger) (*CloudinaryStore, error) {
	// cloudinary.New() automatically reads CLOUDINARY_URL from environment if present.
	cld, err := cloudinary.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	// Ensure HTTPS URLs by default.
	cld.Config.URL.Secure = true

	return &CloudinaryStore{cld: cld, folder: folder, logger: logger}, nil
}

func (s *CloudinaryStore) Store(ctx context.Context, r io.Reader, originalName string) (locator string, err error) {
	defer func() { metrics.RecordAttachment(backendCloudinary, "store", err) }()

	if s == nil || s.cld == nil {
		return "", fmt.Errorf("cloudinary storage is not initialized")
	}

	name := GenerateName(originalName)
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     strings.TrimSuffix(name, filepath.Ext(name)),
		ResourceType: "auto",
		Overwrite:    api.Bool(false),
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload failed: %s", resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return resp.SecureURL, nil
}

func (s *CloudinaryStore) Release(ctx context.Context, locator string) {
	log := s.logger.WithField("locator", locator)

	resourceType, publicID := extractPublicID(locator)
	if publicID == "" {
		log.Warn("could not extract public ID from attachment URL")
		metrics.RecordAttachment(backendCloudinary, "release", errors.New("unparseable locator"))
		return
	}

	// Invalidate: true helps to clear CDN cache
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
		Invalidate:   api.Bool(true),
	})
	if err == nil && resp.Result != "ok" && resp.Result != "not found" {
		err = fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}
	if err != nil {
		log.WithError(err).Warn("failed to release attachment")
	}
	metrics.RecordAttachment(backendCloudinary, "release", err)
}

// extractPublicID returns the resource type and public ID of a Cloudinary URL.
// Example: https://res.cloudinary.com/demo/image/upload/v123456789/folder/sample.jpg -> image, folder/sample
// Raw resources keep their extension in the public ID.
func extractPublicID(fileURL string) (string, string) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", ""
	}

	// Path is /<cloud_name>/<resource_type>/upload/[v<version>/]<folder>/<file>.<ext>
	parts := strings.Split(u.Path, "/")
	uploadIndex := -1
	for i, p := range parts {
		if p == "upload" {
			uploadIndex = i
			break
		}
	}

	if uploadIndex < 1 || uploadIndex+1 >= len(parts) {
		return "", ""
	}
	resourceType := parts[uploadIndex-1]

	relevantParts := parts[uploadIndex+1:]
	if len(relevantParts) > 0 && isVersion(relevantParts[0]) {
		relevantParts = relevantParts[1:]
	}
	publicID := strings.Join(relevantParts, "/")
	if publicID == "" {
		return "", ""
	}
	if resourceType == "raw" {
		return resourceType, publicID
	}
	return resourceType, strings.TrimSuffix(publicID, filepath.Ext(publicID))
}

func isVersion(segment string) bool {
	if len(segment) < 2 || segment[0] != 'v' {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
