package main

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type uploadPhotoResponse struct {
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	ImageHash    string `json:"image_hash"`
}

// uploadPhotoHandler accepts a multipart product photo, stores the original
// and a thumbnail, and returns the perceptual hash the order-capture call
// needs for duplicate detection.
func uploadPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		fileHeader, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !imageMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot decode image"})
			return
		}
		hash := utils.HashDecodedImage(img)

		ext := strings.ToLower(path.Ext(fileHeader.Filename))
		if ext == "" {
			if contentType == "image/png" {
				ext = ".png"
			} else {
				ext = ".jpg"
			}
		}
		objectKey := path.Join("photos", uuid.New().String()+ext)

		imageURL, err := utils.StoreObjectBytes(c.Request.Context(), objectKey, data, contentType)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadPhotoHandler", "store original", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}

		thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
			config.LogError(logger, "uploads.go", "uploadPhotoHandler", "encode thumbnail", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}
		thumbnailKey := thumbnailObjectKey(objectKey)
		thumbnailURL, err := utils.StoreObjectBytes(c.Request.Context(), thumbnailKey, buf.Bytes(), "image/jpeg")
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadPhotoHandler", "store thumbnail", thumbnailKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}

		c.JSON(http.StatusOK, uploadPhotoResponse{
			ImageURL:     imageURL,
			ThumbnailURL: thumbnailURL,
			ImageHash:    hash,
		})
	}
}

// uploadProofHandler stores a pickup or billing proof image and returns its
// URL. No hash; proofs are never deduplicated.
func uploadProofHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		fileHeader, err := c.FormFile("proof")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !imageMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read proof"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil || int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read proof"})
			return
		}

		ext := strings.ToLower(path.Ext(fileHeader.Filename))
		if ext == "" {
			ext = ".jpg"
		}
		objectKey := path.Join("proofs", uuid.New().String()+ext)

		url, err := utils.StoreObjectBytes(c.Request.Context(), objectKey, data, contentType)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadProofHandler", "store proof", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store proof"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}
