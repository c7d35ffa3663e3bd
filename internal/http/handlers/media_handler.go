package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/mowmarket/mowmarket-backend/internal/dto"
	"github.com/mowmarket/mowmarket-backend/internal/http/handlers/common"
	"github.com/mowmarket/mowmarket-backend/internal/models"
	"github.com/mowmarket/mowmarket-backend/internal/repository"
	"github.com/mowmarket/mowmarket-backend/internal/storage"
)

// Evidence photos are real camera output, so only raster image types pass.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heif": true,
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
}

// MediaHandler manages evidence photo upload and signed download.
type MediaHandler struct {
	photos   *repository.PhotoRepository
	bookings *repository.BookingRepository
	storage  *storage.PhotoStorage
}

func NewMediaHandler(photos *repository.PhotoRepository, bookings *repository.BookingRepository, storage *storage.PhotoStorage) *MediaHandler {
	return &MediaHandler{photos: photos, bookings: bookings, storage: storage}
}

// UploadEvidence handles POST /bookings/:id/evidence. Multipart form with a
// "file" part and a "kind" field of before or after. Only the assigned
// contractor may upload, and only while the job is in progress.
func (h *MediaHandler) UploadEvidence(c *gin.Context) {
	contractorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	kind := c.PostForm("kind")
	if kind != models.PhotoKindBefore && kind != models.PhotoKindAfter {
		common.RespondBadRequest(c, "kind must be before or after")
		return
	}

	booking, err := h.bookings.GetByID(c.Request.Context(), bookingID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if booking.ContractorID == nil || *booking.ContractorID != contractorID {
		common.RespondError(c, http.StatusForbidden, "only the assigned contractor may upload evidence")
		return
	}
	if booking.Status != models.BookingStatusConfirmed {
		common.RespondError(c, http.StatusUnprocessableEntity, "evidence can only be uploaded for a confirmed booking")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "file field is required")
		return
	}
	if file.Size == 0 {
		common.RespondBadRequest(c, "file must not be empty")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		common.RespondBadRequest(c, fmt.Sprintf("unsupported file extension %s", ext))
		return
	}

	src, err := file.Open()
	if err != nil {
		common.Fail(c, err)
		return
	}
	defer src.Close()

	// Sniff magic bytes so a renamed non-image cannot slip through.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		common.RespondBadRequest(c, "could not read file")
		return
	}

	matched, err := filetype.Match(buffer[:n])
	if err != nil || matched == filetype.Unknown || !allowedMimeTypes[matched.MIME.Value] {
		common.RespondBadRequest(c, "file content is not a supported image type")
		return
	}

	if seeker, ok := src.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			common.Fail(c, err)
			return
		}
	}

	relativePath, size, err := h.storage.Save(c.Request.Context(), bookingID, contractorID, file.Filename, src)
	if err != nil {
		common.Fail(c, err)
		return
	}

	photo := &models.EvidencePhoto{
		BookingID:    bookingID,
		ContractorID: contractorID,
		Kind:         kind,
		Path:         relativePath,
		SizeBytes:    size,
	}
	if err := h.photos.Create(c.Request.Context(), photo); err != nil {
		// Orphaned file on disk is preferable to a DB record without a file.
		_ = h.storage.Delete(c.Request.Context(), relativePath)
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, dto.UploadResponse{
		Photo: *photo,
		URL:   h.storage.SignedURL(relativePath, time.Now().UTC()),
	})
}

// ServeEvidence handles GET /media/evidence/*path. Authenticated via the
// HMAC signature in the query string, not the session, so links can be
// embedded in notification emails.
func (h *MediaHandler) ServeEvidence(c *gin.Context) {
	relativePath := strings.TrimPrefix(c.Param("path"), "/")
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		common.RespondBadRequest(c, "expires must be a unix timestamp")
		return
	}
	sig := c.Query("sig")

	if !h.storage.VerifySignature(relativePath, expires, sig, time.Now().UTC()) {
		common.RespondError(c, http.StatusForbidden, "invalid or expired link")
		return
	}

	reader, err := h.storage.Open(c.Request.Context(), relativePath)
	if err != nil {
		common.RespondNotFound(c, "photo not found")
		return
	}
	defer reader.Close()

	c.Status(http.StatusOK)
	c.Header("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		// Client went away mid-transfer, nothing to do.
		return
	}
}
