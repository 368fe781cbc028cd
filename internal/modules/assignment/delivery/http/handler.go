package handler

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"anoa.com/homeworktracker/internal/model"
	"anoa.com/homeworktracker/internal/modules/assignment/dto"
	assignment "anoa.com/homeworktracker/internal/modules/assignment/service"
	"anoa.com/homeworktracker/pkg/apperror"
	commonDto "anoa.com/homeworktracker/pkg/dto"
	"anoa.com/homeworktracker/pkg/ratelimit"
	"anoa.com/homeworktracker/pkg/response"
	"anoa.com/homeworktracker/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// allowedExtensions is the upload allow-list: common images, PDF and text.
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
	".txt":  true,
}

const (
	uploadAction      = "upload"
	formOverheadBytes = 64 << 10
)

var (
	errFileTooLarge  = apperror.New(http.StatusRequestEntityTooLarge, "file is too large", apperror.ErrBadRequest)
	errFileType      = apperror.New(http.StatusBadRequest, "file type not allowed: use png, jpg, jpeg, pdf or txt", apperror.ErrBadRequest)
	errInvalidUpload = apperror.New(http.StatusBadRequest, "invalid file upload", apperror.ErrBadRequest)
	errNoFields      = apperror.New(http.StatusBadRequest, "no fields to update", apperror.ErrBadRequest)
	errInvalidID     = apperror.New(http.StatusBadRequest, "invalid assignment id", apperror.ErrBadRequest)
)

type Options struct {
	MaxUploadBytes    int64
	UploadRateLimit   time.Duration
	OrphanGracePeriod time.Duration
	Redis             *redis.Client
}

type AssignmentHandler struct {
	service assignment.Service
	logger  *logrus.Logger
	opts    Options
}

func NewAssignmentHandler(service assignment.Service, logger *logrus.Logger, opts Options) *AssignmentHandler {
	return &AssignmentHandler{service: service, logger: logger, opts: opts}
}

func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	if !h.allowUpload(c) {
		return
	}

	if limit := h.bodyLimit(); limit > 0 {
		if c.Request.ContentLength > limit {
			response.ResponseError(c, h.logger, errFileTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var req dto.CreateAssignmentRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.ResponseError(c, h.logger, errFileTooLarge)
			return
		}
		response.ResponseError(c, h.logger, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrBadRequest))
		return
	}

	a, err := toAssignment(req)
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	var upload *assignment.Upload
	file, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		response.ResponseError(c, h.logger, errInvalidUpload)
		return
	default:
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedExtensions[ext] {
			response.ResponseError(c, h.logger, errFileType)
			return
		}
		if h.opts.MaxUploadBytes > 0 && file.Size > h.opts.MaxUploadBytes {
			response.ResponseError(c, h.logger, errFileTooLarge)
			return
		}

		f, err := file.Open()
		if err != nil {
			response.ResponseError(c, h.logger, errInvalidUpload)
			return
		}
		defer f.Close()
		upload = &assignment.Upload{Reader: f, Filename: file.Filename}
	}

	id, err := h.service.CreateAssignment(c.Request.Context(), a, upload)
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateAssignmentResponse{ID: id})
}

// allowUpload applies the per-client upload throttle. A limiter outage does
// not block the tracker.
func (h *AssignmentHandler) allowUpload(c *gin.Context) bool {
	ctx := c.Request.Context()
	client := c.ClientIP()

	allowed, err := ratelimit.CheckAndSet(ctx, h.opts.Redis, client, uploadAction, h.opts.UploadRateLimit)
	if err != nil {
		h.logger.WithError(err).Warn("rate limit check failed")
		return true
	}
	if allowed {
		return true
	}

	if ttl, err := ratelimit.TTL(ctx, h.opts.Redis, client, uploadAction); err == nil && ttl > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
	}
	response.ResponseError(c, h.logger, apperror.ErrRateLimitExceeded)
	return false
}

// bodyLimit caps the whole multipart body: the file plus room for the form
// fields.
func (h *AssignmentHandler) bodyLimit() int64 {
	if h.opts.MaxUploadBytes <= 0 {
		return 0
	}
	return h.opts.MaxUploadBytes + formOverheadBytes
}

func (h *AssignmentHandler) GetAllAssignments(c *gin.Context) {
	assignments, err := h.service.ListAssignments(c.Request.Context())
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	data := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		data = append(data, dto.ToAssignmentResponse(a))
	}

	c.JSON(http.StatusOK, commonDto.ListResponse[dto.AssignmentResponse]{Data: data})
}

func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	a, err := h.service.GetAssignment(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssignmentResponse(*a))
}

func (h *AssignmentHandler) UpdateAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, h.logger, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrBadRequest))
		return
	}

	update, err := toUpdate(req)
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}
	if update.IsEmpty() {
		response.ResponseError(c, h.logger, errNoFields)
		return
	}

	if err := h.service.UpdateAssignment(c.Request.Context(), id, update); err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.MessageResponse{Message: "assignment updated successfully"})
}

func (h *AssignmentHandler) DeleteAssignment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteAssignment(c.Request.Context(), id); err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.MessageResponse{Message: "assignment deleted successfully"})
}

func (h *AssignmentHandler) ExportAssignments(c *gin.Context) {
	// Buffered so a storage error can still produce a proper status code.
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Request.Context(), &buf); err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="assignments.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *AssignmentHandler) CleanupOrphans(c *gin.Context) {
	released, err := h.service.CleanupOrphanAttachments(c.Request.Context(), h.opts.OrphanGracePeriod)
	if err != nil {
		response.ResponseError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{Released: released})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, nil, errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func toAssignment(req dto.CreateAssignmentRequest) (*model.Assignment, error) {
	due, err := model.ParseDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	priority, err := model.ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	notes := req.Notes
	return &model.Assignment{
		Subject:  req.Subject,
		Title:    req.Title,
		DueDate:  due,
		Status:   status,
		Priority: priority,
		Notes:    &notes,
	}, nil
}

func toUpdate(req dto.UpdateAssignmentRequest) (model.AssignmentUpdate, error) {
	update := model.AssignmentUpdate{
		Subject: req.Subject,
		Title:   req.Title,
		Notes:   req.Notes,
	}
	if req.DueDate != nil {
		due, err := model.ParseDate(*req.DueDate)
		if err != nil {
			return update, err
		}
		update.DueDate = &due
	}
	if req.Status != nil {
		status, err := model.ParseStatus(*req.Status)
		if err != nil {
			return update, err
		}
		update.Status = &status
	}
	if req.Priority != nil {
		priority, err := model.ParsePriority(*req.Priority)
		if err != nil {
			return update, err
		}
		update.Priority = &priority
	}
	return update, nil
}
