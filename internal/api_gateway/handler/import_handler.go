package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/household-ledger/internal/api_gateway/middleware"
	"github.com/household-ledger/internal/api_gateway/service"
)

// csvFormField is the multipart field holding the uploaded statement
const csvFormField = "file"

var errEmptyUpload = errors.New("csv file is empty")

// ImportHandler handles CSV statement uploads
type ImportHandler struct {
	importService  service.ImportService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler accepting bodies up to maxUploadBytes
func NewImportHandler(logger *slog.Logger, importService service.ImportService, maxUploadBytes int64) *ImportHandler {
	return &ImportHandler{
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Create imports a CSV file sent as multipart field "file" or as the raw request body.
// account_id names the target account; async=true queues the import and answers 202.
func (h *ImportHandler) Create(c *gin.Context) {
	var target *uuid.UUID
	if raw := strings.TrimSpace(c.Query("account_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid account ID")
			return
		}
		target = &id
	}

	async, err := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if err != nil {
		RespondBadRequest(c, "async must be a boolean")
		return
	}

	csv, err := h.readCSV(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			RespondWithError(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
				"csv file exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes")
		case errors.Is(err, errEmptyUpload):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Warn("Failed to read uploaded csv", "error", err)
			RespondBadRequest(c, "Could not read csv upload: "+err.Error())
		}
		return
	}

	userID := middleware.GetUserID(c)
	if async {
		job, err := h.importService.SubmitImport(c.Request.Context(), userID, csv, target, middleware.GetCorrelationID(c))
		if err != nil {
			respondServiceError(c, h.logger, "submit import", err)
			return
		}
		c.Header("Location", c.FullPath()+"/"+job.ID.String())
		RespondAccepted(c, mapImportJobToResponse(job))
		return
	}

	result, err := h.importService.Import(c.Request.Context(), userID, csv, target)
	if err != nil {
		respondServiceError(c, h.logger, "import csv", err)
		return
	}

	RespondCreated(c, mapImportResultToResponse(result))
}

// GetJob returns the status of an asynchronous import
func (h *ImportHandler) GetJob(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "import job")
	if !ok {
		return
	}

	job, err := h.importService.GetImportJob(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondServiceError(c, h.logger, "get import job", err)
		return
	}

	RespondOK(c, mapImportJobToResponse(job))
}

func (h *ImportHandler) readCSV(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile(csvFormField)
		if err != nil {
			return nil, err
		}
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		body = file
	}

	csv, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(csv))) == 0 {
		return nil, errEmptyUpload
	}
	return csv, nil
}
