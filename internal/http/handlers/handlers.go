package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/oncall-dispatch/backend/internal/db"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/schedule"
	"github.com/oncall-dispatch/backend/internal/service"
	"github.com/oncall-dispatch/backend/internal/session"
	"github.com/oncall-dispatch/backend/internal/utils"
)

type Handler struct {
	Session        *session.Session
	Lookup         *service.LookupService
	Loader         *service.Loader
	Store          *db.Store
	Validator      *validator.Validate
	Logger         zerolog.Logger
	MaxUploadBytes int64
}

type tableStatus struct {
	Loaded bool   `json:"loaded"`
	Rows   int    `json:"rows"`
	Source string `json:"source,omitempty"`
}

type HealthResponse struct {
	Status   string                 `json:"status"`
	Database string                 `json:"database,omitempty"`
	Tables   map[string]tableStatus `json:"tables"`
}

// @Summary Health
// @Description Loaded tables, plus a database ping when a database is configured
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	snap := h.Session.Snapshot()
	resp := HealthResponse{Status: "ok", Tables: map[string]tableStatus{}}
	if snap.Geo != nil {
		resp.Tables[string(session.TableZip)] = tableStatus{Loaded: snap.Geo.Len() > 0, Rows: snap.Geo.Len()}
	} else {
		resp.Tables[string(session.TableZip)] = tableStatus{}
	}
	if snap.Directory != nil {
		resp.Tables[string(session.TableTech)] = tableStatus{Loaded: snap.Directory.Len() > 0, Rows: snap.Directory.Len()}
	} else {
		resp.Tables[string(session.TableTech)] = tableStatus{}
	}
	if snap.Rotation != nil && snap.Rotation.Schedule != nil {
		resp.Tables[string(session.TableRotation)] = tableStatus{Loaded: true, Rows: len(snap.Rotation.Schedule.Markets), Source: snap.Rotation.Filename}
	} else {
		resp.Tables[string(session.TableRotation)] = tableStatus{}
	}

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
		resp.Database = "ok"
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Load rotation workbook
// @Description Upload the OnCall rotation workbook. A "Daily Tech Availability" sheet, when present, feeds non-availability records.
// @Tags oncall
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "rotation workbook (.xlsx or .xls)"
// @Success 200 {object} service.RotationSummary
// @Failure 400 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/oncall/rotation [post]
func (h *Handler) UploadRotation(c *gin.Context) {
	file, ok := h.workbookFile(c)
	if !ok {
		return
	}
	r, err := file.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Could not open upload", err.Error())
		return
	}
	defer r.Close()

	summary, err := h.Loader.LoadRotation(r, file.Filename)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Load technician workbook
// @Tags oncall
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "technician workbook (.xlsx or .xls)"
// @Success 200 {object} service.TechSummary
// @Failure 400 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/oncall/techdb [post]
func (h *Handler) UploadTechDB(c *gin.Context) {
	file, ok := h.workbookFile(c)
	if !ok {
		return
	}
	r, err := file.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Could not open upload", err.Error())
		return
	}
	defer r.Close()

	summary, err := h.Loader.LoadTechWorkbook(r, file.Filename)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Download cleaned rotation
// @Description The loaded rotation grid with market names replaced by their center ZIPs
// @Tags oncall
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Success 304
// @Failure 412 {object} map[string]any
// @Router /api/oncall/rotation/cleaned [get]
func (h *Handler) CleanedRotation(c *gin.Context) {
	data, err := h.Loader.CleanedRotation()
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	etag := utils.ETag(data)
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+service.CleanedDownloadName+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// @Summary Reload reference tables
// @Description Refetch the ZIP and technician tables through the provider chain. A table that fails keeps its previous contents.
// @Tags oncall
// @Produce json
// @Success 200 {object} service.RefdataSummary
// @Failure 502 {object} map[string]any
// @Router /api/oncall/refdata/reload [post]
func (h *Handler) ReloadRefData(c *gin.Context) {
	summary, err := h.Loader.ReloadRefData(c.Request.Context())
	if err != nil {
		h.Logger.Warn().Err(err).Msg("reference table reload incomplete")
		if summary.ZipRows == 0 && summary.TechRows == 0 {
			writeError(c, http.StatusBadGateway, "REFDATA_UNAVAILABLE", "Reference tables could not be reloaded", summary.Errors)
			return
		}
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Week intervals
// @Tags oncall
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 412 {object} map[string]any
// @Router /api/oncall/weeks [get]
func (h *Handler) Weeks(c *gin.Context) {
	weeks, err := h.Lookup.Weeks()
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	items := make([]gin.H, 0, len(weeks))
	for i, w := range weeks {
		items = append(items, gin.H{"index": i, "start": w.Start.Format("2006-01-02"), "end": w.End.Format("2006-01-02"), "range": w.Range()})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Boundary check
// @Description Tells the caller whether the date sits on a week cutover and needs an AM/PM hint
// @Tags oncall
// @Produce json
// @Param date query string true "ticket date (YYYY-MM-DD, MM/DD/YYYY)"
// @Success 200 {object} schedule.Boundary
// @Failure 400 {object} map[string]any
// @Router /api/oncall/boundary [get]
func (h *Handler) Boundary(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return
	}
	b, err := h.Lookup.Boundary(date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary Non-available technicians
// @Tags oncall
// @Produce json
// @Param date query string true "ticket date"
// @Param state query string false "2-letter state"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/oncall/nonavailability [get]
func (h *Handler) NonAvailability(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date is required", nil)
		return
	}
	state := strings.ToUpper(strings.TrimSpace(c.Query("state")))
	day, recs, err := h.Lookup.NonAvailability(date, state)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": day.Format("2006-01-02"), "state": state, "items": recs})
}

func (h *Handler) workbookFile(c *gin.Context) (*multipart.FileHeader, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file required", nil)
		return nil, false
	}
	if !validateExt(file.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "file must be .xlsx, .xlsm or .xls", nil)
		return nil, false
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the size limit", gin.H{"limit_bytes": h.MaxUploadBytes})
		return nil, false
	}
	return file, true
}

// writeServiceError maps the lookup error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var (
		structure *errs.StructureError
		amb       *errs.AmbiguousDateError
		oor       *errs.OutOfRangeError
		unknown   *errs.UnknownLocationError
		none      *errs.NoCandidatesError
		notLoaded *errs.NotLoadedError
		verrs     validator.ValidationErrors
	)
	switch {
	case errors.As(err, &structure):
		writeError(c, http.StatusUnprocessableEntity, structure.Code(), structure.Error(), nil)
	case errors.As(err, &amb):
		writeError(c, http.StatusConflict, amb.Code(), amb.Error(), gin.H{
			"date":           amb.Date,
			"previous_week":  amb.PreviousWeek,
			"boundary_week":  amb.BoundaryWeek,
			"previous_range": amb.PreviousRange,
			"boundary_range": amb.BoundaryRange,
		})
	case errors.As(err, &oor):
		writeError(c, http.StatusUnprocessableEntity, oor.Code(), oor.Error(), gin.H{"first": oor.First, "last": oor.Last})
	case errors.As(err, &unknown):
		writeError(c, http.StatusNotFound, unknown.Code(), unknown.Error(), nil)
	case errors.As(err, &none):
		writeError(c, http.StatusNotFound, none.Code(), none.Error(), none.Tiers)
	case errors.As(err, &notLoaded):
		writeError(c, http.StatusPreconditionFailed, notLoaded.Code(), notLoaded.Error(), gin.H{"table": notLoaded.Table})
	case errors.As(err, &verrs):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidChoice), errors.Is(err, schedule.ErrInvalidDate):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil)
	default:
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Request failed", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func validateExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}
