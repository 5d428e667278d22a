package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Version is reported by the health check
const Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	})
}

// SignUp handles POST /auth/v1/signup
func (h *Handlers) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.services.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, result)
}

// SignIn handles POST /auth/v1/token
func (h *Handlers) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.services.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// ListExpenses handles GET /rest/v1/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	var q ListExpensesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	filter := port.ExpenseFilter{
		UserID:        q.UserID,
		OrderBy:       port.OrderField(q.Order),
		WithSubmitter: q.Submitter,
		Limit:         q.Limit,
	}
	if q.Status != "" {
		status, err := entity.ParseStatus(q.Status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.Status = status
	}

	expenses, err := h.services.Expenses.Query(c.Request.Context(), caller(c), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, expenses)
}

// GetExpense handles GET /rest/v1/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	expense, err := h.services.Expenses.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// CreateExpense handles POST /rest/v1/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	input, err := req.toNewExpense()
	if err != nil {
		h.respondError(c, err)
		return
	}

	expense, err := h.services.Expenses.Create(c.Request.Context(), caller(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, expense)
}

// DeleteExpense handles DELETE /rest/v1/expenses/:id
func (h *Handlers) DeleteExpense(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Expenses.Delete(c.Request.Context(), caller(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, DeletedResponse{ID: id})
}

// ExpenseHistory handles GET /rest/v1/expenses/:id/history
func (h *Handlers) ExpenseHistory(c *gin.Context) {
	items, err := h.services.Expenses.History(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// ExpenseActions handles GET /rest/v1/expenses/:id/actions
func (h *Handlers) ExpenseActions(c *gin.Context) {
	id := c.Param("id")
	actions, err := h.services.Expenses.Actions(c.Request.Context(), caller(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, ActionsResponse{ID: id, Actions: actions})
}

// ListProfiles handles GET /rest/v1/profiles
func (h *Handlers) ListProfiles(c *gin.Context) {
	profiles, err := h.services.Profiles.List(c.Request.Context(), caller(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, profiles)
}

// GetProfile handles GET /rest/v1/profiles/:id. The id "me" is the caller.
func (h *Handlers) GetProfile(c *gin.Context) {
	identity := caller(c)
	id := c.Param("id")
	if id == "me" {
		id = identity.UserID
	}

	profile, err := h.services.Profiles.Get(c.Request.Context(), identity, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, profile)
}

// ListCategories handles GET /rest/v1/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(c, entity.Invalidf("active must be a boolean"))
			return
		}
		activeOnly = v
	}

	categories, err := h.services.Catalog.Categories(c.Request.Context(), caller(c), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, categories)
}

// ListRules handles GET /rest/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.services.Catalog.Rules(c.Request.Context(), caller(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, rules)
}

// Capture handles POST /rest/v1/capture. It accepts a JSON body or a
// multipart form with source, text and an optional file field.
func (h *Handlers) Capture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	input, err := h.bindCapture(c)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	expense, err := h.services.Capture.Capture(c.Request.Context(), caller(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, expense)
}

func (h *Handlers) bindCapture(c *gin.Context) (port.CaptureInput, error) {
	var input port.CaptureInput

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		source, err := entity.ParseSource(c.PostForm("source"))
		if err != nil {
			return input, err
		}
		input.Source = source
		input.Text = c.PostForm("text")

		header, err := c.FormFile("file")
		if err == http.ErrMissingFile {
			return input, nil
		}
		if err != nil {
			return input, fmt.Errorf("read upload: %w", err)
		}
		f, err := header.Open()
		if err != nil {
			return input, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()

		if input.Content, err = io.ReadAll(f); err != nil {
			return input, fmt.Errorf("read upload: %w", err)
		}
		input.FileName = header.Filename
		input.MimeType = header.Header.Get("Content-Type")
		return input, nil
	}

	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return input, err
	}
	source, err := entity.ParseSource(req.Source)
	if err != nil {
		return input, err
	}
	return port.CaptureInput{
		Source:   source,
		Text:     req.Text,
		FileName: req.FileName,
		MimeType: req.MimeType,
		Content:  req.Content,
	}, nil
}

// SubmitExpense handles POST /rpc/submit_expense
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req ExpenseIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	expense, err := h.services.Expenses.Submit(c.Request.Context(), caller(c), req.ExpenseID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// ApproveExpense handles POST /rpc/approve_expense
func (h *Handlers) ApproveExpense(c *gin.Context) {
	var req ExpenseIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	expense, err := h.services.Expenses.Approve(c.Request.Context(), caller(c), req.ExpenseID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// RejectExpense handles POST /rpc/reject_expense
func (h *Handlers) RejectExpense(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	expense, err := h.services.Expenses.Reject(c.Request.Context(), caller(c), req.ExpenseID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, expense)
}

// PromoteUserToAdmin handles POST /rpc/promote_user_to_admin
func (h *Handlers) PromoteUserToAdmin(c *gin.Context) {
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	profile, err := h.services.Profiles.PromoteToAdmin(c.Request.Context(), caller(c), req.UserEmail)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, profile)
}
