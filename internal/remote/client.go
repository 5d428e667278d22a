// Package remote implements port.DataService over the backend's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Config holds the remote data service settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a port.DataService backed by the expense desk HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *schema
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

var _ port.DataService = (*Client)(nil)

// NewClient creates a client for the API at cfg.BaseURL
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		schema:     newSchema(),
		logger:     logger,
	}
}

// SetToken sets the bearer token sent with every data request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SignIn exchanges credentials for a session and keeps its token
func (c *Client) SignIn(ctx context.Context, email, password string) (*port.Session, error) {
	return c.session(ctx, "/auth/v1/token", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignUp registers an account and keeps the new session's token
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*port.Session, error) {
	return c.session(ctx, "/auth/v1/signup", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	})
}

func (c *Client) session(ctx context.Context, path string, body interface{}) (*port.Session, error) {
	var row sessionRow
	if err := c.do(ctx, http.MethodPost, path, nil, body, &row); err != nil {
		return nil, err
	}
	if err := c.schema.check("session", &row); err != nil {
		return nil, err
	}
	c.SetToken(row.AccessToken)
	return &port.Session{AccessToken: row.AccessToken, UserID: row.User.ID, Email: row.User.Email}, nil
}

// ListExpenses reads expense rows with exact-match filters
func (c *Client) ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	q := url.Values{}
	if filter.UserID != "" {
		q.Set("user_id", filter.UserID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.OrderBy != "" {
		q.Set("order", string(filter.OrderBy))
	}
	if filter.WithSubmitter {
		q.Set("submitter", "true")
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var rows []expenseRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/expenses", q, nil, &rows); err != nil {
		return nil, err
	}
	return convertAll(rows, c.schema.expense)
}

type insertBody struct {
	Merchant     string          `json:"merchant"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Category     *string         `json:"category,omitempty"`
	Description  *string         `json:"description,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	ExpenseDate  string          `json:"expense_date"`
	Reimbursable bool            `json:"reimbursable"`
	ReceiptURL   *string         `json:"receipt_url,omitempty"`
	Status       string          `json:"status,omitempty"`
	Source       string          `json:"source,omitempty"`
	Confidence   string          `json:"confidence,omitempty"`
	PolicyFlags  []string        `json:"policy_flags,omitempty"`
}

// InsertExpense creates an expense owned by the signed-in identity
func (c *Client) InsertExpense(ctx context.Context, expense entity.NewExpense) (*entity.Expense, error) {
	body := insertBody{
		Merchant:     expense.Merchant,
		Amount:       expense.Amount.Value,
		Currency:     expense.Amount.Currency,
		Category:     expense.Category,
		Description:  expense.Description,
		Tags:         expense.Tags,
		ExpenseDate:  expense.ExpenseDate.Format(time.DateOnly),
		Reimbursable: expense.Reimbursable,
		ReceiptURL:   expense.ReceiptURL,
		Status:       string(expense.Status),
		Source:       string(expense.Source),
		Confidence:   string(expense.Confidence),
		PolicyFlags:  expense.PolicyFlags,
	}

	var row expenseRow
	if err := c.do(ctx, http.MethodPost, "/rest/v1/expenses", nil, body, &row); err != nil {
		return nil, err
	}
	return c.schema.expense(&row)
}

// DeleteDraftExpense removes one of the caller's drafts
func (c *Client) DeleteDraftExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/expenses/"+url.PathEscape(id), nil, nil, nil)
}

// ExpenseHistory reads the audit trail of an expense
func (c *Client) ExpenseHistory(ctx context.Context, id string) ([]*entity.HistoryItem, error) {
	var rows []historyRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/expenses/"+url.PathEscape(id)+"/history", nil, nil, &rows); err != nil {
		return nil, err
	}
	return convertAll(rows, c.schema.history)
}

// ExpenseActions lists the triggers the caller may fire on an expense now
func (c *Client) ExpenseActions(ctx context.Context, id string) ([]string, error) {
	var resp struct {
		Actions []string `json:"actions"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/v1/expenses/"+url.PathEscape(id)+"/actions", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Actions, nil
}

// GetProfile reads one profile
func (c *Client) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	var row profileRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles/"+url.PathEscape(id), nil, nil, &row); err != nil {
		return nil, err
	}
	return c.schema.profile(&row)
}

// ListProfiles reads every profile
func (c *Client) ListProfiles(ctx context.Context) ([]*entity.Profile, error) {
	var rows []profileRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/profiles", nil, nil, &rows); err != nil {
		return nil, err
	}
	return convertAll(rows, c.schema.profile)
}

// ListCategories reads the active categories
func (c *Client) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	var rows []categoryRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/categories", nil, nil, &rows); err != nil {
		return nil, err
	}
	return convertAll(rows, c.schema.category)
}

// ListRules reads the automation rules
func (c *Client) ListRules(ctx context.Context) ([]*entity.Rule, error) {
	var rows []ruleRow
	if err := c.do(ctx, http.MethodGet, "/rest/v1/rules", nil, nil, &rows); err != nil {
		return nil, err
	}
	return convertAll(rows, c.schema.rule)
}

// SubmitExpense calls the submit procedure
func (c *Client) SubmitExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rpc/submit_expense", nil, map[string]string{"expense_id": id}, nil)
}

// ApproveExpense calls the approve procedure
func (c *Client) ApproveExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/rpc/approve_expense", nil, map[string]string{"expense_id": id}, nil)
}

// RejectExpense calls the reject procedure
func (c *Client) RejectExpense(ctx context.Context, id, reason string) error {
	return c.do(ctx, http.MethodPost, "/rpc/reject_expense", nil, map[string]string{"expense_id": id, "reason": reason}, nil)
}

// PromoteUserToAdmin calls the promotion procedure
func (c *Client) PromoteUserToAdmin(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/rpc/promote_user_to_admin", nil, map[string]string{"user_email": email}, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one request and decodes the data of the response envelope into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %v", port.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Data service call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %s %s: status %d", port.ErrUnavailable, method, path, resp.StatusCode)
		}
		return fmt.Errorf("%w: decode %s: %v", port.ErrSchema, path, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		sentinel := statusError(resp.StatusCode)
		message := http.StatusText(resp.StatusCode)
		if env.Error != nil && env.Error.Message != "" {
			message = trimSentinel(env.Error.Message, sentinel)
		}
		if message == "" {
			return sentinel
		}
		return fmt.Errorf("%w: %s", sentinel, message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", port.ErrSchema, path, err)
	}
	return nil
}

// trimSentinel drops the sentinel text the server already put in front of
// its message, so wrapping does not repeat it
func trimSentinel(message string, sentinel error) string {
	text := sentinel.Error()
	for strings.HasPrefix(message, text+": ") {
		message = strings.TrimPrefix(message, text+": ")
	}
	if message == text {
		return ""
	}
	return strings.TrimSpace(message)
}

// statusError maps a response status back to the domain sentinel
func statusError(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return entity.ErrValidation
	case http.StatusUnauthorized:
		return entity.ErrUnauthenticated
	case http.StatusForbidden:
		return entity.ErrForbidden
	case http.StatusNotFound:
		return entity.ErrNotFound
	case http.StatusConflict:
		return entity.ErrConflict
	default:
		return port.ErrUnavailable
	}
}
