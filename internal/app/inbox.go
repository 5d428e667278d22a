package app

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// DefaultInboxLimit caps the rows shown by the inbox
const DefaultInboxLimit = 50

// InboxFilter narrows the inbox. Zero fields match everything.
type InboxFilter struct {
	Query    string
	Status   entity.Status
	Category string
	Source   entity.Source
	// Limit caps the result; zero selects DefaultInboxLimit, negative is unlimited
	Limit int
}

// FilterExpenses applies the inbox filter. The query matches merchant,
// description or the formatted amount, case-insensitively.
func FilterExpenses(expenses []*entity.Expense, f InboxFilter) []*entity.Expense {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	limit := f.Limit
	if limit == 0 {
		limit = DefaultInboxLimit
	}

	out := []*entity.Expense{}
	for _, e := range expenses {
		if limit > 0 && len(out) == limit {
			break
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.Category != "" && !strings.EqualFold(e.CategoryLabel(), f.Category) {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if query != "" && !matchesQuery(e, query) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesQuery(e *entity.Expense, query string) bool {
	if strings.Contains(strings.ToLower(e.Merchant), query) {
		return true
	}
	if e.Description != nil && strings.Contains(strings.ToLower(*e.Description), query) {
		return true
	}
	return strings.Contains(strings.ToLower(FormatMoney(e.Amount)), query)
}

// InboxController lists every visible expense with the category catalogue
type InboxController struct {
	data     port.DataService
	export   port.SpreadsheetWriter
	notifier Notifier
	logger   *zap.Logger

	mu         sync.RWMutex
	expenses   []*entity.Expense
	categories []*entity.Category
}

// NewInboxController creates the inbox controller
func NewInboxController(data port.DataService, export port.SpreadsheetWriter, notifier Notifier, logger *zap.Logger) *InboxController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxController{
		data:       data,
		export:     export,
		notifier:   notifier,
		logger:     logger,
		expenses:   []*entity.Expense{},
		categories: []*entity.Category{},
	}
}

// Load reads the visible expenses and the categories concurrently. Both
// must succeed for the state to change.
func (c *InboxController) Load(ctx context.Context, auth AuthContext) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.Authenticated {
		return failed(entity.ErrUnauthenticated)
	}

	var (
		expenses   []*entity.Expense
		categories []*entity.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = c.data.ListExpenses(gctx, port.ExpenseFilter{
			UserID:        auth.ReadScope(),
			OrderBy:       port.OrderByCreatedAt,
			WithSubmitter: auth.CanApprove,
		})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = c.data.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		res := failed(err)
		c.logger.Error("Failed to load inbox", zap.Error(err))
		notifyError(c.notifier, "Failed to load expenses", res)
		return res
	}

	c.mu.Lock()
	c.expenses = expenses
	c.categories = categories
	c.mu.Unlock()
	return ok()
}

// Visible returns the loaded expenses that pass the filter
func (c *InboxController) Visible(f InboxFilter) []*entity.Expense {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return FilterExpenses(c.expenses, f)
}

// Categories returns the loaded catalogue
func (c *InboxController) Categories() []*entity.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.categories
}

// CategoryColor returns the catalogue color of a category name, or empty
func (c *InboxController) CategoryColor(name string) string {
	for _, cat := range c.Categories() {
		if strings.EqualFold(cat.Name, name) {
			return cat.Color
		}
	}
	return ""
}

// Export writes the filtered rows as a spreadsheet
func (c *InboxController) Export(w io.Writer, f InboxFilter) Result {
	if err := c.export.WriteExpenses(w, c.Visible(f)); err != nil {
		res := failed(err)
		c.logger.Error("Failed to export expenses", zap.Error(err))
		notifyError(c.notifier, "Failed to export expenses", res)
		return res
	}
	notifySuccess(c.notifier, "Expenses exported")
	return ok()
}
