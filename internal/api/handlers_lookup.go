// handlers_lookup.go - Rule table and record database handlers
package api

import (
	"net/http"
	"strings"

	"github.com/crashscan/backend/internal/models"
	"github.com/crashscan/backend/internal/records"
	"github.com/labstack/echo/v4"
)

// LookupHandlerImpl implements the LookupHandler interface
type LookupHandlerImpl struct {
	rules    models.RulesInfo
	resolver *records.Resolver
}

// NewLookupHandler creates a new lookup handler instance
func NewLookupHandler(rules models.RulesInfo, resolver *records.Resolver) LookupHandler {
	return &LookupHandlerImpl{rules: rules, resolver: resolver}
}

type recordResponse struct {
	FormID      string `json:"formId"`
	Plugin      string `json:"plugin"`
	Description string `json:"description"`
}

// HandleGetRules returns a summary of the loaded signature tables
func (h *LookupHandlerImpl) HandleGetRules(c echo.Context) error {
	return c.JSON(http.StatusOK, h.rules)
}

// HandleLookupRecord resolves ?id= in ?plugin=. The id is the record part
// of a form id, without the load order prefix.
func (h *LookupHandlerImpl) HandleLookupRecord(c echo.Context) error {
	if !h.resolver.Enabled() {
		return NewServiceUnavailableError("record lookups are disabled")
	}

	plugin := strings.TrimSpace(c.QueryParam("plugin"))
	if plugin == "" {
		return NewValidationError("plugin")
	}
	id := strings.ToUpper(strings.TrimSpace(c.QueryParam("id")))
	id = strings.TrimPrefix(id, "0X")
	if id == "" {
		return NewValidationError("id")
	}

	desc, ok := h.resolver.Resolve(c.Request().Context(), id, plugin)
	if !ok {
		return NewNotFoundError("record", plugin+":"+id)
	}

	return c.JSON(http.StatusOK, recordResponse{
		FormID:      id,
		Plugin:      plugin,
		Description: desc,
	})
}
