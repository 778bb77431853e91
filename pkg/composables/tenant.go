package composables

import (
	"context"
	"errors"
	"strings"

	"github.com/vtlabs/tallysync/pkg/constants"
)

var ErrNoTenant = errors.New("no tenant found in context")

// Tenant scopes every repository operation to one (company, division) pair.
type Tenant struct {
	CompanyID  string
	DivisionID string
}

func NewTenant(companyID, divisionID string) (Tenant, error) {
	t := Tenant{
		CompanyID:  strings.TrimSpace(companyID),
		DivisionID: strings.TrimSpace(divisionID),
	}
	if t.CompanyID == "" || t.DivisionID == "" {
		return Tenant{}, errors.New("tenant requires both company and division ids")
	}
	return t, nil
}

// Key is a stable identifier for per-tenant bookkeeping (status store,
// in-flight run coalescing).
func (t Tenant) Key() string {
	return t.CompanyID + "/" + t.DivisionID
}

func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, constants.TenantKey, t)
}

func UseTenant(ctx context.Context) (Tenant, error) {
	t, ok := ctx.Value(constants.TenantKey).(Tenant)
	if !ok {
		return Tenant{}, ErrNoTenant
	}
	return t, nil
}
