package composables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTenant_TrimsAndValidates(t *testing.T) {
	tenant, err := NewTenant("  acme  ", " main ")
	require.NoError(t, err)
	require.Equal(t, "acme", tenant.CompanyID)
	require.Equal(t, "main", tenant.DivisionID)
	require.Equal(t, "acme/main", tenant.Key())
}

func TestNewTenant_RejectsIncompleteScope(t *testing.T) {
	_, err := NewTenant("", "main")
	require.Error(t, err)
	_, err = NewTenant("acme", "   ")
	require.Error(t, err)
}

func TestUseTenant_RoundTrip(t *testing.T) {
	tenant, err := NewTenant("acme", "main")
	require.NoError(t, err)

	ctx := WithTenant(context.Background(), tenant)
	got, err := UseTenant(ctx)
	require.NoError(t, err)
	require.Equal(t, tenant, got)

	_, err = UseTenant(context.Background())
	require.ErrorIs(t, err, ErrNoTenant)
}
