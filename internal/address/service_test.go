package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront/internal/apperr"
)

func TestService_AddTrimsAndValidates(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	ctx := context.Background()

	_, err := svc.AddAddress(ctx, 42, Input{AddressDesc: "   ", Phone: "1"})
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	a, err := svc.AddAddress(ctx, 42, Input{AddressDesc: " 1 Cat Lane ", AddressName: "Home"})
	require.NoError(t, err)
	assert.Equal(t, "1 Cat Lane", a.AddressDesc)

	got, err := svc.GetAddress(ctx, 42, a.AddressID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = svc.GetAddress(ctx, 43, a.AddressID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RejectsAnonymous(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	_, err := svc.GetAddresses(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
