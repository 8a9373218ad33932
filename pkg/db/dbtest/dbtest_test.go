package dbtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

func TestInactiveRowsPersistAsInactive(t *testing.T) {
	conn := Open(t).DB()

	user := &models.User{Name: "Old courier", Role: enums.UserRoleDeliveryBoy}
	require.NoError(t, conn.Create(user).Error)
	store := &models.Store{RetailerID: user.ID, Name: "Closed branch"}
	require.NoError(t, conn.Create(store).Error)
	listing := &models.Listing{StoreID: store.ID, Name: "Sugar 1kg", PriceRetail: decimal.RequireFromString("45")}
	require.NoError(t, conn.Create(listing).Error)

	var gotUser models.User
	require.NoError(t, conn.Take(&gotUser, "id = ?", user.ID).Error)
	assert.False(t, gotUser.IsActive, "user")

	var gotStore models.Store
	require.NoError(t, conn.Take(&gotStore, "id = ?", store.ID).Error)
	assert.False(t, gotStore.IsActive, "store")

	var gotListing models.Listing
	require.NoError(t, conn.Take(&gotListing, "id = ?", listing.ID).Error)
	assert.False(t, gotListing.IsActive, "listing")
}
