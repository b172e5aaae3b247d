package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/apperr"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

func setupFavoriteTest(t *testing.T, dbName string) (*mongo.Database, IListingService, IFavoriteService) {
	database := setupListingTestDB(t, dbName)
	listingSvc := NewListingService(database, testConfig())
	return database, listingSvc, NewFavoriteService(database, listingSvc)
}

func TestAddFavoriteIdempotent(t *testing.T) {
	database, listingSvc, svc := setupFavoriteTest(t, "testdb_favorite_add")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	userID := insertTestUser(t, database, "fan")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	require.NoError(t, svc.AddFavorite(ctx, userID, listing.ID))
	// Saving again changes nothing.
	require.NoError(t, svc.AddFavorite(ctx, userID, listing.ID))

	found, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.FavoriteCount)

	count, err := svc.CountForListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	var notFound *apperr.NotFoundError
	err = svc.AddFavorite(ctx, userID, utils.NewSixID())
	assert.ErrorAs(t, err, &notFound)
}

func TestRemoveFavorite(t *testing.T) {
	database, listingSvc, svc := setupFavoriteTest(t, "testdb_favorite_remove")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	userID := insertTestUser(t, database, "fan")
	listing, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	require.NoError(t, svc.AddFavorite(ctx, userID, listing.ID))
	require.NoError(t, svc.RemoveFavorite(ctx, userID, listing.ID))

	found, err := listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.FavoriteCount)

	// Removing twice is a no-op and never drives the counter negative.
	require.NoError(t, svc.RemoveFavorite(ctx, userID, listing.ID))
	found, err = listingSvc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, found.FavoriteCount)
}

func TestListFavoritesJoinsListings(t *testing.T) {
	database, listingSvc, svc := setupFavoriteTest(t, "testdb_favorite_list")
	ctx := context.Background()

	sellerID := insertTestUser(t, database, "seller")
	userID := insertTestUser(t, database, "fan")

	first, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)
	second, err := listingSvc.CreateListing(ctx, sellerID, dartsListingInput())
	require.NoError(t, err)

	require.NoError(t, svc.AddFavorite(ctx, userID, first.ID))
	require.NoError(t, svc.AddFavorite(ctx, userID, second.ID))

	favorites, err := svc.ListFavorites(ctx, userID)
	require.NoError(t, err)
	require.Len(t, favorites, 2)
	for _, fav := range favorites {
		require.NotNil(t, fav.Item)
		assert.Equal(t, fav.ListingID, fav.Item.ID)
	}

	// Deleted listings drop out of the list.
	require.NoError(t, listingSvc.DeleteListing(ctx, first.ID, sellerID))
	favorites, err = svc.ListFavorites(ctx, userID)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, second.ID, favorites[0].ListingID)
}
