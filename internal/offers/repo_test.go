package offers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bulkquote-backend/pkg/db/models"
	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

func setupOffersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	offers := `
CREATE TABLE IF NOT EXISTS offers (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  price_per_unit_cents INTEGER NOT NULL,
  available_quantity INTEGER NOT NULL,
  delivery_time_days INTEGER NOT NULL,
  terms TEXT NOT NULL,
  warranty TEXT,
  packaging_details TEXT,
  expiration_date DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'submitted',
  created_at DATETIME,
  updated_at DATETIME
);`
	sellerProfiles := `
CREATE TABLE IF NOT EXISTS seller_profiles (
  seller_id TEXT PRIMARY KEY,
  shop_name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT,
  categories TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	bulkOrderRequests := `
CREATE TABLE IF NOT EXISTS bulk_order_requests (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  description TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  category TEXT NOT NULL,
  budget_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  delivery_deadline DATETIME NOT NULL,
  shipping_address TEXT NOT NULL,
  packaging_requirements TEXT,
  supplier_location_preference TEXT,
  inspiration_image_ref TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  accepted_offer_id TEXT,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(offers).Error)
	require.NoError(t, db.Exec(sellerProfiles).Error)
	require.NoError(t, db.Exec(bulkOrderRequests).Error)
	return db
}

type listedOffer struct {
	sellerID uuid.UUID
	price    int64
	perUnit  int64
	quantity int
	days     int
	created  time.Time
}

func createListedOffer(t *testing.T, db *gorm.DB, requestID uuid.UUID, spec listedOffer) *models.Offer {
	t.Helper()

	offer := &models.Offer{
		ID:                uuid.New(),
		RequestID:         requestID,
		SellerID:          spec.sellerID,
		PriceCents:        spec.price,
		PricePerUnitCents: spec.perUnit,
		AvailableQuantity: spec.quantity,
		DeliveryTimeDays:  spec.days,
		Terms:             "Net 30",
		ExpirationDate:    spec.created.Add(14 * 24 * time.Hour),
		Status:            enums.OfferStatusSubmitted,
		CreatedAt:         spec.created,
		UpdatedAt:         spec.created,
	}
	require.NoError(t, db.Create(offer).Error)
	return offer
}

func createProfile(t *testing.T, db *gorm.DB, sellerID uuid.UUID, shopName string) {
	t.Helper()
	require.NoError(t, db.Exec(
		"INSERT INTO seller_profiles (seller_id, shop_name, email) VALUES (?, ?, ?)",
		sellerID, shopName, shopName+"@example.com",
	).Error)
}

func TestRepositoryListForRequest_priceSortBreaksTiesByCreation(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	requestID := uuid.New()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	first := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 100_000, perUnit: 500, quantity: 200, days: 14, created: base})
	second := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 100_000, perUnit: 400, quantity: 300, days: 7, created: base.Add(time.Minute)})
	cheapest := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 90_000, perUnit: 450, quantity: 250, days: 21, created: base.Add(2 * time.Minute)})
	createListedOffer(t, db, uuid.New(), listedOffer{sellerID: uuid.New(), price: 1, perUnit: 1, quantity: 1, days: 1, created: base})

	rows, err := repo.ListForRequest(context.Background(), requestID, enums.OfferSortPrice, enums.SortAsc)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, cheapest.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)
	assert.Equal(t, second.ID, rows[2].ID)

	desc, err := repo.ListForRequest(context.Background(), requestID, enums.OfferSortPrice, enums.SortDesc)
	require.NoError(t, err)
	require.Len(t, desc, 3)
	assert.Equal(t, first.ID, desc[0].ID)
	assert.Equal(t, second.ID, desc[1].ID)
	assert.Equal(t, cheapest.ID, desc[2].ID)
}

func TestRepositoryListForRequest_sortKeys(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	requestID := uuid.New()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	a := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 100_000, perUnit: 900, quantity: 100, days: 3, created: base})
	b := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 110_000, perUnit: 200, quantity: 300, days: 14, created: base.Add(time.Minute)})
	c := createListedOffer(t, db, requestID, listedOffer{sellerID: uuid.New(), price: 120_000, perUnit: 500, quantity: 200, days: 7, created: base.Add(2 * time.Minute)})

	cases := []struct {
		name    string
		sortKey enums.OfferSortKey
		want    []uuid.UUID
	}{
		{"price_per_unit", enums.OfferSortPricePerUnit, []uuid.UUID{b.ID, c.ID, a.ID}},
		{"available_quantity", enums.OfferSortQuantity, []uuid.UUID{a.ID, c.ID, b.ID}},
		{"delivery_time_days", enums.OfferSortDeliveryDays, []uuid.UUID{a.ID, c.ID, b.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := repo.ListForRequest(context.Background(), requestID, tc.sortKey, enums.SortAsc)
			require.NoError(t, err)
			require.Len(t, rows, len(tc.want))
			for i, id := range tc.want {
				assert.Equal(t, id, rows[i].ID)
			}
		})
	}
}

func TestRepositoryListForRequest_sellerNameSortJoinsProfiles(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	requestID := uuid.New()
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	zenith := uuid.New()
	acme := uuid.New()
	createProfile(t, db, zenith, "Zenith Trading")
	createProfile(t, db, acme, "Acme Wholesale")
	fromZenith := createListedOffer(t, db, requestID, listedOffer{sellerID: zenith, price: 90_000, perUnit: 450, quantity: 200, days: 10, created: base})
	fromAcme := createListedOffer(t, db, requestID, listedOffer{sellerID: acme, price: 100_000, perUnit: 500, quantity: 200, days: 12, created: base.Add(time.Minute)})

	rows, err := repo.ListForRequest(context.Background(), requestID, enums.OfferSortSellerName, enums.SortAsc)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fromAcme.ID, rows[0].ID)
	assert.Equal(t, "Acme Wholesale", rows[0].SellerName)
	assert.Equal(t, fromZenith.ID, rows[1].ID)
	assert.Equal(t, "Zenith Trading", rows[1].SellerName)
}

func TestRepositoryFindRequestForUpdate(t *testing.T) {
	db := setupOffersTestDB(t)
	repo := NewRepository(db)

	requestID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO bulk_order_requests
		 (id, buyer_id, product_name, description, quantity, category, budget_cents, delivery_deadline, shipping_address, status)
		 VALUES (?, ?, 'Pallet wrap', 'Stretch film', 200, 'industrial', 150000, ?, '500 Dock St', 'pending')`,
		requestID, uuid.New(), time.Now().Add(30*24*time.Hour),
	).Error)

	request, err := repo.FindRequestForUpdate(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, requestID, request.ID)
	assert.Equal(t, enums.RequestStatusPending, request.Status)

	_, err = repo.FindRequestForUpdate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
