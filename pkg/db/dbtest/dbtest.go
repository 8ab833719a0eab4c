// Package dbtest opens throwaway sqlite databases with the full schema and
// seeds common fixtures for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/dropship-backend/pkg/db/models"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Open returns an isolated in-memory database migrated with every model.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:dropship_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// CreateUser inserts a user with the given role and starting balance.
func CreateUser(t testing.TB, conn *gorm.DB, role enums.UserRole, balance string) *models.User {
	t.Helper()
	user := &models.User{
		Role:    role,
		Name:    string(role) + "-" + uuid.NewString()[:8],
		Email:   uuid.NewString() + "@example.com",
		Phone:   "+21620000000",
		Address: "12 Rue de Marseille",
		City:    "Tunis",
		State:   "Tunis",
		Balance: decimal.NewNullDecimal(decimal.RequireFromString(balance)),
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateProduct inserts a product owned by supplierID.
func CreateProduct(t testing.TB, conn *gorm.DB, supplierID uuid.UUID, wholesale, platformUnitProfit string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		SupplierID:         supplierID,
		Name:               "product-" + uuid.NewString()[:8],
		WholesalePrice:     decimal.RequireFromString(wholesale),
		PlatformUnitProfit: decimal.RequireFromString(platformUnitProfit),
		Stock:              stock,
		WeightKg:           0.5,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// ListProduct marks productID as listed by sellerID.
func ListProduct(t testing.TB, conn *gorm.DB, sellerID, productID uuid.UUID) {
	t.Helper()
	if err := conn.Create(&models.SellerListing{SellerID: sellerID, ProductID: productID}).Error; err != nil {
		t.Fatalf("create listing: %v", err)
	}
}

// Stock reloads the current stock of a product.
func Stock(t testing.TB, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}

// Balance reloads a user's balance.
func Balance(t testing.TB, conn *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	var user models.User
	if err := conn.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user.Balance.Decimal
}
