package store

import (
	"context"
	"errors"
	"time"

	"dukapos/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateProduct = errors.New("product with the same name, unit and volume already exists")
	ErrDuplicatePhone   = errors.New("phone number already exists")
	ErrCategoryInUse    = errors.New("category is still referenced by products")
	ErrCorruptOrder     = errors.New("order line snapshot is unreadable")
)

// Repository is the contract of the local data layer. There is one
// implementation backed by an embedded single-file SQLite database;
// tests run it against ":memory:".
type Repository interface {
	InitSchema(ctx context.Context) error
	Close() error

	// Categories.
	CreateCategory(ctx context.Context, name string, rating int) (int64, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	// Products.
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (int64, error)
	ListLowStock(ctx context.Context, limit int) ([]domain.Product, error)

	// Stock ledger.
	AddStock(ctx context.Context, req domain.StockAddRequest) (int64, error)
	DeleteStock(ctx context.Context, id int64) error
	ListStockByProduct(ctx context.Context, productID int64, limit int, offset int) ([]domain.StockEntry, error)
	ListStockByDateRange(ctx context.Context, productID int64, rng domain.DateRange, loc *time.Location) ([]domain.StockEntry, error)

	// Orders.
	CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (int64, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, limit int, offset int) ([]domain.Order, error)
	ListOrdersByDateRange(ctx context.Context, rng domain.DateRange, loc *time.Location) ([]domain.Order, error)
	SoftDeleteOrder(ctx context.Context, id int64) error
	SalesByPaymentType(ctx context.Context) ([]domain.PaymentTypeSales, error)
	MonthlySales(ctx context.Context, year int) ([]domain.MonthlySales, error)

	// Users.
	CreateUser(ctx context.Context, req domain.UserUpsertRequest) (int64, error)
	UpdateUser(ctx context.Context, req domain.UserUpsertRequest) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SoftDeleteUser(ctx context.Context, id int64) error
	RestoreUser(ctx context.Context, id int64) error

	// Subscriptions.
	AddSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) (int64, error)
	EditSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) error
	SoftDeleteSubscription(ctx context.Context, id int64) error
	RestoreSubscription(ctx context.Context, id int64) error
	MarkSubscriptionPaid(ctx context.Context, id int64, paymentDate time.Time) error
	ListSubscriptionsForUser(ctx context.Context, userID int64) (*domain.UserSubscriptions, error)
	ListAllSubscriptions(ctx context.Context, filter domain.SubscriptionFilter) (*domain.SubscriptionList, error)
	SweepOverdueSubscriptions(ctx context.Context, now time.Time) (int, error)
	GenerateNextMonthRollover(ctx context.Context, now time.Time) (int, error)

	// Settings.
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) error

	// Staff accounts (auth credentials, separate from customer users).
	CreateStaff(ctx context.Context, account domain.StaffAccount) error
	ListStaff(ctx context.Context) ([]domain.StaffAccount, error)
	UpdateStaffPassword(ctx context.Context, username string, password string) error
}
