package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dukapos/internal/cache"
	"dukapos/internal/domain"
	"dukapos/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
	}
}

// RunStartupTasks performs the periodic maintenance the app does on
// launch: flip past-due pending subscriptions to overdue, then create
// next-month copies of paid ones when the setting asks for it.
func (s *Service) RunStartupTasks(ctx context.Context) error {
	now := time.Now().UTC()

	swept, err := s.repo.SweepOverdueSubscriptions(ctx, now)
	if err != nil {
		return fmt.Errorf("overdue sweep: %w", err)
	}
	if swept > 0 {
		slog.Info("marked subscriptions overdue", "count", swept)
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if settings.AutoGenerateNextMonth {
		created, err := s.repo.GenerateNextMonthRollover(ctx, now)
		if err != nil {
			return fmt.Errorf("subscription rollover: %w", err)
		}
		if created > 0 {
			slog.Info("generated next-month subscriptions", "count", created)
		}
	}

	return nil
}

// storeLocation resolves the configured reporting timezone. A bad or
// missing timezone falls back to UTC rather than failing the query.
func (s *Service) storeLocation(ctx context.Context) *time.Location {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		slog.Warn("settings unavailable, using UTC", "error", err)
		return time.UTC
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", settings.Timezone)
		return time.UTC
	}
	return loc
}

func validDateRange(rng domain.DateRange) error {
	start, err := time.Parse("2006-01-02", rng.Start)
	if err != nil {
		return fmt.Errorf("%w: start date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	end, err := time.Parse("2006-01-02", rng.End)
	if err != nil {
		return fmt.Errorf("%w: end date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date before start date", store.ErrInvalidInput)
	}
	return nil
}

// ---- categories ----

func (s *Service) CreateCategory(ctx context.Context, name string, rating int) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name required", store.ErrInvalidInput)
	}
	id, err := s.repo.CreateCategory(ctx, name, rating)
	if err != nil {
		return nil, err
	}
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.ID < 1 || category.Name == "" {
		return nil, fmt.Errorf("%w: category id and name required", store.ErrInvalidInput)
	}
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		return nil, err
	}
	return s.repo.GetCategory(ctx, category.ID)
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteCategory(ctx, id)
}

// ---- products ----

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Origin = strings.TrimSpace(req.Origin)
	req.MeasurementUnit = strings.ToLower(strings.TrimSpace(req.MeasurementUnit))

	if req.Name == "" || req.CategoryID < 1 {
		return nil, fmt.Errorf("%w: product name and category required", store.ErrInvalidInput)
	}
	if req.MeasurementUnit != domain.UnitMl && req.MeasurementUnit != domain.UnitLiter {
		return nil, fmt.Errorf("%w: measurement unit must be ml or liter", store.ErrInvalidInput)
	}
	if req.Volume <= 0 || req.Price <= 0 || req.BuyingPrice < 0 {
		return nil, fmt.Errorf("%w: volume and price must be positive", store.ErrInvalidInput)
	}
	if req.AlcoholPercentage < 0 || req.AlcoholPercentage > 100 {
		return nil, fmt.Errorf("%w: alcohol percentage out of range", store.ErrInvalidInput)
	}
	if req.Threshold < 1 {
		req.Threshold = 1
	}

	if req.UnlockQuantity {
		actor, ok := ActorFromContext(ctx)
		if !ok || actor.Role != "admin" {
			return nil, fmt.Errorf("quantity unlock requires admin role")
		}
		if req.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity cannot be negative", store.ErrInvalidInput)
		}
	}

	id, err := s.repo.UpsertProduct(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListLowStock(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.ListLowStock(ctx, limit)
}

// ---- stock ledger ----

func (s *Service) AddStock(ctx context.Context, req domain.StockAddRequest) (int64, error) {
	req.Note = strings.TrimSpace(req.Note)
	req.Supplier = strings.TrimSpace(req.Supplier)
	req.BatchNumber = strings.TrimSpace(req.BatchNumber)
	if req.ProductID < 1 || req.Quantity < 1 {
		return 0, fmt.Errorf("%w: product id and positive quantity required", store.ErrInvalidInput)
	}
	return s.repo.AddStock(ctx, req)
}

func (s *Service) DeleteStock(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteStock(ctx, id)
}

func (s *Service) ListStockByProduct(ctx context.Context, productID int64, limit, offset int) ([]domain.StockEntry, error) {
	if productID < 1 || limit < 0 || offset < 0 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListStockByProduct(ctx, productID, limit, offset)
}

func (s *Service) ListStockByDateRange(ctx context.Context, productID int64, rng domain.DateRange) ([]domain.StockEntry, error) {
	if productID < 1 {
		return nil, store.ErrInvalidInput
	}
	if err := validDateRange(rng); err != nil {
		return nil, err
	}
	return s.repo.ListStockByDateRange(ctx, productID, rng, s.storeLocation(ctx))
}

// ---- orders ----

func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (*domain.Order, error) {
	if req.PaymentType == "" {
		req.PaymentType = domain.PaymentCash
	}
	if req.PaymentType != domain.PaymentCash && req.PaymentType != domain.PaymentCashless {
		return nil, fmt.Errorf("%w: unsupported payment type %q", store.ErrInvalidInput, req.PaymentType)
	}
	if req.Tax < 0 || req.ShippingCost < 0 {
		return nil, fmt.Errorf("%w: tax and shipping cost must be non-negative", store.ErrInvalidInput)
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one line", store.ErrInvalidInput)
	}

	id, err := s.repo.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit < 0 || offset < 0 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListOrders(ctx, limit, offset)
}

func (s *Service) ListOrdersByDateRange(ctx context.Context, rng domain.DateRange) ([]domain.Order, error) {
	if err := validDateRange(rng); err != nil {
		return nil, err
	}
	return s.repo.ListOrdersByDateRange(ctx, rng, s.storeLocation(ctx))
}

func (s *Service) SoftDeleteOrder(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.SoftDeleteOrder(ctx, id)
}

// SalesReport bundles the by-payment and monthly aggregates for one
// year. Results are cached; a cache failure degrades to a direct query.
func (s *Service) SalesReport(ctx context.Context, year int) (*domain.SalesReport, error) {
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("%w: year out of range", store.ErrInvalidInput)
	}

	key := fmt.Sprintf("sales-report:%d", year)
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		slog.Warn("report cache read failed", "key", key, "error", err)
	} else if ok {
		return cached, nil
	}

	byPayment, err := s.repo.SalesByPaymentType(ctx)
	if err != nil {
		return nil, err
	}
	monthly, err := s.repo.MonthlySales(ctx, year)
	if err != nil {
		return nil, err
	}

	report := &domain.SalesReport{
		Year:        year,
		ByPayment:   byPayment,
		Monthly:     monthly,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.reports.Set(ctx, key, report, s.reportTTL); err != nil {
		slog.Warn("report cache write failed", "key", key, "error", err)
	}
	return report, nil
}

// ---- users ----

func validateUser(req domain.UserUpsertRequest) error {
	if req.Name == "" || req.Phone == "" {
		return fmt.Errorf("%w: user name and phone required", store.ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserUpsertRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validateUser(req); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, req domain.UserUpsertRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.ID < 1 {
		return nil, store.ErrInvalidInput
	}
	if err := validateUser(req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUser(ctx, req); err != nil {
		return nil, err
	}
	return s.repo.GetUser(ctx, req.ID)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	if id < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) SoftDeleteUser(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.SoftDeleteUser(ctx, id)
}

func (s *Service) RestoreUser(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.RestoreUser(ctx, id)
}

// ---- subscriptions ----

func validateSubscription(req domain.SubscriptionUpsertRequest) error {
	if req.UserID < 1 || req.Name == "" {
		return fmt.Errorf("%w: subscription user and name required", store.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: subscription amount must be positive", store.ErrInvalidInput)
	}
	if req.DueDate.IsZero() {
		return fmt.Errorf("%w: subscription due date required", store.ErrInvalidInput)
	}
	return nil
}

func (s *Service) AddSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) (int64, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateSubscription(req); err != nil {
		return 0, err
	}
	return s.repo.AddSubscription(ctx, req)
}

func (s *Service) EditSubscription(ctx context.Context, req domain.SubscriptionUpsertRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if req.ID < 1 {
		return store.ErrInvalidInput
	}
	if err := validateSubscription(req); err != nil {
		return err
	}
	return s.repo.EditSubscription(ctx, req)
}

func (s *Service) SoftDeleteSubscription(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.SoftDeleteSubscription(ctx, id)
}

func (s *Service) RestoreSubscription(ctx context.Context, id int64) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	return s.repo.RestoreSubscription(ctx, id)
}

func (s *Service) MarkSubscriptionPaid(ctx context.Context, id int64, paymentDate time.Time) error {
	if id < 1 {
		return store.ErrInvalidInput
	}
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}
	return s.repo.MarkSubscriptionPaid(ctx, id, paymentDate.UTC())
}

func (s *Service) ListSubscriptionsForUser(ctx context.Context, userID int64) (*domain.UserSubscriptions, error) {
	if userID < 1 {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListSubscriptionsForUser(ctx, userID)
}

func (s *Service) ListAllSubscriptions(ctx context.Context, filter domain.SubscriptionFilter) (*domain.SubscriptionList, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	switch filter.Status {
	case "", domain.SubscriptionPending, domain.SubscriptionPaid, domain.SubscriptionOverdue:
	default:
		return nil, fmt.Errorf("%w: unknown subscription status %q", store.ErrInvalidInput, filter.Status)
	}
	if filter.DueRange != nil {
		if err := validDateRange(*filter.DueRange); err != nil {
			return nil, err
		}
	}
	return s.repo.ListAllSubscriptions(ctx, filter)
}

func (s *Service) SweepOverdueSubscriptions(ctx context.Context) (int, error) {
	return s.repo.SweepOverdueSubscriptions(ctx, time.Now().UTC())
}

// GenerateNextMonthRollover copies every paid subscription one month
// forward. Admin only. The store deduplicates on (user, name, month),
// so a repeated trigger is harmless.
func (s *Service) GenerateNextMonthRollover(ctx context.Context) (int, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return 0, fmt.Errorf("rollover requires admin role")
	}
	return s.repo.GenerateNextMonthRollover(ctx, time.Now().UTC())
}

// ---- settings ----

func (s *Service) GetSettings(ctx context.Context) (*domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (*domain.Settings, error) {
	req.StoreName = strings.TrimSpace(req.StoreName)
	req.Currency = strings.TrimSpace(req.Currency)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.StoreName == "" || req.Currency == "" {
		return nil, fmt.Errorf("%w: store name and currency required", store.ErrInvalidInput)
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", store.ErrInvalidInput, req.Timezone)
	}
	if err := s.repo.UpdateSettings(ctx, req); err != nil {
		return nil, err
	}
	return s.repo.GetSettings(ctx)
}
