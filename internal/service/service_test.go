package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/store"
	"dukapos/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return New(st, nil, 0)
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func seedProduct(t *testing.T, svc *Service, name string, price float64) *domain.Product {
	t.Helper()
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, "Whisky "+name, 0)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	p, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{
		Name: name, CategoryID: cat.ID, Price: price,
		Volume: 750, MeasurementUnit: domain.UnitMl, Threshold: 1,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestUpsertProductValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, "Whisky", 0)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	cases := []struct {
		name string
		req  domain.ProductUpsertRequest
	}{
		{"missing name", domain.ProductUpsertRequest{CategoryID: cat.ID, Price: 100, Volume: 750, MeasurementUnit: domain.UnitMl}},
		{"bad unit", domain.ProductUpsertRequest{Name: "X", CategoryID: cat.ID, Price: 100, Volume: 750, MeasurementUnit: "gallon"}},
		{"zero price", domain.ProductUpsertRequest{Name: "X", CategoryID: cat.ID, Price: 0, Volume: 750, MeasurementUnit: domain.UnitMl}},
		{"zero volume", domain.ProductUpsertRequest{Name: "X", CategoryID: cat.ID, Price: 100, Volume: 0, MeasurementUnit: domain.UnitMl}},
		{"alcohol over 100", domain.ProductUpsertRequest{Name: "X", CategoryID: cat.ID, Price: 100, Volume: 750, MeasurementUnit: domain.UnitMl, AlcoholPercentage: 150}},
	}
	for _, tc := range cases {
		if _, err := svc.UpsertProduct(ctx, tc.req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%s: err = %v, want ErrInvalidInput", tc.name, err)
		}
	}

	// Unit comparison is case-insensitive.
	p, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{
		Name: "Test Scotch", CategoryID: cat.ID, Price: 1200,
		Volume: 750, MeasurementUnit: " ML ",
	})
	if err != nil {
		t.Fatalf("uppercase unit rejected: %v", err)
	}
	if p.MeasurementUnit != domain.UnitMl {
		t.Fatalf("unit = %q, want normalized ml", p.MeasurementUnit)
	}
	if p.Threshold != 1 {
		t.Fatalf("threshold = %d, want floor of 1", p.Threshold)
	}
}

func TestQuantityUnlockRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	p := seedProduct(t, svc, "Test Gin", 700)

	req := domain.ProductUpsertRequest{
		ID: p.ID, Name: p.Name, CategoryID: p.CategoryID, Price: p.Price,
		Volume: p.Volume, MeasurementUnit: p.MeasurementUnit, Threshold: p.Threshold,
		Quantity: 30, UnlockQuantity: true,
	}

	if _, err := svc.UpsertProduct(context.Background(), req); err == nil || !strings.Contains(err.Error(), "admin role") {
		t.Fatalf("unlock without actor = %v, want admin role error", err)
	}

	cashierCtx := WithActor(context.Background(), domain.Actor{Username: "jane", Role: "cashier"})
	if _, err := svc.UpsertProduct(cashierCtx, req); err == nil || !strings.Contains(err.Error(), "admin role") {
		t.Fatalf("unlock as cashier = %v, want admin role error", err)
	}

	updated, err := svc.UpsertProduct(adminContext(), req)
	if err != nil {
		t.Fatalf("unlock as admin: %v", err)
	}
	if updated.Quantity != 30 {
		t.Fatalf("quantity = %d, want 30", updated.Quantity)
	}
}

func TestCreateOrderDefaultsToCash(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, "Test Whisky", 1000)
	if _, err := svc.AddStock(ctx, domain.StockAddRequest{ProductID: p.ID, Quantity: 10}); err != nil {
		t.Fatalf("add stock: %v", err)
	}

	order, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		Lines: []domain.OrderLine{{ID: p.ID, Name: p.Name, Quantity: 2, Price: 1000}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.PaymentType != domain.PaymentCash {
		t.Fatalf("payment type = %q, want default Cash", order.PaymentType)
	}
	if order.Total != 2000 {
		t.Fatalf("total = %v, want 2000", order.Total)
	}

	if _, err := svc.CreateOrder(ctx, domain.OrderCreateRequest{
		PaymentType: "Credit",
		Lines:       []domain.OrderLine{{ID: p.ID, Quantity: 1, Price: 1000}},
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("bad payment type = %v, want ErrInvalidInput", err)
	}
}

type recordingCache struct {
	reports map[string]*domain.SalesReport
	gets    int
	sets    int
}

func (c *recordingCache) Get(_ context.Context, key string) (*domain.SalesReport, bool, error) {
	c.gets++
	r, ok := c.reports[key]
	return r, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value *domain.SalesReport, _ time.Duration) error {
	c.sets++
	c.reports[key] = value
	return nil
}

func TestSalesReportUsesCache(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	reports := &recordingCache{reports: make(map[string]*domain.SalesReport)}
	svc := New(st, reports, time.Minute)
	ctx := context.Background()

	year := time.Now().UTC().Year()
	first, err := svc.SalesReport(ctx, year)
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	if reports.sets != 1 {
		t.Fatalf("cache writes = %d, want 1", reports.sets)
	}

	second, err := svc.SalesReport(ctx, year)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if reports.sets != 1 {
		t.Fatalf("cache writes after hit = %d, want still 1", reports.sets)
	}
	if second != first {
		t.Fatal("second call should return the cached report")
	}

	if _, err := svc.SalesReport(ctx, 1999); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("year 1999 = %v, want ErrInvalidInput", err)
	}
}

func TestRolloverRequiresAdmin(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.GenerateNextMonthRollover(context.Background()); err == nil || !strings.Contains(err.Error(), "admin role") {
		t.Fatalf("rollover without actor = %v, want admin role error", err)
	}
	if _, err := svc.GenerateNextMonthRollover(adminContext()); err != nil {
		t.Fatalf("rollover as admin: %v", err)
	}
}

func TestSubscriptionValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	due := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  domain.SubscriptionUpsertRequest
	}{
		{"missing user", domain.SubscriptionUpsertRequest{Name: "Rent", Amount: 100, DueDate: due}},
		{"missing name", domain.SubscriptionUpsertRequest{UserID: 1, Amount: 100, DueDate: due}},
		{"zero amount", domain.SubscriptionUpsertRequest{UserID: 1, Name: "Rent", DueDate: due}},
		{"missing due date", domain.SubscriptionUpsertRequest{UserID: 1, Name: "Rent", Amount: 100}},
	}
	for _, tc := range cases {
		if _, err := svc.AddSubscription(ctx, tc.req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%s: err = %v, want ErrInvalidInput", tc.name, err)
		}
	}

	if _, err := svc.ListAllSubscriptions(ctx, domain.SubscriptionFilter{Status: "cancelled"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("unknown status = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ListAllSubscriptions(ctx, domain.SubscriptionFilter{
		DueRange: &domain.DateRange{Start: "2026-02-10", End: "2026-02-01"},
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("inverted range = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ListAllSubscriptions(ctx, domain.SubscriptionFilter{Status: " Paid "}); err != nil {
		t.Fatalf("status should be trimmed and lowercased: %v", err)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Currency: "KES"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("missing store name = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{
		StoreName: "Duka", Currency: "KES", Timezone: "Mars/Olympus",
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("bad timezone = %v, want ErrInvalidInput", err)
	}

	settings, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{StoreName: "Duka", Currency: "KES"})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if settings.Timezone != "UTC" {
		t.Fatalf("empty timezone = %q, want UTC fallback", settings.Timezone)
	}
}

func TestRunStartupTasks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, domain.UserUpsertRequest{Name: "Zuleikha", Phone: "254711000001"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	subID, err := svc.AddSubscription(ctx, domain.SubscriptionUpsertRequest{
		UserID: user.ID, Name: "Rent", Amount: 10000,
		DueDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("add subscription: %v", err)
	}
	if err := svc.MarkSubscriptionPaid(ctx, subID, time.Time{}); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{
		StoreName: "Duka", Currency: "KES", Timezone: "Africa/Nairobi", AutoGenerateNextMonth: true,
	}); err != nil {
		t.Fatalf("enable auto generate: %v", err)
	}

	if err := svc.RunStartupTasks(ctx); err != nil {
		t.Fatalf("startup tasks: %v", err)
	}

	subs, err := svc.ListSubscriptionsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs.Subscriptions) != 2 {
		t.Fatalf("subscriptions after startup = %d, want rollover to add one", len(subs.Subscriptions))
	}
}
