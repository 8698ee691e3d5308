package domain

import "time"

// MetaField is one entry of an open key/value list attached to users,
// products, subscriptions and settings. Deployments use it for things
// like physical location tags ("house": "A2", "floor": "5").
type MetaField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Meta []MetaField

// Get returns the value of the first field with the given name.
func (m Meta) Get(name string) (string, bool) {
	for _, f := range m {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

const (
	UnitMl    = "ml"
	UnitLiter = "liter"
)

const (
	PaymentCash     = "Cash"
	PaymentCashless = "Cashless"
)

const (
	SubscriptionPending = "pending"
	SubscriptionPaid    = "paid"
	SubscriptionOverdue = "overdue"
)

type Category struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Product is a catalog entry. Quantity is a materialized running
// balance maintained by the stock ledger and the order store; the
// product-edit path never writes it unless explicitly unlocked.
type Product struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	CategoryID        int64     `json:"category_id"`
	CategoryName      string    `json:"category_name,omitempty"`
	Description       string    `json:"description,omitempty"`
	Quantity          int       `json:"quantity"`
	Price             float64   `json:"price"`
	BuyingPrice       float64   `json:"buying_price,omitempty"`
	Volume            float64   `json:"volume"`
	AlcoholPercentage float64   `json:"alcohol_percentage,omitempty"`
	MeasurementUnit   string    `json:"measurement_unit"`
	Rating            int       `json:"rating"`
	Image             string    `json:"image,omitempty"`
	Meta              Meta      `json:"meta,omitempty"`
	Origin            string    `json:"origin,omitempty"`
	Threshold         int       `json:"threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProductUpsertRequest carries the editable fields of a product. When
// ID is zero a new product is created with quantity forced to 0. On
// update the stored quantity is left alone unless UnlockQuantity is
// set (the "danger mode" override).
type ProductUpsertRequest struct {
	ID                int64   `json:"id,omitempty"`
	Name              string  `json:"name"`
	CategoryID        int64   `json:"category_id"`
	Description       string  `json:"description"`
	Price             float64 `json:"price"`
	BuyingPrice       float64 `json:"buying_price"`
	Volume            float64 `json:"volume"`
	AlcoholPercentage float64 `json:"alcohol_percentage"`
	MeasurementUnit   string  `json:"measurement_unit"`
	Rating            int     `json:"rating"`
	Image             string  `json:"image"`
	Meta              Meta    `json:"meta"`
	Origin            string  `json:"origin"`
	Threshold         int     `json:"threshold"`
	Quantity          int     `json:"quantity"`
	UnlockQuantity    bool    `json:"unlock_quantity"`
}

type ProductFilter struct {
	CategoryID int64
	Limit      int
	Offset     int
}

// StockEntry is one ledger row. Quantity is always positive; inserting
// an entry adds that amount to the product's balance and deleting it
// subtracts the same amount.
type StockEntry struct {
	ID          int64      `json:"id"`
	ProductID   int64      `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	Quantity    int        `json:"quantity"`
	Note        string     `json:"note,omitempty"`
	Supplier    string     `json:"supplier,omitempty"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	DateAdded   time.Time  `json:"date_added"`
}

type StockAddRequest struct {
	ProductID   int64      `json:"product_id"`
	Quantity    int        `json:"quantity"`
	Note        string     `json:"note"`
	Supplier    string     `json:"supplier"`
	BatchNumber string     `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// OrderLine is a snapshotted product reference stored inside an order.
// It is immutable after creation: later price or name changes to the
// product do not touch historical receipts.
type OrderLine struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Quantity        int     `json:"quantity"`
	Price           float64 `json:"price"`
	Volume          float64 `json:"volume,omitempty"`
	MeasurementUnit string  `json:"measurement_unit,omitempty"`
}

type Order struct {
	ID           int64       `json:"id"`
	Lines        []OrderLine `json:"lines"`
	Total        float64     `json:"total"`
	PaymentType  string      `json:"payment_type"`
	Tax          float64     `json:"tax"`
	ShippingCost float64     `json:"shipping_cost"`
	IsDeleted    bool        `json:"is_deleted"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type OrderCreateRequest struct {
	Lines        []OrderLine `json:"lines"`
	PaymentType  string      `json:"payment_type"`
	Tax          float64     `json:"tax"`
	ShippingCost float64     `json:"shipping_cost"`
}

// DateRange is an inclusive pair of calendar days, "YYYY-MM-DD".
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type PaymentTypeSales struct {
	PaymentType string  `json:"payment_type"`
	TotalSales  float64 `json:"total_sales"`
}

type MonthlySales struct {
	Month      string  `json:"month"` // YYYY-MM
	TotalSales float64 `json:"total_sales"`
}

// SalesReport bundles the order aggregates the reporting screens render.
type SalesReport struct {
	Year        int                `json:"year"`
	ByPayment   []PaymentTypeSales `json:"by_payment"`
	Monthly     []MonthlySales     `json:"monthly"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	Meta      Meta      `json:"meta,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

type UserUpsertRequest struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Meta  Meta   `json:"meta"`
}

type Subscription struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Amount      float64    `json:"amount"`
	DueDate     time.Time  `json:"due_date"`
	Status      string     `json:"status"`
	Meta        Meta       `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	IsDeleted   bool       `json:"is_deleted"`
}

// SubscriptionWithUser adds the joined user identity fields for the
// all-subscriptions listing.
type SubscriptionWithUser struct {
	Subscription
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email,omitempty"`
	UserPhone string `json:"user_phone"`
}

type SubscriptionUpsertRequest struct {
	ID      int64     `json:"id,omitempty"`
	UserID  int64     `json:"user_id"`
	Name    string    `json:"name"`
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Meta    Meta      `json:"meta"`
}

type SubscriptionFilter struct {
	DueRange *DateRange
	Status   string
}

// UserSubscriptions is the per-user listing plus the amount sum for
// that user, fetched in one store call.
type UserSubscriptions struct {
	Subscriptions []Subscription `json:"subscriptions"`
	TotalAmount   float64        `json:"total_amount"`
}

type SubscriptionList struct {
	Subscriptions []SubscriptionWithUser `json:"subscriptions"`
	TotalAmount   float64                `json:"total_amount"`
}

// Settings is the singleton configuration row (id = 1).
type Settings struct {
	ID                    int64  `json:"id"`
	StoreName             string `json:"store_name"`
	Currency              string `json:"currency"`
	Timezone              string `json:"timezone"`
	PaybillNumber         string `json:"paybill_number,omitempty"`
	AccountNumber         string `json:"account_number,omitempty"`
	TillNumber            string `json:"till_number,omitempty"`
	PhoneNumber           string `json:"phone_number,omitempty"`
	AutoGenerateNextMonth bool   `json:"auto_generate_next_month"`
	Meta                  Meta   `json:"meta,omitempty"`
}

type SettingsUpdateRequest struct {
	StoreName             string `json:"store_name"`
	Currency              string `json:"currency"`
	Timezone              string `json:"timezone"`
	PaybillNumber         string `json:"paybill_number"`
	AccountNumber         string `json:"account_number"`
	TillNumber            string `json:"till_number"`
	PhoneNumber           string `json:"phone_number"`
	AutoGenerateNextMonth bool   `json:"auto_generate_next_month"`
	Meta                  Meta   `json:"meta"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// StaffAccount is an internal persistence model for auth credentials.
type StaffAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
