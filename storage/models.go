package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Banner is a named media+caption pair used as the visual header for a screen.
// Image holds a Telegram file id and may be empty until an admin uploads one.
type Banner struct {
	ID          int64
	Name        string
	Image       string
	Description string
	Created     time.Time
	Updated     time.Time
}

// Category groups products in the catalog.
type Category struct {
	ID      int64
	Name    string
	Created time.Time
	Updated time.Time
}

// Product is a single catalog item. Image holds a Telegram file id.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	CategoryID  int64
	Created     time.Time
	Updated     time.Time
}

// User is a known Telegram user. UserID is the Telegram identifier; ID is the
// local row id.
type User struct {
	ID        int64
	UserID    int64
	FirstName string
	LastName  string
	Created   time.Time
	Updated   time.Time
}

// CartLine is one (user, product, quantity) row of unpurchased intent.
// Quantity is always >= 1; a line that would drop below 1 is deleted instead.
type CartLine struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	Created   time.Time
	Updated   time.Time
}

// CartItem is a cart line joined with its product, as the cart screen needs
// both to render a page.
type CartItem struct {
	CartLine
	Product Product
}

// Order statuses as shown to users and set by admins. Cancellation deletes
// the order instead of relabeling it, so it has no status constant.
const (
	StatusProcessing = "В обработке"
	StatusInProgress = "Обработка"
	StatusShipped    = "Отправлен"
	StatusDelivered  = "Доставлен"
)

// Order is a placed order. TotalPrice is snapshotted at creation time from
// the cart quantity and product price and never recomputed afterwards.
type Order struct {
	ID         int64
	UserID     int64
	ProductID  int64
	FullName   string
	Phone      string
	Address    string
	Status     string
	Paid       bool
	TotalPrice decimal.Decimal
	Created    time.Time
	Updated    time.Time
}
