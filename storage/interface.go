package storage

import "context"

// CatalogStore holds banners, categories and products.
type CatalogStore interface {
	// GetBanner returns the banner keyed by page name.
	// Returns ErrBannerNotFound if no such banner exists.
	GetBanner(ctx context.Context, name string) (*Banner, error)

	// ListBanners returns all banners ordered by id.
	ListBanners(ctx context.Context) ([]Banner, error)

	// UpdateBannerImage sets the image file id for the named banner.
	UpdateBannerImage(ctx context.Context, name, image string) error

	// CreateBannersIfAbsent seeds banners from name->description pairs.
	// It is a no-op when any banner already exists.
	CreateBannersIfAbsent(ctx context.Context, descriptions map[string]string) error

	// ListCategories returns all categories ordered by id.
	ListCategories(ctx context.Context) ([]Category, error)

	// CreateCategoriesIfAbsent seeds categories by name.
	// It is a no-op when any category already exists.
	CreateCategoriesIfAbsent(ctx context.Context, names []string) error

	// ListProducts returns the products of a category ordered by id.
	ListProducts(ctx context.Context, categoryID int64) ([]Product, error)

	// GetProduct returns a product by id.
	// Returns ErrProductNotFound if no such product exists.
	GetProduct(ctx context.Context, productID int64) (*Product, error)

	// CreateProduct inserts a new product and returns its id.
	CreateProduct(ctx context.Context, p *Product) (int64, error)

	// UpdateProduct replaces the mutable fields of an existing product.
	UpdateProduct(ctx context.Context, productID int64, p *Product) error

	// DeleteProduct removes a product. Cart lines referencing it go with it.
	DeleteProduct(ctx context.Context, productID int64) error
}

// UserStore tracks Telegram users who interacted with the shop.
type UserStore interface {
	// UpsertUser creates the user on first contact; subsequent calls are no-ops.
	// Only UserID, FirstName and LastName of u are stored.
	UpsertUser(ctx context.Context, u User) error
}

// CartStore holds per-user cart line items.
type CartStore interface {
	// AddToCart creates a line with quantity 1 or increments an existing one.
	AddToCart(ctx context.Context, userID, productID int64) error

	// GetCartLine returns the line for (user, product).
	// Returns ErrCartLineNotFound if absent.
	GetCartLine(ctx context.Context, userID, productID int64) (*CartLine, error)

	// ListCartItems returns the user's cart lines joined with their products,
	// ordered by line id.
	ListCartItems(ctx context.Context, userID int64) ([]CartItem, error)

	// ReduceInCart decrements the line's quantity, deleting it when the
	// quantity would drop below 1. Reports whether the line still exists.
	ReduceInCart(ctx context.Context, userID, productID int64) (bool, error)

	// RemoveFromCart deletes the line regardless of quantity.
	RemoveFromCart(ctx context.Context, userID, productID int64) error
}

// OrderStore holds placed orders.
type OrderStore interface {
	// CreateOrder snapshots the cart line and product into a new order in a
	// single transaction: the total is quantity x price at creation time.
	// No partial order is visible if any step fails.
	CreateOrder(ctx context.Context, userID, productID int64, fullName, address, phone string) (*Order, error)

	// GetOrder returns an order by id. Returns ErrOrderNotFound if absent.
	GetOrder(ctx context.Context, orderID int64) (*Order, error)

	// ListOrders returns one user's orders ordered by id.
	ListOrders(ctx context.Context, userID int64) ([]Order, error)

	// ListAllOrders returns every order, for the admin panel.
	ListAllOrders(ctx context.Context) ([]Order, error)

	// UpdateOrderStatus relabels an order's workflow status.
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error

	// SetOrderPaid flips paid false->true. Reports whether the flag changed,
	// so a duplicate payment confirmation is not treated as a second charge.
	SetOrderPaid(ctx context.Context, orderID int64) (bool, error)

	// DeleteOrder removes the order row.
	DeleteOrder(ctx context.Context, orderID int64) error
}

// Store is the full persistence surface backed by one database.
type Store interface {
	CatalogStore
	UserStore
	CartStore
	OrderStore

	Close() error
}
