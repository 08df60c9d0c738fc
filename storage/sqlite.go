package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore implements Store over a single SQLite database.
// Prices and totals are stored as decimal strings to avoid float drift.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, log *slog.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "telemarket.db"
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// createTables creates the schema when it does not exist yet.
func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS banner (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			image TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS category (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS product (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			category_id INTEGER NOT NULL REFERENCES category(id) ON DELETE CASCADE,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cart (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES user(user_id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES product(id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS "order" (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES user(user_id) ON DELETE CASCADE,
			product_id INTEGER NOT NULL REFERENCES product(id) ON DELETE CASCADE,
			full_name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			paid INTEGER NOT NULL DEFAULT 0,
			total_price TEXT NOT NULL,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_product_category ON product(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_user ON cart(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_user ON "order"(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// ------------------------------- banners --------------------------------

func (s *SQLiteStore) GetBanner(ctx context.Context, name string) (*Banner, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, image, description, created, updated FROM banner WHERE name = ?`, name)
	var b Banner
	if err := row.Scan(&b.ID, &b.Name, &b.Image, &b.Description, &b.Created, &b.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBannerNotFound
		}
		return nil, fmt.Errorf("failed to get banner %q: %w", name, err)
	}
	return &b, nil
}

func (s *SQLiteStore) ListBanners(ctx context.Context) ([]Banner, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, image, description, created, updated FROM banner ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list banners: %w", err)
	}
	defer rows.Close()

	var banners []Banner
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.Name, &b.Image, &b.Description, &b.Created, &b.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan banner: %w", err)
		}
		banners = append(banners, b)
	}
	return banners, rows.Err()
}

func (s *SQLiteStore) UpdateBannerImage(ctx context.Context, name, image string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE banner SET image = ?, updated = CURRENT_TIMESTAMP WHERE name = ?`, image, name)
	if err != nil {
		return fmt.Errorf("failed to update banner image: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBannerNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateBannersIfAbsent(ctx context.Context, descriptions map[string]string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM banner`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count banners: %w", err)
	}
	if count > 0 {
		return nil
	}
	for name, description := range descriptions {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO banner (name, description) VALUES (?, ?)`, name, description); err != nil {
			return fmt.Errorf("failed to seed banner %q: %w", name, err)
		}
	}
	s.log.Info("seeded banners", slog.Int("count", len(descriptions)))
	return nil
}

// ------------------------------ categories ------------------------------

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created, updated FROM category ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Created, &c.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *SQLiteStore) CreateCategoriesIfAbsent(ctx context.Context, names []string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM category`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, name := range names {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO category (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
	}
	s.log.Info("seeded categories", slog.Int("count", len(names)))
	return nil
}

// ------------------------------- products -------------------------------

func (s *SQLiteStore) ListProducts(ctx context.Context, categoryID int64) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price, image, category_id, created, updated
		 FROM product WHERE category_id = ? ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, image, category_id, created, updated
		 FROM product WHERE id = ?`, productID)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) CreateProduct(ctx context.Context, p *Product) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO product (name, description, price, image, category_id) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price.String(), p.Image, p.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read product id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, productID int64, p *Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE product SET name = ?, description = ?, price = ?, image = ?, category_id = ?,
		 updated = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Name, p.Description, p.Price.String(), p.Image, p.CategoryID, productID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteProduct(ctx context.Context, productID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product WHERE id = ?`, productID)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", productID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// -------------------------------- users ---------------------------------

func (s *SQLiteStore) UpsertUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user (user_id, first_name, last_name) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		u.UserID, u.FirstName, u.LastName)
	if err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", u.UserID, err)
	}
	return nil
}

// -------------------------------- carts ---------------------------------

func (s *SQLiteStore) AddToCart(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart (user_id, product_id, quantity) VALUES (?, ?, 1)
		 ON CONFLICT(user_id, product_id)
		 DO UPDATE SET quantity = quantity + 1, updated = CURRENT_TIMESTAMP`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("failed to add product %d to cart of user %d: %w", productID, userID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCartLine(ctx context.Context, userID, productID int64) (*CartLine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, quantity, created, updated
		 FROM cart WHERE user_id = ? AND product_id = ?`, userID, productID)
	var l CartLine
	if err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.Created, &l.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, fmt.Errorf("failed to get cart line: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) ListCartItems(ctx context.Context, userID int64) ([]CartItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.product_id, c.quantity, c.created, c.updated,
		        p.id, p.name, p.description, p.price, p.image, p.category_id, p.created, p.updated
		 FROM cart c JOIN product p ON p.id = c.product_id
		 WHERE c.user_id = ? ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart of user %d: %w", userID, err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var it CartItem
		var price string
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CartLine.Created, &it.CartLine.Updated,
			&it.Product.ID, &it.Product.Name, &it.Product.Description, &price,
			&it.Product.Image, &it.Product.CategoryID, &it.Product.Created, &it.Product.Updated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		it.Product.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ReduceInCart(ctx context.Context, userID, productID int64) (bool, error) {
	line, err := s.GetCartLine(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, ErrCartLineNotFound) {
			return false, nil
		}
		return false, err
	}
	if line.Quantity > 1 {
		_, err := s.db.ExecContext(ctx,
			`UPDATE cart SET quantity = quantity - 1, updated = CURRENT_TIMESTAMP
			 WHERE user_id = ? AND product_id = ?`, userID, productID)
		if err != nil {
			return false, fmt.Errorf("failed to reduce cart line: %w", err)
		}
		return true, nil
	}
	if err := s.RemoveFromCart(ctx, userID, productID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove product %d from cart of user %d: %w", productID, userID, err)
	}
	return nil
}

// -------------------------------- orders --------------------------------

func (s *SQLiteStore) CreateOrder(ctx context.Context, userID, productID int64, fullName, address, phone string) (*Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var quantity int
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM cart WHERE user_id = ? AND product_id = ?`,
		userID, productID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, fmt.Errorf("failed to read cart line: %w", err)
	}

	var price string
	err = tx.QueryRowContext(ctx, `SELECT price FROM product WHERE id = ?`, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to read product price: %w", err)
	}
	unitPrice, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}

	// Snapshot: the total never changes after this point.
	total := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

	res, err := tx.ExecContext(ctx,
		`INSERT INTO "order" (user_id, product_id, full_name, phone, address, status, paid, total_price)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		userID, productID, fullName, phone, address, StatusProcessing, total.String())
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read order id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return s.GetOrder(ctx, id)
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, full_name, phone, address, status, paid, total_price, created, updated
		 FROM "order" WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	return s.listOrders(ctx,
		`SELECT id, user_id, product_id, full_name, phone, address, status, paid, total_price, created, updated
		 FROM "order" WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLiteStore) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.listOrders(ctx,
		`SELECT id, user_id, product_id, full_name, phone, address, status, paid, total_price, created, updated
		 FROM "order" ORDER BY id`)
}

func (s *SQLiteStore) listOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE "order" SET status = ?, updated = CURRENT_TIMESTAMP WHERE id = ?`, status, orderID)
	if err != nil {
		return fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *SQLiteStore) SetOrderPaid(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE "order" SET paid = 1, updated = CURRENT_TIMESTAMP WHERE id = ? AND paid = 0`, orderID)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %d paid: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// Either already paid or gone; distinguish so stale ids surface.
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLiteStore) DeleteOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM "order" WHERE id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ------------------------------- scanning -------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Image, &p.CategoryID, &p.Created, &p.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	var err error
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	return &p, nil
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var total string
	var paid int
	if err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.FullName, &o.Phone, &o.Address,
		&o.Status, &paid, &total, &o.Created, &o.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.Paid = paid != 0
	var err error
	o.TotalPrice, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("invalid stored total %q: %w", total, err)
	}
	return &o, nil
}

var _ Store = (*SQLiteStore)(nil)
