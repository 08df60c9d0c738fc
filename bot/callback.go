package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Screen selects which screen-rendering operation runs. The numeric value is
// what travels inside callback data, so it must stay stable.
type Screen int

const (
	ScreenMain Screen = iota
	ScreenCatalog
	ScreenProducts
	ScreenCart
	ScreenCheckout
	ScreenOrders
	ScreenPayment
	ScreenOrderDelete
)

func (s Screen) String() string {
	switch s {
	case ScreenMain:
		return "main"
	case ScreenCatalog:
		return "catalog"
	case ScreenProducts:
		return "products"
	case ScreenCart:
		return "cart"
	case ScreenCheckout:
		return "checkout"
	case ScreenOrders:
		return "orders"
	case ScreenPayment:
		return "payment"
	case ScreenOrderDelete:
		return "order_delete"
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// MenuCallback is the navigation descriptor packed into menu button callback
// data. It is reconstructed from every inbound press and never persisted, so
// each click is a fresh (level, context) lookup.
//
// Wire format, colon-joined: menu:<level>:<menu_name>:<category>:<page>:<product>:<order>
// Optional ids encode as empty fields; page defaults to 1.
type MenuCallback struct {
	Level      Screen
	MenuName   string
	CategoryID int64
	Page       int
	ProductID  int64
	OrderID    int64
}

const menuCallbackPrefix = "menu"

// Pack serializes the callback for a button.
func (c MenuCallback) Pack() string {
	page := c.Page
	if page == 0 {
		page = 1
	}
	return strings.Join([]string{
		menuCallbackPrefix,
		strconv.Itoa(int(c.Level)),
		c.MenuName,
		packID(c.CategoryID),
		strconv.Itoa(page),
		packID(c.ProductID),
		packID(c.OrderID),
	}, ":")
}

// IsMenuCallback reports whether data looks like a packed MenuCallback.
func IsMenuCallback(data string) bool {
	return strings.HasPrefix(data, menuCallbackPrefix+":")
}

// ParseMenuCallback decodes button callback data.
func ParseMenuCallback(data string) (*MenuCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 7 || parts[0] != menuCallbackPrefix {
		return nil, fmt.Errorf("invalid menu callback data: %q", data)
	}

	level, err := strconv.Atoi(parts[1])
	if err != nil || level < 0 {
		return nil, fmt.Errorf("invalid menu level in %q", data)
	}

	cb := &MenuCallback{
		Level:    Screen(level),
		MenuName: parts[2],
		Page:     1,
	}
	if cb.CategoryID, err = parseID(parts[3]); err != nil {
		return nil, fmt.Errorf("invalid category in %q", data)
	}
	if parts[4] != "" {
		if cb.Page, err = strconv.Atoi(parts[4]); err != nil || cb.Page < 1 {
			return nil, fmt.Errorf("invalid page in %q", data)
		}
	}
	if cb.ProductID, err = parseID(parts[5]); err != nil {
		return nil, fmt.Errorf("invalid product in %q", data)
	}
	if cb.OrderID, err = parseID(parts[6]); err != nil {
		return nil, fmt.Errorf("invalid order in %q", data)
	}
	return cb, nil
}

func packID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func parseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// AdminCallback dispatches a top-level admin panel action.
// Wire format: admin:<action>
type AdminCallback struct {
	Action string
}

const adminCallbackPrefix = "admin"

func (c AdminCallback) Pack() string {
	return adminCallbackPrefix + ":" + c.Action
}

func IsAdminCallback(data string) bool {
	return strings.HasPrefix(data, adminCallbackPrefix+":")
}

func ParseAdminCallback(data string) (*AdminCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 2 || parts[0] != adminCallbackPrefix || parts[1] == "" {
		return nil, fmt.Errorf("invalid admin callback data: %q", data)
	}
	return &AdminCallback{Action: parts[1]}, nil
}

// OrderCallback targets one order from the admin panel.
// Wire format: order:<action>:<order_id>:<status>
type OrderCallback struct {
	Action  string
	OrderID int64
	Status  string
}

const orderCallbackPrefix = "order"

func (c OrderCallback) Pack() string {
	return strings.Join([]string{
		orderCallbackPrefix,
		c.Action,
		strconv.FormatInt(c.OrderID, 10),
		c.Status,
	}, ":")
}

func IsOrderCallback(data string) bool {
	return strings.HasPrefix(data, orderCallbackPrefix+":")
}

func ParseOrderCallback(data string) (*OrderCallback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != orderCallbackPrefix || parts[1] == "" {
		return nil, fmt.Errorf("invalid order callback data: %q", data)
	}
	orderID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid order id in %q", data)
	}
	return &OrderCallback{Action: parts[1], OrderID: orderID, Status: parts[3]}, nil
}
