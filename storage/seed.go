package storage

import "context"

// DefaultCategories are created on first start.
var DefaultCategories = []string{"Еда", "Напитки"}

// DefaultBannerDescriptions seed the info pages. Keys are the page names the
// navigation engine looks up; images are added later by an admin.
var DefaultBannerDescriptions = map[string]string{
	"main":     "Добро пожаловать!",
	"about":    "Интернет магазин.\nРежим работы - круглосуточно.",
	"payment":  "Варианты оплаты:\n✅ ЮKassa",
	"shipping": "Варианты доставки/заказа:\n✅ Курьер",
	"catalog":  "Категории:",
	"cart":     "В корзине ничего нет!",
	"orders":   "Заказы",
}

// Seed fills an empty database with the default categories and banners.
func Seed(ctx context.Context, store CatalogStore) error {
	if err := store.CreateCategoriesIfAbsent(ctx, DefaultCategories); err != nil {
		return err
	}
	return store.CreateBannersIfAbsent(ctx, DefaultBannerDescriptions)
}
