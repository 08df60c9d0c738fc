package bot

import (
	"github.com/shopspring/decimal"

	"github.com/iabalyuk/telemarket/storage"
)

// CheckoutStep is one input-collection step of the checkout form.
type CheckoutStep int

const (
	StepFullName CheckoutStep = iota
	StepAddress
	StepPhone
)

// checkoutPrompts are shown on entering a step.
var checkoutPrompts = map[CheckoutStep]string{
	StepFullName: "Введите ФИО:",
	StepAddress:  "Теперь введите адрес доставки:",
	StepPhone:    "Отправьте номер телефона",
}

// checkoutRetryTexts are shown when the user navigates back to a step.
var checkoutRetryTexts = map[CheckoutStep]string{
	StepFullName: "Введите ФИО заново:",
	StepAddress:  "Введите адрес заново:",
	StepPhone:    "Введите номер телефона заново:",
}

// CheckoutState is one user's in-flight checkout form. Answers accumulate
// here and are only committed to the order store on the final step.
type CheckoutState struct {
	Step      CheckoutStep
	ProductID int64
	FullName  string
	Address   string
	Phone     string
}

// ProductStep is one input-collection step of the admin product form.
type ProductStep int

const (
	StepProductName ProductStep = iota
	StepProductDescription
	StepProductCategory
	StepProductPrice
	StepProductImage
)

var productRetryTexts = map[ProductStep]string{
	StepProductName:        "Введите название заново:",
	StepProductDescription: "Введите описание заново:",
	StepProductCategory:    "Выберите категорию заново ⬆️",
	StepProductPrice:       "Введите стоимость заново:",
	StepProductImage:       "Этот шаг последний, загрузите фото товара",
}

// ProductState is one admin's in-flight product form. Editing carries the
// product under edit; it is per-session, never shared between admins.
type ProductState struct {
	Step        ProductStep
	Editing     *storage.Product
	Name        string
	Description string
	CategoryID  int64
	Price       decimal.Decimal
	Image       string
}

// UserState is the transient per-user session: at most one form is active at
// a time. Updates for one user arrive serialized by the transport, so no
// locking is needed here.
type UserState struct {
	Checkout *CheckoutState
	Product  *ProductState
	// AwaitBanner marks an admin waiting to upload a banner photo.
	AwaitBanner bool
}

// idle reports whether no form is in progress.
func (s *UserState) idle() bool {
	return s.Checkout == nil && s.Product == nil && !s.AwaitBanner
}

// reset clears all in-flight form state, including the edit reference.
func (s *UserState) reset() {
	s.Checkout = nil
	s.Product = nil
	s.AwaitBanner = false
}
