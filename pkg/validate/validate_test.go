package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/orderdesk/pkg/validate"
)

type customer struct {
	Name  string `json:"name"  validate:"required,max=10"`
	Phone string `json:"phone" validate:"required,phone"`
}

type item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price" validate:"gte=0"`
	Qty   int     `json:"qty"   validate:"gte=0,lte=99"`
}

type input struct {
	Customer customer `json:"customer"`
	Items    []item   `json:"items"    validate:"required,min=1"`
	Payment  string   `json:"payment"  validate:"nullable,in=COD|CARD"`
	Callback string   `json:"callback" validate:"nullable,url"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(input{
		Customer: customer{Name: "A", Phone: "+1 (555) 010-2030"},
		Items:    []item{{Price: 100}, {Price: 50, Qty: 2}},
	})
	assert.False(t, validate.HasErrors(errs), "unexpected: %v", errs)
}

func TestNestedPaths(t *testing.T) {
	errs := validate.Struct(input{
		Customer: customer{Name: "   ", Phone: "call me"},
		Items:    []item{{Price: 1}, {Price: -5}},
		Payment:  "BITCOIN",
		Callback: "ftp://x",
	})

	assert.Contains(t, errs, "customer.name")
	assert.Contains(t, errs, "customer.phone")
	assert.Contains(t, errs, "items.1.price")
	assert.NotContains(t, errs, "items.0.price")
	assert.Contains(t, errs, "payment")
	assert.Contains(t, errs, "callback")
}

func TestEmptySlice(t *testing.T) {
	errs := validate.Struct(&input{Customer: customer{Name: "A", Phone: "1"}})
	assert.Equal(t, "The items field is required.", errs["items"])
}

func TestMaxLength(t *testing.T) {
	errs := validate.Struct(input{
		Customer: customer{Name: "A very long name", Phone: "1"},
		Items:    []item{{Price: 1}},
	})
	assert.Contains(t, errs["customer.name"], "at most 10")
}

func TestNonStruct(t *testing.T) {
	assert.Empty(t, validate.Struct(42))
	assert.Empty(t, validate.Struct((*input)(nil)))
}
