package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusReceived  OrderStatus = "received"
	StatusPreparing OrderStatus = "preparing"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every valid status in lifecycle order.
var OrderStatuses = []OrderStatus{StatusReceived, StatusPreparing, StatusDelivered, StatusCancelled}

// transitions is the forward-only state machine; delivered and cancelled
// are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived:  {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusDelivered, StatusCancelled},
}

// Valid reports whether s is one of OrderStatuses.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Active reports whether the order still needs kitchen attention.
func (s OrderStatus) Active() bool {
	return s == StatusReceived || s == StatusPreparing
}

// CanTransitionTo reports whether next is a legal move from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Customer is who placed the order and where it goes.
type Customer struct {
	Name    string `gorm:"size:255;not null" json:"name"`
	Phone   string `gorm:"size:64;not null"  json:"phone"`
	Address string `gorm:"type:text;not null" json:"address"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID       uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID  string  `gorm:"size:64;not null;index"   json:"-"`
	Position int     `gorm:"not null;default:0"       json:"-"`
	Name     string  `gorm:"size:255;not null"        json:"name"`
	Price    float64 `gorm:"not null;default:0"       json:"price"`
	Qty      int     `gorm:"not null;default:1"       json:"qty"`
}

// LineTotal is price × qty.
func (i OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Qty)
}

// Order is a customer order. Orders are never deleted.
type Order struct {
	ID                  string      `gorm:"primaryKey;size:64"                      json:"id"`
	Customer            Customer    `gorm:"embedded;embeddedPrefix:customer_"       json:"customer"`
	Items               []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	SpecialInstructions string      `gorm:"type:text"                               json:"specialInstructions"`
	PaymentMethod       string      `gorm:"size:32;not null;default:COD"            json:"paymentMethod"`
	Subtotal            float64     `gorm:"not null"                                json:"subtotal"`
	DeliveryFee         float64     `gorm:"not null"                                json:"deliveryFee"`
	Total               float64     `gorm:"not null"                                json:"total"`
	Status              OrderStatus `gorm:"size:20;not null;index"                  json:"status"`
	CreatedAt           time.Time   `gorm:"index"                                   json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy so callers can't mutate store-owned state.
func (o Order) Clone() Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	if out.Items == nil {
		out.Items = []OrderItem{}
	}
	return out
}

// OrderStats summarises the order book.
type OrderStats struct {
	TotalOrders  int `json:"totalOrders"`
	ActiveOrders int `json:"activeOrders"`
}
