package catalog

import "strings"

// OrderStatus is the fulfilment state of an order as stored by the system of record.
type OrderStatus string

const (
	StatusInPreparation OrderStatus = "En preparación"
	StatusShipped       OrderStatus = "Enviado"
	StatusDelivered     OrderStatus = "Entregado"
	StatusCancelled     OrderStatus = "Cancelado"
)

// IsDelivered reports whether the status label means the order reached the customer.
// The comparison is case-insensitive because labels are typed by hand upstream.
func (s OrderStatus) IsDelivered() bool {
	return strings.Contains(strings.ToLower(string(s)), strings.ToLower(string(StatusDelivered)))
}

// Product is a catalog entry. Name is the display name; lookups use its normalized form.
type Product struct {
	Name       string `yaml:"name" json:"name"`
	Returnable bool   `yaml:"returnable" json:"returnable"`
	SKU        string `yaml:"sku" json:"sku"`
}

// Order is an immutable order record.
type Order struct {
	ID           string      `yaml:"id" json:"id"`
	Status       OrderStatus `yaml:"status" json:"status"`
	DeliveryDate string      `yaml:"date" json:"date"` // YYYY-MM-DD, may be empty
	Products     []string    `yaml:"products" json:"products"`
	CustomerID   string      `yaml:"customer_id" json:"customer_id"`
	CustomerName string      `yaml:"customer_name" json:"customer_name"`
}

// Normalize returns the lookup key for a product name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
