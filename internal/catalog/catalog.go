package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only product and order data the return flow reasons over.
// Products and orders are kept in insertion order so every scan is deterministic.
type Catalog struct {
	products []Product
	orders   []Order
	byName   map[string]int
	byID     map[string]int
}

// New builds a Catalog from the given products and orders.
func New(products []Product, orders []Order) *Catalog {
	c := &Catalog{
		products: make([]Product, len(products)),
		orders:   make([]Order, len(orders)),
		byName:   make(map[string]int, len(products)),
		byID:     make(map[string]int, len(orders)),
	}
	copy(c.products, products)
	copy(c.orders, orders)

	for i, p := range c.products {
		key := Normalize(p.Name)
		if _, dup := c.byName[key]; !dup {
			c.byName[key] = i
		}
	}
	for i, o := range c.orders {
		c.byID[strings.ToUpper(o.ID)] = i
	}
	return c
}

// file is the on-disk YAML layout accepted by LoadFile.
type file struct {
	Products []Product `yaml:"products"`
	Orders   []Order   `yaml:"orders"`
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog %s has no products", path)
	}
	return New(f.Products, f.Orders), nil
}

// Order returns the order with the given id. The lookup ignores case.
func (c *Catalog) Order(id string) (Order, bool) {
	i, ok := c.byID[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return Order{}, false
	}
	return c.orders[i], true
}

// Orders returns every order in catalog order.
func (c *Catalog) Orders() []Order {
	out := make([]Order, len(c.orders))
	copy(out, c.orders)
	return out
}

// OrdersByCustomer returns the orders placed by the given customer id, in catalog order.
func (c *Catalog) OrdersByCustomer(customerID string) []Order {
	var out []Order
	for _, o := range c.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out
}

// Products returns every product in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// MatchProduct finds the catalog product for a name as written on an order.
// An exact normalized match wins; otherwise the first product whose name
// contains the query, or is contained in it, is returned. Order lines drift
// in casing and plurals, so the fallback is expected to fire.
func (c *Catalog) MatchProduct(name string) (Product, bool) {
	key := Normalize(name)
	if key == "" {
		return Product{}, false
	}
	if i, ok := c.byName[key]; ok {
		return c.products[i], true
	}
	for _, p := range c.products {
		candidate := Normalize(p.Name)
		if strings.Contains(candidate, key) || strings.Contains(key, candidate) {
			return p, true
		}
	}
	return Product{}, false
}
