package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLookupIgnoresCase(t *testing.T) {
	c := Default()

	o, ok := c.Order("p-1003")
	require.True(t, ok)
	assert.Equal(t, "P-1003", o.ID)
	assert.Equal(t, "Luis Rojas", o.CustomerName)

	_, ok = c.Order("P-9999")
	assert.False(t, ok)
}

func TestOrdersByCustomerKeepsCatalogOrder(t *testing.T) {
	c := Default()

	orders := c.OrdersByCustomer("30406790")
	require.Len(t, orders, 2)
	assert.Equal(t, "P-1003", orders[0].ID)
	assert.Equal(t, "P-1007", orders[1].ID)

	assert.Empty(t, c.OrdersByCustomer("00000000"))
}

func TestStatusIsDelivered(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusDelivered, true},
		{"ENTREGADO", true},
		{"entregado", true},
		{StatusShipped, false},
		{StatusInPreparation, false},
		{StatusCancelled, false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsDelivered(), "status %q", tt.status)
	}
}

func TestMatchProduct(t *testing.T) {
	c := Default()

	tests := []struct {
		name       string
		query      string
		wantSKU    string
		wantFound  bool
		returnable bool
	}{
		{"exact", "bolsas reutilizables", "3005", true, true},
		{"case drift", "Botella Ecológica", "3004", true, true},
		{"padded", "  Set de limpieza ecológica ", "3015", true, true},
		{"query inside name", "pajillas reutilizables", "3016", true, true},
		{"name inside query", "bolsas reutilizables grandes", "3005", true, true},
		{"non returnable", "Shampoo sólido", "3010", true, false},
		{"unknown", "tostadora", "", false, false},
		{"empty", "   ", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := c.MatchProduct(tt.query)
			assert.Equal(t, tt.wantFound, ok)
			assert.Equal(t, tt.wantSKU, p.SKU)
			assert.Equal(t, tt.returnable, p.Returnable)
		})
	}
}

func TestCatalogIsolatedFromCallerSlices(t *testing.T) {
	products := []Product{{Name: "a", Returnable: true, SKU: "1"}}
	c := New(products, nil)
	products[0].Returnable = false

	p, ok := c.MatchProduct("a")
	require.True(t, ok)
	assert.True(t, p.Returnable)

	c.Products()[0].Returnable = false
	p, _ = c.MatchProduct("a")
	assert.True(t, p.Returnable)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	content := `products:
  - name: vaso de vidrio
    returnable: true
    sku: "9001"
orders:
  - id: P-2001
    status: Entregado
    date: "2025-10-01"
    products: ["Vaso de vidrio"]
    customer_id: "12345678"
    customer_name: Eva Luna
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	o, ok := c.Order("P-2001")
	require.True(t, ok)
	assert.True(t, o.Status.IsDelivered())
	assert.Equal(t, []string{"Vaso de vidrio"}, o.Products)

	p, ok := c.MatchProduct(o.Products[0])
	require.True(t, ok)
	assert.Equal(t, "9001", p.SKU)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yml")
	require.NoError(t, os.WriteFile(empty, []byte("orders: []\n"), 0o644))
	_, err = LoadFile(empty)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yml")
	require.NoError(t, os.WriteFile(broken, []byte("products: [\n"), 0o644))
	_, err = LoadFile(broken)
	assert.Error(t, err)
}
