package catalog

// Default returns the built-in EcoMarket catalog.
func Default() *Catalog {
	return New(seedProducts, seedOrders)
}

var seedProducts = []Product{
	{Name: "cepillo de bambú", Returnable: false, SKU: "3001"},
	{Name: "pasta dental ecológica", Returnable: false, SKU: "3002"},
	{Name: "toalla orgánica", Returnable: false, SKU: "3003"},
	{Name: "botella ecológica", Returnable: true, SKU: "3004"},
	{Name: "bolsas reutilizables", Returnable: true, SKU: "3005"},
	{Name: "detergente natural", Returnable: false, SKU: "3006"},
	{Name: "jabón orgánico", Returnable: false, SKU: "3007"},
	{Name: "desodorante ecológico", Returnable: false, SKU: "3008"},
	{Name: "esponja vegetal", Returnable: false, SKU: "3009"},
	{Name: "shampoo sólido", Returnable: false, SKU: "3010"},
	{Name: "acondicionador sólido", Returnable: false, SKU: "3011"},
	{Name: "hilo dental natural", Returnable: false, SKU: "3012"},
	{Name: "bálsamo labial", Returnable: false, SKU: "3013"},
	{Name: "toallas de algodón orgánico", Returnable: false, SKU: "3014"},
	{Name: "set de limpieza ecológica", Returnable: true, SKU: "3015"},
	{Name: "paquete de pajillas reutilizables", Returnable: true, SKU: "3016"},
	{Name: "crema hidratante natural", Returnable: false, SKU: "3017"},
}

var seedOrders = []Order{
	{ID: "P-1001", Status: StatusInPreparation, DeliveryDate: "2025-09-25", Products: []string{"Cepillo de bambú", "Pasta dental ecológica", "Toalla orgánica"}, CustomerID: "10204578", CustomerName: "Juan Pérez"},
	{ID: "P-1002", Status: StatusShipped, DeliveryDate: "2025-09-24", Products: []string{"Botella ecológica", "Bolsas reutilizables"}, CustomerID: "20305689", CustomerName: "Ana Gómez"},
	{ID: "P-1003", Status: StatusDelivered, DeliveryDate: "2025-10-20", Products: []string{"bolsas reutilizables"}, CustomerID: "30406790", CustomerName: "Luis Rojas"},
	{ID: "P-1004", Status: StatusCancelled, DeliveryDate: "", Products: []string{"Detergente natural"}, CustomerID: "40507812", CustomerName: "Marta Díaz"},
	{ID: "P-1005", Status: StatusShipped, DeliveryDate: "2025-09-26", Products: []string{"Jabón orgánico", "Shampoo sólido", "Crema hidratante natural", "Cepillo de bambú", "Desodorante ecológico"}, CustomerID: "50608923", CustomerName: "Pedro Ramírez"},
	{ID: "P-1006", Status: StatusInPreparation, DeliveryDate: "2025-09-27", Products: []string{"Desodorante ecológico", "Jabón orgánico"}, CustomerID: "60709034", CustomerName: "Sofía Herrera"},
	{ID: "P-1007", Status: StatusDelivered, DeliveryDate: "2025-10-23", Products: []string{"paquete de pajillas reutilizables", "Pasta dental ecológica", "bolsas reutilizables"}, CustomerID: "30406790", CustomerName: "Luis Rojas"},
	{ID: "P-1008", Status: StatusDelivered, DeliveryDate: "2025-09-19", Products: []string{"Toallas de algodón orgánico", "Shampoo sólido", "Acondicionador sólido"}, CustomerID: "80902356", CustomerName: "Laura Torres"},
	{ID: "P-1009", Status: StatusInPreparation, DeliveryDate: "2025-09-28", Products: []string{"Paquete de pajillas reutilizables", "Botella ecológica"}, CustomerID: "90103467", CustomerName: "Daniela Gómez"},
	{ID: "P-1010", Status: StatusDelivered, DeliveryDate: "2025-09-24", Products: []string{"Set de limpieza ecológica"}, CustomerID: "11204578", CustomerName: "Carlos Ruiz"},
}
