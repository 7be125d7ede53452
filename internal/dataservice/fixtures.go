package dataservice

// NewSampleMemory builds an in-memory service seeded with the SAMPLES
// namespace. Used by the demo wiring and the end-to-end tests.
func NewSampleMemory() *Memory {
	m := NewMemory()
	m.CreateTable(Schema{
		Namespace: "SAMPLES",
		Table:     "Customer",
		Columns: []Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "name", Type: "string"},
			{Name: "city", Type: "string", Nullable: true},
			{Name: "balance", Type: "number", Nullable: true},
		},
	})
	m.CreateTable(Schema{
		Namespace: "SAMPLES",
		Table:     "Order",
		Columns: []Column{
			{Name: "id", Type: "integer", PrimaryKey: true},
			{Name: "customerId", Type: "integer"},
			{Name: "total", Type: "number"},
		},
	})
	_ = m.Seed("SAMPLES", "Customer",
		Row{"id": int64(1), "name": "Acme Corp", "city": "Boston", "balance": 1200.50},
		Row{"id": int64(2), "name": "Globex", "city": "Springfield", "balance": 54.00},
		Row{"id": int64(3), "name": "Initech", "city": "Austin", "balance": 0.0},
	)
	_ = m.Seed("SAMPLES", "Order",
		Row{"id": int64(1), "customerId": int64(1), "total": 300.00},
		Row{"id": int64(2), "customerId": int64(2), "total": 12.99},
	)
	return m
}
