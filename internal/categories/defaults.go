package categories

// DefaultCategory is a catalog entry installed by the seed command.
type DefaultCategory struct {
	Name       string
	PricePerKg int64
}

// Defaults is the starter price list for a new waste bank, in Rupiah per kg.
var Defaults = []DefaultCategory{
	{Name: "Plastik Botol", PricePerKg: 3000},
	{Name: "Plastik Kemasan", PricePerKg: 2000},
	{Name: "Kardus", PricePerKg: 1500},
	{Name: "Kertas", PricePerKg: 1000},
	{Name: "Kaleng Aluminium", PricePerKg: 5000},
	{Name: "Besi", PricePerKg: 2500},
	{Name: "Kaca", PricePerKg: 500},
}
