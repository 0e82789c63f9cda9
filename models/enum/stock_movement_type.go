package enum

type StockMovementType string

const (
	StockMovementTypeOut StockMovementType = "out"
	StockMovementTypeIn  StockMovementType = "in"
)
