package enum

type StockMovementReferenceType string

const (
	StockMovementReferenceTypeOrder       StockMovementReferenceType = "order"
	StockMovementReferenceTypeDirectOrder StockMovementReferenceType = "direct_order"
	StockMovementReferenceTypeCancel      StockMovementReferenceType = "cancel"
)
