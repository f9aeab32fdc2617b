package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashledger/internal/model"
)

// LinePatch carries the fields Lines.Update may change. Nil fields are kept.
type LinePatch struct {
	Quantity  *int
	UnitPrice *decimal.Decimal
	StockCap  *int
}

// Lines is an ordered collection of order lines keyed by product.
// It only keeps the shape consistent; business rules live in OrderBuilder.
type Lines struct {
	items []model.LineItem
	index map[uuid.UUID]int
}

func NewLines() *Lines {
	return &Lines{index: make(map[uuid.UUID]int)}
}

// Add appends line and recomputes its subtotal.
func (l *Lines) Add(line model.LineItem) (int, error) {
	if _, ok := l.index[line.ProductID]; ok {
		return -1, ErrDuplicateProduct
	}
	line.Subtotal = lineSubtotal(line.Quantity, line.UnitPrice)
	l.items = append(l.items, line)
	idx := len(l.items) - 1
	l.index[line.ProductID] = idx
	return idx, nil
}

func (l *Lines) Get(index int) (model.LineItem, error) {
	if index < 0 || index >= len(l.items) {
		return model.LineItem{}, ErrLineIndex
	}
	return copyLine(l.items[index]), nil
}

// FindByProductID returns the index of the product's line, or -1.
func (l *Lines) FindByProductID(id uuid.UUID) int {
	if idx, ok := l.index[id]; ok {
		return idx
	}
	return -1
}

// Update applies patch and recomputes the subtotal in the same step.
func (l *Lines) Update(index int, patch LinePatch) (model.LineItem, error) {
	if index < 0 || index >= len(l.items) {
		return model.LineItem{}, ErrLineIndex
	}
	line := l.items[index]
	if patch.Quantity != nil {
		line.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		line.UnitPrice = *patch.UnitPrice
	}
	if patch.StockCap != nil {
		c := *patch.StockCap
		line.StockCap = &c
	}
	line.Subtotal = lineSubtotal(line.Quantity, line.UnitPrice)
	l.items[index] = line
	return copyLine(line), nil
}

func (l *Lines) Remove(index int) (model.LineItem, error) {
	if index < 0 || index >= len(l.items) {
		return model.LineItem{}, ErrLineIndex
	}
	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	delete(l.index, removed.ProductID)
	for i := index; i < len(l.items); i++ {
		l.index[l.items[i].ProductID] = i
	}
	return removed, nil
}

func (l *Lines) Len() int { return len(l.items) }

// All returns a copy of the lines in insertion order.
func (l *Lines) All() []model.LineItem {
	out := make([]model.LineItem, len(l.items))
	for i, it := range l.items {
		out[i] = copyLine(it)
	}
	return out
}

func copyLine(line model.LineItem) model.LineItem {
	if line.StockCap != nil {
		c := *line.StockCap
		line.StockCap = &c
	}
	return line
}
