package domain

import "time"

// Part is a spare part tracked for stock level alerts.
type Part struct {
	ID            string
	PartName      string
	PartNumber    string
	StockQuantity int
	MinimumStock  int
	Location      *string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LowStock reports whether the part has fallen to or below its floor.
func (p *Part) LowStock() bool {
	return p.StockQuantity <= p.MinimumStock
}
