package domain

import "time"

// Machine is reference data mapping QR-coded equipment to a plant sector.
type Machine struct {
	ID           string
	MachineLabel string
	QRCodeValue  string
	Sector       string
	IsActive     bool
	CreatedAt    time.Time
}
