package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryAdjustment is one line of an Accurate item adjustment transaction.
// Accurate transactions may carry several detail lines; the export flattens
// them and the import submits exactly one line per transaction.
type InventoryAdjustment struct {
	RemoteID       string
	Number         string
	TransDate      time.Time
	Description    string
	ItemNo         string
	ItemName       string
	AdjustmentType AdjustmentType
	Quantity       decimal.Decimal
	UnitCode       string
	UnitCost       decimal.Decimal
	Warehouse      string
}

// Item is the subset of an Accurate item master record used for validation.
type Item struct {
	No    string
	Name  string
	Units []string // Registered unit names, primary unit first.
}
