package vehiclesummary

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/core"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

// TableName is the SQL table of the read model.
const TableName = "vehicle_summary"

// VehicleSummary is the read model of one vehicle. Times are RFC 3339 text, empty until the step happened.
// Version is the sequence number of the last event folded in.
type VehicleSummary struct {
	ID         string      `db:"id"          json:"id"`
	Price      core.Amount `db:"price"       json:"price"`
	Type       string      `db:"type"        json:"type"`
	Lot        string      `db:"lot"         json:"lot"`
	LotID      string      `db:"lot_id"      json:"lotId"`
	SellPrice  core.Amount `db:"sell_price"  json:"sellPrice"`
	InductTime string      `db:"induct_time" json:"inductTime"`
	ToLotTime  string      `db:"to_lot_time" json:"toLotTime"`
	SellTime   string      `db:"sell_time"   json:"sellTime"`
	Version    int64       `db:"version"     json:"-"`
}

// Columns lets a MemoryStore filter summaries the way the SQL table can.
func Columns() map[string]projectionstore.Column[VehicleSummary] {
	return map[string]projectionstore.Column[VehicleSummary]{
		"id":     func(r VehicleSummary) string { return r.ID },
		"type":   func(r VehicleSummary) string { return r.Type },
		"lot":    func(r VehicleSummary) string { return r.Lot },
		"lot_id": func(r VehicleSummary) string { return r.LotID },
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
