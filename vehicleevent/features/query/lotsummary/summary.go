package lotsummary

import (
	"time"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/lotdirectory"
	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell/projectionstore"
)

const (
	// TableName is the SQL table of the read model.
	TableName = "lot_summary"

	// NameColumn is the column ListQuery matches against.
	NameColumn = "name"
)

// LotSummary is the read model of one lot. Version is the sequence number of the last event folded in.
type LotSummary struct {
	ID         string `db:"id"          json:"id"`
	Name       string `db:"name"        json:"name"`
	Manager    string `db:"manager"     json:"manager"`
	CreateTime string `db:"create_time" json:"createTime"`
	UpdateTime string `db:"update_time" json:"updateTime"`
	Version    int64  `db:"version"     json:"-"`
}

// Columns lets a MemoryStore filter summaries the way the SQL table can.
func Columns() map[string]projectionstore.Column[LotSummary] {
	return map[string]projectionstore.Column[LotSummary]{
		"id":       func(r LotSummary) string { return r.ID },
		NameColumn: func(r LotSummary) string { return r.Name },
		"manager":  func(r LotSummary) string { return r.Manager },
	}
}

// ToLot converts a summary for lotdirectory.ProjectionDirectory.
func ToLot(summary LotSummary) lotdirectory.Lot {
	return lotdirectory.Lot{
		ID:      summary.ID,
		Name:    summary.Name,
		Manager: summary.Manager,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
