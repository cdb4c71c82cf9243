package fixture

import (
	"encoding/json"
	"io"
)

type reportJSON struct {
	Report
	Total       int     `json:"total"`
	SuccessRate float64 `json:"successRate"`
	OK          bool    `json:"ok"`
}

// RenderJSON writes rep as indented JSON, including the derived totals.
func RenderJSON(w io.Writer, rep Report) error {
	if rep.Outcomes == nil {
		rep.Outcomes = []Outcome{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportJSON{
		Report:      rep,
		Total:       rep.Total(),
		SuccessRate: rep.SuccessRate(),
		OK:          rep.OK(),
	})
}
