package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/examreader/internal/model"
)

// ExportAllSheets returns every stored answer sheet in completion order.
func (s *Store) ExportAllSheets() (model.SheetExport, error) {
	rows, err := s.db.Query(`SELECT session_id, sheet_json FROM answer_sheets ORDER BY completed_at, session_id`)
	if err != nil {
		return model.SheetExport{}, fmt.Errorf("list answer sheets: %w", err)
	}
	defer rows.Close()

	export := model.SheetExport{ExportedAt: s.now().UTC(), Sheets: []model.AnswerSheet{}}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return model.SheetExport{}, err
		}
		var sheet model.AnswerSheet
		if err := json.Unmarshal([]byte(data), &sheet); err != nil {
			return model.SheetExport{}, fmt.Errorf("decode answer sheet %s: %w", id, err)
		}
		export.Sheets = append(export.Sheets, sheet)
	}
	if err := rows.Err(); err != nil {
		return model.SheetExport{}, err
	}
	export.Count = len(export.Sheets)
	return export, nil
}
