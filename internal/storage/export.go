package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run     RunMetadata `json:"run"`
	Fields  []string    `json:"fields"`
	Records [][]float64 `json:"records"`
}

// ExportJSON writes a run's metadata and records as indented JSON.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	fields, rows, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: *meta, Fields: fields, Records: rows})
}
