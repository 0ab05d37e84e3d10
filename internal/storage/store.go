package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset"`
	DOF        int                `json:"dof"`
	Timestamp  time.Time          `json:"timestamp"`
	Period     float64            `json:"period"`
	Integrator string             `json:"integrator"`
	Controller string             `json:"controller"`
	Fields     []string           `json:"fields,omitempty"`
	Records    int                `json:"records"`
	Dropped    uint64             `json:"dropped"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// RunWriter streams one run's log records to CSV. It implements
// datalog.Sink and is only used from the flushing goroutine.
type RunWriter struct {
	dir  string
	meta RunMetadata
	file *os.File
	w    *csv.Writer
	row  []string
}

// CreateRun assigns an ID to meta, creates the run directory and writes the
// initial metadata.
func (s *Store) CreateRun(meta RunMetadata) (*RunWriter, error) {
	prefix := meta.Preset
	if prefix == "" {
		prefix = "run"
	}
	meta.ID = fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := writeMetadata(dir, &meta); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, samplesFile))
	if err != nil {
		return nil, err
	}
	return &RunWriter{dir: dir, meta: meta, file: f, w: csv.NewWriter(f)}, nil
}

func writeMetadata(dir string, meta *RunMetadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return multierr.Append(enc.Encode(meta), f.Close())
}

func (r *RunWriter) ID() string { return r.meta.ID }

func (r *RunWriter) Begin(fields []string) error {
	r.meta.Fields = append([]string(nil), fields...)
	r.row = make([]string, len(fields))
	return r.w.Write(fields)
}

func (r *RunWriter) Append(record []float64) error {
	if len(record) != len(r.row) {
		return errors.Errorf("storage: record has %d fields, header has %d", len(record), len(r.row))
	}
	for i, v := range record {
		r.row[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	r.meta.Records++
	return r.w.Write(r.row)
}

// Close flushes the samples and rewrites the metadata with the final
// record count, dropped count and metrics.
func (r *RunWriter) Close(metrics map[string]float64, dropped uint64) error {
	r.w.Flush()
	err := multierr.Append(r.w.Error(), r.file.Close())
	r.meta.Metrics = metrics
	r.meta.Dropped = dropped
	return multierr.Append(err, writeMetadata(r.dir, &r.meta))
}

// List returns every run, oldest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "storage: run %s metadata", runID)
	}
	return &meta, nil
}

// LoadSamples returns the CSV header and every record of a run.
func (s *Store) LoadSamples(runID string) ([]string, [][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "storage: run %s samples", runID)
	}
	if len(records) == 0 {
		return []string{}, [][]float64{}, nil
	}

	header := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "storage: run %s line %d", runID, i+2)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Column extracts one named column from rows.
func Column(header []string, rows [][]float64, name string) ([]float64, bool) {
	idx := -1
	for i, h := range header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[idx]
	}
	return col, true
}
