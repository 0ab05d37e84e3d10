package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
)

const trajectoryDir = "trajectories"

// trajectoryFile mirrors the taught-refgen record layout: one row per
// sample, time first.
type trajectoryFile struct {
	Kind string      `yaml:"kind"`
	DOF  int         `yaml:"dof"`
	Data [][]float64 `yaml:"data"`
}

func (s *Store) trajectoryPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", errors.Errorf("storage: invalid trajectory name %q", name)
	}
	return filepath.Join(s.baseDir, trajectoryDir, name+".yaml"), nil
}

func (s *Store) SaveTrajectory(name, kind string, samples []refgen.Sample) error {
	path, err := s.trajectoryPath(name)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return errors.Wrap(robot.ErrNoTrajectory, "storage: no samples")
	}
	tf := trajectoryFile{Kind: kind, DOF: len(samples[0].Position), Data: make([][]float64, len(samples))}
	for i, smp := range samples {
		if len(smp.Position) != tf.DOF {
			return robot.CheckDOF("sample", len(smp.Position), tf.DOF)
		}
		tf.Data[i] = append([]float64{smp.Time}, smp.Position...)
	}
	data, err := yaml.Marshal(&tf)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Store) LoadTrajectory(name string) (string, []refgen.Sample, error) {
	path, err := s.trajectoryPath(name)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, errors.Wrapf(robot.ErrNoTrajectory, "storage: %s", name)
		}
		return "", nil, err
	}
	var tf trajectoryFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return "", nil, errors.Wrapf(err, "storage: trajectory %s", name)
	}
	samples := make([]refgen.Sample, len(tf.Data))
	for i, row := range tf.Data {
		if len(row) != tf.DOF+1 {
			return "", nil, errors.Wrapf(robot.ErrDimensionMismatch, "storage: %s row %d has %d values, want %d", name, i, len(row), tf.DOF+1)
		}
		samples[i] = refgen.Sample{Time: row[0], Position: append([]float64(nil), row[1:]...)}
	}
	return tf.Kind, samples, nil
}

func (s *Store) ListTrajectories() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, trajectoryDir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(filepath.Base(m), ".yaml")
	}
	sort.Strings(names)
	return names, nil
}
