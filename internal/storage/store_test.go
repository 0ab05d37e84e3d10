package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/san-kum/wamctl/internal/datalog"
	"github.com/san-kum/wamctl/internal/refgen"
	"github.com/san-kum/wamctl/internal/robot"
)

var _ datalog.Sink = (*RunWriter)(nil)

func writeRun(t *testing.T, st *Store) string {
	t.Helper()
	w, err := st.CreateRun(RunMetadata{Preset: "link1", DOF: 1, Period: 0.002, Controller: "joint"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Begin([]string{"time", "jpos0"}), test.ShouldBeNil)
	test.That(t, w.Append([]float64{0, 0.5}), test.ShouldBeNil)
	test.That(t, w.Append([]float64{0.002, 0.25}), test.ShouldBeNil)
	test.That(t, w.Append([]float64{1}), test.ShouldNotBeNil)
	test.That(t, w.Close(map[string]float64{"control_effort": 1.5}, 3), test.ShouldBeNil)
	return w.ID()
}

func TestStoreRunRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	test.That(t, st.Init(), test.ShouldBeNil)

	id := writeRun(t, st)
	test.That(t, id, test.ShouldStartWith, "link1_")

	meta, err := st.Load(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, meta.Records, test.ShouldEqual, 2)
	test.That(t, meta.Dropped, test.ShouldEqual, uint64(3))
	test.That(t, meta.Fields, test.ShouldResemble, []string{"time", "jpos0"})
	test.That(t, meta.Metrics["control_effort"], test.ShouldEqual, 1.5)

	header, rows, err := st.LoadSamples(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, header, test.ShouldResemble, []string{"time", "jpos0"})
	test.That(t, rows, test.ShouldResemble, [][]float64{{0, 0.5}, {0.002, 0.25}})

	col, ok := Column(header, rows, "jpos0")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, col, test.ShouldResemble, []float64{0.5, 0.25})
	_, ok = Column(header, rows, "jvel0")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	runs, err := st.List()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, runs, test.ShouldBeEmpty)

	test.That(t, st.Init(), test.ShouldBeNil)
	first := writeRun(t, st)
	w, err := st.CreateRun(RunMetadata{Preset: "wam4", Timestamp: time.Now().Add(time.Hour)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Close(nil, 0), test.ShouldBeNil)
	test.That(t, os.MkdirAll(filepath.Join(st.Dir(), "junk"), 0755), test.ShouldBeNil)

	runs, err = st.List()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(runs), test.ShouldEqual, 2)
	test.That(t, runs[0].ID, test.ShouldEqual, first)
	test.That(t, runs[1].ID, test.ShouldEqual, w.ID())
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	test.That(t, st.Init(), test.ShouldBeNil)
	id := writeRun(t, st)

	var buf bytes.Buffer
	test.That(t, st.ExportJSON(id, &buf), test.ShouldBeNil)

	var got ExportData
	test.That(t, json.Unmarshal(buf.Bytes(), &got), test.ShouldBeNil)
	test.That(t, got.Run.ID, test.ShouldEqual, id)
	test.That(t, len(got.Records), test.ShouldEqual, 2)

	test.That(t, st.ExportJSON("missing", &buf), test.ShouldNotBeNil)
}

func TestTrajectoryRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	samples := []refgen.Sample{
		{Time: 0, Position: []float64{0, 1}},
		{Time: 0.128, Position: []float64{0.1, 0.9}},
	}
	test.That(t, st.SaveTrajectory("wave", refgen.KindTeachplay, samples), test.ShouldBeNil)

	kind, got, err := st.LoadTrajectory("wave")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, kind, test.ShouldEqual, refgen.KindTeachplay)
	test.That(t, got, test.ShouldResemble, samples)

	names, err := st.ListTrajectories()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{"wave"})

	data, err := os.ReadFile(filepath.Join(st.Dir(), "trajectories", "wave.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "data:")
}

func TestTrajectoryErrors(t *testing.T) {
	st := New(t.TempDir())
	_, _, err := st.LoadTrajectory("missing")
	test.That(t, errors.Is(err, robot.ErrNoTrajectory), test.ShouldBeTrue)

	test.That(t, st.SaveTrajectory("../escape", "teachplay", []refgen.Sample{{Position: []float64{0}}}), test.ShouldNotBeNil)
	test.That(t, errors.Is(st.SaveTrajectory("empty", "teachplay", nil), robot.ErrNoTrajectory), test.ShouldBeTrue)

	ragged := []refgen.Sample{{Position: []float64{0, 1}}, {Time: 1, Position: []float64{0}}}
	test.That(t, errors.Is(st.SaveTrajectory("ragged", "teachplay", ragged), robot.ErrDimensionMismatch), test.ShouldBeTrue)

	test.That(t, os.MkdirAll(filepath.Join(st.Dir(), "trajectories"), 0755), test.ShouldBeNil)
	bad := "kind: teachplay\ndof: 2\ndata:\n  - [0, 1]\n"
	test.That(t, os.WriteFile(filepath.Join(st.Dir(), "trajectories", "bad.yaml"), []byte(bad), 0644), test.ShouldBeNil)
	_, _, err = st.LoadTrajectory("bad")
	test.That(t, errors.Is(err, robot.ErrDimensionMismatch), test.ShouldBeTrue)
}
