package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/dynamics"
	"github.com/san-kum/wamctl/internal/kinematics"
	"github.com/san-kum/wamctl/internal/logging"
	"github.com/san-kum/wamctl/internal/robot"
	"github.com/san-kum/wamctl/internal/spatial"
)

const (
	DefaultPeriod          = 2 * time.Millisecond
	DefaultVelocity        = 0.5
	DefaultAcceleration    = 0.5
	DefaultTeachDecimation = 64
	DefaultTeachCapacity   = 1000
	DefaultLogCapacity     = 500
	DefaultFlushInterval   = time.Second
	DefaultIntegrator      = "rk4"
	DefaultDamping         = 0.5
)

// Integrators lists the plant integrators the simulator accepts.
var Integrators = []string{"euler", "leapfrog", "rk4", "verlet"}

type Config struct {
	DOF          int               `yaml:"dof"`
	Period       time.Duration     `yaml:"period"`
	Home         []float64         `yaml:"home"`
	Velocity     float64           `yaml:"velocity"`
	Acceleration float64           `yaml:"acceleration"`
	GravityComp  bool              `yaml:"gravity_comp"`
	Kinematics   KinematicsConfig  `yaml:"kinematics"`
	Dynamics     []LinkConfig      `yaml:"dynamics"`
	Gravity      GravityConfig     `yaml:"gravity"`
	Controllers  ControllersConfig `yaml:"controllers"`
	Teach        TeachConfig       `yaml:"teach"`
	Log          LogConfig         `yaml:"log"`
	Sim          SimConfig         `yaml:"sim"`
	Logging      logging.Config    `yaml:"logging"`
}

// DHConfig is one Denavit-Hartenberg row; angles are in units of π.
type DHConfig struct {
	AlphaPi float64 `yaml:"alpha_pi"`
	ThetaPi float64 `yaml:"theta_pi,omitempty"`
	A       float64 `yaml:"a"`
	D       float64 `yaml:"d"`
}

type KinematicsConfig struct {
	BaseRotation [3][3]float64 `yaml:"base_rotation"`
	Moving       []DHConfig    `yaml:"moving"`
	Toolplate    DHConfig      `yaml:"toolplate"`
	ToolOffset   [3]float64    `yaml:"tool_offset"`
}

type LinkConfig struct {
	Mass    float64       `yaml:"mass"`
	COM     [3]float64    `yaml:"com"`
	Inertia [3][3]float64 `yaml:"inertia"`
}

type GravityConfig struct {
	Mus   [][]float64 `yaml:"mus"`
	World [3]float64  `yaml:"world"`
}

type PoseGains struct {
	XYZ []control.Gains  `yaml:"xyz"`
	Rot control.RotGains `yaml:"rot"`
}

type ControllersConfig struct {
	Joint         []control.Gains  `yaml:"joint"`
	CartesianXYZ  []control.Gains  `yaml:"cartesian_xyz"`
	CartesianXYZQ PoseGains        `yaml:"cartesian_xyz_q"`
	Orientation   control.RotGains `yaml:"orientation"`
}

type TeachConfig struct {
	Decimation   int     `yaml:"decimation"`
	Capacity     int     `yaml:"capacity"`
	Velocity     float64 `yaml:"velocity"`
	Acceleration float64 `yaml:"acceleration"`
}

type LogConfig struct {
	Capacity      int           `yaml:"capacity"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type SimConfig struct {
	Integrator string  `yaml:"integrator"`
	Damping    float64 `yaml:"damping"`
	Substeps   int     `yaml:"substeps"`
}

// DefaultConfig returns the 4-DOF WAM.
func DefaultConfig() *Config {
	return wam4()
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(robot.ErrConfig, "config: %s: %v", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func problem(format string, args ...any) error {
	return errors.Wrap(robot.ErrConfig, fmt.Sprintf(format, args...))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Validate reports every problem at once; each wraps robot.ErrConfig.
func (c *Config) Validate() error {
	var err error
	if c.DOF < 1 {
		return problem("dof must be positive, got %d", c.DOF)
	}
	if c.Period <= 0 {
		err = multierr.Append(err, problem("period must be positive, got %v", c.Period))
	}
	if len(c.Home) != c.DOF {
		err = multierr.Append(err, problem("home has %d entries, want %d", len(c.Home), c.DOF))
	}
	if c.Velocity <= 0 || c.Acceleration <= 0 {
		err = multierr.Append(err, problem("move velocity and acceleration must be positive"))
	}
	if len(c.Kinematics.Moving) != c.DOF {
		err = multierr.Append(err, problem("kinematics.moving has %d entries, want %d", len(c.Kinematics.Moving), c.DOF))
	}
	if len(c.Dynamics) != c.DOF {
		err = multierr.Append(err, problem("dynamics has %d entries, want %d", len(c.Dynamics), c.DOF))
	}
	for j, l := range c.Dynamics {
		if l.Mass < 0 || !finite(l.Mass) {
			err = multierr.Append(err, problem("dynamics[%d].mass %v is invalid", j, l.Mass))
		}
	}
	if len(c.Gravity.Mus) != c.DOF {
		err = multierr.Append(err, problem("gravity.mus has %d entries, want %d", len(c.Gravity.Mus), c.DOF))
	}
	for j, mu := range c.Gravity.Mus {
		if len(mu) != 3 {
			err = multierr.Append(err, problem("gravity.mus[%d] is not a 3-vector", j))
		}
	}
	if len(c.Controllers.Joint) != c.DOF {
		err = multierr.Append(err, problem("controllers.joint has %d entries, want %d", len(c.Controllers.Joint), c.DOF))
	}
	if len(c.Controllers.CartesianXYZ) != 3 {
		err = multierr.Append(err, problem("controllers.cartesian_xyz needs 3 entries"))
	}
	if len(c.Controllers.CartesianXYZQ.XYZ) != 3 {
		err = multierr.Append(err, problem("controllers.cartesian_xyz_q.xyz needs 3 entries"))
	}
	if c.Teach.Decimation < 1 || c.Teach.Capacity < 1 {
		err = multierr.Append(err, problem("teach decimation and capacity must be positive"))
	}
	if c.Teach.Velocity <= 0 || c.Teach.Acceleration <= 0 {
		err = multierr.Append(err, problem("teach velocity and acceleration must be positive"))
	}
	if c.Log.Capacity < 1 || c.Log.FlushInterval <= 0 {
		err = multierr.Append(err, problem("log capacity and flush interval must be positive"))
	}
	if !contains(Integrators, c.Sim.Integrator) {
		err = multierr.Append(err, problem("unknown integrator: %s", c.Sim.Integrator))
	}
	if c.Sim.Damping < 0 || c.Sim.Substeps < 1 {
		err = multierr.Append(err, problem("sim damping must be non-negative and substeps positive"))
	}
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toMat3(m [3][3]float64) spatial.Mat3 { return spatial.Mat3(m) }

func toVec(v [3]float64) r3.Vector { return r3.Vector{X: v[0], Y: v[1], Z: v[2]} }

func (d DHConfig) dh() kinematics.DH {
	return kinematics.DH{AlphaPi: d.AlphaPi, ThetaPi: d.ThetaPi, A: d.A, D: d.D}
}

// KinematicsConfig converts the kinematics group.
func (c *Config) KinematicsConfig() kinematics.Config {
	kc := kinematics.Config{
		DOF:          c.DOF,
		BaseRotation: toMat3(c.Kinematics.BaseRotation),
		Moving:       make([]kinematics.DH, len(c.Kinematics.Moving)),
		Toolplate:    c.Kinematics.Toolplate.dh(),
	}
	for j, dh := range c.Kinematics.Moving {
		kc.Moving[j] = dh.dh()
	}
	return kc
}

func (c *Config) ToolOffset() r3.Vector { return toVec(c.Kinematics.ToolOffset) }

// LinkParams converts the dynamics group.
func (c *Config) LinkParams() []dynamics.LinkParams {
	params := make([]dynamics.LinkParams, len(c.Dynamics))
	for j, l := range c.Dynamics {
		params[j] = dynamics.LinkParams{Mass: l.Mass, COM: toVec(l.COM), Inertia: toMat3(l.Inertia)}
	}
	return params
}

func (c *Config) WorldGravity() r3.Vector { return toVec(c.Gravity.World) }

// DeriveMus computes per-link gravity first moments from the dynamics group:
// the link's own m·com plus all distal mass placed at the next frame origin.
// It is exact when every a parameter after the link is zero.
func (c *Config) DeriveMus() [][]float64 {
	n := len(c.Dynamics)
	mus := make([][]float64, n)
	distal := 0.0
	for j := n - 1; j >= 0; j-- {
		l := c.Dynamics[j]
		next := c.Kinematics.Toolplate
		if j+1 < len(c.Kinematics.Moving) {
			next = c.Kinematics.Moving[j+1]
		}
		mus[j] = []float64{
			l.Mass * l.COM[0],
			l.Mass * l.COM[1],
			l.Mass*l.COM[2] + distal*next.D,
		}
		distal += l.Mass
	}
	return mus
}
