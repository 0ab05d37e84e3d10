package config

import (
	"sort"

	"github.com/samber/lo"

	"github.com/san-kum/wamctl/internal/control"
	"github.com/san-kum/wamctl/internal/gravity"
	"github.com/san-kum/wamctl/internal/logging"
)

var identity = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

func diag(x, y, z float64) [3][3]float64 {
	return [3][3]float64{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

func base(dof int) *Config {
	return &Config{
		DOF:          dof,
		Period:       DefaultPeriod,
		Home:         make([]float64, dof),
		Velocity:     DefaultVelocity,
		Acceleration: DefaultAcceleration,
		GravityComp:  true,
		Kinematics:   KinematicsConfig{BaseRotation: identity},
		Gravity:      GravityConfig{World: [3]float64{gravity.StandardGravity.X, gravity.StandardGravity.Y, gravity.StandardGravity.Z}},
		Controllers: ControllersConfig{
			CartesianXYZ: []control.Gains{{Kp: 2000, Kd: 15}, {Kp: 2000, Kd: 15}, {Kp: 2000, Kd: 15}},
			CartesianXYZQ: PoseGains{
				XYZ: []control.Gains{{Kp: 2000, Kd: 15}, {Kp: 2000, Kd: 15}, {Kp: 2000, Kd: 15}},
				Rot: control.RotGains{P: 10, D: 0.5},
			},
			Orientation: control.RotGains{P: 10, D: 0.5},
		},
		Teach: TeachConfig{
			Decimation:   DefaultTeachDecimation,
			Capacity:     DefaultTeachCapacity,
			Velocity:     DefaultVelocity,
			Acceleration: DefaultAcceleration,
		},
		Log:     LogConfig{Capacity: DefaultLogCapacity, FlushInterval: DefaultFlushInterval},
		Sim:     SimConfig{Integrator: DefaultIntegrator, Damping: DefaultDamping, Substeps: 1},
		Logging: logging.DefaultConfig(),
	}
}

var wamUpperArm = []LinkConfig{
	{Mass: 10.7677, COM: [3]float64{-0.0044, 0.1216, -0.0066}, Inertia: diag(0.1349, 0.1133, 0.0904)},
	{Mass: 3.8749, COM: [3]float64{-0.0024, -0.0154, 0.0311}, Inertia: diag(0.0214, 0.0152, 0.0207)},
	{Mass: 1.8023, COM: [3]float64{-0.0387, 0.2178, 0.0002}, Inertia: diag(0.0597, 0.0030, 0.0594)},
}

var wamUpperDH = []DHConfig{
	{AlphaPi: -0.5},
	{AlphaPi: 0.5},
	{AlphaPi: -0.5, A: 0.045, D: 0.55},
}

func wam4() *Config {
	c := base(4)
	c.Home = []float64{0, -2.0, 0, 3.1}
	c.Kinematics.Moving = append(append([]DHConfig(nil), wamUpperDH...), DHConfig{AlphaPi: 0.5, A: -0.045})
	c.Kinematics.Toolplate = DHConfig{D: 0.35}
	c.Dynamics = append(append([]LinkConfig(nil), wamUpperArm...),
		LinkConfig{Mass: 1.0650, COM: [3]float64{-0.0037, -0.0104, 0.1449}, Inertia: diag(0.0304, 0.0302, 0.0021)})
	c.Gravity.Mus = c.DeriveMus()
	c.Controllers.Joint = []control.Gains{
		{Kp: 900, Ki: 2.5, Kd: 10, Limit: 0.5},
		{Kp: 2500, Ki: 5, Kd: 20, Limit: 0.5},
		{Kp: 600, Ki: 2, Kd: 5, Limit: 0.5},
		{Kp: 500, Ki: 0.5, Kd: 2, Limit: 0.5},
	}
	return c
}

func wam7() *Config {
	c := base(7)
	c.Home = []float64{0, -1.966, 0, 3.1, 0, -1.5, 0}
	c.Kinematics.Moving = append(append([]DHConfig(nil), wamUpperDH...),
		DHConfig{AlphaPi: 0.5, A: -0.045},
		DHConfig{AlphaPi: -0.5, D: 0.3},
		DHConfig{AlphaPi: 0.5},
		DHConfig{D: 0.06},
	)
	c.Dynamics = append(append([]LinkConfig(nil), wamUpperArm...),
		LinkConfig{Mass: 2.4007, COM: [3]float64{0.0055, 0.0001, 0.1183}, Inertia: diag(0.0274, 0.0272, 0.0033)},
		LinkConfig{Mass: 0.1237, COM: [3]float64{0.0001, 0.0044, 0.0002}, Inertia: diag(0.003, 0.003, 0.003)},
		LinkConfig{Mass: 0.4176, COM: [3]float64{0.0, 0.0004, 0.0003}, Inertia: diag(0.002, 0.002, 0.002)},
		LinkConfig{Mass: 0.0693, COM: [3]float64{0.0, 0.0, -0.0020}, Inertia: diag(0.001, 0.001, 0.001)},
	)
	c.Gravity.Mus = c.DeriveMus()
	c.Controllers.Joint = []control.Gains{
		{Kp: 900, Ki: 2.5, Kd: 10, Limit: 0.5},
		{Kp: 2500, Ki: 5, Kd: 20, Limit: 0.5},
		{Kp: 600, Ki: 2, Kd: 5, Limit: 0.5},
		{Kp: 500, Ki: 0.5, Kd: 2, Limit: 0.5},
		{Kp: 20, Ki: 0.1, Kd: 0.5, Limit: 0.5},
		{Kp: 20, Ki: 0.1, Kd: 0.5, Limit: 0.5},
		{Kp: 5, Ki: 0.05, Kd: 0.1, Limit: 0.5},
	}
	return c
}

// link1 is a single horizontal-axis link used by the tests.
func link1() *Config {
	c := base(1)
	c.Kinematics.BaseRotation = [3][3]float64{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}}
	c.Kinematics.Moving = []DHConfig{{AlphaPi: 0.5}}
	c.Dynamics = []LinkConfig{{Mass: 1, COM: [3]float64{0, 0, -0.1}, Inertia: diag(0.01, 0.01, 0.01)}}
	c.Gravity.Mus = c.DeriveMus()
	c.Controllers.Joint = []control.Gains{{Kp: 20, Kd: 1}}
	return c
}

var Presets = map[string]func() *Config{
	"wam4":  wam4,
	"wam7":  wam7,
	"link1": link1,
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := lo.Keys(Presets)
	sort.Strings(names)
	return names
}
