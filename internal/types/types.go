// Package types holds the small domain values replicated between robot and surface.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ArmState gates every actuator output on the robot.
type ArmState uint8

const (
	Disarmed ArmState = iota
	Armed
)

func (a ArmState) String() string {
	if a == Armed {
		return "armed"
	}
	return "disarmed"
}

func (a ArmState) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ArmState) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "armed":
		*a = Armed
	case "disarmed":
		*a = Disarmed
	default:
		return fmt.Errorf("types: invalid arm state %q", string(b))
	}
	return nil
}

// Percent is a signed fraction of full scale in [-1, 1].
type Percent float64

// NewPercent clamps v into [-1, 1]. NaN becomes zero.
func NewPercent(v float64) Percent {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return Percent(v)
}

// UnmarshalJSON clamps decoded values so peers cannot store out of range speeds.
func (p *Percent) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("types: invalid percent: %w", err)
	}
	*p = NewPercent(v)
	return nil
}

func (p Percent) Float64() float64 { return float64(p) }

func (p Percent) Abs() Percent { return Percent(math.Abs(float64(p))) }

func (p Percent) String() string {
	return fmt.Sprintf("%.0f%%", float64(p)*100)
}

// MotorID names one thruster. The value doubles as its actuator channel.
type MotorID uint8

const (
	MotorFrontL MotorID = iota
	MotorFrontR
	MotorRearL
	MotorRearR
	MotorUpR
	MotorUpL

	MotorCount = 6
)

var motorNames = [MotorCount]string{"front_l", "front_r", "rear_l", "rear_r", "up_r", "up_l"}

func (m MotorID) Valid() bool { return m < MotorCount }

func (m MotorID) String() string {
	if !m.Valid() {
		return fmt.Sprintf("motor(%d)", uint8(m))
	}
	return motorNames[m]
}

// ParseMotorID accepts a motor name or its numeric id.
func ParseMotorID(s string) (MotorID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range motorNames {
		if s == name {
			return MotorID(i), nil
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && MotorID(n).Valid() {
		return MotorID(n), nil
	}
	return 0, fmt.Errorf("types: unknown motor %q", s)
}

// StatusState is the coarse robot status shown to the operator.
type StatusState string

const (
	StatusNoPeer   StatusState = "no_peer"
	StatusDisarmed StatusState = "disarmed"
	StatusReady    StatusState = "ready"
	StatusMoving   StatusState = "moving"
)

// RobotStatus is comparable so callers can suppress unchanged republishes.
// Speed is only meaningful for StatusMoving.
type RobotStatus struct {
	State StatusState `json:"state"`
	Speed Percent     `json:"speed,omitempty"`
}

func NoPeer() RobotStatus          { return RobotStatus{State: StatusNoPeer} }
func DisarmedStatus() RobotStatus  { return RobotStatus{State: StatusDisarmed} }
func Ready() RobotStatus           { return RobotStatus{State: StatusReady} }
func Moving(p Percent) RobotStatus { return RobotStatus{State: StatusMoving, Speed: p} }

func (s RobotStatus) String() string {
	if s.State == StatusMoving {
		return fmt.Sprintf("moving(%s)", s.Speed)
	}
	return string(s.State)
}

// Leak reports water ingress detected by the hull sensor.
type Leak bool
