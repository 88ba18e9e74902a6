package engine

import "fmt"

// State is the lifecycle state of a Controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateInitializing
	StateReady
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GestureKind identifies a gesture input.
type GestureKind string

const (
	GesturePanBegin    GestureKind = "pan_begin"
	GesturePanUpdate   GestureKind = "pan_update"
	GesturePanEnd      GestureKind = "pan_end"
	GesturePinchBegin  GestureKind = "pinch_begin"
	GesturePinchUpdate GestureKind = "pinch_update"
	GesturePinchEnd    GestureKind = "pinch_end"
	GestureReset       GestureKind = "reset"
)

// GestureEvent is one gesture input.
//
// DX and DY are the cumulative pan translation since the pan began. Factor
// is the cumulative pinch scale since the pinch began.
type GestureEvent struct {
	Kind   GestureKind `json:"kind" yaml:"kind"`
	DX     float64     `json:"dx,omitempty" yaml:"dx,omitempty"`
	DY     float64     `json:"dy,omitempty" yaml:"dy,omitempty"`
	Factor float64     `json:"factor,omitempty" yaml:"factor,omitempty"`
}

// PanUpdate builds a pan update event.
func PanUpdate(dx, dy float64) GestureEvent {
	return GestureEvent{Kind: GesturePanUpdate, DX: dx, DY: dy}
}

// PinchUpdate builds a pinch update event.
func PinchUpdate(factor float64) GestureEvent {
	return GestureEvent{Kind: GesturePinchUpdate, Factor: factor}
}
