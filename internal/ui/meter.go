package ui

import (
	"math"

	"github.com/charmbracelet/harmonica"
)

const (
	meterWidth   = 12
	meterSettle  = 0.002
	meterFreq    = 7.0
	meterDamping = 0.8
)

// volumeMeter eases the displayed volume towards the applied volume.
type volumeMeter struct {
	spring harmonica.Spring
	pos    float64
	vel    float64
	target float64
}

func newVolumeMeter(v float64) volumeMeter {
	return volumeMeter{
		spring: harmonica.NewSpring(harmonica.FPS(meterFPS), meterFreq, meterDamping),
		pos:    v,
		target: v,
	}
}

// step advances one frame and reports whether the meter is still moving.
func (v *volumeMeter) step() bool {
	v.pos, v.vel = v.spring.Update(v.pos, v.vel, v.target)
	if v.settled() {
		v.pos, v.vel = v.target, 0
		return false
	}
	return true
}

func (v volumeMeter) settled() bool {
	return math.Abs(v.pos-v.target) < meterSettle && math.Abs(v.vel) < meterSettle
}

func (v volumeMeter) view() string {
	return renderProgressBar(v.pos, 1, meterWidth+2)
}
