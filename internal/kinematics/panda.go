package kinematics

import "math"

// Franka Emika Panda MDH table, one column per joint.
var pandaMDH = [5][]float64{
	{0, 0, 0, 0, 0, 0, 0},
	{0.333, 0, 3.16e-1, 0, 3.84e-1, 0, 0},
	{0, 0, 0, 8.25e-2, -8.25e-2, 0, 8.8e-2},
	{0, -math.Pi / 2, math.Pi / 2, math.Pi / 2, -math.Pi / 2, math.Pi / 2, math.Pi / 2},
	{0, 0, 0, 0, 0, 0, 0},
}

const (
	pandaBaseOffsetX = 0.0413
	pandaFlangeZ     = 1.07e-1
)

// NewFrankaEmikaPanda returns the 7-DOF Panda with its base and reference
// frames shifted along x and the effector at the flange.
func NewFrankaEmikaPanda() *SerialManipulator {
	params, err := ParamsFromTable(pandaMDH)
	if err != nil {
		panic(err)
	}
	m := NewSerialManipulatorMDH(params)

	base := NewTranslation(pandaBaseOffsetX, 0, 0)
	m.SetBaseFrame(base)
	m.SetReferenceFrame(base)
	m.SetEffector(NewTranslation(0, 0, pandaFlangeZ))
	return m
}
