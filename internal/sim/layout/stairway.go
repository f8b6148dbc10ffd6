package layout

import "towerkeep.ai/internal/sim/logic/geom"

// Steps returns the stair blocks in walking order: the first rises one
// block above FromY, the last sits level with ToY next to the tower room.
// A flat landing follows every LandingEvery rises.
func (s *Stairway) Steps() []geom.Vec3 {
	path := geom.FourConnected(geom.RingPath(s.Center, s.Radius, s.Start, s.Toward))
	if len(path) == 0 {
		return nil
	}
	var out []geom.Vec3
	y := s.FromY
	rises := 0
	landed := true
	for i := 0; y < s.ToY; i++ {
		c := path[i%len(path)]
		if s.LandingEvery > 0 && !landed && rises%s.LandingEvery == 0 {
			landed = true
		} else {
			y++
			rises++
			landed = false
		}
		out = append(out, geom.V(c.X, y, c.Z))
	}
	if len(out) == 0 {
		out = append(out, geom.V(path[0].X, s.ToY, path[0].Z))
	}
	return out
}
