package grid

import "math"

// LambertConformal is a secant (or tangent) Lambert conformal conic grid on
// a spherical earth, as used by the NDFD CONUS products.
type LambertConformal struct {
	NX, NY int
	Lat1   float64 // first grid point
	Lon1   float64
	LoV    float64 // orientation longitude
	Latin1 float64
	Latin2 float64
	Dx, Dy float64 // metres
	Radius float64 // metres
	// JPositive is true when rows advance northward (scanning mode bit 0x40).
	JPositive bool

	n, f   float64
	x0, y0 float64
	ready  bool
}

const deg = math.Pi / 180

func (g *LambertConformal) init() {
	if g.ready {
		return
	}
	if g.Radius == 0 {
		g.Radius = 6371229
	}
	p1, p2 := g.Latin1*deg, g.Latin2*deg
	if math.Abs(p1-p2) < 1e-10 {
		g.n = math.Sin(p1)
	} else {
		g.n = math.Log(math.Cos(p1)/math.Cos(p2)) /
			math.Log(math.Tan(math.Pi/4+p2/2)/math.Tan(math.Pi/4+p1/2))
	}
	g.f = math.Cos(p1) * math.Pow(math.Tan(math.Pi/4+p1/2), g.n) / g.n
	g.x0, g.y0 = g.forward(g.Lat1, g.Lon1)
	g.ready = true
}

// forward projects to plane coordinates with the pole at the origin.
func (g *LambertConformal) forward(lat, lon float64) (float64, float64) {
	rho := g.Radius * g.f / math.Pow(math.Tan(math.Pi/4+lat*deg/2), g.n)
	dl := NormalizeLon(lon-g.LoV) * deg
	theta := g.n * dl
	return rho * math.Sin(theta), -rho * math.Cos(theta)
}

func (g *LambertConformal) inverse(x, y float64) (float64, float64) {
	sign := 1.0
	if g.n < 0 {
		sign = -1
	}
	rho := sign * math.Hypot(x, y)
	theta := math.Atan2(sign*x, -sign*y)
	lon := NormalizeLon(g.LoV + theta/g.n/deg)
	if rho == 0 {
		return sign * 90, lon
	}
	lat := 2*math.Atan(math.Pow(g.Radius*g.f/rho, 1/g.n)) - math.Pi/2
	return lat / deg, lon
}

// Dims implements Geometry.
func (g *LambertConformal) Dims() (int, int) {
	return g.NX, g.NY
}

// LatLon implements Geometry.
func (g *LambertConformal) LatLon(i, j int) (float64, float64) {
	g.init()
	x := g.x0 + float64(i)*g.Dx
	dy := float64(j) * g.Dy
	if !g.JPositive {
		dy = -dy
	}
	return g.inverse(x, g.y0+dy)
}

// Locate implements Geometry.
func (g *LambertConformal) Locate(lat, lon float64) (float64, float64, bool) {
	g.init()
	x, y := g.forward(lat, lon)
	fi := (x - g.x0) / g.Dx
	fj := (y - g.y0) / g.Dy
	if !g.JPositive {
		fj = -fj
	}
	if fi < -0.5 || fj < -0.5 || fi > float64(g.NX-1)+0.5 || fj > float64(g.NY-1)+0.5 {
		return 0, 0, false
	}
	return math.Max(0, math.Min(fi, float64(g.NX-1))), math.Max(0, math.Min(fj, float64(g.NY-1))), true
}
