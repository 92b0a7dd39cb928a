package proj

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const pole = 6378137 * math.Pi // 20037508.342789244

// MaxMercLat is the latitude where the Web Mercator square ends.
const MaxMercLat = 85.0511287798

const (
	WGS84       = 4326
	WebMercator = 3857
)

var proj4 = map[int]string{
	WGS84:       "+proj=longlat +datum=WGS84 +no_defs",
	WebMercator: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext +no_defs",
}

var wkt = map[int]string{
	WGS84:       `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`,
	WebMercator: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1]]`,
}

// Supported returns whether srid is one of the supported output projections.
func Supported(srid int) bool {
	_, ok := proj4[srid]
	return ok
}

// Proj4 returns the proj4 definition of srid.
func Proj4(srid int) (string, error) {
	p, ok := proj4[srid]
	if !ok {
		return "", fmt.Errorf("unsupported srid %d", srid)
	}
	return p, nil
}

// WKT returns the ESRI compatible WKT definition of srid.
func WKT(srid int) (string, error) {
	p, ok := wkt[srid]
	if !ok {
		return "", fmt.Errorf("unsupported srid %d", srid)
	}
	return p, nil
}

func WgsToMerc(long, lat float64) (x, y float64) {
	if lat > MaxMercLat {
		lat = MaxMercLat
	} else if lat < -MaxMercLat {
		lat = -MaxMercLat
	}
	x = long * pole / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / math.Pi * pole
	return x, y
}

func MercToWgs(x, y float64) (long, lat float64) {
	long = 180.0 * x / pole
	lat = 180.0 / math.Pi * (2*math.Atan(math.Exp((y/pole)*math.Pi)) - math.Pi/2)
	return long, lat
}

func pointToMerc(p orb.Point) orb.Point {
	x, y := WgsToMerc(p[0], p[1])
	return orb.Point{x, y}
}

// Project transforms a WGS84 geometry into srid. The geometry is
// modified in place and returned.
func Project(g orb.Geometry, srid int) (orb.Geometry, error) {
	switch srid {
	case WGS84:
		return g, nil
	case WebMercator:
	default:
		return nil, fmt.Errorf("unsupported srid %d", srid)
	}

	switch g := g.(type) {
	case orb.Point:
		return pointToMerc(g), nil
	case orb.LineString:
		for i := range g {
			g[i] = pointToMerc(g[i])
		}
		return g, nil
	case orb.Ring:
		for i := range g {
			g[i] = pointToMerc(g[i])
		}
		return g, nil
	case orb.Polygon:
		for _, r := range g {
			for i := range r {
				r[i] = pointToMerc(r[i])
			}
		}
		return g, nil
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				for i := range r {
					r[i] = pointToMerc(r[i])
				}
			}
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}
}
