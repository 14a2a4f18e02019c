package geo

import "math"

// Datum correction from the true-earth frame into the map-display frame
// (WGS-84 -> GCJ-02). The target map provider renders tiles in an obfuscated
// coordinate system inside mainland China, so every coordinate must be
// shifted before drawing or it lands several hundred meters off the map.
// Outside the affected region the correction is the identity.
//
// Validation geometry (area, self-intersection, closure) always runs on raw
// Points; correcting first would compound the distortion.

// Krasovsky 1940 ellipsoid parameters used by the GCJ-02 transform.
const (
	datumSemiMajorAxis = 6378245.0
	datumEccentricity2 = 0.00669342162296594323
)

// Bounding rectangle of the region where the correction applies.
const (
	datumLngMin = 72.004
	datumLngMax = 137.8347
	datumLatMin = 0.8293
	datumLatMax = 55.8271
)

// CorrectDatum shifts a true-earth point into the display frame. Points
// outside the affected bounding rectangle are returned unchanged, exactly.
func CorrectDatum(p Point) DisplayPoint {
	if !inCorrectionBounds(p) {
		return DisplayPoint{Latitude: p.Latitude, Longitude: p.Longitude}
	}

	dLat := transformLat(p.Longitude-105.0, p.Latitude-35.0)
	dLng := transformLng(p.Longitude-105.0, p.Latitude-35.0)

	radLat := p.Latitude / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - datumEccentricity2*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((datumSemiMajorAxis * (1 - datumEccentricity2)) / (magic * sqrtMagic) * math.Pi)
	dLng = (dLng * 180.0) / (datumSemiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)

	return DisplayPoint{
		Latitude:  p.Latitude + dLat,
		Longitude: p.Longitude + dLng,
	}
}

// CorrectPath maps a full point sequence into the display frame.
func CorrectPath(points []Point) []DisplayPoint {
	corrected := make([]DisplayPoint, len(points))
	for i, p := range points {
		corrected[i] = CorrectDatum(p)
	}
	return corrected
}

func inCorrectionBounds(p Point) bool {
	return p.Longitude >= datumLngMin && p.Longitude <= datumLngMax &&
		p.Latitude >= datumLatMin && p.Latitude <= datumLatMax
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLng(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
