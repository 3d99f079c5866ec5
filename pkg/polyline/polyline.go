// Package polyline encodes and decodes route geometries in Google's polyline format.
// OSRM emits precision 5 by default and precision 6 when asked for "polyline6".
// The algorithm is documented at: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// Precision values understood by Decode and Encode.
const (
	Precision5 = 5
	Precision6 = 6
)

// ErrTruncated is returned when the encoded string ends in the middle of a value
// or carries a latitude without its longitude.
var ErrTruncated = errors.New("polyline: truncated input")

// Decode decodes a precision 5 polyline into a line string of [lng, lat] points.
func Decode(encoded string) (orb.LineString, error) {
	return DecodePrecision(encoded, Precision5)
}

// DecodePrecision decodes a polyline with the given decimal precision.
func DecodePrecision(encoded string, precision int) (orb.LineString, error) {
	if encoded == "" {
		return nil, nil
	}

	factor := math.Pow10(precision)
	line := make(orb.LineString, 0, len(encoded)/4)
	index, lat, lng := 0, 0, 0

	for index < len(encoded) {
		latDelta, next, ok := decodeValue(encoded, index)
		if !ok {
			return nil, ErrTruncated
		}
		lngDelta, next, ok := decodeValue(encoded, next)
		if !ok {
			return nil, ErrTruncated
		}
		index = next
		lat += latDelta
		lng += lngDelta

		line = append(line, orb.Point{float64(lng) / factor, float64(lat) / factor})
	}

	return line, nil
}

// decodeValue reads one zig-zag encoded delta starting at index.
// ok is false when the input ends before the value's terminating chunk.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift, result := 0, 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), index, true
			}
			return result >> 1, index, true
		}
	}

	return 0, index, false
}

// Encode encodes a line string with precision 5.
func Encode(line orb.LineString) string {
	return EncodePrecision(line, Precision5)
}

// EncodePrecision encodes a line string with the given decimal precision.
func EncodePrecision(line orb.LineString, precision int) string {
	if len(line) == 0 {
		return ""
	}

	factor := math.Pow10(precision)
	encoded := make([]byte, 0, len(line)*6)
	prevLat, prevLng := 0, 0

	for _, p := range line {
		lat := int(math.Round(p.Lat() * factor))
		lng := int(math.Round(p.Lon() * factor))

		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return string(encoded)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
