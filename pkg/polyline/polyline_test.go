package polyline

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_GoogleExample(t *testing.T) {
	line, err := Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.NoError(t, err)
	require.Len(t, line, 3)

	expected := orb.LineString{
		{-120.2, 38.5},
		{-120.95, 40.7},
		{-126.453, 43.252},
	}
	for i := range expected {
		assert.InDelta(t, expected[i].Lon(), line[i].Lon(), 1e-6, "lng %d", i)
		assert.InDelta(t, expected[i].Lat(), line[i].Lat(), 1e-6, "lat %d", i)
	}
}

func TestDecode_Empty(t *testing.T) {
	line, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, line)
}

func TestDecode_Truncated(t *testing.T) {
	// Latitude only, longitude missing.
	_, err := Decode("_p~iF")
	assert.ErrorIs(t, err, ErrTruncated)

	// Ends with a continuation chunk.
	_, err = Decode("_p~iF~ps|U_")
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncode_GoogleExample(t *testing.T) {
	line := orb.LineString{
		{-120.2, 38.5},
		{-120.95, 40.7},
		{-126.453, 43.252},
	}
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", Encode(line))
	assert.Empty(t, Encode(nil))
}

func TestPrecision6_RoundTrip(t *testing.T) {
	line := orb.LineString{
		{-0.127758, 51.507351},
		{-0.092200, 51.515500},
	}

	decoded, err := DecodePrecision(EncodePrecision(line, Precision6), Precision6)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range line {
		assert.InDelta(t, line[i].Lon(), decoded[i].Lon(), 1e-6)
		assert.InDelta(t, line[i].Lat(), decoded[i].Lat(), 1e-6)
	}
}
