package verification

import (
	"strconv"
)

// Codec converts between a value and its string form in the expected-value
// store.
type Codec[T any] struct {
	Format func(T) string
	Parse  func(string) (T, error)
}

// StringCodec stores strings unchanged.
var StringCodec = Codec[string]{
	Format: func(s string) string { return s },
	Parse:  func(s string) (string, error) { return s, nil },
}

// IntCodec stores integers in decimal.
var IntCodec = Codec[int]{
	Format: strconv.Itoa,
	Parse:  strconv.Atoi,
}

// FloatCodec stores floats in the shortest representation that round-trips.
var FloatCodec = Codec[float64]{
	Format: func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) },
	Parse:  func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
}

// BoolCodec stores booleans as true/false.
var BoolCodec = Codec[bool]{
	Format: strconv.FormatBool,
	Parse:  strconv.ParseBool,
}
