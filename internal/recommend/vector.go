// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package recommend

import (
	"fmt"
	"math"
)

// Schema identifies the layout of a feature vector. Vectors built under
// different schemas have different Go types and cannot be compared.
type Schema interface {
	AudioSchema | PreferenceSchema

	// Name is a short identifier used in logs and error messages.
	Name() string

	// Dimension is the number of components a well-formed vector carries.
	Dimension() int
}

// AudioSchema is the engineered audio attribute layout produced by the
// feature extractor: eight numeric attributes followed by a mood code.
type AudioSchema struct{}

// Name implements Schema.
func (AudioSchema) Name() string { return "audio" }

// Dimension implements Schema.
func (AudioSchema) Dimension() int { return AudioDimension }

// PreferenceSchema is the genre/mood one-hot layout followed by four averaged
// numeric descriptors. It is used for declared user preferences and for the
// matching track counterparts.
type PreferenceSchema struct{}

// Name implements Schema.
func (PreferenceSchema) Name() string { return "preference" }

// Dimension implements Schema.
func (PreferenceSchema) Dimension() int { return PreferenceDimension }

// Vector is an immutable feature vector tagged with its schema.
// The zero value is an empty vector.
type Vector[S Schema] struct {
	values []float64
}

// AudioVector is a track embedding in the audio schema.
type AudioVector = Vector[AudioSchema]

// PreferenceVector is a vector in the genre/mood preference schema.
type PreferenceVector = Vector[PreferenceSchema]

// NewVector copies values into a new vector. Every component must be finite.
//
// The length is not checked against the schema dimension here; use Validate
// before persisting a vector. Comparisons between vectors of different length
// fail with ErrDimensionMismatch.
func NewVector[S Schema](values []float64) (Vector[S], error) {
	if len(values) == 0 {
		return Vector[S]{}, fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Vector[S]{}, fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, v)
		}
	}

	cp := make([]float64, len(values))
	copy(cp, values)
	return Vector[S]{values: cp}, nil
}

// MustVector is like NewVector but panics on invalid input.
// Intended for tests and fixed tables.
func MustVector[S Schema](values ...float64) Vector[S] {
	v, err := NewVector[S](values)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks that the vector has the dimension of its schema.
func (v Vector[S]) Validate() error {
	var s S
	if len(v.values) != s.Dimension() {
		return fmt.Errorf("%w: %s vector needs %d components, got %d",
			ErrDimensionMismatch, s.Name(), s.Dimension(), len(v.values))
	}
	return nil
}

// Len returns the number of components.
func (v Vector[S]) Len() int { return len(v.values) }

// IsEmpty reports whether the vector has no components.
func (v Vector[S]) IsEmpty() bool { return len(v.values) == 0 }

// At returns component i. It panics if i is out of range.
func (v Vector[S]) At(i int) float64 { return v.values[i] }

// Values returns a copy of the components.
func (v Vector[S]) Values() []float64 {
	cp := make([]float64, len(v.values))
	copy(cp, v.values)
	return cp
}

// SchemaName returns the name of the vector's schema.
func (v Vector[S]) SchemaName() string {
	var s S
	return s.Name()
}

// Norm returns the Euclidean norm.
func (v Vector[S]) Norm() float64 {
	var sum float64
	for _, x := range v.values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Equal reports whether both vectors have identical components.
func (v Vector[S]) Equal(other Vector[S]) bool {
	if len(v.values) != len(other.values) {
		return false
	}
	for i := range v.values {
		if v.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// Mean returns the element-wise arithmetic mean of vectors.
//
// Vectors that do not have the schema dimension are left out and counted in
// skipped, so the mean always has the schema dimension. ok is false when no
// vector contributed.
func Mean[S Schema](vectors []Vector[S]) (mean Vector[S], skipped int, ok bool) {
	var s S
	sums := make([]float64, s.Dimension())
	used := 0
	for _, v := range vectors {
		if v.Validate() != nil {
			skipped++
			continue
		}
		for i, x := range v.values {
			sums[i] += x
		}
		used++
	}

	if used == 0 {
		return Vector[S]{}, skipped, false
	}

	for i := range sums {
		sums[i] /= float64(used)
	}
	return Vector[S]{values: sums}, skipped, true
}
