package vector

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		epsilon  float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{0.1, 0.2, 0.3},
			b:        []float32{0.1, 0.2, 0.3},
			expected: 0.0,
			epsilon:  1e-9,
		},
		{
			name:     "3-4-5 triangle",
			a:        []float32{0.0, 0.0},
			b:        []float32{3.0, 4.0},
			expected: 5.0,
			epsilon:  1e-9,
		},
		{
			name:     "unit apart",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 0.0, 0.0},
			expected: 1.0,
			epsilon:  1e-9,
		},
		{
			name:     "negative components",
			a:        []float32{-1.0, -1.0},
			b:        []float32{1.0, 1.0},
			expected: 2.8284271247461903,
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDistance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestEuclideanDistanceMismatched(t *testing.T) {
	got := EuclideanDistance([]float32{1, 2}, []float32{1, 2, 3})
	if !math.IsInf(got, 1) {
		t.Errorf("mismatched lengths = %v, want +Inf", got)
	}
	got = EuclideanDistance([]float32{}, []float32{})
	if !math.IsInf(got, 1) {
		t.Errorf("empty vectors = %v, want +Inf", got)
	}
}

func TestSquaredDistanceRanksLikeEuclidean(t *testing.T) {
	q := []float32{0.5, 0.5, 0.5}
	near := []float32{0.5, 0.5, 0.6}
	far := []float32{0.0, 0.0, 0.0}

	if SquaredDistance(q, near) >= SquaredDistance(q, far) {
		t.Fatal("squared distance ranked far vector ahead of near vector")
	}
	want := EuclideanDistance(q, far)
	got := math.Sqrt(SquaredDistance(q, far))
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("sqrt(SquaredDistance) = %v, want %v", got, want)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		epsilon  float64
	}{
		{
			name:     "same direction",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{2.0, 0.0, 0.0},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "orthogonal",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{0.0, 1.0, 0.0},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "opposite",
			a:        []float32{1.0, 0.0, 0.0},
			b:        []float32{-1.0, 0.0, 0.0},
			expected: 2.0,
			epsilon:  0.001,
		},
		{
			name:     "zero vector treated as orthogonal",
			a:        []float32{0.0, 0.0, 0.0},
			b:        []float32{1.0, 2.0, 3.0},
			expected: 1.0,
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.epsilon {
				t.Errorf("CosineDistance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestDotProduct(t *testing.T) {
	a := []float32{1.0, 2.0, 3.0}
	b := []float32{4.0, 5.0, 6.0}
	if got := DotProduct(a, b); got != 32.0 {
		t.Errorf("DotProduct = %v, want 32.0", got)
	}
	if got := DotProduct(a, []float32{1.0}); got != 0 {
		t.Errorf("mismatched DotProduct = %v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	original := []float32{3.0, 4.0}
	normalized := Normalize(original)

	if original[0] != 3.0 || original[1] != 4.0 {
		t.Error("Normalize modified its input")
	}
	if math.Abs(float64(normalized[0])-0.6) > 0.001 || math.Abs(float64(normalized[1])-0.8) > 0.001 {
		t.Errorf("Normalize = %v, want [0.6, 0.8]", normalized)
	}

	zero := Normalize([]float32{0, 0, 0})
	for _, v := range zero {
		if v != 0 {
			t.Errorf("Normalize(zero) = %v, want zero vector", zero)
		}
	}
}

func TestNormalizeInPlace(t *testing.T) {
	v := []float32{3.0, 4.0}
	NormalizeInPlace(v)
	if math.Abs(Norm(v)-1.0) > 0.001 {
		t.Errorf("NormalizeInPlace norm = %v, want 1.0", Norm(v))
	}
}

func TestMetricString(t *testing.T) {
	if Euclidean.String() != "euclidean" {
		t.Errorf("Euclidean.String() = %q", Euclidean.String())
	}
	if Cosine.String() != "cosine" {
		t.Errorf("Cosine.String() = %q", Cosine.String())
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{"euclidean", Euclidean, false},
		{"l2", Euclidean, false},
		{"cosine", Cosine, false},
		{"", Euclidean, false},
		{"manhattan", Euclidean, true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMetric(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMetric(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseMetric(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMetricDistanceDispatch(t *testing.T) {
	a := []float32{1.0, 0.0}
	b := []float32{0.0, 1.0}

	if got := Euclidean.Distance(a, b); math.Abs(got-math.Sqrt2) > 0.001 {
		t.Errorf("Euclidean.Distance = %v, want sqrt(2)", got)
	}
	if got := Cosine.Distance(a, b); math.Abs(got-1.0) > 0.001 {
		t.Errorf("Cosine.Distance = %v, want 1.0", got)
	}
}
