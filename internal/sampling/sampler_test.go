package sampling

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func newTestSampler(t *testing.T, params Params, seed uint64) *Sampler {
	t.Helper()
	s, err := NewSeeded(params, seed)
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	return s
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{name: "defaults", params: Params{Lambda: 0.0092, Alpha: 0.84, Beta: 0.002}},
		{name: "negative alpha", params: Params{Lambda: 1, Alpha: -0.5, Beta: 1}},
		{name: "zero lambda", params: Params{Lambda: 0, Alpha: 0.5, Beta: 1}, wantErr: true},
		{name: "alpha at one", params: Params{Lambda: 1, Alpha: 1, Beta: 1}, wantErr: true},
		{name: "zero beta", params: Params{Lambda: 1, Alpha: 0.5, Beta: 0}, wantErr: true},
		{name: "NaN lambda", params: Params{Lambda: math.NaN(), Alpha: 0.5, Beta: 1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Params{Lambda: 1, Alpha: 0.5, Beta: 1}, nil); err == nil {
		t.Error("expected error for nil source")
	}
}

func TestLifetime_PositiveAndMeanConverges(t *testing.T) {
	for _, lambda := range []float64{0.0092, 0.1, 0.5, 2} {
		s := newTestSampler(t, Params{Lambda: lambda, Alpha: 0.5, Beta: 0.01}, 42)

		const draws = 20000
		samples := make([]float64, draws)
		for i := range samples {
			life := s.Lifetime()
			if life < 1 {
				t.Fatalf("lambda=%v: lifetime %d < 1", lambda, life)
			}
			samples[i] = float64(life)
		}

		// Rejecting zero draws shifts the mean up by at most one step.
		mean := stat.Mean(samples, nil)
		want := 1 / lambda
		if mean < want*0.95 || mean > want*1.05+1 {
			t.Errorf("lambda=%v: mean lifetime %.2f, want about %.2f", lambda, mean, want)
		}
	}
}

func TestTimeGap(t *testing.T) {
	// Γ(1.5)/Γ(0.5) = 0.5, so the mean gap is 0.5 / (0.01·d) = 50/d.
	s := newTestSampler(t, Params{Lambda: 0.1, Alpha: 0.5, Beta: 0.01}, 1)

	tests := []struct {
		name     string
		degree   int
		lifetime int
		want     int
	}{
		{name: "degree one", degree: 1, lifetime: 100, want: 50},
		{name: "degree two", degree: 2, lifetime: 100, want: 25},
		{name: "clamped to lifetime", degree: 1, lifetime: 30, want: 30},
		{name: "high degree floors at one", degree: 1000, lifetime: 10, want: 1},
		{name: "zero degree treated as one", degree: 0, lifetime: 100, want: 50},
		{name: "lifetime one", degree: 3, lifetime: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.TimeGap(tt.degree, tt.lifetime); got != tt.want {
				t.Errorf("TimeGap(%d, %d) = %d, want %d", tt.degree, tt.lifetime, got, tt.want)
			}
		})
	}
}

func TestTimeGap_WithinLifetime(t *testing.T) {
	s := newTestSampler(t, Params{Lambda: 0.0092, Alpha: 0.84, Beta: 0.002}, 7)
	for degree := 1; degree <= 2000; degree += 37 {
		for lifetime := 1; lifetime <= 300; lifetime += 13 {
			got := s.TimeGap(degree, lifetime)
			if got < 1 || got > lifetime {
				t.Fatalf("TimeGap(%d, %d) = %d, outside [1, %d]", degree, lifetime, got, lifetime)
			}
		}
	}
}

func TestTimeGap_NonIncreasingInDegree(t *testing.T) {
	s := newTestSampler(t, Params{Lambda: 0.1, Alpha: 0.84, Beta: 0.002}, 7)
	prev := s.TimeGap(1, 1000)
	for degree := 2; degree < 500; degree++ {
		got := s.TimeGap(degree, 1000)
		if got > prev {
			t.Fatalf("gap grew from %d to %d at degree %d", prev, got, degree)
		}
		prev = got
	}
}

func TestBetween_Inclusive(t *testing.T) {
	s := newTestSampler(t, Params{Lambda: 1, Alpha: 0.5, Beta: 1}, 3)
	seen := make(map[int]int)
	for i := 0; i < 5000; i++ {
		v := s.Between(4, 7)
		if v < 4 || v > 7 {
			t.Fatalf("Between(4, 7) = %d", v)
		}
		seen[v]++
	}
	for v := 4; v <= 7; v++ {
		if seen[v] == 0 {
			t.Errorf("value %d never drawn", v)
		}
	}
	if got := s.Between(5, 5); got != 5 {
		t.Errorf("Between(5, 5) = %d, want 5", got)
	}
}

func TestSameSeed_SameStream(t *testing.T) {
	params := Params{Lambda: 0.1, Alpha: 0.5, Beta: 0.01}
	a := newTestSampler(t, params, 99)
	b := newTestSampler(t, params, 99)
	for i := 0; i < 100; i++ {
		if x, y := a.Lifetime(), b.Lifetime(); x != y {
			t.Fatalf("draw %d: lifetimes differ: %d vs %d", i, x, y)
		}
		if x, y := a.Pick(10), b.Pick(10); x != y {
			t.Fatalf("draw %d: picks differ: %d vs %d", i, x, y)
		}
	}
}
