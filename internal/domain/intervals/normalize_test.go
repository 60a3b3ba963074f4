package intervals

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/forPelevin/promptcut/internal/types"
)

func TestNormalize_Table(t *testing.T) {
	total := 40 * time.Second
	tests := []struct {
		name string
		in   []types.Interval
		want []types.Interval
	}{
		{
			name: "inside range untouched",
			in:   []types.Interval{iv(2, 5), iv(30, 31.5)},
			want: []types.Interval{iv(2, 5), iv(30, 31.5)},
		},
		{
			name: "clamps end",
			in:   []types.Interval{iv(35, 55)},
			want: []types.Interval{iv(35, 40)},
		},
		{
			name: "clamps negative start",
			in:   []types.Interval{{Start: -2 * time.Second, End: 3 * time.Second}},
			want: []types.Interval{iv(0, 3)},
		},
		{
			name: "drops fully outside and keeps order",
			in:   []types.Interval{iv(20, 25), iv(50, 60), iv(1, 2), iv(40, 41)},
			want: []types.Interval{iv(20, 25), iv(1, 2)},
		},
		{
			name: "keeps overlap",
			in:   []types.Interval{iv(1, 10), iv(5, 12), iv(1, 10)},
			want: []types.Interval{iv(1, 10), iv(5, 12), iv(1, 10)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, total)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := []types.Interval{iv(-1, 3), iv(38, 45), iv(10, 12), iv(41, 50), iv(12, 10)}
	once, err := Normalize(in, 40*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Normalize(once, 40*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("not idempotent: %v then %v", once, twice)
	}
}

func TestNormalize_NoSurvivors(t *testing.T) {
	tests := []struct {
		name  string
		in    []types.Interval
		total time.Duration
	}{
		{"beyond end", []types.Interval{iv(50, 60)}, 40 * time.Second},
		{"empty input", nil, 40 * time.Second},
		{"zero duration", []types.Interval{iv(0, 1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, tt.total)
			if !errors.Is(err, ErrNoValidIntervals) {
				t.Fatalf("expected ErrNoValidIntervals, got %v (%v)", err, got)
			}
			if got != nil {
				t.Fatalf("expected nil result, got %v", got)
			}
		})
	}
}

func TestExtractThenNormalize_Scenarios(t *testing.T) {
	got, err := Extract("Here you go: [{'start': 2.0, 'end': 5.0}, {'start': 30.0, 'end': 31.5}]")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got, err = Normalize(got, 40*time.Second)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []types.Interval{iv(2, 5), iv(30, 31.5)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	out, err := Extract("{'start': 50.0, 'end': 60.0} as a list: [{'start': 50.0, 'end': 60.0}]")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, err := Normalize(out, 40*time.Second); !errors.Is(err, ErrNoValidIntervals) {
		t.Fatalf("expected ErrNoValidIntervals, got %v", err)
	}
}
