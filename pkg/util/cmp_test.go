package util

import (
	"slices"
	"strconv"
	"testing"
)

func TestPushBounded(t *testing.T) {
	var w []int
	for i := 1; i <= 25; i++ {
		w = PushBounded(w, 10, i)
		want := i
		if want > 10 {
			want = 10
		}
		if len(w) != want {
			t.Fatalf("after %d pushes len = %d, want %d", i, len(w), want)
		}
	}
	want := []int{16, 17, 18, 19, 20, 21, 22, 23, 24, 25}
	if !slices.Equal(w, want) {
		t.Errorf("window = %v, want %v", w, want)
	}
}

func TestPushBoundedBatch(t *testing.T) {
	w := PushBounded([]int{1, 2}, 3, 3, 4, 5)
	if !slices.Equal(w, []int{3, 4, 5}) {
		t.Errorf("window = %v, want [3 4 5]", w)
	}
	if got := PushBounded([]int{1}, 0, 2); len(got) != 0 {
		t.Errorf("zero limit kept %v", got)
	}
}

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, strconv.Itoa)
	if !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("Map = %v", got)
	}
}
