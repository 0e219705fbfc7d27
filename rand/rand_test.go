// rand/rand_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"testing"
	"time"
)

func TestSeedReproducible(t *testing.T) {
	a, b := MakeSeeded(42), MakeSeeded(42)
	for i := 0; i < 100; i++ {
		if x, y := a.Uint32(), b.Uint32(); x != y {
			t.Fatalf("iteration %d: same seed gave %d and %d", i, x, y)
		}
	}
}

func TestDuration(t *testing.T) {
	r := MakeSeeded(1)
	for i := 0; i < 1000; i++ {
		if d := r.Duration(time.Minute); d < 0 || d > time.Minute {
			t.Fatalf("duration %s out of range", d)
		}
	}
	if d := r.Duration(0); d != 0 {
		t.Errorf("expected zero duration, got %s", d)
	}
}

func TestSampleFiltered(t *testing.T) {
	r := MakeSeeded(7)
	s := []int{1, 2, 3, 4, 5, 6}
	counts := make(map[int]int)
	for i := 0; i < 3000; i++ {
		idx := SampleFiltered(r, s, func(v int) bool { return v%2 == 0 })
		if idx == -1 || s[idx]%2 != 0 {
			t.Fatalf("sampled filtered-out index %d", idx)
		}
		counts[s[idx]]++
	}
	for _, v := range []int{2, 4, 6} {
		if counts[v] < 800 {
			t.Errorf("%d sampled only %d times", v, counts[v])
		}
	}

	if idx := SampleFiltered(r, s, func(int) bool { return false }); idx != -1 {
		t.Errorf("expected -1, got %d", idx)
	}
}
