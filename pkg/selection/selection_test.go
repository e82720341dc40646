package selection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

func bss(last byte, rx float64) mlme.BSSDescription {
	return mlme.BSSDescription{
		BSSID:   mlme.MACAddress{0x02, 0, 0, 0, 0, last},
		Channel: int(last),
		RxPower: rx,
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		candidates []mlme.BSSDescription
		wantOK     bool
		wantIndex  int
	}{
		{"nil", nil, false, -1},
		{"empty", []mlme.BSSDescription{}, false, -1},
		{"single", []mlme.BSSDescription{bss(1, -80)}, true, 0},
		{"second stronger", []mlme.BSSDescription{bss(1, -70), bss(2, -40)}, true, 1},
		{"first stronger", []mlme.BSSDescription{bss(1, -30), bss(2, -40)}, true, 0},
		{"tie keeps first", []mlme.BSSDescription{bss(1, -50), bss(2, -50)}, true, 0},
		{"tie on max later", []mlme.BSSDescription{bss(1, -90), bss(2, -45), bss(3, -60), bss(4, -45)}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Select(tt.candidates)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIndex, Index(tt.candidates))
			if tt.wantOK {
				assert.Equal(t, tt.candidates[tt.wantIndex], got)
			} else {
				assert.Equal(t, mlme.BSSDescription{}, got)
			}
		})
	}
}

// TestSelectProperties checks the maximality and determinism laws over
// random inputs with many duplicate strengths.
func TestSelectProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for n := 0; n < 500; n++ {
		size := 1 + rng.Intn(12)
		candidates := make([]mlme.BSSDescription, size)
		for i := range candidates {
			candidates[i] = bss(byte(i), float64(-30-rng.Intn(6)*10))
		}

		idx := Index(candidates)
		got, ok := Select(candidates)
		if !ok {
			t.Fatalf("Select returned none for %d candidates", size)
		}
		for i, c := range candidates {
			if c.RxPower > got.RxPower {
				t.Fatalf("candidate %d (%v) stronger than selected (%v)", i, c.RxPower, got.RxPower)
			}
			if c.RxPower == got.RxPower && i < idx {
				t.Fatalf("tie at index %d precedes selected index %d", i, idx)
			}
		}

		// Same input, same answer
		again, _ := Select(candidates)
		if again != got {
			t.Fatal("Select is not deterministic")
		}
	}
}

func TestSelectDoesNotModifyInput(t *testing.T) {
	candidates := []mlme.BSSDescription{bss(1, -70), bss(2, -40), bss(3, -55)}
	before := append([]mlme.BSSDescription(nil), candidates...)

	Select(candidates)
	Rank(candidates)

	assert.Equal(t, before, candidates)
}

func TestRank(t *testing.T) {
	candidates := []mlme.BSSDescription{bss(1, -70), bss(2, -40), bss(3, -55), bss(4, -40)}

	ranked := Rank(candidates)

	want := []byte{2, 4, 3, 1}
	if assert.Len(t, ranked, len(want)) {
		for i, last := range want {
			assert.Equal(t, last, ranked[i].BSSID[5], "rank %d", i)
		}
	}

	first, _ := Select(candidates)
	assert.Equal(t, first, ranked[0])
	assert.Empty(t, Rank(nil))
}
