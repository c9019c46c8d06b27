package titles

import "testing"

func TestAreRelatedButDistinct(t *testing.T) {
	cases := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"subtitled expansion", "Assetto Corsa", "Assetto Corsa Evo", true},
		{"sequel word appended", "Dusk Chronicles", "Dusk Chronicles Arisen", true},
		{"single-word base never triggers", "Dusk", "Dusk Chronicles", false},
		{"numbered sequel of one-word title", "Portal", "Portal 2", false},
		{"shared prefix token without containment", "GTA V", "GTA Vice City", false},
		{"identical titles", "Dusk Chronicles", "Dusk Chronicles", false},
		{"identical after noise stripping", "Dusk Chronicles", "Dusk Chronicles v1.1-RAZOR", false},
		{"equal token counts are variants, not sequels", "Dusk Chronicle Gold", "Dusk Chronicles Gold", false},
		{"reordered tokens are not an expansion", "Corsa Assetto", "Assetto Corsa Evo", false},
		{"empty input", "", "Dusk Chronicles", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AreRelatedButDistinct(tc.a, tc.b); got != tc.want {
				t.Fatalf("AreRelatedButDistinct(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestAreRelatedButDistinctSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Assetto Corsa", "Assetto Corsa Evo"},
		{"Dusk", "Dusk Chronicles"},
		{"GTA V", "GTA Vice City"},
	}
	for _, p := range pairs {
		if AreRelatedButDistinct(p[0], p[1]) != AreRelatedButDistinct(p[1], p[0]) {
			t.Fatalf("expected symmetric verdict for %q / %q", p[0], p[1])
		}
	}
}
