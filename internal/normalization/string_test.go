package normalization

import "testing"

func TestNameID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pediatric Cardiology", "pediatric_cardiology"},
		{"pediatric   cardiology!!", "pediatric_cardiology"},
		{"  Neonatal Jaundice ", "neonatal_jaundice"},
		{"G6PD-Deficiency", "g6pddeficiency"},
		{"Anatomy 101", "anatomy_101"},
		{"", ""},
		{"   ", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NameID(c.in); got != c.want {
			t.Errorf("NameID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNameIDIdempotent(t *testing.T) {
	inputs := []string{"Pediatric Cardiology", "OBG: Labour & Delivery", "respiratory_medicine"}
	for _, in := range inputs {
		once := NameID(in)
		if twice := NameID(once); twice != once {
			t.Errorf("NameID not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestParseInputString(t *testing.T) {
	if got := ParseInputString("  Marrow "); got != "marrow" {
		t.Errorf("ParseInputString = %q", got)
	}
}
