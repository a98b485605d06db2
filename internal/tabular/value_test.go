package tabular

import "testing"

func TestEncode(t *testing.T) {
	cases := []struct {
		in   Value
		want string
	}{
		{nil, ""},
		{"EGFR", "EGFR"},
		{true, "true"},
		{false, "false"},
		{15.5, "15.5"},
		{float64(15), "15"},
		{int64(42), "42"},
		{7, "7"},
	}
	for _, c := range cases {
		if got := Encode(c.in); got != c.want {
			t.Errorf("Encode(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecode(t *testing.T) {
	if v := Decode(""); v != nil {
		t.Fatalf("Decode(\"\") = %v, want nil", v)
	}
	if v := Decode("15.5"); v != "15.5" {
		t.Fatalf("Decode(15.5) = %v, want the text back", v)
	}
}

func TestEncodeDecodeCarriesCells(t *testing.T) {
	// The rewrite path reads existing cells with Decode and writes them
	// back with Encode; the on-disk text must not drift.
	for _, s := range []string{"", "EGFR", "15.5", "true", "0.0012"} {
		if got := Encode(Decode(s)); got != s {
			t.Errorf("Encode(Decode(%q)) = %q", s, got)
		}
	}
}

func TestKindZero(t *testing.T) {
	if v := KindString.Zero(); v != "" {
		t.Fatalf("string zero = %v", v)
	}
	if v := KindFloat.Zero(); v != float64(0) {
		t.Fatalf("float zero = %v", v)
	}
	if v := KindInt.Zero(); v != int64(0) {
		t.Fatalf("int zero = %v", v)
	}
	if v := KindBool.Zero(); v != false {
		t.Fatalf("bool zero = %v", v)
	}
}

func TestNumber(t *testing.T) {
	if f, ok := Number(2.5); !ok || f != 2.5 {
		t.Fatalf("Number(2.5) = %v, %v", f, ok)
	}
	if f, ok := Number(int64(3)); !ok || f != 3 {
		t.Fatalf("Number(int64) = %v, %v", f, ok)
	}
	if _, ok := Number("2.5"); ok {
		t.Fatal("Number accepted a string")
	}
	if _, ok := Number(nil); ok {
		t.Fatal("Number accepted nil")
	}
}
