package version

import "testing"

func TestParseAndCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.2.3-beta.1", "1.2.3", -1},
		{"1.2.3", "1.2.3-beta.1", 1},
		{"1.2.3-alpha", "1.2.3-beta", -1},
	}

	for _, c := range cases {
		a, err := Parse(c.a)
		if err != nil {
			t.Fatalf("parse %q: %v", c.a, err)
		}
		b, err := Parse(c.b)
		if err != nil {
			t.Fatalf("parse %q: %v", c.b, err)
		}
		if got := a.Compare(b); sign(got) != sign(c.want) {
			t.Errorf("Compare(%s, %s) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "not-a-version", "1.2", "v1.2.3"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should have failed", s)
		}
	}
}

func TestIsPreRelease(t *testing.T) {
	if MustParse("9.13.2").IsPreRelease() {
		t.Error("9.13.2 should not be a pre-release")
	}
	if !MustParse("9.13.2-beta.1").IsPreRelease() {
		t.Error("9.13.2-beta.1 should be a pre-release")
	}
}

func TestDescending(t *testing.T) {
	vs := []SemanticVersion{
		MustParse("1.0.0"),
		MustParse("2.0.0"),
		MustParse("1.5.0"),
	}
	Descending(vs)
	want := []string{"2.0.0", "1.5.0", "1.0.0"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Errorf("index %d: got %s, want %s", i, vs[i], w)
		}
	}
}
