package chapter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOrderKey(t *testing.T) {
	cases := map[string]int{
		"Chap_12_AB_Title.md":           120,
		"Chap_12-B_AB_Title.md":         122,
		"Chap_1-A_XY_Opening_Move.md":   11,
		"Chap_003_XY_Leading_Zeros.md":  30,
		"chapters/Chap_7_AB_Nested.md":  70,
		"Prologue.md":                   UnorderedKey,
		"Chap_12-b_AB_Lowercase.md":     UnorderedKey,
		"Chap_X_AB_NotANumber.md":       UnorderedKey,
		"Chap_12":                       UnorderedKey,
	}
	for name, want := range cases {
		if got := OrderKey(name); got != want {
			t.Errorf("OrderKey(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestDefaultTitle(t *testing.T) {
	cases := map[string]string{
		"Chap_12_AB_The_Long_Night.md":  "The Long Night",
		"Chap_12-B_AB_Aftermath.md":     "Aftermath",
		"Prologue.md":                   "Prologue",
		"Chap_12_AB.md":                 "Chap_12_AB",
		"Chap_5_AB_Under_Fire_Again.md": "Under Fire Again",
	}
	for name, want := range cases {
		if got := DefaultTitle(name); got != want {
			t.Errorf("DefaultTitle(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Chap_12-B_AB_The_Long_Night.md"); got != "chap-12-b-ab-the-long-night" {
		t.Errorf("Slug = %q", got)
	}
}

func TestProjectFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"projects/2028ww3/chapters/Chap_1_AB_X.md", "2028ww3", true},
		{"/home/me/work/projects/other/chapters/a.md", "other", true},
		{"site/src/content/novels/2028ww3/Chap_1_AB_X.md", "2028ww3", true},
		{"drafts/Chap_1_AB_X.md", "", false},
		{"projects/a.md", "", false},
		{"/home/u/projects/repo/projects/2028ww3/chapters/x.md", "2028ww3", true},
		{"/srv/projects/site/src/content/novels/2028ww3/x.md", "2028ww3", true},
	}
	for _, c := range cases {
		got, ok := ProjectFromPath(c.path)
		if got != c.want || ok != c.ok {
			t.Errorf("ProjectFromPath(%q) = (%q, %v), want (%q, %v)", c.path, got, ok, c.want, c.ok)
		}
	}
}

func TestSort(t *testing.T) {
	names := []string{
		"Notes.md",
		"Chap_2_AB_Two.md",
		"Chap_1-B_AB_OneB.md",
		"Chap_10_AB_Ten.md",
		"Chap_1_AB_One.md",
		"Appendix.md",
	}
	Sort(names)
	want := []string{
		"Chap_1_AB_One.md",
		"Chap_1-B_AB_OneB.md",
		"Chap_2_AB_Two.md",
		"Chap_10_AB_Ten.md",
		"Appendix.md",
		"Notes.md",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Sort mismatch (-want +got):\n%s", diff)
	}
}
