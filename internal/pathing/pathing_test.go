package pathing

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

const findLawTitle = "FindLaw's Writ - Lazarus Warrantless Wiretapping Why It Seriously Imperils the " +
	"Separation of Powers, And Continues the Executive's Sapping of Power From Congress and the Courts"

var hashSuffix = regexp.MustCompile(`-[0-9a-f]{12}\.pdf$`)

// deepRoot returns an output root whose length alone approaches the ceiling.
func deepRoot(n int) string {
	return filepath.Join(append([]string{string(filepath.Separator), "archive"}, strings.Split(strings.Repeat("segment/", n), "/")...)...)
}

// ---------------------------------------------------------------------------
// TestSanitize - File name stems
// ---------------------------------------------------------------------------

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain title", "Hello World", "Hello World"},
		{"separators become dashes", `a/b\c:d*e`, "a-b-c-d-e"},
		{"unsafe characters removed", `Why? "Quotes" <tag> a|b`, "Why Quotes tag ab"},
		{"control characters removed", "tab\tand\x00null", "tab andnull"},
		{"dash and dot runs collapse", "a -- b...c", "a - b.c"},
		{"leading and trailing junk trimmed", " ..-Title-.. ", "Title"},
		{"whitespace collapses", "  many   spaces\n\nhere ", "many spaces here"},
		{"reserved device name", "CON", "CON_"},
		{"reserved name with extension", "nul.txt", "nul.txt_"},
		{"reserved prefix is fine", "CONTRACT", "CONTRACT"},
		{"empty becomes untitled", "", Untitled},
		{"only unsafe becomes untitled", `??""<>`, Untitled},
		{"apostrophes are kept", "FindLaw's Writ", "FindLaw's Writ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPlan - Naive and shortened paths
// ---------------------------------------------------------------------------

func TestPlan_NaivePathWhenItFits(t *testing.T) {
	t.Parallel()

	e := New()
	got, err := e.Plan(filepath.Join("out"), "cases/2019/page.mht", "A Short Title")
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	want := filepath.Join("out", "cases", "2019", "A Short Title.pdf")
	if got.String() != want {
		t.Errorf("Plan() = %q, want %q", got, want)
	}
}

func TestPlan_ParentComponentsStayInsideRoot(t *testing.T) {
	t.Parallel()

	got, err := New().Plan("out", "../../escape/page.mht", "T")
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	if want := filepath.Join("out", "escape", "T.pdf"); got.String() != want {
		t.Errorf("Plan() = %q, want %q", got, want)
	}
}

func TestPlan_FindLawTitleUnderDeepRoot(t *testing.T) {
	t.Parallel()

	root := deepRoot(12)
	e := New()

	first, err := e.Plan(root, "findlaw/writ.mht", findLawTitle)
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	second, err := e.Plan(root, "findlaw/writ.mht", findLawTitle)
	if err != nil {
		t.Fatalf("Plan() rerun unexpected error: %v", err)
	}

	if first != second {
		t.Errorf("rerun produced %q, first run %q", second, first)
	}
	if !hashSuffix.MatchString(first.String()) {
		t.Errorf("shortened path %q lacks a hash suffix", first)
	}
	if n := pathLen(first.Sidecar()); n > DefaultMaxLength {
		t.Errorf("sidecar path length = %d, exceeds %d", n, DefaultMaxLength)
	}
	name := filepath.Base(first.String())
	if !strings.HasPrefix(name, "FindLaw's Writ - Lazarus") {
		t.Errorf("shortened name %q does not keep the title prefix", name)
	}
	if dir := filepath.Dir(first.String()); dir != filepath.Join(root, "findlaw") {
		t.Errorf("shortened path directory = %q, want mirrored source dir", dir)
	}
}

func TestPlan_PrefixBudget(t *testing.T) {
	t.Parallel()

	e := New(WithPrefixBudget(10), WithMaxLength(80))
	got, err := e.Plan("out", "a.mht", strings.Repeat("x", 100))
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	name := filepath.Base(got.String())
	want := strings.Repeat("x", 10) + "-" + Hash(strings.Repeat("x", 100), "a.mht") + PDFExt
	if name != want {
		t.Errorf("name = %q, want %q", name, want)
	}
}

func TestPlan_LengthBound(t *testing.T) {
	t.Parallel()

	titles := []string{
		"",
		"short",
		findLawTitle,
		strings.Repeat("長い題名", 80),
		strings.Repeat("emoji 😀 ", 60),
		strings.Repeat("a", 400),
	}
	ceilings := []int{120, 200, 260}

	for _, ceiling := range ceilings {
		e := New(WithMaxLength(ceiling))
		for depth := 0; depth < 6; depth++ {
			root := deepRoot(depth)
			for _, title := range titles {
				got, err := e.Plan(root, "dir/file.mht", title)
				if err != nil {
					t.Fatalf("Plan(ceiling=%d, depth=%d) unexpected error: %v", ceiling, depth, err)
				}
				if n := pathLen(got.Sidecar()); n > ceiling {
					t.Errorf("ceiling=%d depth=%d title=%.20q: sidecar length %d", ceiling, depth, title, n)
				}
				if n := len(filepath.Base(got.Sidecar())); n > MaxNameBytes {
					t.Errorf("name component is %d bytes, exceeds %d", n, MaxNameBytes)
				}
			}
		}
	}
}

func TestPlan_LongNameComponentWithShortRoot(t *testing.T) {
	t.Parallel()

	// 100 three-byte runes fit the character ceiling but not the byte cap.
	e := New(WithMaxLength(1000), WithPrefixBudget(500))
	got, err := e.Plan("o", "a.mht", strings.Repeat("題", 100))
	if err != nil {
		t.Fatalf("Plan() unexpected error: %v", err)
	}
	if n := len(filepath.Base(got.Sidecar())); n > MaxNameBytes {
		t.Errorf("name component is %d bytes, exceeds %d", n, MaxNameBytes)
	}
	if !hashSuffix.MatchString(got.String()) {
		t.Errorf("oversized name %q was not shortened", got)
	}
}

func TestPlan_PathTooLong(t *testing.T) {
	t.Parallel()

	e := New(WithMaxLength(40))
	_, err := e.Plan(deepRoot(5), "a.mht", "title")
	if !errors.Is(err, ErrPathTooLong) {
		t.Fatalf("Plan() error = %v, want ErrPathTooLong", err)
	}
}

// ---------------------------------------------------------------------------
// TestDisambiguate - Collision handling
// ---------------------------------------------------------------------------

func TestDisambiguate(t *testing.T) {
	t.Parallel()

	e := New()
	a, err := e.Disambiguate("out", "one/page.mht", "Same Title")
	if err != nil {
		t.Fatalf("Disambiguate() unexpected error: %v", err)
	}
	b, err := e.Disambiguate("out", "one/other.mht", "Same Title")
	if err != nil {
		t.Fatalf("Disambiguate() unexpected error: %v", err)
	}

	if a == b {
		t.Errorf("different sources got the same path %q", a)
	}
	if !strings.HasPrefix(filepath.Base(a.String()), "Same Title-") {
		t.Errorf("disambiguated name %q should keep the full short title", a)
	}
	naive, _ := e.Plan("out", "one/page.mht", "Same Title")
	if naive == a {
		t.Error("disambiguated path should differ from the naive path")
	}
}

// ---------------------------------------------------------------------------
// Hash and sidecar helpers
// ---------------------------------------------------------------------------

func TestHash_PlatformIndependent(t *testing.T) {
	t.Parallel()

	if Hash("t", `dir\sub\a.mht`) != Hash("t", "dir/sub/a.mht") {
		t.Error("hash differs between separator styles")
	}
	if Hash("t", "a.mht") == Hash("t", "b.mht") {
		t.Error("hash ignores the source path")
	}
	if got := len(Hash("t", "a.mht")); got != HashLength {
		t.Errorf("hash length = %d, want %d", got, HashLength)
	}
}

func TestSidecarPath(t *testing.T) {
	t.Parallel()

	if got := SidecarPath("out/a.b.pdf"); got != "out/a.b.metadata.json" {
		t.Errorf("SidecarPath() = %q", got)
	}
}

func TestOptions_PanicOnInvalid(t *testing.T) {
	t.Parallel()

	for name, fn := range map[string]func(){
		"max length":    func() { WithMaxLength(0) },
		"prefix budget": func() { WithPrefixBudget(-1) },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}
