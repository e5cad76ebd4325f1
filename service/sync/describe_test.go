package sync

import (
	"strings"
	"testing"
)

func countOccurrences(s, sub string) int {
	return strings.Count(s, sub)
}

func TestEnsurePermanentImages_EmptyDescription(t *testing.T) {
	got := ensurePermanentImages("")
	for _, url := range permanentImageURLs {
		if countOccurrences(got, url) != 1 {
			t.Errorf("url %s appears %d times, want 1", url, countOccurrences(got, url))
		}
	}
}

func TestEnsurePermanentImages_Idempotent(t *testing.T) {
	once := ensurePermanentImages("<p>El yapımı asetat çerçeve.</p>")
	twice := ensurePermanentImages(once)
	thrice := ensurePermanentImages(twice)
	if once != twice || twice != thrice {
		t.Fatal("repeated application changed the description")
	}
	for _, url := range permanentImageURLs {
		if countOccurrences(thrice, url) != 1 {
			t.Errorf("url %s appears %d times, want 1", url, countOccurrences(thrice, url))
		}
	}
	if !strings.HasSuffix(thrice, "El yapımı asetat çerçeve.</p>") {
		t.Errorf("original text lost: %q", thrice)
	}
}

func TestEnsurePermanentImages_PrependsBeforeText(t *testing.T) {
	got := ensurePermanentImages("<p>Açıklama</p>")
	textIdx := strings.Index(got, "Açıklama")
	for _, url := range permanentImageURLs {
		if idx := strings.Index(got, url); idx > textIdx {
			t.Errorf("image %s placed after the text", url)
		}
	}
}

func TestEnsurePermanentImages_ReplacesPartialLeftover(t *testing.T) {
	partial := `<p><img src="` + permanentImageURLs[0] + `" style="width:300px"></p><p>Devam</p>`
	got := ensurePermanentImages(partial)
	for _, url := range permanentImageURLs {
		if countOccurrences(got, url) != 1 {
			t.Errorf("url %s appears %d times, want 1", url, countOccurrences(got, url))
		}
	}
	if !strings.Contains(got, "Devam") {
		t.Error("body text lost while replacing the leftover block")
	}
}

func TestNormalizeDescriptionImages_ForcesTemplate(t *testing.T) {
	in := `<p><img src="x.jpg" style="width:300px; float:left; color:red" class="note-float-left pretty"></p>`
	got := normalizeDescriptionImages(in)
	if strings.Contains(got, "width:300px") {
		t.Error("layout width survived normalization")
	}
	if strings.Contains(got, "note-float-left") {
		t.Error("float class survived normalization")
	}
	if !strings.Contains(got, "width:820px !important") {
		t.Error("template width missing")
	}
	if !strings.Contains(got, "color: red") {
		t.Error("harmless style dropped")
	}
	if !strings.Contains(got, `class="pretty"`) {
		t.Errorf("other classes lost: %q", got)
	}
}

func TestNormalizeDescriptionImages_AddsStyleWhenAbsent(t *testing.T) {
	got := normalizeDescriptionImages(`<p><img src="x.jpg"></p>`)
	if !strings.Contains(got, "width:820px !important") {
		t.Errorf("style not injected: %q", got)
	}
}

func TestNormalizeDescriptionHTML_Cleanup(t *testing.T) {
	in := `<p></p><p><br><br></p><p>metin</p><br><br><br><br>` +
		`<details open><summary>devamı</summary><div class="x">gizli metin</div></details>` +
		`<span id="show-all-description">tümünü göster</span>`
	got := normalizeDescriptionHTML(in)
	if strings.Contains(got, "<p></p>") {
		t.Error("empty paragraph survived")
	}
	if strings.Contains(got, "<details") || strings.Contains(got, "<summary") {
		t.Error("details/summary markup survived")
	}
	if !strings.Contains(got, "gizli metin") {
		t.Error("collapsed content lost")
	}
	if strings.Contains(got, "show-all-description") {
		t.Error("show-all span survived")
	}
	if strings.Contains(got, "<br><br><br>") {
		t.Error("br run not collapsed")
	}
}

func TestNormalizeDescriptionHTML_MovesLeadingImagesUp(t *testing.T) {
	in := `<p><img src="a.jpg" style="width:10px"></p><p><img src="b.jpg"></p><p>metin</p>`
	got := normalizeDescriptionHTML(in)
	a := strings.Index(got, "a.jpg")
	b := strings.Index(got, "b.jpg")
	text := strings.Index(got, "metin")
	if !(a >= 0 && a < b && b < text) {
		t.Errorf("order broken: a=%d b=%d text=%d in %q", a, b, text, got)
	}
}

func TestBuildBrandDescription(t *testing.T) {
	candidate := ProductCandidate{Name: "RAYBAN 3025", Brand: "RAYBAN", Model: "3025"}
	got := buildBrandDescription(candidate, Signals{IsPolarized: true}, []string{"C03", "C12"})

	for _, url := range permanentImageURLs {
		if countOccurrences(got, url) != 1 {
			t.Errorf("url %s appears %d times, want 1", url, countOccurrences(got, url))
		}
	}
	if !strings.Contains(got, "RAYBAN 3025") {
		t.Error("brand and model missing from copy")
	}
	if !strings.Contains(got, "ikonik") {
		t.Error("rayban profile text not used")
	}
	if !strings.Contains(got, "C03, C12") {
		t.Error("variant labels missing")
	}
	if !strings.Contains(got, "polarize") {
		t.Error("polarized trait missing")
	}
	if stripHTML(got) == "" {
		t.Error("description strips to nothing")
	}
}

func TestBuildBrandDescription_UnknownBrandUsesDefaultProfile(t *testing.T) {
	candidate := ProductCandidate{Name: "PERSOL 714", Brand: "PERSOL", Model: "714"}
	got := buildBrandDescription(candidate, Signals{}, nil)
	if !strings.Contains(got, defaultBrandProfile.identity) {
		t.Error("default profile not applied")
	}
	if !strings.Contains(got, "standart renk") {
		t.Errorf("single-variant wording missing: %q", got)
	}
}

func TestBrandProfileKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Ray-Ban", "rayban"},
		{"RAYBAN", "rayban"},
		{"Osse ", "osse"},
	}
	for _, tc := range cases {
		if got := brandProfileKey(tc.in); got != tc.want {
			t.Errorf("brandProfileKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
