package titlenorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The Legend of Zora", "legend of zora"},
		{"Star Quest II", "star quest 2"},
		{"Final Saga VII", "final saga 7"},
		{"Mega Racer: Turbo", "mega racer turbo"},
		{"Puzzle Land - Special Edition", "puzzle land"},
		{"Café World", "cafe world"},
		{"  spaced   out  ", "spaced out"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBaseTitleAndTags(t *testing.T) {
	name := "Mega Racer (USA) (Rev 1) [!]"
	if got := BaseTitle(name); got != "Mega Racer" {
		t.Errorf("BaseTitle = %q", got)
	}
	tags := Tags(name)
	if len(tags) != 3 || tags[0] != "USA" || tags[1] != "Rev 1" || tags[2] != "!" {
		t.Errorf("Tags = %v", tags)
	}
}

func TestNormalizeRegions(t *testing.T) {
	if region, ok := NormalizeRegions("USA", FormatNoIntro); !ok || region != "USA" {
		t.Errorf("USA → %q, %v", region, ok)
	}
	if region, ok := NormalizeRegions("USA, Europe", FormatNoIntro); !ok || region != MultiRegion {
		t.Errorf("multi-region → %q, %v", region, ok)
	}
	if region, ok := NormalizeRegions("JP", FormatTOSEC); !ok || region != "Japan" {
		t.Errorf("TOSEC JP → %q, %v", region, ok)
	}
	if region, ok := NormalizeRegions("4", FormatGoodTools); !ok || region != "USA" {
		t.Errorf("GoodTools 4 → %q, %v", region, ok)
	}
	if _, ok := NormalizeRegions("Rev 1", FormatNoIntro); ok {
		t.Error("version tag treated as region")
	}
}

func TestParseName(t *testing.T) {
	rel := ParseName("Mega Racer (USA) (En,Fr) (Rev 2) [!]", FormatNoIntro)
	if rel.Title != "Mega Racer" {
		t.Errorf("Title = %q", rel.Title)
	}
	if rel.TitleKey != "mega racer" {
		t.Errorf("TitleKey = %q", rel.TitleKey)
	}
	if rel.Region != "USA" {
		t.Errorf("Region = %q", rel.Region)
	}
	if len(rel.Languages) != 2 || rel.Languages[0] != "en" || rel.Languages[1] != "fr" {
		t.Errorf("Languages = %v", rel.Languages)
	}
	if rel.Version != "2" {
		t.Errorf("Version = %q", rel.Version)
	}
	if rel.DumpStatus != "verified" {
		t.Errorf("DumpStatus = %q", rel.DumpStatus)
	}
}

func TestParseNameDevStatus(t *testing.T) {
	rel := ParseName("Comet Racer (Europe) (Beta)", FormatNoIntro)
	if rel.DevStatus != "beta" {
		t.Errorf("DevStatus = %q", rel.DevStatus)
	}
	if rel.Region != "Europe" {
		t.Errorf("Region = %q", rel.Region)
	}
}

func TestSimilarityExactAfterNormalization(t *testing.T) {
	if got := Similarity("The Star Quest II", "Star Quest 2"); got != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", got)
	}
}

func TestSimilaritySubstringFloor(t *testing.T) {
	got := Similarity("Mega Racer", "Mega Racer Championship Tour")
	if got < 0.8 {
		t.Errorf("substring similarity = %v, want >= 0.8", got)
	}
}

func TestSimilarityUnrelatedTitlesLow(t *testing.T) {
	got := Similarity("Puzzle Land", "Space Commando")
	if got >= 0.5 {
		t.Errorf("unrelated similarity = %v, want < 0.5", got)
	}
}

func TestSimilarityOrderIndependent(t *testing.T) {
	got := Similarity("Racer Mega", "Mega Racer")
	if got < 0.9 {
		t.Errorf("reordered similarity = %v, want >= 0.9", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(`Race: The "Final" Lap?`); got != "Race- The Final Lap" {
		t.Errorf("SanitizeFileName = %q", got)
	}
	if got := SanitizeFileName("   "); got != "untitled" {
		t.Errorf("empty name = %q", got)
	}
}
