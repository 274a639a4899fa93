package pipelinespec

import "testing"

func TestParseTiersEmbeddedSpec(t *testing.T) {
	data, err := assetSelectFS.ReadFile("asset_select.yaml")
	if err != nil {
		t.Fatalf("read embedded spec: %v", err)
	}
	tiers, err := parseTiers(data)
	if err != nil {
		t.Fatalf("parseTiers: %v", err)
	}
	if len(tiers) != len(fallbackTiers) {
		t.Fatalf("embedded spec has %d tiers, fallback has %d", len(tiers), len(fallbackTiers))
	}
	for i := range tiers {
		if tiers[i].Name != fallbackTiers[i].Name {
			t.Errorf("tier %d: embedded %q vs fallback %q", i, tiers[i].Name, fallbackTiers[i].Name)
		}
	}
}

func TestParseTiersRejectsBadSpecs(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"wrong pipeline", "pipeline: other\ntiers:\n  - name: a\n    suffixes: [x]\n"},
		{"no tiers", "pipeline: nasa_asset_select\n"},
		{"unnamed tier", "pipeline: nasa_asset_select\ntiers:\n  - suffixes: [x]\n"},
		{"duplicate tier", "pipeline: nasa_asset_select\ntiers:\n  - name: a\n    suffixes: [x]\n  - name: a\n    suffixes: [y]\n"},
		{"empty tier", "pipeline: nasa_asset_select\ntiers:\n  - name: a\n"},
		{"not yaml", "{{{"},
	}
	for _, c := range cases {
		if _, err := parseTiers([]byte(c.in)); err == nil {
			t.Errorf("%s: expected error, got nil", c.name)
		}
	}
}

func TestTierMatches(t *testing.T) {
	orig := Tier{Name: "original", Suffixes: []string{"~orig.tif", "~orig.jpg"}}
	anyJPEG := Tier{Name: "any_jpeg", Extensions: []string{".jpg", ".jpeg"}}

	cases := []struct {
		tier Tier
		url  string
		want bool
	}{
		{orig, "https://images-assets.nasa.gov/image/PIA12345/PIA12345~orig.tif", true},
		{orig, "https://images-assets.nasa.gov/image/PIA12345/PIA12345~ORIG.JPG", true},
		{orig, "https://images-assets.nasa.gov/image/PIA12345/PIA12345~large.jpg", false},
		{anyJPEG, "https://example.com/photo.jpeg", true},
		{anyJPEG, "https://example.com/photo.jpg?cache=1", true},
		{anyJPEG, "https://example.com/metadata.json", false},
		{anyJPEG, "https://example.com/photo.png", false},
	}
	for _, c := range cases {
		if got := c.tier.Matches(c.url); got != c.want {
			t.Errorf("%s.Matches(%q) = %v, want %v", c.tier.Name, c.url, got, c.want)
		}
	}
}
