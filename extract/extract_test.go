package extract

import "testing"

func TestPriceExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"tickets from", "Tickets from 165 €", 165},
		{"no digits", "no digits here", 0},
		{"amount then symbol", "Ryanair 2h 35m 89 €", 89},
		{"symbol then amount", "Direct €74", 74},
		{"currency code", "Return trip 230 EUR", 230},
		{"thousands separator", "from 1,234 €", 1234},
		{"european decimals", "1.234,50 €", 1234.50},
		{"decimal fare", "from 165.50 €", 165.50},
		{"space grouped thousands", "1 234 €", 1234},
		{"space grouped after from", "from 1 234 €", 1234},
		{"no-break space thousands", "1\u00a0234 €", 1234},
		{"narrow no-break space thousands", "from 1\u202f234 €", 1234},
		{"space grouped with decimals", "1 234,50 €", 1234.50},
		{"unrelated count not merged", "2 stops 165 €", 165},
		{"tickets without currency", "Tickets from 99", 99},
		{"fallback plausible number", "Dublin 2025 Barcelona", 2025},
		{"fallback ignores implausible", "Gate 7 seat 3", 0},
		{"fallback range upper bound", "ref 123456 code 10000", 10000},
	}
	var p PriceExtractor
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Extract(tt.text); got != tt.want {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPriceExtract_LadderPriority(t *testing.T) {
	// "from N €" outranks the bare "N €" appearing later in the text.
	var p PriceExtractor
	if got := p.Extract("from 120 € · was 300 €"); got != 120 {
		t.Errorf("Extract() = %v, want 120", got)
	}
}

func TestPriceExtract_MatchPolicy(t *testing.T) {
	text := "Outbound 45 € Return 60 €"

	if got := (PriceExtractor{Policy: MatchLast}).Extract(text); got != 60 {
		t.Errorf("MatchLast = %v, want 60", got)
	}
	if got := (PriceExtractor{Policy: MatchFirst}).Extract(text); got != 45 {
		t.Errorf("MatchFirst = %v, want 45", got)
	}

	fallback := "flight 12 leaves gate 34"
	if got := (PriceExtractor{Policy: MatchFirst}).Extract(fallback); got != 12 {
		t.Errorf("MatchFirst fallback = %v, want 12", got)
	}
	if got := (PriceExtractor{Policy: MatchLast}).Extract(fallback); got != 34 {
		t.Errorf("MatchLast fallback = %v, want 34", got)
	}
}

func TestParseMatchPolicy(t *testing.T) {
	for in, want := range map[string]MatchPolicy{"": MatchLast, "last": MatchLast, " First ": MatchFirst} {
		got, err := ParseMatchPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseMatchPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMatchPolicy("middle"); err == nil {
		t.Error("unknown policy should be rejected")
	}
}

type mapProbe map[string]string

func (m mapProbe) Text(sel string) string { return m[sel] }

func TestCityExtract(t *testing.T) {
	c := NewCityExtractor("Dublin")

	tests := []struct {
		name  string
		text  string
		aria  string
		probe Probe
		want  string
	}{
		{
			name: "text after origin",
			text: "Dublin → Barcelona Tickets from 45 €",
			want: "Barcelona",
		},
		{
			name: "concatenated text content",
			text: "LoadingDublinLisbonTickets from 61 €",
			want: "Lisbon",
		},
		{
			name: "loading artifact after origin",
			text: "dublin   Loading Porto  from 38 €",
			want: "Porto",
		},
		{
			name: "no origin token",
			text: "Kraków: from 52 €",
			want: "Kraków",
		},
		{
			name: "origin only falls through to aria",
			text: "Dublin Tickets from 20 €",
			aria: "Flights from Dublin to São Paulo",
			want: "São Paulo",
		},
		{
			name: "aria stops at punctuation",
			text: "",
			aria: "Trip to L'Aquila, Italy",
			want: "L'Aquila",
		},
		{
			name:  "probe used last",
			text:  "Tickets from 45 €",
			aria:  "",
			probe: mapProbe{`h3`: "Dublin", `[class*="title"]`: "→ Nice,"},
			want:  "Nice",
		},
		{
			name:  "probe rejects single letters",
			text:  "",
			probe: mapProbe{`h2`: "X", `[class*="city"]`: "Split"},
			want:  "Split",
		},
		{
			name: "everything fails",
			text: "Tickets from 45 €",
			want: Unknown,
		},
		{
			name: "price only",
			text: "Dublin 45 €",
			want: Unknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Extract(tt.text, tt.aria, tt.probe); got != tt.want {
				t.Errorf("Extract(%q, %q) = %q, want %q", tt.text, tt.aria, got, tt.want)
			}
		})
	}
}

func TestCityExtract_Deterministic(t *testing.T) {
	c := NewCityExtractor("Dublin")
	probe := NewHTMLProbe(`<div class="PictureCard"><h3>Malaga</h3></div>`)
	inputs := [][2]string{
		{"Dublin → Rome Tickets from 45 €", ""},
		{"", "to Vienna"},
		{"", ""},
	}
	for _, in := range inputs {
		first := c.Extract(in[0], in[1], probe)
		for i := 0; i < 5; i++ {
			if got := c.Extract(in[0], in[1], probe); got != first {
				t.Fatalf("Extract(%q, %q) changed from %q to %q", in[0], in[1], first, got)
			}
		}
	}
}

func TestHTMLProbe(t *testing.T) {
	p := NewHTMLProbe(`<div class="card-title"><span data-test="DestinationName">Valencia</span><h3>Spain</h3></div>`)

	if got := p.Text(`[data-test*="Destination"]`); got != "Valencia" {
		t.Errorf("Text(destination) = %q, want Valencia", got)
	}
	if got := p.Text(`h3`); got != "Spain" {
		t.Errorf("Text(h3) = %q, want Spain", got)
	}
	// The card root itself carries the title class and must not match.
	if got := p.Text(`[class*="title"]`); got != "" {
		t.Errorf("Text(title) = %q, want empty", got)
	}
	if got := p.Text(`h2`); got != "" {
		t.Errorf("Text(h2) = %q, want empty", got)
	}

	var nilProbe *HTMLProbe
	if got := nilProbe.Text("h3"); got != "" {
		t.Errorf("nil probe Text() = %q", got)
	}
}
