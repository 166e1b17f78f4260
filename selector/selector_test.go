package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/farescout/browser"
	"github.com/use-agent/farescout/browser/browsertest"
)

const page = "https://flights.test/results"

func open(t *testing.T, doc browsertest.Doc) (*browsertest.Site, browser.Page) {
	t.Helper()
	site := browsertest.NewSite()
	site.Serve(page, doc)
	sess, err := site.Launch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	if err := sess.Page().Navigate(context.Background(), page, browser.WaitDOMContentLoaded); err != nil {
		t.Fatal(err)
	}
	return site, sess.Page()
}

func TestResolve_FirstCandidateWins(t *testing.T) {
	_, p := open(t, browsertest.Doc{
		`[data-test="CookiesPopup"] button`: {{Text: "Accept"}},
		`[class*="cookie"] button`:          {{Text: "OK"}},
	})

	m, ok, err := Resolve(context.Background(), p, Consent, time.Second)
	if err != nil || !ok {
		t.Fatalf("Resolve() = ok %v, err %v", ok, err)
	}
	if m.Index != 1 {
		t.Errorf("Index = %d, want 1", m.Index)
	}
	if m.Ladder != "consent" {
		t.Errorf("Ladder = %q, want consent", m.Ladder)
	}
	txt, _ := m.Element.Text(context.Background())
	if txt != "Accept" {
		t.Errorf("matched text = %q, want Accept", txt)
	}
}

func TestResolve_TextLocator(t *testing.T) {
	_, p := open(t, browsertest.Doc{
		browser.Text("button", `i agree`).String(): {{Text: "I agree"}},
	})

	m, ok, _ := Resolve(context.Background(), p, Consent, time.Second)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Index != 3 {
		t.Errorf("Index = %d, want 3", m.Index)
	}
}

func TestResolve_ExhaustedIsNotAnError(t *testing.T) {
	_, p := open(t, browsertest.Doc{})

	_, ok, err := Resolve(context.Background(), p, NoResults, 10*time.Millisecond)
	if ok {
		t.Error("expected ok=false on an empty page")
	}
	if err != nil {
		t.Errorf("exhaustion should not be an error, got %v", err)
	}
}

func TestResolve_CanceledContextStops(t *testing.T) {
	_, p := open(t, browsertest.Doc{
		`#cookies_accept`: {{Text: "Accept"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok, _ := Resolve(ctx, p, Consent, time.Second); ok {
		t.Error("canceled context should end the ladder")
	}
}

func TestResolve_SessionClosedSurfaces(t *testing.T) {
	site := browsertest.NewSite()
	sess, _ := site.Launch(context.Background())
	p := sess.Page()
	_ = sess.Close()

	_, ok, err := Resolve(context.Background(), p, Consent, time.Second)
	if ok || !errors.Is(err, browser.ErrSessionClosed) {
		t.Errorf("Resolve() after close = ok %v, err %v", ok, err)
	}
}

func TestResolveAll_ReturnsEveryMatchOfWinningCandidate(t *testing.T) {
	_, p := open(t, browsertest.Doc{
		`.ResultCardWrapper`: {
			{Text: "Tickets from 120 €"},
			{Text: "Tickets from 140 €"},
			{Text: "Tickets from 160 €"},
		},
		`[data-test*="Result"]`: {{Text: "ignored"}},
	})

	loc, els, ok, err := ResolveAll(context.Background(), p, ResultCards, time.Second)
	if err != nil || !ok {
		t.Fatalf("ResolveAll() = ok %v, err %v", ok, err)
	}
	if loc.Query != ".ResultCardWrapper" {
		t.Errorf("locator = %q, want .ResultCardWrapper", loc.Query)
	}
	if len(els) != 3 {
		t.Fatalf("len(els) = %d, want 3", len(els))
	}
	last, _ := els[2].Text(context.Background())
	if last != "Tickets from 160 €" {
		t.Errorf("els[2] = %q, order not preserved", last)
	}
}

func TestFirst_ScopedToElement(t *testing.T) {
	_, p := open(t, browsertest.Doc{
		`[data-test="ResultCardWrapper"]`: {{
			Text: "Ryanair 2h 35m 89 €",
			Children: browsertest.Doc{
				`[data-test="ResultCardPrice"]`: {{Text: "89 €"}},
			},
		}},
	})

	card, err := p.Find(context.Background(), browser.CSS(`[data-test="ResultCardWrapper"]`))
	if err != nil {
		t.Fatal(err)
	}
	m, ok, err := First(context.Background(), card, ResultPrice)
	if err != nil || !ok {
		t.Fatalf("First() = ok %v, err %v", ok, err)
	}
	if m.Index != 1 {
		t.Errorf("Index = %d, want 1", m.Index)
	}
}

func TestNewLadder_Validation(t *testing.T) {
	if _, err := NewLadder("empty"); err == nil {
		t.Error("empty ladder should be rejected")
	}
	if _, err := NewLadder("bad", browser.CSS("div[")); err == nil {
		t.Error("unparseable CSS should be rejected")
	}

	l, err := NewLadder("ok", browser.CSS("div"), browser.CSS("span"))
	if err != nil {
		t.Fatal(err)
	}
	c := l.Candidates()
	c[0] = browser.CSS("mutated")
	if l.Candidates()[0].Query != "div" {
		t.Error("Candidates() must return a copy")
	}
}

func TestSiteLadders(t *testing.T) {
	for _, l := range []Ladder{Consent, NoResults, ResultCards, ResultPrice, DestinationCards} {
		if l.Len() == 0 || l.Name() == "" {
			t.Errorf("ladder %q is empty", l.Name())
		}
	}
	if got := Consent.Candidates()[0].Query; got != "#cookies_accept" {
		t.Errorf("Consent[0] = %q, want #cookies_accept", got)
	}
}
