package locale

import "testing"

func TestGetDefault(t *testing.T) {
	s := Get("")
	if s.Pattern != defaultPattern {
		t.Fatalf("expected default pattern, got %q", s.Pattern)
	}
	if s.Stoplist != nil {
		t.Fatalf("default locale should carry no stoplist")
	}
}

func TestGetEnglishStoplist(t *testing.T) {
	s := Get("en")
	if s.Stoplist == nil {
		t.Fatal("expected en locale to carry a stoplist")
	}
	if _, ok := s.Stoplist["the"]; !ok {
		t.Fatal(`expected "the" in english stoplist`)
	}
}

func TestGetFallsBackAfterHyphen(t *testing.T) {
	// "xx-en" isn't registered, but the segment after the first '-' is.
	s := Get("xx-en")
	if s.Stoplist == nil {
		t.Fatal("expected xx-en to retry with the post-hyphen segment and pick up en's stoplist")
	}
}

func TestGetUnknownLocaleFallsBackToDefault(t *testing.T) {
	s := Get("xx")
	if s.Pattern != defaultPattern {
		t.Fatalf("unexpected pattern for unknown locale: %q", s.Pattern)
	}
}
