package feed

import "testing"

func TestExtractSummaryPlainText(t *testing.T) {
	text, rawHTML, isHTML := ExtractSummary("Just a plain summary.")
	if isHTML {
		t.Error("plain text should not be flagged as HTML")
	}
	if rawHTML != "" {
		t.Errorf("expected empty rawHTML, got %q", rawHTML)
	}
	if text != "Just a plain summary." {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestExtractSummaryHTML(t *testing.T) {
	raw := "<p>Hello &amp; <b>welcome</b></p>"
	text, rawHTML, isHTML := ExtractSummary(raw)
	if !isHTML {
		t.Error("expected HTML to be detected")
	}
	if rawHTML != raw {
		t.Errorf("original markup should be preserved, got %q", rawHTML)
	}
	if text != "Hello & welcome" {
		t.Errorf("expected stripped and unescaped text, got %q", text)
	}
}

func TestExtractSummaryCollapsesWhitespace(t *testing.T) {
	text, _, _ := ExtractSummary("<div>  Multiple \n  spaces  </div>")
	if text != "Multiple spaces" {
		t.Errorf("expected collapsed whitespace, got %q", text)
	}
}

func TestExtractSummaryEmpty(t *testing.T) {
	text, rawHTML, isHTML := ExtractSummary("")
	if text != "" || rawHTML != "" || isHTML {
		t.Errorf("empty input should stay empty, got (%q, %q, %v)", text, rawHTML, isHTML)
	}
}
