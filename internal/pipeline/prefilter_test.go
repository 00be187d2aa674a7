package pipeline

import (
	"reflect"
	"testing"
)

func TestMatchKeywordsWholeWord(t *testing.T) {
	matched, _ := MatchKeywords("Scaling Postgres", "Notes on scalability", []string{"scala"})
	if len(matched) != 0 {
		t.Errorf("substring must not match as a whole word, got %v", matched)
	}

	matched, _ = MatchKeywords("Why we moved to Scala", "", []string{"scala"})
	if len(matched) != 1 {
		t.Errorf("whole word should match, got %v", matched)
	}
}

func TestMatchKeywordsCaseInsensitive(t *testing.T) {
	matched, _ := MatchKeywords("LLM Benchmarks", "", []string{"llm"})
	if len(matched) != 1 {
		t.Errorf("matching must be case-insensitive, got %v", matched)
	}
}

func TestMatchKeywordsProvenance(t *testing.T) {
	matched, prov := MatchKeywords(
		"Kubernetes at scale",
		"A deep dive on kubernetes networking and security",
		[]string{"kubernetes", "security", "docker"},
	)

	want := []string{"kubernetes", "security"}
	if !reflect.DeepEqual(matched, want) {
		t.Fatalf("matched = %v, want %v", matched, want)
	}

	if p := prov["kubernetes"]; !p.FoundInTitle || !p.FoundInSummary {
		t.Errorf("kubernetes provenance = %+v, want both", p)
	}
	if p := prov["security"]; p.FoundInTitle || !p.FoundInSummary {
		t.Errorf("security provenance = %+v, want summary only", p)
	}
	if _, ok := prov["docker"]; ok {
		t.Error("unmatched keyword must not appear in provenance")
	}
}

func TestMatchKeywordsPreservesConfigOrder(t *testing.T) {
	matched, _ := MatchKeywords("c b a", "", []string{"a", "b", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(matched, want) {
		t.Errorf("matched = %v, want config order %v", matched, want)
	}
}

func TestMatchKeywordsMultiWord(t *testing.T) {
	matched, _ := MatchKeywords("Advances in machine learning systems", "", []string{"machine learning"})
	if len(matched) != 1 {
		t.Errorf("multi-word keyword should match, got %v", matched)
	}
}

func TestMatchKeywordsDeterministic(t *testing.T) {
	title, summary := "Rust and Go in production", "Benchmarking rust services"
	keywords := []string{"rust", "go", "zig"}

	first, firstProv := MatchKeywords(title, summary, keywords)
	for i := 0; i < 10; i++ {
		matched, prov := MatchKeywords(title, summary, keywords)
		if !reflect.DeepEqual(matched, first) || !reflect.DeepEqual(prov, firstProv) {
			t.Fatal("identical input must always yield identical candidacy")
		}
	}
}

func TestDeriveKeyStable(t *testing.T) {
	k1 := DeriveKey("Title", "https://example.com/a")
	k2 := DeriveKey("Title", "https://example.com/a")
	k3 := DeriveKey("Title", "https://example.com/b")

	if k1 != k2 {
		t.Error("identical (title, link) must yield identical keys")
	}
	if k1 == k3 {
		t.Error("distinct links must yield distinct keys")
	}
	if len(k1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(k1))
	}
}

func TestDeriveKeyTotal(t *testing.T) {
	// Absent fields hash as empty strings rather than failing.
	if DeriveKey("", "") == "" {
		t.Error("empty input must still produce a key")
	}
	if DeriveKey("a", "b") == DeriveKey("b", "a") {
		t.Error("derivation must be order-sensitive")
	}
}
