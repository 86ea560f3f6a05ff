package editinfo

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParse_KnownSections(t *testing.T) {
	blob := `{"sections":[
		{"kind":"notes","title":"Spelling","body":"Keep the long s."},
		{"kind":"example","image_url":"/uploads/books/whale/page.1.jpg","caption":"Sample"},
		{"kind":"characters","entries":[{"name":"þ","description":"thorn"}]}
	]}`

	info, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(info.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(info.Sections))
	}

	if s := info.Sections[0]; s.Kind != KindNotes || s.Notes == nil || s.Notes.Body != "Keep the long s." {
		t.Errorf("unexpected notes section: %+v", s)
	}
	if s := info.Sections[1]; s.Kind != KindExample || s.Example == nil || s.Example.ImageURL == "" {
		t.Errorf("unexpected example section: %+v", s)
	}
	if s := info.Sections[2]; s.Kind != KindCharacters || s.Characters == nil || len(s.Characters.Entries) != 1 {
		t.Errorf("unexpected characters section: %+v", s)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"notes missing body", `{"sections":[{"kind":"notes","title":"x"}]}`},
		{"example missing image_url", `{"sections":[{"kind":"example","caption":"x"}]}`},
		{"characters entry missing name", `{"sections":[{"kind":"characters","entries":[{"description":"x"}]}]}`},
		{"missing kind", `{"sections":[{"body":"x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.blob); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestParse_EmptyBlob(t *testing.T) {
	info, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(info.Sections) != 0 {
		t.Errorf("expected no sections, got %d", len(info.Sections))
	}
}

func TestUnknownKindRoundTrips(t *testing.T) {
	// A section kind this version has never heard of must survive a
	// parse/encode cycle byte-for-byte.
	raw := `{"kind":"video","url":"https://example.com/intro.mp4","duration_s":90}`
	blob := `{"sections":[` + raw + `]}`

	info, err := Parse(blob)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if info.Sections[0].Kind != "video" {
		t.Errorf("kind = %q, want video", info.Sections[0].Kind)
	}
	if string(info.Sections[0].Raw()) != raw {
		t.Errorf("raw bytes not preserved: %s", info.Sections[0].Raw())
	}

	out, err := Encode(info)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(out, raw) {
		t.Errorf("encoded blob lost the unknown section: %s", out)
	}
}

func TestEncode_KnownSection(t *testing.T) {
	info := Info{Sections: []Section{{
		Kind:  KindNotes,
		Notes: &NotesSection{Body: "Transcribe marginalia."},
	}}}

	out, err := Encode(info)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// The emitted form must parse back to the same payload.
	parsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse of encoded blob failed: %v", err)
	}
	if parsed.Sections[0].Notes == nil || parsed.Sections[0].Notes.Body != "Transcribe marginalia." {
		t.Errorf("round trip lost content: %s", out)
	}
}

func TestEncode_EmptyInfo(t *testing.T) {
	out, err := Encode(Info{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty string for empty info, got %q", out)
	}
}

func TestSection_MarshalWithoutPayloadFails(t *testing.T) {
	s := Section{Kind: KindNotes}
	if _, err := json.Marshal(s); err == nil {
		t.Error("expected marshal of a payload-less section to fail")
	}
}
