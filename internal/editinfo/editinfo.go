// Package editinfo models a book's editing instructions as a closed set
// of known section shapes plus forward-compatible unknown sections.
// Unknown kinds round-trip byte-for-byte so older servers never destroy
// instructions written by newer ones.
package editinfo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Known section kinds.
const (
	KindNotes      = "notes"
	KindExample    = "example"
	KindCharacters = "characters"
)

// NotesSection is free-form instructional prose.
type NotesSection struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// ExampleSection points at a sample transcription image.
type ExampleSection struct {
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption,omitempty"`
}

// CharacterEntry maps a handwritten or archaic glyph to its reading.
type CharacterEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CharactersSection lists glyph conventions for the book.
type CharactersSection struct {
	Entries []CharacterEntry `json:"entries"`
}

var sectionSchemas = map[string]*jsonschema.Schema{
	KindNotes: jsonschema.MustCompileString("notes.json", `{
		"type": "object",
		"required": ["kind", "body"],
		"properties": {
			"kind": {"const": "notes"},
			"title": {"type": "string"},
			"body": {"type": "string"}
		}
	}`),
	KindExample: jsonschema.MustCompileString("example.json", `{
		"type": "object",
		"required": ["kind", "image_url"],
		"properties": {
			"kind": {"const": "example"},
			"image_url": {"type": "string"},
			"caption": {"type": "string"}
		}
	}`),
	KindCharacters: jsonschema.MustCompileString("characters.json", `{
		"type": "object",
		"required": ["kind", "entries"],
		"properties": {
			"kind": {"const": "characters"},
			"entries": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name"],
					"properties": {
						"name": {"type": "string"},
						"description": {"type": "string"}
					}
				}
			}
		}
	}`),
}

// Section is one tagged instructional section. Exactly one of the typed
// payloads is set for known kinds; unknown kinds keep only the raw bytes.
type Section struct {
	Kind       string
	Notes      *NotesSection
	Example    *ExampleSection
	Characters *CharactersSection

	raw json.RawMessage
}

// Raw returns the section's original JSON. Populated for every parsed
// section, and the only representation for unknown kinds.
func (s *Section) Raw() json.RawMessage {
	return s.raw
}

// UnmarshalJSON decodes the tag, validates known shapes against their
// schema, and preserves the raw bytes for round-tripping.
func (s *Section) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], data...)

	var tag struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("section is not an object: %w", err)
	}
	if tag.Kind == "" {
		return fmt.Errorf("section is missing a kind")
	}
	s.Kind = tag.Kind

	schema, known := sectionSchemas[tag.Kind]
	if !known {
		// Forward compatibility: carry the section through untouched.
		return nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid %s section: %w", tag.Kind, err)
	}

	switch tag.Kind {
	case KindNotes:
		s.Notes = &NotesSection{}
		return json.Unmarshal(data, s.Notes)
	case KindExample:
		s.Example = &ExampleSection{}
		return json.Unmarshal(data, s.Example)
	case KindCharacters:
		s.Characters = &CharactersSection{}
		return json.Unmarshal(data, s.Characters)
	}
	return nil
}

// MarshalJSON emits known sections from their typed payload and unknown
// sections from the preserved raw bytes.
func (s Section) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindNotes:
		if s.Notes != nil {
			return tagged(s.Kind, s.Notes)
		}
	case KindExample:
		if s.Example != nil {
			return tagged(s.Kind, s.Example)
		}
	case KindCharacters:
		if s.Characters != nil {
			return tagged(s.Kind, s.Characters)
		}
	}
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	return nil, fmt.Errorf("section %q has no payload", s.Kind)
}

// tagged marshals payload with the kind tag injected.
func tagged(kind string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	tag, _ := json.Marshal(kind)
	buf.Write(tag)
	if !bytes.Equal(body, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(body[1 : len(body)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Info is a book's full editing instructions.
type Info struct {
	Sections []Section `json:"sections"`
}

// Parse decodes the stored editing info blob. An empty blob is valid and
// yields no sections.
func Parse(blob string) (Info, error) {
	if blob == "" {
		return Info{}, nil
	}
	var info Info
	if err := json.Unmarshal([]byte(blob), &info); err != nil {
		return Info{}, fmt.Errorf("parse editing info: %w", err)
	}
	return info, nil
}

// Encode serializes the info for storage.
func Encode(info Info) (string, error) {
	if len(info.Sections) == 0 {
		return "", nil
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("encode editing info: %w", err)
	}
	return string(data), nil
}
