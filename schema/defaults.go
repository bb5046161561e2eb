package schema

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
)

// epoch is the generated default for date-time properties.
var epoch = time.Unix(0, 0).UTC().Format(time.RFC3339)

// WithGeneratedDefaults returns a copy of s in which every uuid or date-time
// property of an object schema that has no default gets one. UUID defaults are
// name-based on the property path, so the same schema always yields the same
// document. s itself is left untouched.
func WithGeneratedDefaults(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	out := Clone(s)
	stampDefaults(out, "#")
	return out
}

func stampDefaults(s *Schema, path string) {
	if s == nil {
		return
	}
	if s.Items != nil {
		stampDefaults(s.Items, path+"/items")
	}
	if !IsObject(s) {
		return
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		p := s.Properties[name]
		if p == nil {
			continue
		}
		propPath := path + "/properties/" + name
		if len(p.Default) == 0 {
			switch p.Format {
			case "uuid":
				p.Default = mustRaw(uuid.NewSHA1(uuid.NameSpaceURL, []byte(propPath)).String())
			case "date-time":
				p.Default = mustRaw(epoch)
			}
		}
		stampDefaults(p, propPath)
	}
}

func mustRaw(v string) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
