package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// ImportResult summarises an Import run.
type ImportResult struct {
	// Imported counts records written per target key.
	Imported map[string]int `json:"imported"`
	// Duplicates counts records skipped because their id already existed.
	Duplicates map[string]int `json:"duplicates"`
	// Merged maps each legacy key seen in the dump to its target key.
	Merged map[string]string `json:"merged"`
	// Corrupted holds keys whose value is not an array of objects, and
	// single records ("key[id]") that do not decode as their record type.
	Corrupted map[string]string `json:"corrupted"`
	Skipped   []string          `json:"skipped"`
	Unknown   []string          `json:"unknown"`
}

// RecordCheck reports whether one record decodes as the type stored under
// its key.
type RecordCheck func(raw json.RawMessage) error

// DecodeAs checks that a record decodes into T.
func DecodeAs[T any]() RecordCheck {
	return func(raw json.RawMessage) error {
		var v T
		return json.Unmarshal(raw, &v)
	}
}

// ParseDump reads a browser local-storage export: a JSON object whose
// values are either JSON-encoded strings (as localStorage stores them) or
// inline arrays.
func ParseDump(r io.Reader) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}

	out := make(map[string]json.RawMessage, len(top))
	for k, v := range top {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '"' {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("decode %s: %w", k, err)
			}
			v = json.RawMessage(s)
		}
		out[k] = v
	}
	return out, nil
}

func knownKey(k string) bool {
	if _, ok := legacyKeys[k]; ok {
		return true
	}
	for _, m := range ManagedKeys() {
		if m == k {
			return true
		}
	}
	return false
}

// Import writes the dump into s in one atomic step. Legacy keys merge into
// their current key. Records whose id already exists in the target are kept
// as they are, so importing the same dump twice is a no-op. A key whose
// value is not an array of objects is reported as corrupted and not
// written. checks is keyed by the target key; a record that fails its check
// is reported and left out so the collection stays readable.
func Import(ctx context.Context, s Store, dump map[string]json.RawMessage, checks map[string]RecordCheck) (*ImportResult, error) {
	res := &ImportResult{
		Imported:   map[string]int{},
		Duplicates: map[string]int{},
		Merged:     map[string]string{},
		Corrupted:  map[string]string{},
	}

	keys := make([]string, 0, len(dump))
	for k := range dump {
		switch {
		case unmanagedKeys[k]:
			res.Skipped = append(res.Skipped, k)
		case !knownKey(k):
			res.Unknown = append(res.Unknown, k)
		default:
			keys = append(keys, k)
		}
	}
	// Current keys first so their records win over legacy copies.
	sort.Slice(keys, func(i, j int) bool {
		_, li := legacyKeys[keys[i]]
		_, lj := legacyKeys[keys[j]]
		if li != lj {
			return !li
		}
		return keys[i] < keys[j]
	})
	sort.Strings(res.Skipped)
	sort.Strings(res.Unknown)

	err := s.Atomic(ctx, func(ctx context.Context) error {
		for _, k := range keys {
			var incoming []map[string]json.RawMessage
			if err := json.Unmarshal(dump[k], &incoming); err != nil {
				res.Corrupted[k] = err.Error()
				continue
			}

			target := Canonical(k)
			if target != k {
				res.Merged[k] = target
			}

			col := NewCollection(s, target, rawID)
			err := col.Mutate(ctx, func(items []map[string]json.RawMessage) ([]map[string]json.RawMessage, error) {
				seen := make(map[string]bool, len(items))
				for _, it := range items {
					seen[rawID(it)] = true
				}
				for i, it := range incoming {
					id := rawID(it)
					if id != "" && seen[id] {
						res.Duplicates[target]++
						continue
					}
					if raw, ok := it["id"]; ok && len(raw) > 0 && raw[0] != '"' {
						it["id"], _ = json.Marshal(id)
					}
					if check := checks[target]; check != nil {
						if err := checkRecord(check, it); err != nil {
							ref := id
							if ref == "" {
								ref = fmt.Sprintf("#%d", i)
							}
							res.Corrupted[fmt.Sprintf("%s[%s]", k, ref)] = err.Error()
							continue
						}
					}
					seen[id] = true
					items = append(items, it)
					res.Imported[target]++
				}
				return items, nil
			})
			if err != nil {
				return fmt.Errorf("import %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func checkRecord(check RecordCheck, item map[string]json.RawMessage) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return check(raw)
}

// rawID reads the id field, which may be a string or a number in browser
// data. Numeric ids are rewritten as strings on import.
func rawID(item map[string]json.RawMessage) string {
	raw, ok := item["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
