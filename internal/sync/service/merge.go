package service

import (
	"encoding/json"
	"reflect"
)

// mergeRecord is one element of a record-set collection, kept as raw JSON so
// fields unknown to this build survive a merge untouched.
type mergeRecord struct {
	raw json.RawMessage
	id  string
	alt string // identifying secondary field value, "" when the set has none
}

// decodeRecords splits a JSON array into merge records, extracting the id
// and the identifying secondary field named by matchField.
func decodeRecords(raw json.RawMessage, matchField string) ([]mergeRecord, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	records := make([]mergeRecord, len(entries))
	for i, entry := range entries {
		rec := mergeRecord{raw: entry}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err == nil {
			rec.id = stringField(fields, "id")
			if matchField != "" {
				rec.alt = stringField(fields, matchField)
			}
		}
		records[i] = rec
	}
	return records, nil
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// mergeCollections performs the element-wise last-writer-wins merge of two
// record-set sequences. Starting from the local sequence, every remote
// record replaces the local record matched by id (or, failing that, by the
// identifying secondary field) and is appended when unmatched. Records
// without any identifying field deduplicate by whole-record equality. The
// remote copy wins per record, never wholesale: a record that exists only
// locally survives the pass.
func mergeCollections(local, remote json.RawMessage, matchField string) (json.RawMessage, error) {
	localRecs, err := decodeRecords(local, matchField)
	if err != nil {
		// Malformed local data reads as an empty sequence.
		localRecs = nil
	}
	remoteRecs, err := decodeRecords(remote, matchField)
	if err != nil {
		return nil, err
	}

	merged := make([]mergeRecord, len(localRecs))
	copy(merged, localRecs)

	byID := make(map[string]int, len(merged))
	byAlt := make(map[string]int, len(merged))
	for i, rec := range merged {
		if rec.id != "" {
			byID[rec.id] = i
		}
		if rec.alt != "" {
			byAlt[rec.alt] = i
		}
	}

	// replace swaps the record at slot i and keeps both indices current, so
	// the displaced record's entries cannot match a later remote record.
	replace := func(i int, rec mergeRecord) {
		old := merged[i]
		if old.id != "" && byID[old.id] == i {
			delete(byID, old.id)
		}
		if old.alt != "" && byAlt[old.alt] == i {
			delete(byAlt, old.alt)
		}
		merged[i] = rec
		if rec.id != "" {
			byID[rec.id] = i
		}
		if rec.alt != "" {
			byAlt[rec.alt] = i
		}
	}

	for _, rec := range remoteRecs {
		switch {
		case rec.id != "":
			if i, ok := byID[rec.id]; ok {
				replace(i, rec)
				continue
			}
			if i, ok := byAlt[rec.alt]; ok && rec.alt != "" {
				replace(i, rec)
				continue
			}
		case rec.alt != "":
			if i, ok := byAlt[rec.alt]; ok {
				replace(i, rec)
				continue
			}
		default:
			// No identifying field: structural deduplication.
			if containsEqual(merged, rec.raw) {
				continue
			}
		}

		merged = append(merged, rec)
		i := len(merged) - 1
		if rec.id != "" {
			byID[rec.id] = i
		}
		if rec.alt != "" {
			byAlt[rec.alt] = i
		}
	}

	out := make([]json.RawMessage, len(merged))
	for i, rec := range merged {
		out[i] = rec.raw
	}
	return json.Marshal(out)
}

func containsEqual(records []mergeRecord, raw json.RawMessage) bool {
	for _, rec := range records {
		if jsonEqual(rec.raw, raw) {
			return true
		}
	}
	return false
}

// jsonEqual compares two JSON values structurally, ignoring formatting and
// object key order.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// isJSONArray reports whether raw is a JSON array (a sequence-typed
// record-set as opposed to the settings singleton).
func isJSONArray(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c == '['
		}
	}
	return false
}

// isValidJSON reports whether raw parses at all. Corrupt local entries are
// treated as absent and overwritten on the next successful write.
func isValidJSON(raw json.RawMessage) bool {
	return json.Valid(raw)
}
