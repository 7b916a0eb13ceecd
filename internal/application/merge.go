package application

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// MergeByID merges two JSON array bodies. Every item of acc is kept; an item
// of next is appended only if its id does not occur in acc. Bodies that are
// not JSON arrays, including null, count as empty. Items without an id share
// the empty id.
func MergeByID(acc, next []byte) []byte {
	accItems := jsonItems(acc)
	nextItems := jsonItems(next)

	seen := make(map[string]struct{}, len(accItems))
	for _, item := range accItems {
		seen[item.Get("id").Raw] = struct{}{}
	}

	merged := accItems
	for _, item := range nextItems {
		if _, dup := seen[item.Get("id").Raw]; dup {
			continue
		}
		merged = append(merged, item)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range merged {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(item.Raw)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// MergeAllByID folds MergeByID over bodies left to right.
func MergeAllByID(bodies [][]byte) []byte {
	merged := []byte("[]")
	for _, body := range bodies {
		merged = MergeByID(merged, body)
	}
	return merged
}

func jsonItems(body []byte) []gjson.Result {
	if !gjson.ValidBytes(body) {
		return nil
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil
	}
	return parsed.Array()
}
