package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
)

// Fingerprint returns prefix followed by the hex SHA-256 of v's JSON encoding.
// encoding/json sorts map keys, so equal values always produce equal keys.
// Values that cannot be encoded (NaN, channels) return an error.
func Fingerprint(prefix string, v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:]), nil
}

// GoalPrefix is the key prefix shared by every result for one goal. The ID is
// query-escaped so a ':' inside it cannot make one goal's prefix a prefix of
// another's.
func GoalPrefix(goalID string) string {
	return "goal:" + url.QueryEscape(goalID) + ":"
}
