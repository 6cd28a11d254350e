// Package identity maps provider-native author identifiers to stable internal user ids.
package identity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes every derived id; changing it re-keys all stored users.
var namespace = uuid.MustParse("6f1d9c0e-5b8a-4c41-9d0e-7a3b2f6c8e15")

// UserID derives the internal user id of (channelID, authorID). The result is a UUIDv5 over a
// length-prefixed encoding of both parts, so ("ab","c") and ("a","bc") never share an id.
// Both parts are used verbatim; no normalization is applied.
func UserID(channelID, authorID string) string {
	var b strings.Builder
	b.Grow(len(channelID) + len(authorID) + 8)
	b.WriteString(strconv.Itoa(len(channelID)))
	b.WriteByte(':')
	b.WriteString(channelID)
	b.WriteString(authorID)
	return uuid.NewSHA1(namespace, []byte(b.String())).String()
}
