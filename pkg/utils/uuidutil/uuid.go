package uuidutil

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

var escaper = strings.NewReplacer("9", "99", "-", "90", "_", "91")

// ShortUUID refer to https://stackoverflow.com/questions/37934162/output-uuid-in-go-as-a-short-string
func ShortUUID() string {
	id := uuid.New()
	return escaper.Replace(base64.RawURLEncoding.EncodeToString(id[:]))
}

// NameUUID is stable for the same name, it is used to derive ids of
// configured devices so they survive restarts.
func NameUUID(name string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
	return hex.EncodeToString(id[:])
}
