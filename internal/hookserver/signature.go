package hookserver

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// validateHMACSHA1 checks an "X-Hub-Signature"-style header of the form
// "sha1=<hex>" against an HMAC-SHA1 of body keyed by secret, grounded on the
// check the teacher's github.ValidatePayload performs ahead of demuxEvent.
func validateHMACSHA1(body []byte, header string, secret []byte) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	got := mac.Sum(nil)

	return hmac.Equal(want, got)
}
