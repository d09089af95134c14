package accurate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names carried by every signed request.
const (
	HeaderTimestamp = "X-Api-Timestamp"
	HeaderSignature = "X-Api-Signature"
)

// Sign returns the hex-encoded HMAC-SHA256 of the canonical request string
// "METHOD\npath?query\ntimestamp" keyed by secret. It has no side effects and
// is safe for concurrent use.
func Sign(method, path string, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalString(method, path, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

func canonicalString(method, path string, timestamp int64) string {
	return strings.ToUpper(method) + "\n" + path + "\n" + strconv.FormatInt(timestamp, 10)
}

// signRequest stamps req with a fresh timestamp and signature. It must run on
// every attempt because both the clock and the query can differ between tries.
func signRequest(req *http.Request, secret string, now time.Time) {
	ts := now.Unix()
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, Sign(req.Method, req.URL.RequestURI(), ts, secret))
}
