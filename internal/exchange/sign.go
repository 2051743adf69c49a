package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// recvWindow tells Binance-style venues how long a signed request stays
// valid after its timestamp.
const recvWindow = 5000

// signQuery stamps and signs a query string for a Binance-compatible API.
// timestamp and recvWindow are added, the remaining parameters are encoded,
// and an HMAC-SHA256 signature over that exact string is appended last;
// the server verifies the signature against everything before it.
func signQuery(query url.Values, secret string, now time.Time) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("recvWindow", strconv.Itoa(recvWindow))
	query.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))

	encoded := query.Encode()

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encoded))

	return encoded + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}
