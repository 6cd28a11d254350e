package channel

import (
	"crypto/subtle"
	"net/http"
)

// Query parameters of the webhook subscription handshake.
const (
	VerifyModeParam      = "hub.mode"
	VerifyTokenParam     = "hub.verify_token"
	VerifyChallengeParam = "hub.challenge"
	verifyModeSubscribe  = "subscribe"
)

// VerifySubscription answers a webhook registration request. The challenge is echoed with 200
// only when the mode is "subscribe" and the token equals secret; everything else is 403.
// An empty secret rejects every request.
func VerifySubscription(r *http.Request, secret string) *Response {
	q := r.URL.Query()
	if secret == "" || q.Get(VerifyModeParam) != verifyModeSubscribe {
		return Text(http.StatusForbidden, http.StatusText(http.StatusForbidden))
	}
	token := q.Get(VerifyTokenParam)
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return Text(http.StatusForbidden, http.StatusText(http.StatusForbidden))
	}
	return Text(http.StatusOK, q.Get(VerifyChallengeParam))
}
