package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Staby-Guy/pidgeon/internal/utils"
)

const stateNonceBytes = 16

var errInvalidState = errors.New("invalid OAuth state")

// oauthState is the metadata carried through the provider round trip.
type oauthState struct {
	Flow string `json:"flow"`
}

// newOAuthState returns "<nonce>.<base64 json>". The whole value is also
// stored in a cookie and compared on callback.
func newOAuthState(s oauthState) (string, error) {
	nonce, err := utils.GenerateSecureToken(stateNonceBytes)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return nonce + "." + base64.RawURLEncoding.EncodeToString(payload), nil
}

func parseOAuthState(raw string) (oauthState, error) {
	nonce, payload, found := strings.Cut(raw, ".")
	if !found || nonce == "" || strings.Contains(payload, ".") {
		return oauthState{}, errInvalidState
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return oauthState{}, errInvalidState
	}
	var s oauthState
	if err := json.Unmarshal(data, &s); err != nil {
		return oauthState{}, errInvalidState
	}
	return s, nil
}
