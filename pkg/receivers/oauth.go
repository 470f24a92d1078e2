package receivers

import (
	"errors"
	"strings"

	"syncribullet/pkg/interfaces"
)

// HostedSuffix is appended to the public host of hosted deployments to
// reach the addon server.
const HostedSuffix = ".baby-beamup.club"

var ErrNoOAuth = errors.New("receiver does not support oauth login")

// RedirectURI computes the OAuth redirect URI for a receiver from the host
// the configuration page is served on.
func RedirectURI(scheme, host string, r interfaces.Receiver) string {
	if scheme == "" {
		scheme = "https"
	}
	suffix := HostedSuffix
	if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") {
		suffix = ""
	}
	return scheme + "://" + host + suffix + "/oauth/" + string(r.ID()) + "/"
}

// AuthorizeURL returns the provider login URL for r.
func AuthorizeURL(r interfaces.Receiver, clientID, scheme, host string) (string, error) {
	oauth, ok := r.(interfaces.OAuthReceiver)
	if !ok {
		return "", ErrNoOAuth
	}
	if strings.TrimSpace(clientID) == "" {
		return "", errors.New("client id is required")
	}
	return oauth.AuthorizeURL(clientID, RedirectURI(scheme, host, r)), nil
}
