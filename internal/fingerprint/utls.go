package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
)

// Profiles lists every accepted profile name.
var Profiles = []Profile{ProfileGo, ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom}

// ParseProfile resolves a configured profile name, case-insensitively.
// The empty string selects ProfileGo.
func ParseProfile(s string) (Profile, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ProfileGo, nil
	}
	for _, p := range Profiles {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("fingerprint: unknown profile %q", s)
}

// Options tune the transport.
type Options struct {
	// InsecureSkipVerify disables certificate checks; only for tests against
	// self-signed servers.
	InsecureSkipVerify bool
}

// Transport returns an http.RoundTripper presenting the TLS ClientHello of
// profile p to relay endpoints. ProfileGo is a plain clone of the default
// transport. Browser profiles restrict ALPN to http/1.1, since the returned
// transport speaks HTTP/1.1 over the custom dialer.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// relays are reached directly, never through an environment proxy
	transport.Proxy = nil

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	var helloID utls.ClientHelloID
	switch p {
	case ProfileChrome:
		helloID = utls.HelloChrome_Auto
	case ProfileFirefox:
		helloID = utls.HelloFirefox_Auto
	case ProfileSafari:
		helloID = utls.HelloIOS_Auto
	case ProfileRandom:
		helloID = utls.HelloRandomizedNoALPN
	default:
		return nil, fmt.Errorf("fingerprint: unknown profile %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn, err := newClient(tcpConn, host, helloID, opts)
		if err != nil {
			_ = tcpConn.Close()
			return nil, err
		}
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("fingerprint: utls handshake failed: %w", err)
		}

		return uConn, nil
	}

	return transport, nil
}

func newClient(conn net.Conn, host string, id utls.ClientHelloID, opts Options) (*utls.UConn, error) {
	cfg := &utls.Config{ServerName: host, InsecureSkipVerify: opts.InsecureSkipVerify}

	if id == utls.HelloRandomizedNoALPN {
		return utls.UClient(conn, cfg, id), nil
	}

	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: build spec: %w", err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uConn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uConn.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("fingerprint: apply preset: %w", err)
	}
	return uConn, nil
}
