package remote

import (
	"fmt"
	"regexp"
	"strings"
)

// HostKind distinguishes the public hosting service from enterprise or
// custom-domain installations.
type HostKind string

const (
	HostGitHub     HostKind = "github"
	HostEnterprise HostKind = "enterprise"
)

// Transport is the URL style a remote was registered with.
type Transport string

const (
	TransportHTTPS Transport = "https"
	TransportSSH   Transport = "ssh"
)

// PublicHost is the host name of the public hosting service.
const PublicHost = "github.com"

var (
	httpsURL = regexp.MustCompile(`^https?://([^/@]+@)?([^/]+)/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	sshURL   = regexp.MustCompile(`^(?:ssh://)?[^@/:]+@([^:/]+)(?::\d+/|[:/])([^/]+)/([^/]+?)(?:\.git)?/?$`)
)

// Coordinates identify a repository on a hosting service.
type Coordinates struct {
	HostKind  HostKind
	Transport Transport
	Host      string
	Owner     string
	Repo      string
}

// ParseURL classifies a raw remote URL. Accepted forms:
//
//	https://host/owner/repo(.git)
//	git@host:owner/repo(.git)
//	ssh://git@host/owner/repo(.git)
//
// The host is taken from the URL; any host other than the public service is
// classified as enterprise.
func ParseURL(raw string) (Coordinates, error) {
	raw = strings.TrimSpace(raw)

	if m := httpsURL.FindStringSubmatch(raw); m != nil {
		return coordinates(TransportHTTPS, m[2], m[3], m[4]), nil
	}
	if m := sshURL.FindStringSubmatch(raw); m != nil {
		return coordinates(TransportSSH, m[1], m[2], m[3]), nil
	}
	return Coordinates{}, fmt.Errorf("invalid remote URL %q: expected https://host/owner/repo or git@host:owner/repo", raw)
}

func coordinates(t Transport, host, owner, repo string) Coordinates {
	host = strings.ToLower(host)
	kind := HostEnterprise
	if host == PublicHost || host == "www."+PublicHost {
		kind = HostGitHub
		host = PublicHost
	}
	return Coordinates{HostKind: kind, Transport: t, Host: host, Owner: owner, Repo: repo}
}
