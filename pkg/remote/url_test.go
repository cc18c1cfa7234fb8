package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Coordinates
	}{
		{
			name: "public https",
			raw:  "https://github.com/u/repo",
			want: Coordinates{HostGitHub, TransportHTTPS, "github.com", "u", "repo"},
		},
		{
			name: "public https with .git and slash",
			raw:  "https://github.com/u/repo.git/",
			want: Coordinates{HostGitHub, TransportHTTPS, "github.com", "u", "repo"},
		},
		{
			name: "public ssh",
			raw:  "git@github.com:u/repo.git",
			want: Coordinates{HostGitHub, TransportSSH, "github.com", "u", "repo"},
		},
		{
			name: "ssh scheme",
			raw:  "ssh://git@github.com/u/repo.git",
			want: Coordinates{HostGitHub, TransportSSH, "github.com", "u", "repo"},
		},
		{
			name: "enterprise https",
			raw:  "https://git.example.com/team/flows",
			want: Coordinates{HostEnterprise, TransportHTTPS, "git.example.com", "team", "flows"},
		},
		{
			name: "enterprise https with port",
			raw:  "https://git.example.com:8443/team/flows.git",
			want: Coordinates{HostEnterprise, TransportHTTPS, "git.example.com:8443", "team", "flows"},
		},
		{
			name: "enterprise ssh",
			raw:  "git@git.example.com:team/flows.git",
			want: Coordinates{HostEnterprise, TransportSSH, "git.example.com", "team", "flows"},
		},
		{
			name: "enterprise ssh with other user",
			raw:  "deploy@git.example.com:team/flows",
			want: Coordinates{HostEnterprise, TransportSSH, "git.example.com", "team", "flows"},
		},
		{
			name: "ssh scheme with port",
			raw:  "ssh://git@git.example.com:2222/team/flows.git",
			want: Coordinates{HostEnterprise, TransportSSH, "git.example.com", "team", "flows"},
		},
		{
			name: "bare host name",
			raw:  "https://host/u/repo",
			want: Coordinates{HostEnterprise, TransportHTTPS, "host", "u", "repo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseURLRejects(t *testing.T) {
	tests := []string{
		"",
		"github.com/u/repo",
		"https://github.com/u",
		"https://github.com/u/repo/tree/main",
		"ftp://github.com/u/repo",
		"git@github.com:repo.git",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseURL(raw)
			assert.Error(t, err)
		})
	}
}
