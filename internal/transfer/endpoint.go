// Package transfer places artifacts at site destinations over SFTP, S3 or a
// mounted directory, chosen by the scheme of the catalog address.
package transfer

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	SchemeSFTP = "sftp"
	SchemeS3   = "s3"
	SchemeFile = "file"

	defaultSFTPPort = "22"
)

// Endpoint is a parsed catalog address.
type Endpoint struct {
	Scheme string

	// SFTP
	Host string // host:port

	// S3
	Bucket  string
	Prefix  string
	Region  string
	BaseURL string

	// file
	Dir string
}

// ParseEndpoint understands sftp://host[:port], a bare host[:port],
// s3://bucket[/prefix]?region=..&endpoint=.. and file:///dir.
func ParseEndpoint(addr string) (Endpoint, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Endpoint{}, fmt.Errorf("empty address")
	}
	if !strings.Contains(addr, "://") {
		return Endpoint{Scheme: SchemeSFTP, Host: withPort(addr)}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse address %q: %w", addr, err)
	}

	switch strings.ToLower(u.Scheme) {
	case SchemeSFTP:
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("address %q has no host", addr)
		}
		return Endpoint{Scheme: SchemeSFTP, Host: withPort(u.Host)}, nil
	case SchemeS3:
		if u.Host == "" {
			return Endpoint{}, fmt.Errorf("address %q has no bucket", addr)
		}
		q := u.Query()
		return Endpoint{
			Scheme:  SchemeS3,
			Bucket:  u.Host,
			Prefix:  strings.Trim(u.Path, "/"),
			Region:  q.Get("region"),
			BaseURL: q.Get("endpoint"),
		}, nil
	case SchemeFile:
		if u.Path == "" {
			return Endpoint{}, fmt.Errorf("address %q has no directory", addr)
		}
		return Endpoint{Scheme: SchemeFile, Dir: u.Path}, nil
	default:
		return Endpoint{}, fmt.Errorf("unsupported scheme %q in address %q", u.Scheme, addr)
	}
}

func withPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), defaultSFTPPort)
}
