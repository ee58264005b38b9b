package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		addr string
		want Endpoint
	}{
		{"sftp.site10.example.org", Endpoint{Scheme: SchemeSFTP, Host: "sftp.site10.example.org:22"}},
		{"10.1.2.3:2222", Endpoint{Scheme: SchemeSFTP, Host: "10.1.2.3:2222"}},
		{"sftp://files.example.org", Endpoint{Scheme: SchemeSFTP, Host: "files.example.org:22"}},
		{"sftp://[::1]:2022", Endpoint{Scheme: SchemeSFTP, Host: "[::1]:2022"}},
		{"s3://gsmi-drop/site10?region=eu-west-1", Endpoint{Scheme: SchemeS3, Bucket: "gsmi-drop", Prefix: "site10", Region: "eu-west-1"}},
		{"s3://bucket?endpoint=http://localhost:9000", Endpoint{Scheme: SchemeS3, Bucket: "bucket", BaseURL: "http://localhost:9000"}},
		{"file:///mnt/share", Endpoint{Scheme: SchemeFile, Dir: "/mnt/share"}},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := ParseEndpoint(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpointErrors(t *testing.T) {
	for _, addr := range []string{"", "ftp://host", "s3:///key", "file://"} {
		_, err := ParseEndpoint(addr)
		assert.Error(t, err, "address %q", addr)
	}
}
