package remotedb

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEZConnect(t *testing.T) {
	tests := []struct {
		name        string
		tns         string
		wantHost    string
		wantPort    int
		wantService string
	}{
		{
			name:        "host port and service",
			tns:         "db.example.com:1522/ORCLPDB1",
			wantHost:    "db.example.com",
			wantPort:    1522,
			wantService: "ORCLPDB1",
		},
		{
			name:        "host and service, default port",
			tns:         "db.example.com/ORCL",
			wantHost:    "db.example.com",
			wantPort:    1521,
			wantService: "ORCL",
		},
		{
			name:        "bare host",
			tns:         "db.example.com",
			wantHost:    "db.example.com",
			wantPort:    1521,
			wantService: "",
		},
		{
			name:        "host and port without service",
			tns:         "10.0.0.5:1525",
			wantHost:    "10.0.0.5",
			wantPort:    1525,
			wantService: "",
		},
		{
			name:        "non-numeric port suffix stays in host",
			tns:         "db:abc/ORCL",
			wantHost:    "db:abc",
			wantPort:    1521,
			wantService: "ORCL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, service := parseEZConnect(tt.tns)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantService, service)
		})
	}
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "bytes to string", in: []byte("CLOB content"), want: "CLOB content"},
		{name: "int32 widened", in: int32(7), want: int64(7)},
		{name: "float32 widened", in: float32(1.5), want: float64(1.5)},
		{name: "time passes through", in: ts, want: ts},
		{name: "nil passes through", in: nil, want: nil},
		{name: "string passes through", in: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.in))
		})
	}
}

func TestConnectErrorUnwrap(t *testing.T) {
	inner := errors.New("ORA-12170: TNS:Connect timeout occurred")
	err := &ConnectError{Err: inner}

	assert.Equal(t, inner.Error(), err.Error())
	assert.ErrorIs(t, err, inner)

	var ce *ConnectError
	assert.True(t, errors.As(error(err), &ce))
}
