package transport

import (
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Endpoint
		wantErr bool
	}{
		{"HostPort", "example.com:8443", Endpoint{Host: "example.com", Port: 8443}, false},
		{"IPv4", "10.0.0.1:80", Endpoint{Host: "10.0.0.1", Port: 80}, false},
		{"IPv6", "[::1]:9000", Endpoint{Host: "::1", Port: 9000}, false},
		{"MissingPort", "example.com", Endpoint{}, true},
		{"BadPort", "example.com:notaport", Endpoint{}, true},
		{"PortOutOfRange", "example.com:70000", Endpoint{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEndpoint(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEndpoint(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEndpointString(t *testing.T) {
	ep := NewEndpoint("localhost", 8443)
	if ep.String() != "localhost:8443" {
		t.Errorf("String() = %q, want %q", ep.String(), "localhost:8443")
	}

	v6 := NewEndpoint("::1", 9000)
	if v6.String() != "[::1]:9000" {
		t.Errorf("String() = %q, want %q", v6.String(), "[::1]:9000")
	}
}

func TestEndpointIsZero(t *testing.T) {
	if !(Endpoint{}).IsZero() {
		t.Error("zero endpoint should report IsZero")
	}
	if NewEndpoint("h", 1).IsZero() {
		t.Error("non-zero endpoint should not report IsZero")
	}
}
