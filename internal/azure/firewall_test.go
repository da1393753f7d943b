package azure

import "testing"

func TestClientIPFromError(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "standard firewall message",
			message: "Cannot open server 'srv' requested by the login. Client with IP address '203.0.113.42' is not allowed to access the server.",
			want:    "203.0.113.42",
		},
		{
			name:    "address without quotes",
			message: "Client 198.51.100.7 blocked by firewall",
			want:    "198.51.100.7",
		},
		{
			name:    "no address present",
			message: "Cannot open server requested by the login.",
			want:    FallbackClientIP,
		},
		{
			name:    "empty message",
			message: "",
			want:    FallbackClientIP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIPFromError(tt.message); got != tt.want {
				t.Errorf("ClientIPFromError(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}
