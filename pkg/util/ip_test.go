package util

import (
	"testing"
)

func TestParseIPWithMask(t *testing.T) {
	tests := []struct {
		name     string
		cidr     string
		wantIP   string
		wantMask int
		wantErr  bool
	}{
		{
			name:     "valid /24",
			cidr:     "192.168.1.100/24",
			wantIP:   "192.168.1.100",
			wantMask: 24,
			wantErr:  false,
		},
		{
			name:     "valid /30",
			cidr:     "10.1.1.1/30",
			wantIP:   "10.1.1.1",
			wantMask: 30,
			wantErr:  false,
		},
		{
			name:     "valid /31",
			cidr:     "10.1.1.0/31",
			wantIP:   "10.1.1.0",
			wantMask: 31,
			wantErr:  false,
		},
		{
			name:     "valid /32",
			cidr:     "10.0.0.1/32",
			wantIP:   "10.0.0.1",
			wantMask: 32,
			wantErr:  false,
		},
		{
			name:    "invalid - no mask",
			cidr:    "192.168.1.100",
			wantErr: true,
		},
		{
			name:    "invalid - bad IP",
			cidr:    "999.999.999.999/24",
			wantErr: true,
		},
		{
			name:    "invalid - empty",
			cidr:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, mask, err := ParseIPWithMask(tt.cidr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseIPWithMask() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if ip.String() != tt.wantIP {
					t.Errorf("ParseIPWithMask() IP = %v, want %v", ip.String(), tt.wantIP)
				}
				if mask != tt.wantMask {
					t.Errorf("ParseIPWithMask() mask = %v, want %v", mask, tt.wantMask)
				}
			}
		})
	}
}

func TestComputeNeighborIP(t *testing.T) {
	tests := []struct {
		name    string
		localIP string
		maskLen int
		want    string
	}{
		// /31 tests (RFC 3021)
		{
			name:    "/31 first IP",
			localIP: "10.1.1.0",
			maskLen: 31,
			want:    "10.1.1.1",
		},
		{
			name:    "/31 second IP",
			localIP: "10.1.1.1",
			maskLen: 31,
			want:    "10.1.1.0",
		},
		// /30 tests
		{
			name:    "/30 first host",
			localIP: "10.1.1.1",
			maskLen: 30,
			want:    "10.1.1.2",
		},
		{
			name:    "/30 second host",
			localIP: "10.1.1.2",
			maskLen: 30,
			want:    "10.1.1.1",
		},
		{
			name:    "/30 network address",
			localIP: "10.1.1.0",
			maskLen: 30,
			want:    "", // Network address has no neighbor
		},
		{
			name:    "/30 broadcast address",
			localIP: "10.1.1.3",
			maskLen: 30,
			want:    "", // Broadcast address has no neighbor
		},
		// Non point-to-point
		{
			name:    "/24 not point-to-point",
			localIP: "10.1.1.1",
			maskLen: 24,
			want:    "",
		},
		{
			name:    "/29 not point-to-point",
			localIP: "10.1.1.1",
			maskLen: 29,
			want:    "",
		},
		// Invalid input
		{
			name:    "invalid IP",
			localIP: "invalid",
			maskLen: 30,
			want:    "",
		},
		{
			name:    "empty IP",
			localIP: "",
			maskLen: 30,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNeighborIP(tt.localIP, tt.maskLen)
			if got != tt.want {
				t.Errorf("ComputeNeighborIP(%q, %d) = %q, want %q", tt.localIP, tt.maskLen, got, tt.want)
			}
		})
	}
}

func TestComputeNeighborIP_IPv6(t *testing.T) {
	got := ComputeNeighborIP("::1", 31)
	if got != "" {
		t.Errorf("ComputeNeighborIP(IPv6) = %q, want empty", got)
	}
}

func TestComputeNetworkAddr(t *testing.T) {
	tests := []struct {
		name    string
		ipStr   string
		maskLen int
		want    string
	}{
		{
			name:    "/24 network",
			ipStr:   "192.168.1.100",
			maskLen: 24,
			want:    "192.168.1.0",
		},
		{
			name:    "/30 network",
			ipStr:   "10.1.1.2",
			maskLen: 30,
			want:    "10.1.1.0",
		},
		{
			name:    "/16 network",
			ipStr:   "172.16.50.100",
			maskLen: 16,
			want:    "172.16.0.0",
		},
		{
			name:    "/32 host",
			ipStr:   "10.0.0.1",
			maskLen: 32,
			want:    "10.0.0.1",
		},
		{
			name:    "invalid IP",
			ipStr:   "invalid",
			maskLen: 24,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNetworkAddr(tt.ipStr, tt.maskLen)
			if got != tt.want {
				t.Errorf("ComputeNetworkAddr(%q, %d) = %q, want %q", tt.ipStr, tt.maskLen, got, tt.want)
			}
		})
	}
}

func TestComputeNetworkAddr_IPv6(t *testing.T) {
	got := ComputeNetworkAddr("2001:db8::1", 64)
	if got != "" {
		t.Errorf("ComputeNetworkAddr(IPv6) = %q, want empty", got)
	}
}

func TestIsValidIPv4(t *testing.T) {
	tests := []struct {
		name  string
		ipStr string
		want  bool
	}{
		{"valid IP", "192.168.1.1", true},
		{"valid loopback", "127.0.0.1", true},
		{"valid zero", "0.0.0.0", true},
		{"valid broadcast", "255.255.255.255", true},
		{"invalid - out of range", "256.1.1.1", false},
		{"invalid - text", "invalid", false},
		{"invalid - empty", "", false},
		{"invalid - IPv6", "::1", false},
		{"invalid - partial", "192.168.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidIPv4(tt.ipStr)
			if got != tt.want {
				t.Errorf("IsValidIPv4(%q) = %v, want %v", tt.ipStr, got, tt.want)
			}
		})
	}
}

func TestValidateVLANID(t *testing.T) {
	tests := []struct {
		name    string
		vlanID  int
		wantErr bool
	}{
		{"valid min", 1, false},
		{"valid max", 4094, false},
		{"valid middle", 100, false},
		{"invalid zero", 0, true},
		{"invalid negative", -1, true},
		{"invalid too high", 4095, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVLANID(tt.vlanID)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVLANID(%d) error = %v, wantErr %v", tt.vlanID, err, tt.wantErr)
			}
		})
	}
}
