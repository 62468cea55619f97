package config

import "testing"

func TestPortConstantsInExpectedRanges(t *testing.T) {
	tests := []struct {
		name string
		port int
		low  int
		high int
	}{
		{"HealthServerPort", HealthServerPort, 8080, 8099},
		{"VaultPort", VaultPort, 8200, 8299},
		{"MetricsPort", MetricsPort, 9100, 9199},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port < tt.low || tt.port > tt.high {
				t.Errorf("%s = %d, want in range [%d, %d]", tt.name, tt.port, tt.low, tt.high)
			}
		})
	}
}

func TestInfrastructurePortDefaults(t *testing.T) {
	if PostgresPort != 5432 {
		t.Errorf("PostgresPort = %d, want 5432", PostgresPort)
	}
	if RedisPort != 6379 {
		t.Errorf("RedisPort = %d, want 6379", RedisPort)
	}
	if NATSPort != 4222 {
		t.Errorf("NATSPort = %d, want 4222", NATSPort)
	}
}
