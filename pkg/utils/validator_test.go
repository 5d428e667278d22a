package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"ana@example.com", false},
		{"first.last+tag@corp.co.uk", false},
		{"no-at-sign", true},
		{"a@b", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if err := ValidateEmail(tt.email); (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	for _, ok := range []string{"USD", "EUR", "JPY"} {
		if err := ValidateCurrency(ok); err != nil {
			t.Errorf("ValidateCurrency(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"usd", "US", "DOLLAR", ""} {
		if err := ValidateCurrency(bad); err == nil {
			t.Errorf("ValidateCurrency(%q) should fail", bad)
		}
	}
}

func TestNormalizeAndSanitize(t *testing.T) {
	if got := NormalizeEmail("  Ana@Example.COM "); got != "ana@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
	if got := SanitizeString("Star\x00bucks\n"); got != "Starbucks" {
		t.Errorf("SanitizeString() = %q", got)
	}
	if err := ValidatePassword("12345"); err == nil {
		t.Error("ValidatePassword should reject short passwords")
	}
}
