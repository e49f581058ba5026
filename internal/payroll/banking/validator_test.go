package banking

import "testing"

func TestValidator_IsValidIBAN(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		iban string
		want bool
	}{
		{"GB82WEST12345698765432", true},
		{"DE89370400440532013000", true},
		{"NL91ABNA0417164300", true},
		{"GB82WEST12345698765433", false},
		{"GB82 WEST 1234 5698 7654 32", false},
		{"gb82west12345698765432", false},
		{"GB82", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := v.IsValidIBAN(tt.iban); got != tt.want {
			t.Errorf("IsValidIBAN(%q) = %v, want %v", tt.iban, got, tt.want)
		}
	}
}

func TestValidator_IsValidBIC(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		bic  string
		want bool
	}{
		{"NWBKGB2L", true},
		{"DEUTDEFF500", true},
		{"NWBKGB2", false},
		{"NWBK1B2L", false},
		{"DEUTDEFF5000", false},
	}
	for _, tt := range tests {
		if got := v.IsValidBIC(tt.bic); got != tt.want {
			t.Errorf("IsValidBIC(%q) = %v, want %v", tt.bic, got, tt.want)
		}
	}
}
