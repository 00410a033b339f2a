package validation

import "testing"

func TestIsValidOrderNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid example 2",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidOrderNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidOrderNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestCheckDigit(t *testing.T) {
	tests := []struct {
		payload string
		want    byte
		ok      bool
	}{
		{payload: "7992739871", want: '3', ok: true},
		{payload: "453957876362148", want: '6', ok: true},
		{payload: "202610181230451234", ok: true},
		{payload: "12a4", ok: false},
		{payload: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, ok := CheckDigit(tt.payload)
			if ok != tt.ok {
				t.Fatalf("CheckDigit(%q) ok = %v, want %v", tt.payload, ok, tt.ok)
			}
			if !ok {
				return
			}
			if tt.want != 0 && got != tt.want {
				t.Fatalf("CheckDigit(%q) = %c, want %c", tt.payload, got, tt.want)
			}
			if !IsValidOrderNumber(tt.payload + string(got)) {
				t.Fatalf("payload %q with check digit %c is not a valid number", tt.payload, got)
			}
		})
	}
}
