package user

import "testing"

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		maxLen  int
		wantErr bool
	}{
		{name: "valid", input: "alice", maxLen: 50, wantErr: false},
		{name: "empty", input: "", maxLen: 50, wantErr: true},
		{name: "too long", input: string(make([]rune, 51)), maxLen: 50, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateName(tt.input, tt.maxLen)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	if err := ValidatePassword("", 100); err != ErrPasswordLength {
		t.Errorf("ValidatePassword(\"\") error = %v, want ErrPasswordLength", err)
	}
	if err := ValidatePassword("secret", 100); err != nil {
		t.Errorf("ValidatePassword(\"secret\") error = %v, want nil", err)
	}
}
