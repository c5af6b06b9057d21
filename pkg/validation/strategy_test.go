package validation

import "testing"

func TestValidateStrategyName(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantErr  bool
	}{
		{"simple", "momentum_breakout", false},
		{"with hyphen", "mean-reversion-v2", false},
		{"single char", "a", false},
		{"empty", "", true},
		{"path traversal", "../../etc/passwd", true},
		{"absolute path", "/etc/passwd", true},
		{"contains slash", "foo/bar", true},
		{"starts with underscore", "_foo", true},
		{"starts with hyphen", "-foo", true},
		{"spaces", "foo bar", true},
		{"too long", func() string {
			s := make([]byte, 65)
			for i := range s {
				s[i] = 'a'
			}
			return string(s)
		}(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStrategyName(tt.strategy)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStrategyName(%q) error = %v, wantErr %v", tt.strategy, err, tt.wantErr)
			}
		})
	}
}
