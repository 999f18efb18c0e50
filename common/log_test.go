package common

import (
	"testing"

	"github.com/apex/log"
)

func TestSetupLogging(t *testing.T) {
	cases := []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "cli", false},
		{"DEBUG", "json", false},
		{"warn", "text", false},
		{"warn", "", false},
		{"loud", "cli", true},
		{"info", "xml", true},
	}
	for _, tc := range cases {
		err := SetupLogging(tc.level, tc.format)
		if (err != nil) != tc.wantErr {
			t.Errorf("SetupLogging(%q, %q): expected error %v, got %v", tc.level, tc.format, tc.wantErr, err)
		}
	}
	if log.Log.(*log.Logger).Level != log.WarnLevel {
		t.Errorf("Expected the last valid level to stick")
	}
}
