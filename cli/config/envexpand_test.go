package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("ZP_TEST_AUTHOR", "Lovelace, Ada")
	t.Setenv("ZP_TEST_EMPTY", "")

	tests := []struct {
		name, in, want string
	}{
		{"set", "name: ${ZP_TEST_AUTHOR}", "name: Lovelace, Ada"},
		{"unset", "name: ${ZP_TEST_UNSET_12345}", "name: "},
		{"default when unset", "name: ${ZP_TEST_UNSET_12345:-Anonymous}", "name: Anonymous"},
		{"default when empty", "name: ${ZP_TEST_EMPTY:-Anonymous}", "name: Anonymous"},
		{"value wins over default", "name: ${ZP_TEST_AUTHOR:-Anonymous}", "name: Lovelace, Ada"},
		{"several", "${ZP_TEST_AUTHOR} / ${ZP_TEST_UNSET_12345:-x}", "Lovelace, Ada / x"},
		{"bare dollar untouched", "cost: $5 and $VAR", "cost: $5 and $VAR"},
		{"invalid name untouched", "${1BAD}", "${1BAD}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
