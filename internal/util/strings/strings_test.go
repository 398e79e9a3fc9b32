package strings

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in    int64
		long  string
		short string
	}{
		{0, "0B", "0"},
		{512, "512B", "512"},
		{1023, "1023B", "1023"},
		{1024, "1.0KB", "1.0K"},
		{1536, "1.5KB", "1.5K"},
		{5 * 1024 * 1024, "5.0MB", "5.0M"},
		{3 * 1024 * 1024 * 1024, "3.0GB", "3.0G"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0TB", "2.0T"},
		{-5, "0B", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.long, func(t *testing.T) {
			if got := FormatBytes(tt.in); got != tt.long {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.long)
			}
			if got := FormatSize(tt.in); got != tt.short {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.short)
			}
		})
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1536); got != "1.5KB/s" {
		t.Errorf("FormatSpeed(1536) = %q", got)
	}
	if got := FormatSpeed(-1); got != "0B/s" {
		t.Errorf("FormatSpeed(-1) = %q", got)
	}
}

func TestPluralize(t *testing.T) {
	if Pluralize("item", 1) != "item" {
		t.Error("singular")
	}
	if Pluralize("item", 0) != "items" || Pluralize("item", 3) != "items" {
		t.Error("plural")
	}
}
