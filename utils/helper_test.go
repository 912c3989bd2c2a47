package utils_test

import (
	"testing"
	"unicode/utf8"

	"bitbucket.org/mmdatafocus/mes_backend/utils"
)

func TestSanitizeAlphanumeric(t *testing.T) {
	cases := []struct {
		name   string
		value  string
		maxLen int
		want   string
	}{
		{"strips separators", "LOT/A-17", 0, "LOTA17"},
		{"truncates to max length", "ABCDEFGH", 5, "ABCDE"},
		{"zero max keeps everything", "ABCDEFGH", 0, "ABCDEFGH"},
		{"whitespace and symbols removed", " B# 12 !", 0, "B12"},
		{"multibyte letters truncate on runes", "ÄÖÜSS", 3, "ÄÖÜ"},
		{"only symbols yields empty", "--/ /--", 10, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := utils.SanitizeAlphanumeric(tc.value, tc.maxLen)
			if got != tc.want {
				t.Fatalf("SanitizeAlphanumeric(%q, %d): want %q, got %q", tc.value, tc.maxLen, tc.want, got)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestActorOrSystem(t *testing.T) {
	if got := utils.ActorOrSystem("  "); got != utils.SystemActor {
		t.Fatalf("blank actor should fall back to %s, got %s", utils.SystemActor, got)
	}
	if got := utils.ActorOrSystem(" jdoe "); got != "jdoe" {
		t.Fatalf("actor should be trimmed, got %q", got)
	}
}
