package config

import (
	"slices"
	"testing"
)

// TestGetSiteConfig tests merging of defaults and site entries.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Cookie:         "default=1",
			Headers:        map[string]string{"Accept-Language": "en", "X-Trace": "off"},
			IgnorePatterns: []string{"*.mp4"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie:         "session=abc",
				Headers:        map[string]string{"X-Trace": "on"},
				SameHostOnly:   true,
				FollowPatterns: []string{"/docs/*"},
			},
			"Mixed.Example.ORG": {
				IgnorePatterns: []string{"/private/*"},
			},
		},
	}

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.net")
		if got.Cookie != "default=1" || got.SameHostOnly || !slices.Equal(got.IgnorePatterns, []string{"*.mp4"}) {
			t.Errorf("unexpected config %+v", got)
		}
	})

	t.Run("site entry overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("example.com")
		if got.Cookie != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Cookie)
		}
		if got.Headers["X-Trace"] != "on" || got.Headers["Accept-Language"] != "en" {
			t.Errorf("expected merged headers, got %v", got.Headers)
		}
		if !got.SameHostOnly {
			t.Error("expected SameHostOnly from site entry")
		}
		if !slices.Equal(got.FollowPatterns, []string{"/docs/*"}) || !slices.Equal(got.IgnorePatterns, []string{"*.mp4"}) {
			t.Errorf("unexpected patterns %+v", got)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetSiteConfig("example.com")
		if cf.Defaults.Headers["X-Trace"] != "off" {
			t.Errorf("defaults were modified: %v", cf.Defaults.Headers)
		}
	})

	t.Run("host lookup is case-insensitive", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("mixed.example.org")
		if !slices.Equal(got.IgnorePatterns, []string{"/private/*"}) {
			t.Errorf("expected site patterns, got %v", got.IgnorePatterns)
		}
	})
}
