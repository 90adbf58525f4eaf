package config

import (
	"reflect"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Host != "0.0.0.0" || cfg.Port != "8000" {
		t.Errorf("bind defaults = %s:%s", cfg.Host, cfg.Port)
	}
	if !cfg.InstagramEnabled {
		t.Error("posting should default to enabled")
	}
	if cfg.ImagesDir != "./images" {
		t.Errorf("images dir = %q", cfg.ImagesDir)
	}
	want := []string{"#chatgptdiet", "#dietlog", "#pfcbalance", "#mealrecord"}
	if !reflect.DeepEqual(cfg.DefaultHashtags, want) {
		t.Errorf("hashtags = %v, want %v", cfg.DefaultHashtags, want)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"false", true, false},
		{"true", false, true},
		{"1", false, true},
		{"not-a-bool", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MEALFLOW_TEST_BOOL", tt.value)
			if got := getEnvBool("MEALFLOW_TEST_BOOL", tt.def); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
			}
		})
	}
}

func TestGetEnvListTrimsAndSkipsEmpty(t *testing.T) {
	t.Setenv("MEALFLOW_TEST_LIST", " #a , ,#b,")
	got := getEnvList("MEALFLOW_TEST_LIST", "")
	want := []string{"#a", "#b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvList = %v, want %v", got, want)
	}
}
