package config

import (
	"testing"
)

func TestExpandWith(t *testing.T) {
	env := map[string]string{
		"FLANKER_RESULTS_DIR": "/data/flanker",
		"FLANKER_PARTICIPANT": "",
		"LAB_WEBHOOK_URL":     "https://lab.example/hooks/flanker",
		"STATION":             "booth2",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "dir: ${FLANKER_RESULTS_DIR}", "dir: /data/flanker"},
		{"unset", "url: ${LAB_REDIS_URL}", "url: "},
		{"fallback when unset", "dir: ${RESULTS_ROOT:-results}", "dir: results"},
		{"fallback ignored when set", "dir: ${FLANKER_RESULTS_DIR:-results}", "dir: /data/flanker"},
		{"fallback when empty", "participant: ${FLANKER_PARTICIPANT:-pilot}", "participant: pilot"},
		{"several refs", "${STATION}/${FLANKER_RESULTS_DIR}", "booth2//data/flanker"},
		{"no refs", "frame_rate: 60", "frame_rate: 60"},
		{"bare dollar untouched", "note: $STATION", "note: $STATION"},
		{"invalid name untouched", "x: ${1ST}", "x: ${1ST}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandWith(tt.input, lookup); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandEnv_ConfigFile(t *testing.T) {
	t.Setenv("FLANKER_RESULTS_DIR", "/srv/results")
	t.Setenv("LAB_WEBHOOK_URL", "https://lab.example/hook")

	input := `results:
  dir: ${FLANKER_RESULTS_DIR:-results}
adapter:
  type: webhook
  url: ${LAB_WEBHOOK_URL}`

	got := ExpandEnv(input)
	want := `results:
  dir: /srv/results
adapter:
  type: webhook
  url: https://lab.example/hook`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
