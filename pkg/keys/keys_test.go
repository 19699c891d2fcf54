package keys

import (
	"testing"
)

func TestSanitize_ForbiddenCharacters(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dot", "task.name", "task_name"},
		{"hash", "task#1", "task_1"},
		{"dollar", "$budget", "_budget"},
		{"brackets", "task[a][b]", "task_a__b_"},
		{"slashes", "a/b\\c", "a_b_c"},
		{"whitespace trimmed", "  task name  ", "task name"},
		{"empty", "", ""},
		{"clean passes through", "Renovation cuisine", "Renovation cuisine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{"a.b#c$d", "  spaced  ", "plain", "[$./\\#]"}
	for _, in := range inputs {
		once := Sanitize(in)
		twice := Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestForTask(t *testing.T) {
	if got := ForTask("csv_Tache.1", "ignored"); got != "csv_Tache_1" {
		t.Errorf("id-based key = %q, want csv_Tache_1", got)
	}
	if got := ForTask("", "My Task #2"); got != "My Task _2" {
		t.Errorf("name fallback = %q, want %q", got, "My Task _2")
	}
	if got := ForTask("", ""); got != "unknown_task" {
		t.Errorf("empty fallback = %q, want unknown_task", got)
	}
}

func TestCandidatesForTask_OrderAndDedup(t *testing.T) {
	got := CandidatesForTask("csv_Peinture", "Peinture.salon")

	want := []string{"csv_Peinture", "Peinture_salon", "Peinture.salon"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidatesForTask_DedupesIdenticalForms(t *testing.T) {
	// A clean name sanitizes to itself and, with no task ID, the canonical
	// key matches as well — all three derivations collapse to one.
	got := CandidatesForTask("", "Jardinage")
	if len(got) != 1 || got[0] != "Jardinage" {
		t.Errorf("candidates = %v, want [Jardinage]", got)
	}
}

func TestUserID_Stable(t *testing.T) {
	a := UserID("Alice")
	b := UserID("Alice")
	if a != b {
		t.Errorf("UserID not stable: %s != %s", a, b)
	}

	if len(a) != 36 {
		t.Errorf("UserID length = %d, want 36 (uuid string)", len(a))
	}

	if UserID("Bob") == a {
		t.Error("different names must yield different ids")
	}
}

func TestVoteID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := VoteID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate vote id %s", id)
		}
		seen[id] = struct{}{}
	}
}
