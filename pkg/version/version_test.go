package version

import "testing"

func TestStringFallsBackToDev(t *testing.T) {
	tag, commit = "", "unknown"
	stampOnce.Do(func() {}) // keep the test binary's VCS stamp out
	if got := String(); got != "dev" {
		t.Fatalf("String() = %q, want dev", got)
	}
}

func TestCurrentPrefersTag(t *testing.T) {
	stampOnce.Do(func() {})
	tag, commit, date = "v1.2.0", "abc1234", "2026-01-01"
	t.Cleanup(func() { tag, commit, date = "", "unknown", "unknown" })

	info := Current()
	if info.Version != "v1.2.0" || info.Commit != "abc1234" || info.Date != "2026-01-01" {
		t.Fatalf("unexpected info: %+v", info)
	}
}
