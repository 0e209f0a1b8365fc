package reconcile

import (
	"slices"
	"testing"

	"github.com/pithecene-io/zenodo-publisher/types"
)

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		filesEqual, versionsEqual, force bool
		want                             Outcome
		warn, forced                     bool
	}{
		{true, true, false, Skip, false, false},
		{true, false, false, SkipWarn, true, false},
		{false, true, false, Publish, true, false},
		{false, false, false, Publish, false, false},
		{true, true, true, Publish, false, true},
		{true, false, true, Publish, true, true},
		{false, true, true, Publish, true, false},
		{false, false, true, Publish, false, false},
	}
	for _, tt := range tests {
		d := Decide(tt.filesEqual, tt.versionsEqual, tt.force)
		if d.Outcome != tt.want {
			t.Errorf("Decide(%v,%v,%v).Outcome = %s, want %s", tt.filesEqual, tt.versionsEqual, tt.force, d.Outcome, tt.want)
		}
		if (d.Warning != "") != tt.warn {
			t.Errorf("Decide(%v,%v,%v).Warning = %q, want warning %v", tt.filesEqual, tt.versionsEqual, tt.force, d.Warning, tt.warn)
		}
		if d.Forced != tt.forced {
			t.Errorf("Decide(%v,%v,%v).Forced = %v, want %v", tt.filesEqual, tt.versionsEqual, tt.force, d.Forced, tt.forced)
		}
	}
}

func TestDecide_ForceNeverSkips(t *testing.T) {
	for _, fe := range []bool{true, false} {
		for _, ve := range []bool{true, false} {
			if d := Decide(fe, ve, true); !d.Publishes() {
				t.Errorf("Decide(%v,%v,true) = %s", fe, ve, d.Outcome)
			}
		}
	}
}

func TestCompareFiles(t *testing.T) {
	local := []types.LocalFile{
		{Name: "thesis-v2.pdf", MD5: "aaa"},
		{Name: "thesis-v2.pdf.asc", MD5: "sig-new", IsSignature: true},
		{Name: "thesis-v2.zip", MD5: "BBB"},
	}
	remote := []types.RemoteFileRecord{
		{Filename: "thesis-v1.pdf", Checksum: "aaa"},
		{Filename: "thesis-v1.pdf.asc", Checksum: "sig-old"},
		{Filename: "thesis-v1.zip", Checksum: "bbb"},
	}

	c := CompareFiles(local, remote)
	if !c.Equal {
		t.Errorf("CompareFiles = %s, want equal (names and signatures ignored)", c)
	}

	remote[2].Checksum = "ccc"
	c = CompareFiles(local, remote)
	if c.Equal {
		t.Fatal("CompareFiles reported equal after a checksum change")
	}
	if !slices.Equal(c.Changed, []string{"thesis-v2.zip"}) || !slices.Equal(c.Removed, []string{"thesis-v1.zip"}) {
		t.Errorf("Changed = %v, Removed = %v", c.Changed, c.Removed)
	}
}

func TestVersionsEqual_CaseSensitive(t *testing.T) {
	if VersionsEqual("v1.0", "V1.0") {
		t.Error("labels must compare case-sensitively")
	}
	if !VersionsEqual("v1.0", "v1.0") {
		t.Error("identical labels must be equal")
	}
}

func TestEvaluate(t *testing.T) {
	baseline := &types.DepositVersion{
		Label: "v1.0.0",
		Files: []types.RemoteFileRecord{{Filename: "thesis-v1.0.0.pdf", Checksum: "aaa"}},
	}
	local := []types.LocalFile{{Name: "thesis-v1.0.0.pdf", MD5: "aaa"}}

	d, _ := Evaluate("v1.0.0", local, baseline, false)
	if d.Outcome != Skip {
		t.Errorf("same files, same tag = %s, want skip", d.Outcome)
	}

	local[0].MD5 = "bbb"
	d, cmp := Evaluate("v1.0.0", local, baseline, false)
	if d.Outcome != Publish || d.Warning == "" {
		t.Errorf("changed files, same tag = %+v, want publish with warning", d)
	}
	if cmp.Equal {
		t.Error("comparison should report a difference")
	}
}
