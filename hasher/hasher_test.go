package hasher

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"

	"github.com/pithecene-io/zenodo-publisher/types"
)

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatal(err)
	}
}

func TestHashFile_KnownDigests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	writeFile(t, path, "hello\n", 0o644)

	got, err := HashFile(path, []string{MD5, SHA1, SHA256})
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	want := map[string]string{
		MD5:    "b1946ac92492d2347c6235b4d2611184",
		SHA1:   "f572d396fae9206628714fb2ce00f72e94f2258f",
		SHA256: "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03",
	}
	for algo, digest := range want {
		if got[algo] != digest {
			t.Errorf("%s = %s, want %s", algo, got[algo], digest)
		}
	}
}

func TestHashFile_Blake3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	writeFile(t, path, "release payload", 0o644)

	got, err := HashFile(path, []string{BLAKE3})
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	sum := blake3.Sum256([]byte("release payload"))
	if got[BLAKE3] != hex.EncodeToString(sum[:]) {
		t.Errorf("blake3 = %s, want %x", got[BLAKE3], sum)
	}
}

func TestHashFile_TreeFallsBackOnPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.pdf")
	writeFile(t, path, "hello\n", 0o644)

	got, err := HashFile(path, []string{Tree, Tree256, SHA1, SHA256})
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got[Tree] != got[SHA1] {
		t.Errorf("tree fallback = %s, want sha1 %s", got[Tree], got[SHA1])
	}
	if got[Tree256] != got[SHA256] {
		t.Errorf("tree256 fallback = %s, want sha256 %s", got[Tree256], got[SHA256])
	}
}

func TestHash_PlainFileMatchesHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper.pdf")
	writeFile(t, path, "hello\n", 0o644)

	got, err := Hash(path, []string{MD5, Tree256})
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if got[MD5] != "b1946ac92492d2347c6235b4d2611184" {
		t.Errorf("md5 = %s", got[MD5])
	}
	if got[Tree256] != "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03" {
		t.Errorf("tree256 on a file = %s, want sha256 fallback", got[Tree256])
	}
}

func TestHashFile_Unreadable(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing"), []string{MD5})
	if !errors.Is(err, types.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestValidate_UnknownAlgorithm(t *testing.T) {
	err := Validate([]string{SHA256, "crc32"})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestHash_ByteAlgorithmOnDirectory(t *testing.T) {
	_, err := Hash(t.TempDir(), []string{SHA256})
	if !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestWithRequired(t *testing.T) {
	got := WithRequired([]string{"sha512", "md5", "tree"})
	want := []string{"md5", "sha256", "sha512", "tree"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
