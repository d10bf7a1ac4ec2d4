package bcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeExe(t *testing.T, dir string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, "a.out")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPutGetRestore(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := NewKey().String("cc").Strings([]string{"-O0"}).Bytes([]byte("int main(){}")).Sum()
	exe := writeExe(t, t.TempDir(), []byte("\x7fELF fake"))

	if ok, err := c.get(key, &Payload{}); err != nil || ok {
		t.Fatalf("get before Put: ok=%v err=%v", ok, err)
	}
	if err := c.Put(key, exe, &Payload{Compiler: "cc", Args: []string{"-O0"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got Payload
	ok, err := c.get(key, &got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Compiler != "cc" || got.Size != uint64(len("\x7fELF fake")) || got.Key != key || got.Created.IsZero() {
		t.Fatalf("payload = %+v", got)
	}

	dest := filepath.Join(t.TempDir(), "restored")
	ok, err = c.Restore(key, dest)
	if err != nil || !ok {
		t.Fatalf("Restore: ok=%v err=%v", ok, err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || !bytes.Equal(data, []byte("\x7fELF fake")) {
		t.Fatalf("restored %q, %v", data, err)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("restored file not executable: %v %v", info.Mode(), err)
	}
}

func TestMismatchedBinaryIsMiss(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := NewKey().String("x").Sum()
	if err := c.Put(key, writeExe(t, t.TempDir(), []byte("abc")), &Payload{}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.binPath(key), []byte("truncated-and-longer"), 0o755); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.get(key, &Payload{}); err != nil || ok {
		t.Fatalf("get on damaged entry: ok=%v err=%v", ok, err)
	}
}

func TestDropAll(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exe := writeExe(t, t.TempDir(), []byte("bin"))
	for _, name := range []string{"one", "two"} {
		if err := c.Put(NewKey().String(name).Sum(), exe, &Payload{}); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := c.Len(); err != nil || n != 2 {
		t.Fatalf("Len = %d, %v", n, err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if n, err := c.Len(); err != nil || n != 0 {
		t.Fatalf("Len after DropAll = %d, %v", n, err)
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Fatalf("cache dir not recreated: %v", err)
	}
}

func TestKeysSeparateValues(t *testing.T) {
	a := NewKey().Strings([]string{"ab", "c"}).Sum()
	b := NewKey().Strings([]string{"a", "bc"}).Sum()
	if a == b {
		t.Fatalf("length prefixes missing: keys collide")
	}
	if a.IsZero() || len(a.String()) != 64 {
		t.Fatalf("bad digest %s", a)
	}
}

func TestFileKeyFollowsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.c")
	sum := func() Digest {
		t.Helper()
		k := NewKey()
		if err := k.File(path); err != nil {
			t.Fatal(err)
		}
		return k.Sum()
	}
	if err := os.WriteFile(path, []byte("int f;"), 0o600); err != nil {
		t.Fatal(err)
	}
	first := sum()
	if err := os.WriteFile(path, []byte("int g;"), 0o600); err != nil {
		t.Fatal(err)
	}
	if first == sum() {
		t.Fatalf("key ignores file content")
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	if err := c.Put(Digest{}, "missing", &Payload{}); err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Restore(Digest{}, "missing"); ok || err != nil {
		t.Fatalf("nil Restore: %v %v", ok, err)
	}
	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
}

func TestPutRejectsZeroKey(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(Digest{}, writeExe(t, t.TempDir(), []byte("x")), &Payload{}); err == nil {
		t.Fatalf("Put accepted a zero key")
	}
	if n, err := c.Len(); err != nil || n != 0 {
		t.Fatalf("Len = %d, %v; want 0", n, err)
	}
}
