package service

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestMediaStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	store := NewMediaStore(dir, "rugImage")
	if store.Exists() {
		t.Fatal("directory should not exist yet")
	}
	if err := store.Ensure(); err != nil {
		t.Fatal(err)
	}

	stored, err := store.Save(strings.NewReader("jpeg bytes"), "../../secret/My Rug.JPG", []string{".jpg", ".jpeg"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(stored.Filename, "rugImage-") || !strings.HasSuffix(stored.Filename, ".jpg") {
		t.Errorf("filename = %q", stored.Filename)
	}
	if strings.Contains(stored.Filename, "Rug") {
		t.Errorf("client name leaked into %q", stored.Filename)
	}
	if filepath.Dir(stored.Path) != dir {
		t.Errorf("path %q outside media dir", stored.Path)
	}
	data, err := os.ReadFile(stored.Path)
	if err != nil || string(data) != "jpeg bytes" || stored.Size != 10 {
		t.Errorf("stored content = %q, size %d, err %v", data, stored.Size, err)
	}
}

func TestMediaStoreConcurrentSavesDoNotCollide(t *testing.T) {
	store := NewMediaStore(t.TempDir(), "rugImage")

	var wg sync.WaitGroup
	names := make([]string, 20)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := store.Save(strings.NewReader("x"), "a.png", []string{".png"})
			if err != nil {
				t.Errorf("Save: %v", err)
				return
			}
			names[i] = stored.Filename
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(names) {
		t.Errorf("files on disk = %d, want %d", len(entries), len(names))
	}
}
