package gateways

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/binscope/internal/testutil"
)

type zipEntry struct {
	name string
	data []byte
	mode os.FileMode
}

func writeZip(t *testing.T, path string, entries []zipEntry) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return testutil.WriteFile(t, path, buf.Bytes())
}

func TestIsIPA(t *testing.T) {
	tests := map[string]bool{
		"/tmp/App.ipa": true,
		"/tmp/App.IPA": true,
		"/tmp/App.zip": false,
		"/tmp/Payload": false,
	}
	for path, want := range tests {
		if got := IsIPA(path); got != want {
			t.Errorf("IsIPA(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestIPAExtractor_Extract(t *testing.T) {
	image := testutil.MachO{CPUType: testutil.CPUTypeARM64}.Bytes()
	ipa := writeZip(t, filepath.Join(t.TempDir(), "Demo.ipa"), []zipEntry{
		{name: "Payload/", mode: os.ModeDir | 0o755},
		{name: "Payload/Demo.app/Demo", data: image, mode: 0o755},
		{name: "Payload/Demo.app/Info.plist", data: []byte("<plist/>")},
		{name: "Payload/Demo.app/link", data: []byte("/etc/passwd"), mode: os.ModeSymlink | 0o777},
	})
	dest := filepath.Join(t.TempDir(), "out")

	if err := NewIPAExtractor(0).Extract(context.Background(), ipa, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "Payload", "Demo.app", "Demo"))
	if err != nil {
		t.Fatalf("executable not extracted: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Error("executable content mismatch")
	}
	if _, err := os.Lstat(filepath.Join(dest, "Payload", "Demo.app", "link")); !os.IsNotExist(err) {
		t.Error("symlink entry should be skipped")
	}

	bundle, err := NewBundleLocator().LocateBundle(dest)
	if err != nil {
		t.Fatalf("LocateBundle() after extraction error = %v", err)
	}
	if filepath.Base(bundle) != "Demo.app" {
		t.Errorf("bundle = %s", bundle)
	}
}

func TestIPAExtractor_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		ipa     string
		maxSize int64
		wantErr error
	}{
		{
			name:    "zip slip",
			ipa:     writeZip(t, filepath.Join(dir, "slip.ipa"), []zipEntry{{name: "../../evil", data: []byte("x")}}),
			wantErr: ErrUnsafeArchivePath,
		},
		{
			name:    "absolute entry",
			ipa:     writeZip(t, filepath.Join(dir, "abs.ipa"), []zipEntry{{name: "/etc/evil", data: []byte("x")}}),
			wantErr: ErrUnsafeArchivePath,
		},
		{
			name:    "entry too large",
			ipa:     writeZip(t, filepath.Join(dir, "big.ipa"), []zipEntry{{name: "Payload/A.app/A", data: make([]byte, 1024)}}),
			maxSize: 100,
		},
		{
			name: "not a zip",
			ipa:  testutil.WriteFile(t, filepath.Join(dir, "text.ipa"), []byte("not a zip")),
		},
		{
			name: "missing file",
			ipa:  filepath.Join(dir, "missing.ipa"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewIPAExtractor(tt.maxSize).Extract(context.Background(), tt.ipa, filepath.Join(t.TempDir(), "out"))
			if err == nil {
				t.Fatal("Extract() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
