package gtfsrt

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/matryer/is"
	"google.golang.org/protobuf/proto"
)

type testDocument struct {
	name string
	data []byte
}

// testDocuments returns the testdata snapshots with the later capture first
func testDocuments(t *testing.T) []testDocument {
	var results []testDocument
	for _, name := range []string{"snapshot_late.json", "snapshot_early.json"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		if err != nil {
			t.Fatalf("unable to read test document %s: %v", name, err)
		}
		results = append(results, testDocument{name: name, data: data})
	}
	return results
}

func writeZip(t *testing.T, path string, documents []testDocument) {
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	w := zip.NewWriter(file)
	for _, document := range documents {
		f, err := w.Create("snapshots/" + document.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err = f.Write(document.data); err != nil {
			t.Fatal(err)
		}
	}
	// entries that are not snapshot documents are ignored
	f, err := w.Create("README.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.Write([]byte("recorded feed"))
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeTarGz(t *testing.T, path string, documents []testDocument) {
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)
	for _, document := range documents {
		header := &tar.Header{
			Name:     document.name,
			Mode:     0600,
			Size:     int64(len(document.data)),
			Typeflag: tar.TypeReg,
		}
		if err = tarWriter.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		if _, err = tarWriter.Write(document.data); err != nil {
			t.Fatal(err)
		}
	}
	if err = tarWriter.Close(); err != nil {
		t.Fatal(err)
	}
	if err = gzipWriter.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeGzip(t *testing.T, path string, data []byte) {
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	gzipWriter := gzip.NewWriter(file)
	if _, err = gzipWriter.Write(data); err != nil {
		t.Fatal(err)
	}
	if err = gzipWriter.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSnapshots_Bundles(t *testing.T) {
	dir := t.TempDir()
	documents := testDocuments(t)
	writeZip(t, filepath.Join(dir, "feed.zip"), documents)
	writeTarGz(t, filepath.Join(dir, "feed.tar.gz"), documents)
	writeTarGz(t, filepath.Join(dir, "feed.tgz"), documents)

	tests := []struct {
		name string
		path string
	}{
		{name: "directory", path: "testdata"},
		{name: "zip", path: filepath.Join(dir, "feed.zip")},
		{name: "tar.gz", path: filepath.Join(dir, "feed.tar.gz")},
		{name: "tgz", path: filepath.Join(dir, "feed.tgz")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			snapshots, err := LoadSnapshots(tt.path)
			is.NoErr(err)
			is.Equal(len(snapshots), 2)
			// ordered by capture timestamp, not by name or position in the bundle
			is.Equal(snapshots[0].Feed.Header.Timestamp, int64(1641855000))
			is.Equal(snapshots[1].Feed.Header.Timestamp, int64(1641855060))
			is.Equal(filepath.Base(snapshots[0].Name), "snapshot_early.json")
		})
	}
}

func TestLoadSnapshots_SingleDocuments(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()

	jsonData, err := os.ReadFile("testdata/snapshot_early.json")
	is.NoErr(err)
	writeGzip(t, filepath.Join(dir, "snapshot.json.gz"), jsonData)

	pbData, err := proto.Marshal(earlyProtoFeed())
	is.NoErr(err)
	is.NoErr(os.WriteFile(filepath.Join(dir, "snapshot.pb"), pbData, 0600))
	writeGzip(t, filepath.Join(dir, "snapshot.pb.gz"), pbData)

	for _, name := range []string{"snapshot.json.gz", "snapshot.pb", "snapshot.pb.gz"} {
		snapshots, err := LoadSnapshots(filepath.Join(dir, name))
		is.NoErr(err)
		is.Equal(len(snapshots), 1)
		is.Equal(snapshots[0].Feed.Header.Timestamp, int64(1641855000))
		is.Equal(len(snapshots[0].Feed.Entity), 2)
	}

	snapshots, err := LoadSnapshots("testdata/snapshot_late.json")
	is.NoErr(err)
	is.Equal(len(snapshots), 1)
	is.Equal(snapshots[0].Name, "snapshot_late.json")
}

func TestLoadSnapshots_Missing(t *testing.T) {
	is := is.New(t)
	_, err := LoadSnapshots(filepath.Join(t.TempDir(), "2022-01-10.zip"))
	is.True(errors.Is(err, ErrArtifactNotFound))

	unsupported := filepath.Join(t.TempDir(), "feed.csv")
	is.NoErr(os.WriteFile(unsupported, []byte("a,b"), 0600))
	_, err = LoadSnapshots(unsupported)
	is.True(err != nil)
	is.True(!errors.Is(err, ErrArtifactNotFound))
}

func TestListArtifacts(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	is.NoErr(os.Mkdir(filepath.Join(dir, "2022-01-11"), 0700))
	is.NoErr(os.Mkdir(filepath.Join(dir, ".cache"), 0700))
	for _, name := range []string{"2022-01-10.zip", "2022-01-12.tar.gz", "single.json", "notes.txt"} {
		is.NoErr(os.WriteFile(filepath.Join(dir, name), []byte{}, 0600))
	}

	got, err := ListArtifacts(dir)
	is.NoErr(err)
	is.Equal(got, []string{"2022-01-10.zip", "2022-01-11", "2022-01-12.tar.gz", "single.json"})

	_, err = ListArtifacts(filepath.Join(dir, "missing"))
	is.True(err != nil)
}
