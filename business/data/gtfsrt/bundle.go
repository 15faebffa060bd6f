package gtfsrt

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrArtifactNotFound is returned when the snapshot document or bundle for a work item does not exist
var ErrArtifactNotFound = errors.New("artifact not found")

// Snapshot is one decoded snapshot document and the name it was loaded from
type Snapshot struct {
	Name string
	Feed *FeedMessage
}

// LoadSnapshots loads every snapshot held by the artifact at path, ordered by capture timestamp.
// path may be a directory of documents, a .zip, .tar.gz or .tgz bundle, a gzip compressed document
// or a single .json or .pb document
func LoadSnapshots(path string) ([]*Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, err
	}
	var snapshots []*Snapshot
	lowerPath := strings.ToLower(path)
	switch {
	case info.IsDir():
		snapshots, err = loadDirectory(path)
	case strings.HasSuffix(lowerPath, ".zip"):
		snapshots, err = loadZip(path)
	case strings.HasSuffix(lowerPath, ".tar.gz") || strings.HasSuffix(lowerPath, ".tgz"):
		snapshots, err = loadTarGz(path)
	case strings.HasSuffix(lowerPath, ".gz"):
		snapshots, err = loadGzipDocument(path)
	case isDocumentName(lowerPath):
		snapshots, err = loadDocument(path)
	default:
		return nil, fmt.Errorf("unsupported snapshot artifact %s", path)
	}
	if err != nil {
		return nil, err
	}
	SortSnapshots(snapshots)
	return snapshots, nil
}

// SortSnapshots orders snapshots by capture timestamp, then by name
func SortSnapshots(snapshots []*Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		ti, tj := snapshots[i].Feed.Header.Timestamp, snapshots[j].Feed.Header.Timestamp
		if ti != tj {
			return ti < tj
		}
		return snapshots[i].Name < snapshots[j].Name
	})
}

// ListArtifacts returns the name of every work item in dataDir: each sub directory and each supported bundle
// or document, in name order
func ListArtifacts(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("unable to list snapshot artifacts in %s: %w", dataDir, err)
	}
	var results []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() || isArtifactName(strings.ToLower(name)) {
			results = append(results, name)
		}
	}
	sort.Strings(results)
	return results, nil
}

func isArtifactName(lowerName string) bool {
	for _, suffix := range []string{".zip", ".tar.gz", ".tgz", ".gz"} {
		if strings.HasSuffix(lowerName, suffix) {
			return true
		}
	}
	return isDocumentName(lowerName)
}

func isDocumentName(lowerName string) bool {
	switch filepath.Ext(lowerName) {
	case ".json", ".pb", ".pbf", ".bin":
		return true
	}
	return false
}

func decodeNamed(name string, data []byte) (*Snapshot, error) {
	feed, err := Decode(name, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Snapshot{Name: name, Feed: feed}, nil
}

func loadDocument(path string) ([]*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snapshot, err := decodeNamed(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	return []*Snapshot{snapshot}, nil
}

func loadDirectory(path string) ([]*Snapshot, error) {
	var snapshots []*Snapshot
	err := filepath.WalkDir(path, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isDocumentName(strings.ToLower(d.Name())) {
			return nil
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(path, filePath)
		if err != nil {
			return err
		}
		snapshot, err := decodeNamed(relative, data)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, snapshot)
		return nil
	})
	return snapshots, err
}

func loadZip(path string) ([]*Snapshot, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open zip bundle %s: %w", path, err)
	}
	defer func() {
		_ = reader.Close()
	}()
	var snapshots []*Snapshot
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !isDocumentName(strings.ToLower(file.Name)) {
			continue
		}
		data, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s from %s: %w", file.Name, path, err)
		}
		snapshot, err := decodeNamed(file.Name, data)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}

func loadTarGz(path string) ([]*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("unable to open gzip stream %s: %w", path, err)
	}
	defer func() {
		_ = gzipReader.Close()
	}()
	tarReader := tar.NewReader(gzipReader)
	var snapshots []*Snapshot
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read tar bundle %s: %w", path, err)
		}
		if header.Typeflag != tar.TypeReg || !isDocumentName(strings.ToLower(header.Name)) {
			continue
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("unable to read %s from %s: %w", header.Name, path, err)
		}
		snapshot, err := decodeNamed(header.Name, data)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func loadGzipDocument(path string) ([]*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("unable to open gzip stream %s: %w", path, err)
	}
	defer func() {
		_ = gzipReader.Close()
	}()
	data, err := io.ReadAll(gzipReader)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	snapshot, err := decodeNamed(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), data)
	if err != nil {
		return nil, err
	}
	return []*Snapshot{snapshot}, nil
}
