package gallery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/MrCodeEU/faceattend/pkg/logging"
)

// imageExtensions are the enrollment image types, matched case-insensitively.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Image is one enrollment photo and the identity it belongs to.
type Image struct {
	Name string
	Path string
}

// Person groups the photos enrolled under one identity.
type Person struct {
	Name   string
	Photos []string
}

// ErrInvalidName is returned for identities that cannot be used as a directory name.
var ErrInvalidName = errors.New("invalid identity name")

// IsImageFile reports whether filename has an enrollment image extension.
func IsImageFile(filename string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IdentityFromFilename derives the identity of a loose enrollment file.
// A trailing "_<digits>" is dropped so john_1.jpg and john_2.jpg both
// belong to "john". Nothing else is normalised.
func IdentityFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	idx := strings.LastIndex(stem, "_")
	if idx <= 0 || idx == len(stem)-1 {
		return stem
	}
	for _, r := range stem[idx+1:] {
		if !unicode.IsDigit(r) {
			return stem
		}
	}
	return stem[:idx]
}

// Scan enumerates enrollment images under root in load order: loose files
// first, then one directory per person. Each level is sorted by name so the
// order does not depend on the filesystem.
func Scan(root string) ([]Image, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var images []Image
	var dirs []string

	for _, entry := range entries {
		mode, ok := entryMode(root, entry)
		if !ok {
			continue
		}
		if mode.IsDir() {
			dirs = append(dirs, entry.Name())
			continue
		}
		if !mode.IsRegular() || !IsImageFile(entry.Name()) {
			continue
		}
		images = append(images, Image{
			Name: IdentityFromFilename(entry.Name()),
			Path: filepath.Join(root, entry.Name()),
		})
	}

	for _, dir := range dirs {
		dirPath := filepath.Join(root, dir)
		files, err := os.ReadDir(dirPath)
		if err != nil {
			logging.WithError(err).Warnf("Skipping unreadable directory %s", dirPath)
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

		for _, f := range files {
			if !IsImageFile(f.Name()) {
				continue
			}
			mode, ok := entryMode(dirPath, f)
			if !ok || !mode.IsRegular() {
				continue
			}
			images = append(images, Image{
				Name: dir,
				Path: filepath.Join(dirPath, f.Name()),
			})
		}
	}

	return images, nil
}

// entryMode returns the type of entry, following symlinks. Broken links are
// logged and reported as not ok.
func entryMode(dir string, entry fs.DirEntry) (fs.FileMode, bool) {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type(), true
	}
	path := filepath.Join(dir, entry.Name())
	info, err := os.Stat(path)
	if err != nil {
		logging.WithError(err).Warnf("Skipping broken link %s", path)
		return 0, false
	}
	return info.Mode().Type(), true
}

// Registered lists enrolled identities with their photos, sorted by name.
// No descriptors are computed.
func Registered(root string) ([]Person, error) {
	images, err := Scan(root)
	if err != nil {
		return nil, err
	}

	byName := make(map[string][]string)
	for _, img := range images {
		byName[img.Name] = append(byName[img.Name], img.Path)
	}

	people := make([]Person, 0, len(byName))
	for name, photos := range byName {
		people = append(people, Person{Name: name, Photos: photos})
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// ValidateName checks that name can be used as a per-person directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// AddPhoto stores an enrollment photo as <root>/<name>/photo_<n><ext>,
// picking the first n not already taken. It returns the written path.
func AddPhoto(root, name, ext string, data []byte) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	ext = strings.ToLower(ext)
	if !imageExtensions[ext] {
		return "", fmt.Errorf("unsupported image extension %q", ext)
	}

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	for n := 1; ; n++ {
		path := filepath.Join(dir, fmt.Sprintf("photo_%d%s", n, ext))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}

		logging.Infof("Saved enrollment photo for %s: %s", name, path)
		return path, nil
	}
}
