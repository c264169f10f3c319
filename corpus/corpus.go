package corpus

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gorgonia/hmax"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Extensions lists the file extensions Open picks up.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Dir is a corpus of every image file in a directory. Decoded images are cached.
type Dir struct {
	root  string
	files []string
	pre   Preproc

	sync.Mutex
	cache map[int]*tensor.Dense
}

var _ hmax.Corpus = (*Dir)(nil)

// Open lists the images of a directory. Files are ordered by name. The directory must
// contain at least one image.
func Open(root string, pre Preproc) (*Dir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(hmax.ErrEmptyCorpus, "no images in %q", root)
	}
	sort.Strings(files)
	return &Dir{
		root:  root,
		files: files,
		pre:   pre,
		cache: make(map[int]*tensor.Dense),
	}, nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Len returns the number of images.
func (d *Dir) Len() int { return len(d.files) }

// Name returns the file name of image i.
func (d *Dir) Name(i int) string { return d.files[i] }

// Image decodes and preprocesses image i. An unreadable file is an error.
func (d *Dir) Image(i int) (*tensor.Dense, error) {
	d.Lock()
	img, ok := d.cache[i]
	d.Unlock()
	if ok {
		return img, nil
	}

	img, err := Load(filepath.Join(d.root, d.files[i]), d.pre)
	if err != nil {
		return nil, err
	}
	d.Lock()
	d.cache[i] = img
	d.Unlock()
	return img, nil
}
