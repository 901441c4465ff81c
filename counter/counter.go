package counter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/frommie/xmpmetadata/constants"
)

// ErrOutsideOutputDir is returned for prefixes that resolve outside the
// output directory.
var ErrOutsideOutputDir = errors.New("saving image outside the output folder is not allowed")

// SavePath is a resolved filename prefix.
type SavePath struct {
	Folder    string // Directory the images are written to
	Subfolder string // Folder relative to the output directory
	Filename  string // Base name, may still contain %batch_num%
}

// Resolve splits prefix into sub folder and base name below outputDir.
// %width% and %height% are replaced with the image size.
func Resolve(outputDir, prefix string, width, height int) (*SavePath, error) {
	prefix = strings.ReplaceAll(prefix, "%width%", strconv.Itoa(width))
	prefix = strings.ReplaceAll(prefix, "%height%", strconv.Itoa(height))
	prefix = filepath.FromSlash(prefix)

	subfolder, filename := filepath.Split(prefix)
	if filename == "" {
		filename = constants.FilenamePrefix
	}

	base, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("error resolving output directory: %w", err)
	}
	folder := filepath.Join(base, subfolder)

	rel, err := filepath.Rel(base, folder)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideOutputDir, folder)
	}
	if rel == "." {
		rel = ""
	}

	return &SavePath{
		Folder:    folder,
		Subfolder: filepath.ToSlash(rel),
		Filename:  filename,
	}, nil
}

// BatchFilename returns Filename with %batch_num% replaced by batch.
func (p *SavePath) BatchFilename(batch int) string {
	return strings.ReplaceAll(p.Filename, constants.BatchNumToken, strconv.Itoa(batch))
}

// FileName returns the name of the file for one image:
// <filename>_<counter:05>_.<ext>.
func (p *SavePath) FileName(batch, counter int, ext string) string {
	return fmt.Sprintf("%s_%05d_.%s", p.BatchFilename(batch), counter, ext)
}

// FileCounter hands out sequential numbers for the files of one SavePath.
type FileCounter struct {
	path *SavePath
	next int
}

// NewFileCounter returns a counter for path. CountFiles must be called
// before Next to continue after existing files.
func NewFileCounter(path *SavePath) *FileCounter {
	return &FileCounter{path: path, next: 1}
}

// pattern matches file names produced for the counter's filename, with any
// batch number.
func (c *FileCounter) pattern() *regexp.Regexp {
	parts := strings.Split(c.path.Filename, constants.BatchNumToken)
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.MustCompile(`^` + strings.Join(parts, `\d+`) + `_(\d+)_`)
}

// CountFiles scans the target folder so that Next continues after the
// highest existing number. A missing folder counts as empty.
func (c *FileCounter) CountFiles() error {
	entries, err := os.ReadDir(c.path.Folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.next = 1
			return nil
		}
		return fmt.Errorf("error reading output folder: %w", err)
	}

	re := c.pattern()
	highest := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := re.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	c.next = highest + 1
	return nil
}

// Next returns the next free number.
func (c *FileCounter) Next() int {
	n := c.next
	c.next++
	return n
}
