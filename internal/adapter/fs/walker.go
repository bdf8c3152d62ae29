package fs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"incidentkb/config"
	"incidentkb/internal/domain"
	"incidentkb/internal/port"
)

// Walker lists incident exports under a root and tags each file with the
// source it came from.
type Walker struct {
	includes   []string
	excludes   []string
	confluence []string
	slack      []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// NewWalkerFromConfig builds a walker with the source patterns from cfg.
func NewWalkerFromConfig(cfg config.IngestConfig) *Walker {
	w := NewWalker(cfg.Includes, cfg.Excludes)
	w.confluence = cfg.ConfluencePatterns
	w.slack = cfg.SlackPatterns
	return w
}

func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				RelPath: relPath,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
				Source:  w.Classify(relPath),
			})
		}

		return nil
	})

	return files, err
}

// Matches reports whether a path relative to the walk root would be listed.
func (w *Walker) Matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	return w.shouldInclude(relPath) && !w.shouldExclude(relPath)
}

// Classify picks the source for a relative path. Slack patterns are checked
// first so a slack/ directory wins over a generic *.md rule. Unmatched
// markdown is treated as a page, anything else as a thread.
func (w *Walker) Classify(relPath string) domain.Source {
	relPath = filepath.ToSlash(relPath)
	if matchAny(w.slack, relPath) {
		return domain.SourceSlack
	}
	if matchAny(w.confluence, relPath) {
		return domain.SourceConfluence
	}
	if strings.EqualFold(filepath.Ext(relPath), ".md") {
		return domain.SourceConfluence
	}
	return domain.SourceSlack
}

func (w *Walker) shouldInclude(path string) bool {
	return matchAny(w.includes, path)
}

func (w *Walker) shouldExclude(path string) bool {
	return matchAny(w.excludes, path)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
