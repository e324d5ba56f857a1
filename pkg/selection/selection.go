package selection

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mineroot/torrentcheck/pkg/torrent"
)

// PaddingPrefix is how BitComet and compatible clients name padding files.
const PaddingPrefix = "_____padding_file_"

type Mode int

const (
	ModeAll Mode = iota
	ModePartial
	ModeRenamed
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModePartial:
		return "partial"
	case ModeRenamed:
		return "renamed"
	}
	return "unknown"
}

// Selection tells which entries a verification pass is about.
// Paths are slash-joined paths inside the torrent.
type Selection struct {
	Mode  Mode
	Paths []string
	// Local is the file to read instead of the renamed entry's usual location.
	Local string
}

func All() Selection {
	return Selection{Mode: ModeAll}
}

func Partial(paths ...string) Selection {
	return Selection{Mode: ModePartial, Paths: paths}
}

func Renamed(path, local string) Selection {
	return Selection{Mode: ModeRenamed, Paths: []string{path}, Local: local}
}

type Policy struct {
	// PaddingHeuristic treats entries named like PaddingPrefix as padding even without the "p" attribute.
	PaddingHeuristic bool
}

func DefaultPolicy() Policy {
	return Policy{PaddingHeuristic: true}
}

// IsFiller reports whether entry is a padding file under policy.
func (p Policy) IsFiller(entry torrent.Entry) bool {
	if strings.ContainsRune(entry.Attr, 'p') {
		return true
	}
	if !p.PaddingHeuristic || len(entry.Path) == 0 {
		return false
	}
	return strings.HasPrefix(entry.Path[len(entry.Path)-1], PaddingPrefix)
}

// IsSafePath reports whether path can be mapped below a local root.
func IsSafePath(path []string) bool {
	if len(path) == 0 {
		return false
	}
	for _, elem := range path {
		if elem == "" || elem == "." || elem == ".." {
			return false
		}
		if strings.ContainsRune(elem, '/') || strings.ContainsRune(elem, os.PathSeparator) {
			return false
		}
	}
	return true
}

// JoinPath returns the slash-joined form of an entry path, as used in selections and reports.
func JoinPath(path []string) string {
	return strings.Join(path, "/")
}

func sourcePath(root string, path []string) string {
	return filepath.Join(append([]string{root}, path...)...)
}
