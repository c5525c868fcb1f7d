package geo

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileParts are the archive members a boundary shapefile is read from.
// Everything else in the archive is skipped.
var shapefileParts = map[string]bool{
	".shp": true,
	".shx": true,
	".dbf": true,
	".prj": true,
}

// extractShapefile copies the shapefile members of a zip archive flat into
// destDir and returns the path of the .shp. The archive must hold exactly
// one .shp.
func extractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "geo: open zip")
	}
	defer r.Close() //nolint:errcheck

	var shps []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(name))
		if !shapefileParts[ext] {
			continue
		}
		if ext == ".shp" {
			shps = append(shps, f.Name)
		}
		if err := extractMember(f, filepath.Join(destDir, name)); err != nil {
			return "", err
		}
	}

	switch len(shps) {
	case 0:
		return "", eris.Errorf("geo: %s holds no .shp file", zipPath)
	case 1:
		return filepath.Join(destDir, filepath.Base(shps[0])), nil
	default:
		return "", eris.Errorf("geo: %s holds %d .shp files (%s), want one", zipPath, len(shps), strings.Join(shps, ", "))
	}
}

func extractMember(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "geo: open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "geo: create %s", dest)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "geo: extract %s", f.Name)
	}
	if err := out.Close(); err != nil {
		return eris.Wrapf(err, "geo: close %s", dest)
	}
	return nil
}
