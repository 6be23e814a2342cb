package migrate

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"strings"
)

// sqlite's driver only hands back time.Time for columns declared as
// DATETIME, TIMESTAMP or DATE, so TIMESTAMPTZ columns are renamed on the
// way in. Everything else in the migrations is already portable.
var sqliteTypes = strings.NewReplacer("TIMESTAMPTZ", "DATETIME")

type sqliteFS struct {
	fs.FS
}

func (s sqliteFS) Open(name string) (fs.File, error) {
	f, err := s.FS.Open(name)
	if err != nil || path.Ext(name) != ".sql" {
		return f, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &rewrittenFile{
		Reader: bytes.NewReader([]byte(sqliteTypes.Replace(string(data)))),
		info:   info,
	}, nil
}

type rewrittenFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *rewrittenFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *rewrittenFile) Close() error { return nil }
