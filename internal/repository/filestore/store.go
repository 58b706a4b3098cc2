package filestore

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"portfolio/internal/repository"
)

const (
	docExt  = ".json"
	logDir  = "_logs"
	logExt  = ".log"
	dirPerm = 0o755
)

// Store persists each key as <dir>/<key>.json and each log stream as an
// append-only file under <dir>/_logs. Writes go through a temp file and a
// rename so readers never observe a partially written document.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filestore: dir is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := repository.ValidateKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.docPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateKey(key); err != nil {
		return err
	}
	path := s.docPath(key)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == logDir && filepath.Dir(path) == filepath.Clean(s.dir) {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), docExt)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) AppendLog(ctx context.Context, stream, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateKey(stream); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.logPath(stream)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	line = strings.ReplaceAll(line, "\n", " ")
	_, err = f.WriteString(line + "\n")
	return err
}

func (s *Store) ReadLog(ctx context.Context, stream string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := repository.ValidateKey(stream); err != nil {
		return nil, err
	}
	f, err := os.Open(s.logPath(stream))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var buf []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		buf = append(buf, sc.Text())
		if limit > 0 && len(buf) > limit {
			buf = buf[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("filestore: " + s.dir + " is not a directory")
	}
	return nil
}

func (s *Store) docPath(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key)+docExt)
}

func (s *Store) logPath(stream string) string {
	return filepath.Join(s.dir, logDir, filepath.FromSlash(stream)+logExt)
}
