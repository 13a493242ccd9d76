package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileWriter appends log lines to dir/filename and rotates the file once it
// would grow past maxSize. Rotated files are gzipped; only the newest
// maxFiles are kept.
type FileWriter struct {
	mu          sync.Mutex
	dir         string
	filename    string
	maxSize     int64
	maxFiles    int
	currentFile *os.File
	currentSize int64
	now         func() time.Time
	compressing sync.WaitGroup
}

// NewFileWriter opens (or creates) the log file.
func NewFileWriter(dir, filename string, maxSizeMB, maxFiles int) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}
	fw := &FileWriter{
		dir:      dir,
		filename: filename,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
		now:      time.Now,
	}
	if err := fw.openFile(); err != nil {
		return nil, err
	}
	return fw, nil
}

// Path returns the live log file path.
func (fw *FileWriter) Path() string {
	return filepath.Join(fw.dir, fw.filename)
}

func (fw *FileWriter) openFile() error {
	f, err := os.OpenFile(fw.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	fw.currentFile = f
	fw.currentSize = info.Size()
	return nil
}

func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.currentFile == nil {
		return 0, os.ErrClosed
	}
	if fw.currentSize > 0 && fw.currentSize+int64(len(p)) > fw.maxSize {
		if err := fw.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := fw.currentFile.Write(p)
	fw.currentSize += int64(n)
	return n, err
}

func (fw *FileWriter) rotate() error {
	if err := fw.currentFile.Close(); err != nil {
		return fmt.Errorf("close current file: %w", err)
	}
	rotated := fmt.Sprintf("%s.%s", fw.Path(), fw.now().Format("20060102-150405.000"))
	if err := os.Rename(fw.Path(), rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}
	fw.compressing.Add(1)
	go func() {
		defer fw.compressing.Done()
		compressFile(rotated)
		fw.cleanup()
	}()
	return fw.openFile()
}

func compressFile(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	gz := gzip.NewWriter(out)
	_, copyErr := io.Copy(gz, in)
	closeErr := gz.Close()
	out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

func (fw *FileWriter) cleanup() {
	matches, err := filepath.Glob(fw.Path() + ".*")
	if err != nil || len(matches) <= fw.maxFiles {
		return
	}
	// Rotated names embed a sortable timestamp.
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-fw.maxFiles] {
		os.Remove(path)
	}
}

// Close closes the file writer and waits for pending compressions.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	var err error
	if fw.currentFile != nil {
		err = fw.currentFile.Close()
		fw.currentFile = nil
	}
	fw.mu.Unlock()
	fw.compressing.Wait()
	return err
}
