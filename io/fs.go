package io

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CreateFS defines a file system interface that supports creating files, for
// saving program images and snapshots.
type CreateFS interface {
	fs.FS
	// Create creates a new file for writing.
	Create(name string) (file io.WriteCloser, err error)
}

// DirFS is a CreateFS rooted at a host directory.
type DirFS string

var _ CreateFS = DirFS("")

// Open opens a file for reading.
func (dir DirFS) Open(name string) (fs.File, error) {
	return os.DirFS(string(dir)).Open(name)
}

// Create creates a new file for writing.
func (dir DirFS) Create(name string) (file io.WriteCloser, err error) {
	if !fs.ValidPath(name) {
		err = &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
		return
	}

	file, err = os.Create(filepath.Join(string(dir), filepath.FromSlash(name)))
	return
}

// WriteFile writes data to a new file.
func WriteFile(fsys CreateFS, name string, data []byte) (err error) {
	ouf, err := fsys.Create(name)
	if err != nil {
		return
	}

	_, err = ouf.Write(data)
	if err != nil {
		ouf.Close()
		return
	}

	err = ouf.Close()
	return
}

// Split returns a DirFS for the directory of a host path, and the file name
// within it.
func Split(path string) (dir DirFS, name string) {
	return DirFS(filepath.Dir(path)), filepath.Base(path)
}
