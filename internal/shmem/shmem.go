// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/shmem/shmem.go
// Summary: File-backed shared memory regions mapped with mmap.
// Notes: Regions are word addressed. Offsets and lengths passed to the
// word helpers must be multiples of 8.

package shmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// WordSize is the unit of atomic access.
const WordSize = 8

var (
	ErrClosed    = errors.New("shmem: region closed")
	ErrReadOnly  = errors.New("shmem: region is read-only")
	ErrAlignment = errors.New("shmem: offset or length not word aligned")
	ErrEmpty     = errors.New("shmem: region is empty")
)

// Region is a mapped file. The creator owns the file and removes it on Close.
type Region struct {
	path     string
	file     *os.File
	data     []byte
	writable bool
	owner    bool
}

// Create makes (or truncates) a file of size bytes and maps it read-write.
func Create(path string, size int) (*Region, error) {
	if size <= 0 || size%WordSize != 0 {
		return nil, fmt.Errorf("%w: size %d", ErrAlignment, size)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shmem: mmap %s: %w", path, err)
	}
	return &Region{path: path, file: f, data: data, writable: true, owner: true}, nil
}

// Open maps an existing file read-only.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := int(info.Size()) &^ (WordSize - 1)
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: mmap %s: %w", path, err)
	}
	return &Region{path: path, file: f, data: data}, nil
}

func (r *Region) Path() string { return r.path }

// Size reports the mapped length in bytes.
func (r *Region) Size() int { return len(r.data) }

// Bytes exposes the mapping. Concurrent access must go through the word
// helpers.
func (r *Region) Bytes() []byte { return r.data }

// Grow extends the file and remaps it when size exceeds the current mapping.
// Readers holding the old mapping keep seeing its prefix of the file.
func (r *Region) Grow(size int) error {
	if r.data == nil {
		return ErrClosed
	}
	if !r.writable {
		return ErrReadOnly
	}
	if size <= len(r.data) {
		return nil
	}
	if size%WordSize != 0 {
		return fmt.Errorf("%w: size %d", ErrAlignment, size)
	}
	if err := r.file.Truncate(int64(size)); err != nil {
		return err
	}
	if err := unix.Munmap(r.data); err != nil {
		return err
	}
	data, err := unix.Mmap(int(r.file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		r.data = nil
		return fmt.Errorf("shmem: remap %s: %w", r.path, err)
	}
	r.data = data
	return nil
}

// Close unmaps the region and, for the creator, removes the file.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	if r.owner {
		if rerr := os.Remove(r.path); err == nil && !errors.Is(rerr, os.ErrNotExist) {
			err = rerr
		}
	}
	return err
}

func (r *Region) word(off int) (*uint64, error) {
	if r.data == nil {
		return nil, ErrClosed
	}
	if off%WordSize != 0 || off < 0 || off+WordSize > len(r.data) {
		return nil, fmt.Errorf("%w: offset %d", ErrAlignment, off)
	}
	return (*uint64)(unsafe.Pointer(&r.data[off])), nil
}

// LoadUint64 atomically reads the word at off.
func (r *Region) LoadUint64(off int) (uint64, error) {
	w, err := r.word(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint64(w), nil
}

// StoreUint64 atomically writes the word at off.
func (r *Region) StoreUint64(off int, v uint64) error {
	if !r.writable {
		return ErrReadOnly
	}
	w, err := r.word(off)
	if err != nil {
		return err
	}
	atomic.StoreUint64(w, v)
	return nil
}

// ReadAt copies len(dst) bytes starting at off into dst one word at a time.
func (r *Region) ReadAt(dst []byte, off int) error {
	if len(dst)%WordSize != 0 {
		return fmt.Errorf("%w: length %d", ErrAlignment, len(dst))
	}
	if r.data == nil {
		return ErrClosed
	}
	if off < 0 || off+len(dst) > len(r.data) {
		return fmt.Errorf("shmem: read [%d,%d) outside region of %d bytes", off, off+len(dst), len(r.data))
	}
	for i := 0; i < len(dst); i += WordSize {
		w, err := r.word(off + i)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint64(dst[i:], atomic.LoadUint64(w))
	}
	return nil
}

// WriteAt copies src into the region at off one word at a time.
func (r *Region) WriteAt(src []byte, off int) error {
	if !r.writable {
		return ErrReadOnly
	}
	if len(src)%WordSize != 0 {
		return fmt.Errorf("%w: length %d", ErrAlignment, len(src))
	}
	if r.data == nil {
		return ErrClosed
	}
	if off < 0 || off+len(src) > len(r.data) {
		return fmt.Errorf("shmem: write [%d,%d) outside region of %d bytes", off, off+len(src), len(r.data))
	}
	for i := 0; i < len(src); i += WordSize {
		w, err := r.word(off + i)
		if err != nil {
			return err
		}
		atomic.StoreUint64(w, binary.NativeEndian.Uint64(src[i:]))
	}
	return nil
}
