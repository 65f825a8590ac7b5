package config

import (
	"github.com/twpayne/go-vfs"
)

type Option interface {
	SetOption(l *loader) error
}

func FS(fs vfs.FS) Option {
	return &fsOption{f: fs}
}

type fsOption struct {
	f vfs.FS
}

func (s *fsOption) SetOption(l *loader) error {
	l.fs = s.f
	return nil
}

// Path selects the config file. A missing file is an error when it is set.
func Path(p string) Option {
	return &pathOption{p: p}
}

type pathOption struct {
	p string
}

func (s *pathOption) SetOption(l *loader) error {
	l.path = s.p
	return nil
}

func WD(dir string) Option {
	return &wdOption{d: dir}
}

type wdOption struct {
	d string
}

func (s *wdOption) SetOption(l *loader) error {
	l.wd = s.d
	return nil
}
