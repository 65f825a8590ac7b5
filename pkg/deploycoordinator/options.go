package deploycoordinator

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/variantdev/deploy/pkg/telemetry"
)

type Option interface {
	SetOption(c *Coordinator) error
}

func Logger(logger logr.Logger) Option {
	return &loggerOption{l: logger}
}

type loggerOption struct {
	l logr.Logger
}

func (s *loggerOption) SetOption(c *Coordinator) error {
	c.Logger = s.l
	return nil
}

func Recorder(r telemetry.Recorder) Option {
	return &recorderOption{r: r}
}

type recorderOption struct {
	r telemetry.Recorder
}

func (s *recorderOption) SetOption(c *Coordinator) error {
	c.recorder = s.r
	return nil
}

func RunID(id string) Option {
	return &runIDOption{id: id}
}

type runIDOption struct {
	id string
}

func (s *runIDOption) SetOption(c *Coordinator) error {
	c.runID = s.id
	return nil
}

func Clock(now func() time.Time) Option {
	return &clockOption{now: now}
}

type clockOption struct {
	now func() time.Time
}

func (s *clockOption) SetOption(c *Coordinator) error {
	c.now = s.now
	return nil
}
