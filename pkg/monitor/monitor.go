package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dashjay/dirguard/pkg/detect"
	"github.com/dashjay/dirguard/pkg/snapshot"
	"github.com/dashjay/dirguard/pkg/types"
)

type Detector interface {
	Detect(entry types.Entry) ([]detect.Finding, error)
}

type Remediator interface {
	Remediate(ctx context.Context, f detect.Finding) error
}

// Capture snapshots every root in order. The first failure is returned as is;
// callers treat it as fatal since a partial baseline cannot be trusted.
func Capture(s *snapshot.Snapshotter, roots []string) ([]*types.Directory, error) {
	out := make([]*types.Directory, 0, len(roots))
	for _, root := range roots {
		logrus.WithField("root", root).Infoln("scanning directory")
		dir, err := s.Scan(root)
		if err != nil {
			return nil, err
		}
		st := snapshot.Count(dir)
		logrus.WithField("root", root).WithField("directories", st.Directories).
			WithField("files", st.Files).Infoln("snapshot captured")
		out = append(out, dir)
	}
	return out, nil
}

type Loop struct {
	roots      []*types.Directory
	detector   Detector
	remediator Remediator
	interval   time.Duration
	sleep      func(time.Duration)
}

type Option func(*Loop)

// WithSleep replaces time.Sleep between cycles.
func WithSleep(sleep func(time.Duration)) Option {
	return func(l *Loop) { l.sleep = sleep }
}

func New(roots []*types.Directory, d Detector, r Remediator, interval time.Duration, opts ...Option) *Loop {
	l := &Loop{
		roots:      roots,
		detector:   d,
		remediator: r,
		interval:   interval,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type CycleStats struct {
	Findings   int
	Remediated int
	Failed     int
	RootErrors int
}

// RunCycle checks every root once. Errors never escape a root: they are
// logged and counted, and the remaining roots are still checked.
func (l *Loop) RunCycle(ctx context.Context) CycleStats {
	var st CycleStats
	for _, root := range l.roots {
		if err := l.checkRoot(ctx, root, &st); err != nil {
			st.RootErrors++
			logrus.WithField("root", root.Path()).WithError(err).Errorln("error occurred while scanning directory")
		}
	}
	logrus.WithField("findings", st.Findings).WithField("remediated", st.Remediated).
		WithField("failed", st.Failed).Debugln("cycle finished")
	return st
}

func (l *Loop) checkRoot(ctx context.Context, root *types.Directory, st *CycleStats) error {
	findings, err := l.detector.Detect(root)
	if err != nil {
		return err
	}
	st.Findings += len(findings)
	var errs []error
	for _, f := range findings {
		if err := l.remediator.Remediate(ctx, f); err != nil {
			st.Failed++
			errs = append(errs, err)
			continue
		}
		st.Remediated++
	}
	return errors.Join(errs...)
}

// Run cycles until ctx is done, sleeping a fixed interval after each cycle.
// The sleep is not interrupted; ctx is only checked between cycles.
func (l *Loop) Run(ctx context.Context) error {
	logrus.WithField("roots", len(l.roots)).WithField("interval", l.interval).Infoln("monitoring")
	for {
		l.RunCycle(ctx)
		l.sleep(l.interval)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
