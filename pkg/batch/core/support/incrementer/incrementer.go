// Package incrementer derives the parameters of the next job instance from the previous ones.
package incrementer

import (
	"fmt"
	"strconv"
	"time"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Incrementer kinds accepted by New.
const (
	KindRunID     = "run_id"
	KindTimestamp = "timestamp"
)

// New returns the incrementer of kind writing parameter name. An empty name uses the
// kind's default parameter ("run.id" or "timestamp").
func New(kind, name string) (port.JobParametersIncrementer, error) {
	switch kind {
	case KindRunID:
		if name == "" {
			name = "run.id"
		}
		return NewRunIDIncrementer(name), nil
	case KindTimestamp:
		if name == "" {
			name = "timestamp"
		}
		return NewTimestampIncrementer(name), nil
	default:
		return nil, fmt.Errorf("unknown JobParametersIncrementer kind: '%s'", kind)
	}
}

// RunIDIncrementer counts launches: 1 on the first one, previous value plus one after.
type RunIDIncrementer struct {
	name string
}

func NewRunIDIncrementer(name string) *RunIDIncrementer {
	return &RunIDIncrementer{name: name}
}

// GetNext implements port.JobParametersIncrementer. params is left untouched.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := params.Copy()
	runID, _ := params.GetInt(i.name)
	next.Put(i.name, runID+1)
	logger.Debugf("%v: '%s' %d -> %d.", i, i.name, runID, runID+1)
	return next
}

func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

// TimestampIncrementer stores the launch time in Unix milliseconds, as a string. The value
// always grows: a launch within the millisecond of the previous value gets that value plus one.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

func NewTimestampIncrementer(name string) *TimestampIncrementer {
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext implements port.JobParametersIncrementer. params is left untouched.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	ts := i.now().UnixMilli()
	if raw, ok := params.GetString(i.name); ok {
		if prev, err := strconv.ParseInt(raw, 10, 64); err == nil && prev >= ts {
			ts = prev + 1
		}
	}
	next := params.Copy()
	next.Put(i.name, strconv.FormatInt(ts, 10))
	logger.Debugf("%v: '%s' set to %d.", i, i.name, ts)
	return next
}

func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var (
	_ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
	_ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
)
