package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ExecutionContext carries small values between components of one execution (for example the summary totals).
type ExecutionContext map[string]interface{}

// NewExecutionContext returns an empty context.
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put stores value under key.
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// GetInt returns key as an int.
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	v, ok := ec[key].(int)
	return v, ok
}

// GetString returns key as a string.
func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key].(string)
	return v, ok
}

// JobInstance is the logical run of a job for one set of parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
}

// NewJobInstance creates an instance keyed by the hash of params.
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one attempt at running a JobInstance.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	Status           BatchStatus
	ExitStatus       ExitStatus
	CreateTime       time.Time
	StartTime        time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Failures         []string
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	RestartCount     int
}

// NewJobExecution creates a STARTING execution.
func NewJobExecution(jobInstanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    jobInstanceID,
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         []string{},
		StepExecutions:   []*StepExecution{},
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo moves the execution to newStatus when the move is legal.
func (je *JobExecution) TransitionTo(newStatus BatchStatus) error {
	if !isValidTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	je.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the execution to STARTED.
func (je *JobExecution) MarkAsStarted() {
	if err := je.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
		je.Status = BatchStatusStarted
	}
	je.StartTime = time.Now()
	je.ExitStatus = ExitStatusExecuting
}

// MarkAsCompleted moves the execution to COMPLETED. The exit status records whether any step skipped items.
func (je *JobExecution) MarkAsCompleted() {
	if err := je.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("%v", err)
		je.Status = BatchStatusCompleted
	}
	je.ExitStatus = ExitStatusCompleted
	if je.Counters().TotalSkipped() > 0 {
		je.ExitStatus = ExitStatusCompletedWithSkips
	}
	je.finish()
}

// MarkAsFailed moves the execution to FAILED and records err.
func (je *JobExecution) MarkAsFailed(err error) {
	if tErr := je.TransitionTo(BatchStatusFailed); tErr != nil {
		logger.Warnf("%v", tErr)
		je.Status = BatchStatusFailed
	}
	je.ExitStatus = ExitStatusFailed
	je.AddFailureException(err)
	je.finish()
}

// MarkAsAbandoned retires a failed execution that is being superseded by a relaunch.
func (je *JobExecution) MarkAsAbandoned() error {
	return je.TransitionTo(BatchStatusAbandoned)
}

func (je *JobExecution) finish() {
	now := time.Now()
	je.EndTime = &now
	je.LastUpdated = now
}

// AddFailureException records err once.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	for _, existing := range je.Failures {
		if existing == msg {
			return
		}
	}
	je.Failures = append(je.Failures, msg)
}

// AddStepExecution appends se and links it back to je.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	se.JobExecution = je
	se.JobExecutionID = je.ID
	je.StepExecutions = append(je.StepExecutions, se)
}

// StepExecution returns the execution of stepName in je, or nil.
func (je *JobExecution) StepExecution(stepName string) *StepExecution {
	for _, se := range je.StepExecutions {
		if se.StepName == stepName {
			return se
		}
	}
	return nil
}

// ReplaceStepExecution puts se in place of the execution of the same step, or appends it.
func (je *JobExecution) ReplaceStepExecution(se *StepExecution) {
	se.JobExecution = je
	se.JobExecutionID = je.ID
	for i, existing := range je.StepExecutions {
		if existing.StepName == se.StepName {
			je.StepExecutions[i] = se
			return
		}
	}
	je.StepExecutions = append(je.StepExecutions, se)
}

// Counters aggregates the counters of all step executions.
func (je *JobExecution) Counters() ExecutionCounters {
	var total ExecutionCounters
	for _, se := range je.StepExecutions {
		total = total.Add(se.Counters)
	}
	return total
}

// StepExecution is one attempt at running a step inside a JobExecution.
type StepExecution struct {
	ID               string
	StepName         string
	JobExecutionID   string
	JobExecution     *JobExecution
	Status           BatchStatus
	ExitStatus       ExitStatus
	StartTime        time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Failures         []string
	Counters         ExecutionCounters
	ExecutionContext ExecutionContext
}

// NewStepExecution creates a STARTING step execution.
func NewStepExecution(stepName string) *StepExecution {
	now := time.Now()
	return &StepExecution{
		ID:               NewID(),
		StepName:         stepName,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		StartTime:        now,
		LastUpdated:      now,
		Failures:         []string{},
		ExecutionContext: NewExecutionContext(),
	}
}

// TransitionTo moves the step execution to newStatus when the move is legal.
func (se *StepExecution) TransitionTo(newStatus BatchStatus) error {
	if !isValidTransition(se.Status, newStatus) {
		return fmt.Errorf("StepExecution (ID: %s, step: %s): invalid state transition: %s -> %s", se.ID, se.StepName, se.Status, newStatus)
	}
	se.Status = newStatus
	se.LastUpdated = time.Now()
	return nil
}

// MarkAsStarted moves the step execution to STARTED.
func (se *StepExecution) MarkAsStarted() {
	if err := se.TransitionTo(BatchStatusStarted); err != nil {
		logger.Warnf("%v", err)
		se.Status = BatchStatusStarted
	}
	se.StartTime = time.Now()
	se.ExitStatus = ExitStatusExecuting
}

// MarkAsCompleted moves the step execution to COMPLETED.
func (se *StepExecution) MarkAsCompleted() {
	if err := se.TransitionTo(BatchStatusCompleted); err != nil {
		logger.Warnf("%v", err)
		se.Status = BatchStatusCompleted
	}
	se.ExitStatus = ExitStatusCompleted
	if se.Counters.TotalSkipped() > 0 {
		se.ExitStatus = ExitStatusCompletedWithSkips
	}
	se.finish()
}

// MarkAsFailed moves the step execution to FAILED and records err.
func (se *StepExecution) MarkAsFailed(err error) {
	if tErr := se.TransitionTo(BatchStatusFailed); tErr != nil {
		logger.Warnf("%v", tErr)
		se.Status = BatchStatusFailed
	}
	se.ExitStatus = ExitStatusFailed
	if err != nil {
		se.Failures = append(se.Failures, exception.ExtractErrorMessage(err))
	}
	se.finish()
}

func (se *StepExecution) finish() {
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// CopyForRestart builds the step execution used by a relaunch. A COMPLETED step keeps its
// status and counters with exit status NOOP; anything else starts over with zero counters.
func (se *StepExecution) CopyForRestart() *StepExecution {
	next := NewStepExecution(se.StepName)
	for k, v := range se.ExecutionContext {
		next.ExecutionContext[k] = v
	}
	if se.Status == BatchStatusCompleted {
		next.Status = BatchStatusCompleted
		next.ExitStatus = ExitStatusNoop
		next.StartTime = se.StartTime
		next.EndTime = se.EndTime
		next.Counters = se.Counters
	}
	return next
}
