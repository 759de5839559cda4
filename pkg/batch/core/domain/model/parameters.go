package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// JobParameters identify a job instance. Two launches with equal parameters address the same instance.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters returns empty parameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put sets key to value.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get returns the raw value for key, or nil.
func (jp JobParameters) Get(key string) interface{} {
	if jp.Params == nil {
		return nil
	}
	return jp.Params[key]
}

// GetString returns the value for key when it is a string.
func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Get(key).(string)
	return s, ok
}

// GetInt returns the value for key as an int, converting numeric strings and other integer kinds.
func (jp JobParameters) GetInt(key string) (int, bool) {
	switch v := jp.Get(key).(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}

// Copy returns an independent copy.
func (jp JobParameters) Copy() JobParameters {
	out := NewJobParameters()
	for k, v := range jp.Params {
		out.Params[k] = v
	}
	return out
}

// Hash returns a SHA-256 over the canonical (key-sorted) JSON form.
func (jp JobParameters) Hash() (string, error) {
	keys := make([]string, 0, len(jp.Params))
	for k := range jp.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return "", exception.NewBatchError("job_parameters", "failed to marshal parameter key", err, false, false)
		}
		vb, err := json.Marshal(normalize(jp.Params[k]))
		if err != nil {
			return "", exception.NewBatchError("job_parameters", fmt.Sprintf("failed to marshal parameter '%s'", k), err, false, false)
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(kb)
		sb.WriteString(":")
		sb.Write(vb)
	}
	sb.WriteString("}")

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:]), nil
}

// normalize maps all integer kinds onto int64 so that 1 and int64(1) hash alike.
func normalize(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v
	}
}

// String implements fmt.Stringer.
func (jp JobParameters) String() string {
	data, err := json.Marshal(jp.Params)
	if err != nil {
		return fmt.Sprintf("{[unprintable parameters: %v]}", err)
	}
	return string(data)
}

// NewID returns a random identifier for executions and instances.
func NewID() string {
	return uuid.NewString()
}
