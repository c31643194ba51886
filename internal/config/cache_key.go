package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the cache key for a session's autosaved answers.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionDeadlineKey returns the cache key for a session's exam deadline.
func (r *CacheKeyStruct) SessionDeadlineKey(sessionID string) string {
	return fmt.Sprintf("session:%s:deadline", sessionID)
}

// ExamPaperKey returns the cache key for an exam's normalized paper.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// ExamDurationKey returns the cache key for an exam's duration.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// DeadlineIndexKey returns the sorted-set key indexing open sessions by
// their deadline, consumed by the deadline sweep worker.
func (r *CacheKeyStruct) DeadlineIndexKey() string {
	return "sessions:deadlines"
}

var CacheKey = NewCacheKeyStruct()
