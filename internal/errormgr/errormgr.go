package errormgr

import (
	"strings"
	"sync"
)

// ErrorMgr collects errors raised while generating configs for several regions.
type ErrorMgr interface {
	ListenForErrors(errorChan <-chan error)
	StoreError(err error)
	GetErrors() []error
	HasErrors() bool
}

// _ErrorMgr is the implementation of ErrorMgr.
type _ErrorMgr struct {
	mu         sync.Mutex
	errorArray []error
}

// Error is a failure tied to a region and, for sanity checks, a policy.
type Error struct {
	AccountName string
	Region      string
	Policy      string
	Message     string
}

func (e Error) Error() string {
	parts := []string{}
	if e.AccountName != "" {
		parts = append(parts, "AccountName: "+e.AccountName)
	}
	if e.Region != "" {
		parts = append(parts, "Region: "+e.Region)
	}
	if e.Policy != "" {
		parts = append(parts, "Policy: "+e.Policy)
	}
	if e.Message != "" {
		parts = append(parts, "Message: "+e.Message)
	}
	if len(parts) == 0 {
		return "unknown error"
	}
	return strings.Join(parts, ", ")
}

// NewErrorMgr creates a new instance of ErrorMgr.
func NewErrorMgr() ErrorMgr {
	return &_ErrorMgr{
		errorArray: make([]error, 0),
	}
}

// ListenForErrors reads errors from the given channel and stores them.
func (em *_ErrorMgr) ListenForErrors(errorChan <-chan error) {
	for err := range errorChan {
		em.StoreError(err)
	}
}

func (em *_ErrorMgr) StoreError(err error) {
	if err == nil {
		return
	}
	em.mu.Lock()
	defer em.mu.Unlock()
	em.errorArray = append(em.errorArray, err)
}

// GetErrors returns all stored errors.
func (em *_ErrorMgr) GetErrors() []error {
	em.mu.Lock()
	defer em.mu.Unlock()
	return append([]error(nil), em.errorArray...)
}

func (em *_ErrorMgr) HasErrors() bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return len(em.errorArray) > 0
}
