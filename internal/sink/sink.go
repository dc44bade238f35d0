// Package sink writes analytics records to the remote store.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonesrussell/linkbio/internal/domain"
)

// Driver names.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
)

// placeholderMarker marks values the build never substituted.
const placeholderMarker = "PLACEHOLDER"

var (
	// ErrUnknownDriver means no client is available for the configured driver.
	ErrUnknownDriver = errors.New("unknown sink driver")
	// ErrNotConfigured means the endpoint or credential is absent or a placeholder.
	ErrNotConfigured = errors.New("sink not configured")
)

// Inserter inserts one record.
type Inserter interface {
	Insert(ctx context.Context, rec domain.Record) error
}

// Factory builds an Inserter for an endpoint and credential.
type Factory func(endpoint, credential string) (Inserter, error)

var drivers = map[string]Factory{
	DriverREST:     NewREST,
	DriverPostgres: NewPostgres,
}

// Lookup returns the factory registered for driver.
func Lookup(driver string) (Factory, error) {
	f, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return f, nil
}

// CheckConfigured reports ErrNotConfigured for empty or placeholder values.
func CheckConfigured(endpoint, credential string) error {
	switch {
	case endpoint == "":
		return fmt.Errorf("%w: endpoint is empty", ErrNotConfigured)
	case credential == "":
		return fmt.Errorf("%w: credential is empty", ErrNotConfigured)
	case strings.Contains(endpoint, placeholderMarker):
		return fmt.Errorf("%w: endpoint is a placeholder", ErrNotConfigured)
	case strings.Contains(credential, placeholderMarker):
		return fmt.Errorf("%w: credential is a placeholder", ErrNotConfigured)
	}
	return nil
}

// Shared wraps lookup so that each driver, endpoint and credential
// combination builds its Inserter once. Hosts that construct a tracker per
// request use it to keep one connection pool per sink.
func Shared(lookup func(driver string) (Factory, error)) func(driver string) (Factory, error) {
	var mu sync.Mutex
	built := make(map[[3]string]Inserter)

	return func(driver string) (Factory, error) {
		factory, err := lookup(driver)
		if err != nil {
			return nil, err
		}
		return func(endpoint, credential string) (Inserter, error) {
			key := [3]string{driver, endpoint, credential}

			mu.Lock()
			defer mu.Unlock()
			if ins, ok := built[key]; ok {
				return ins, nil
			}
			ins, err := factory(endpoint, credential)
			if err != nil {
				return nil, err
			}
			built[key] = ins
			return ins, nil
		}, nil
	}
}
