package lifecycle

import "sync"

// Record is the registry's tracking entry for one plugin. P is the plugin
// instance type and C the capability object handed to it.
//
// Instance and API are both live iff Status is StatusEnabled. The one
// exception is StatusError, where the failed instance is kept for inspection.
// Eager strategies also hold an instance while StatusRegistered.
type Record[P, C any] struct {
	// op serialises Enable/Disable for this id.
	op sync.Mutex

	mu          sync.RWMutex
	manifest    *Manifest
	status      Status
	instance    P
	hasInstance bool
	api         C
	hasAPI      bool
	err         error
}

func newRecord[P, C any](m *Manifest) *Record[P, C] {
	return &Record[P, C]{manifest: m, status: StatusRegistered}
}

// ID returns the plugin id.
func (r *Record[P, C]) ID() string {
	return r.manifest.ID
}

// Manifest returns the registered manifest. Callers must not modify it.
func (r *Record[P, C]) Manifest() *Manifest {
	return r.manifest
}

// Status returns the current status.
func (r *Record[P, C]) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Instance returns the plugin instance and whether one is held.
func (r *Record[P, C]) Instance() (P, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instance, r.hasInstance
}

// API returns the capability object and whether one is live.
func (r *Record[P, C]) API() (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.api, r.hasAPI
}

// Live reports whether the record holds both an instance and a capability object.
func (r *Record[P, C]) Live() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasInstance && r.hasAPI
}

// Err returns the last plugin failure, if any.
func (r *Record[P, C]) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Snapshot returns a copy of the record's observable fields.
func (r *Record[P, C]) Snapshot() Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Info{
		ID:          r.manifest.ID,
		Name:        r.manifest.DisplayName(),
		Version:     r.manifest.Version,
		Status:      r.status,
		HasInstance: r.hasInstance,
		HasAPI:      r.hasAPI,
		Err:         r.err,
	}
}

// Info is a point-in-time view of a record, independent of its type parameters.
type Info struct {
	ID          string
	Name        string
	Version     string
	Status      Status
	HasInstance bool
	HasAPI      bool
	Err         error
}

func (r *Record[P, C]) setInstance(p P) {
	r.mu.Lock()
	r.instance = p
	r.hasInstance = true
	r.mu.Unlock()
}

func (r *Record[P, C]) setEnabled(p P, c C) {
	r.mu.Lock()
	r.instance, r.hasInstance = p, true
	r.api, r.hasAPI = c, true
	r.status = StatusEnabled
	r.err = nil
	r.mu.Unlock()
}

func (r *Record[P, C]) setFailed(p P, held bool, err error) {
	var zero C
	r.mu.Lock()
	r.instance, r.hasInstance = p, held
	r.api, r.hasAPI = zero, false
	r.status = StatusError
	r.err = err
	r.mu.Unlock()
}

// setDisabled releases the instance and capability object and returns the
// capability object that was live. The record moves to StatusDisabled, not
// back to StatusRegistered, so a plugin that ran once stays distinguishable
// from one never enabled; both may be enabled again.
func (r *Record[P, C]) setDisabled() (C, bool) {
	var (
		zeroP P
		zeroC C
	)
	r.mu.Lock()
	defer r.mu.Unlock()
	api, had := r.api, r.hasAPI
	r.instance, r.hasInstance = zeroP, false
	r.api, r.hasAPI = zeroC, false
	r.status = StatusDisabled
	r.err = nil
	return api, had
}

func (r *Record[P, C]) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}
