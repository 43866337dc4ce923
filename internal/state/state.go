// Package state persists the operator-side record of the last-provisioned
// instance in a flat, human-editable KEY=value file (by default
// '.instance-info'). The record exists if and only if a provisioning attempt
// succeeded and no termination has since completed; the EC2 control plane
// remains the single source of truth for everything else.
package state

import (
	"fmt"
	"os"
	"strings"
)

// Record is the local cache of identity and connection details for the
// last-provisioned instance. The address is volatile across stop/start cycles
// and must always be refreshed from a live describe before use.
type Record struct {
	InstanceID string
	Address    string
	KeyPath    string
	Region     string
	User       string
}

// File keys, kept stable so operators can read and (carefully) edit the file.
const (
	keyInstanceID = "INSTANCE_ID"
	keyAddress    = "ADDRESS"
	keyKeyPath    = "KEY_PATH"
	keyRegion     = "REGION"
	keyUser       = "USER"
)

var (
	ErrMalformed     = fmt.Errorf("instance info file is malformed")
	ErrIncomplete    = fmt.Errorf("instance info file is missing required fields")
	ErrRecordInvalid = fmt.Errorf("record is missing required fields")
)

// Store reads and writes the record file. Saves are whole-file rewrites so an
// interruption never leaves a partially-updated record behind.
type Store struct {
	Path string
}

// Load reads the record. An absent file is not an error and reports
// ok=false. A malformed file is fatal: the operator must resolve it manually,
// since auto-repair risks silently adopting a wrong or foreign instance ID.
func (s *Store) Load() (Record, bool, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading %s: %w", s.Path, err)
	}

	var rec Record
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return Record{}, false, fmt.Errorf("%w: line %d has no '='", ErrMalformed, n+1)
		}
		switch key {
		case keyInstanceID:
			rec.InstanceID = value
		case keyAddress:
			rec.Address = value
		case keyKeyPath:
			rec.KeyPath = value
		case keyRegion:
			rec.Region = value
		case keyUser:
			rec.User = value
		default:
			return Record{}, false, fmt.Errorf("%w: line %d has unknown key %q", ErrMalformed, n+1, key)
		}
	}
	if rec.InstanceID == "" || rec.Region == "" {
		return Record{}, false, fmt.Errorf("%w: need at least %s and %s", ErrIncomplete, keyInstanceID, keyRegion)
	}
	return rec, true, nil
}

// Save rewrites the whole record file.
func (s *Store) Save(rec Record) error {
	if rec.InstanceID == "" || rec.Region == "" {
		return ErrRecordInvalid
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", keyInstanceID, rec.InstanceID)
	fmt.Fprintf(&b, "%s=%s\n", keyAddress, rec.Address)
	fmt.Fprintf(&b, "%s=%s\n", keyKeyPath, rec.KeyPath)
	fmt.Fprintf(&b, "%s=%s\n", keyRegion, rec.Region)
	fmt.Fprintf(&b, "%s=%s\n", keyUser, rec.User)
	if err := os.WriteFile(s.Path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.Path, err)
	}
	return nil
}

// Clear removes the record file. Clearing an absent file is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", s.Path, err)
	}
	return nil
}
