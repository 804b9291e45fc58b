// Package store persists session records. A RemoteStore is the shared
// datastore keyed by user id; BoltStore is the local fallback.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"astra/internal/types"
)

// ErrNotFound is returned when no record exists for a user.
var ErrNotFound = errors.New("session not found")

// Column names shared by every backend.
const (
	ColMemory        = "memory"
	ColTasks         = "tasks"
	ColChatHistory   = "chat_history"
	ColSandboxConfig = "sandbox_config"
	ColTerminalLogs  = "terminal_logs"
	ColCustomCSS     = "custom_css"
	ColUpdatedAt     = "updated_at"
)

// Patch is a partial session record. Nil fields are left untouched by an
// upsert and absent in a loaded record.
type Patch struct {
	Memory        *types.UserMemory
	Tasks         *[]types.Task
	Messages      *[]types.Message
	SandboxConfig *types.SandboxConfig
	TerminalLogs  *[]types.TerminalLog
	CustomStyle   *string
}

// Record is a stored session as read back from a backend.
type Record struct {
	Patch
	UpdatedAt time.Time
}

// RemoteStore is the shared session datastore.
type RemoteStore interface {
	// LoadSession returns ErrNotFound when the user has no record.
	LoadSession(ctx context.Context, userID string) (*Record, error)
	// UpsertSession writes the set fields of p, creating the record if needed.
	UpsertSession(ctx context.Context, userID string, p Patch) error
	Close() error
}

// FullPatch returns a patch setting every field of d.
func FullPatch(d types.SessionData) Patch {
	mem := d.Memory
	tasks := d.Tasks
	msgs := d.Messages
	sb := d.SandboxConfig
	logs := d.TerminalLogs
	css := d.CustomStyle
	return Patch{
		Memory:        &mem,
		Tasks:         &tasks,
		Messages:      &msgs,
		SandboxConfig: &sb,
		TerminalLogs:  &logs,
		CustomStyle:   &css,
	}
}

// Empty reports whether no field is set.
func (p Patch) Empty() bool {
	return p.Memory == nil && p.Tasks == nil && p.Messages == nil &&
		p.SandboxConfig == nil && p.TerminalLogs == nil && p.CustomStyle == nil
}

// Merge overlays the set fields of o onto p.
func (p Patch) Merge(o Patch) Patch {
	if o.Memory != nil {
		p.Memory = o.Memory
	}
	if o.Tasks != nil {
		p.Tasks = o.Tasks
	}
	if o.Messages != nil {
		p.Messages = o.Messages
	}
	if o.SandboxConfig != nil {
		p.SandboxConfig = o.SandboxConfig
	}
	if o.TerminalLogs != nil {
		p.TerminalLogs = o.TerminalLogs
	}
	if o.CustomStyle != nil {
		p.CustomStyle = o.CustomStyle
	}
	return p
}

// column is one encoded field of a patch.
type column struct {
	name  string
	value string
}

// columns encodes the set fields in a fixed order. Structured values are
// stored as JSON text; the custom style is stored verbatim.
func (p Patch) columns() ([]column, error) {
	var cols []column
	add := func(name string, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		cols = append(cols, column{name: name, value: string(data)})
		return nil
	}
	if p.Memory != nil {
		if err := add(ColMemory, p.Memory); err != nil {
			return nil, err
		}
	}
	if p.Tasks != nil {
		if err := add(ColTasks, p.Tasks); err != nil {
			return nil, err
		}
	}
	if p.Messages != nil {
		if err := add(ColChatHistory, p.Messages); err != nil {
			return nil, err
		}
	}
	if p.SandboxConfig != nil {
		if err := add(ColSandboxConfig, p.SandboxConfig); err != nil {
			return nil, err
		}
	}
	if p.TerminalLogs != nil {
		if err := add(ColTerminalLogs, p.TerminalLogs); err != nil {
			return nil, err
		}
	}
	if p.CustomStyle != nil {
		cols = append(cols, column{name: ColCustomCSS, value: *p.CustomStyle})
	}
	return cols, nil
}

// setColumn decodes one stored column into p. Unknown names are ignored.
func (p *Patch) setColumn(name, value string) error {
	var err error
	switch name {
	case ColMemory:
		var v types.UserMemory
		if err = json.Unmarshal([]byte(value), &v); err == nil {
			p.Memory = &v
		}
	case ColTasks:
		var v []types.Task
		if err = json.Unmarshal([]byte(value), &v); err == nil {
			p.Tasks = &v
		}
	case ColChatHistory:
		var v []types.Message
		if err = json.Unmarshal([]byte(value), &v); err == nil {
			p.Messages = &v
		}
	case ColSandboxConfig:
		var v types.SandboxConfig
		if err = json.Unmarshal([]byte(value), &v); err == nil {
			p.SandboxConfig = &v
		}
	case ColTerminalLogs:
		var v []types.TerminalLog
		if err = json.Unmarshal([]byte(value), &v); err == nil {
			p.TerminalLogs = &v
		}
	case ColCustomCSS:
		v := value
		p.CustomStyle = &v
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}
