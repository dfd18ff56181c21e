// Package history implements the bounded undo/redo stack and the
// closed set of recorded editing actions.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/clipflow/clipflow-engine/internal/project"
)

// Kind discriminates action payloads on the wire.
type Kind string

const (
	KindImport         Kind = "import"
	KindExport         Kind = "export"
	KindSettingsChange Kind = "settings_change"
	KindSilenceEdit    Kind = "silence_edit"
	KindFillerEdit     Kind = "filler_edit"
)

// Action is one recorded editing step. The set of implementations is
// closed; adding a kind means touching this package.
type Action interface {
	Kind() Kind
	isAction()
}

// ImportAction records videos added to the project.
type ImportAction struct {
	Videos []project.VideoRef `json:"videos"`
}

func (ImportAction) Kind() Kind { return KindImport }
func (ImportAction) isAction()  {}

// ExportAction records a completed export.
type ExportAction struct {
	Videos   []project.VideoRef     `json:"videos"`
	Settings project.ExportSettings `json:"settings"`
}

func (ExportAction) Kind() Kind { return KindExport }
func (ExportAction) isAction()  {}

// SettingsChangeAction records both sides of a preferences change so
// either direction can be applied.
type SettingsChangeAction struct {
	OldSettings project.Settings `json:"old_settings"`
	NewSettings project.Settings `json:"new_settings"`
}

func (SettingsChangeAction) Kind() Kind { return KindSettingsChange }
func (SettingsChangeAction) isAction()  {}

// SilenceEditAction records a silence removal together with the video
// state it replaced.
type SilenceEditAction struct {
	VideoID       string           `json:"video_id"`
	OriginalState project.VideoRef `json:"original_state"`
}

func (SilenceEditAction) Kind() Kind { return KindSilenceEdit }
func (SilenceEditAction) isAction()  {}

// FillerEditAction records a filler-word removal together with the
// video state it replaced.
type FillerEditAction struct {
	VideoID       string           `json:"video_id"`
	OriginalState project.VideoRef `json:"original_state"`
}

func (FillerEditAction) Kind() Kind { return KindFillerEdit }
func (FillerEditAction) isAction()  {}

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAction encodes an action as a tagged {kind, payload} envelope.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", a.Kind(), err)
	}
	return json.Marshal(envelope{Kind: a.Kind(), Payload: payload})
}

// UnmarshalAction decodes a tagged envelope back into a concrete action.
func UnmarshalAction(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode action envelope: %w", err)
	}

	var (
		action Action
		err    error
	)
	switch env.Kind {
	case KindImport:
		var a ImportAction
		err = json.Unmarshal(env.Payload, &a)
		action = a
	case KindExport:
		var a ExportAction
		err = json.Unmarshal(env.Payload, &a)
		action = a
	case KindSettingsChange:
		var a SettingsChangeAction
		err = json.Unmarshal(env.Payload, &a)
		action = a
	case KindSilenceEdit:
		var a SilenceEditAction
		err = json.Unmarshal(env.Payload, &a)
		action = a
	case KindFillerEdit:
		var a FillerEditAction
		err = json.Unmarshal(env.Payload, &a)
		action = a
	default:
		return nil, fmt.Errorf("unknown action kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Kind, err)
	}
	return action, nil
}
