package reconcile

import (
	"errors"

	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

var (
	ErrImportNotFound   = errors.New("import not found")
	ErrNotSuspended     = errors.New("import is not awaiting resolution")
	ErrInvalidDirective = errors.New("invalid resolution directive")
	ErrInvalidImport    = errors.New("invalid import request")
)

// Action is what the operator decided for one anomaly.
type Action string

const (
	// Expected-side actions.
	ActionMarkAbsent           Action = "mark_absent"
	ActionIgnoreDevice         Action = "ignore_device"
	ActionAggregateWithUnknown Action = "aggregate_with_unknown"

	// Unknown-side actions.
	ActionIgnore              Action = "ignore"
	ActionAddAsNewParticipant Action = "add_as_new_participant"
)

func (a Action) expectedSide() bool {
	return a == ActionMarkAbsent || a == ActionIgnoreDevice || a == ActionAggregateWithUnknown
}

func (a Action) unknownSide() bool {
	return a == ActionIgnore || a == ActionAddAsNewParticipant
}

// Directive resolves the anomaly raised for DeviceSerial. SourceSerial names the unknown
// device merged by ActionAggregateWithUnknown.
type Directive struct {
	DeviceSerial string `json:"device_serial"`
	Action       Action `json:"action"`
	SourceSerial string `json:"source_serial,omitempty"`
}

// ExpectedIssue is an expected device that did not answer every relevant question.
type ExpectedIssue struct {
	DeviceSerial    string   `json:"device_serial"`
	ParticipantID   int64    `json:"participant_id"`
	ParticipantName string   `json:"participant_name"`
	VisualID        int      `json:"visual_id"`
	RespondedGUIDs  []string `json:"responded_guids"`
	MissedGUIDs     []string `json:"missed_guids"`
}

// UnknownResponder is a device that answered without being bound to anyone.
type UnknownResponder struct {
	DeviceSerial string             `json:"device_serial"`
	Responses    []session.Response `json:"responses"`
}

// Anomalies is the set an import suspends on.
type Anomalies struct {
	Expected []ExpectedIssue    `json:"expected_with_issues"`
	Unknown  []UnknownResponder `json:"unknown_responders"`
}

// Empty reports whether reconciliation can finalize without operator input.
func (a Anomalies) Empty() bool { return len(a.Expected) == 0 && len(a.Unknown) == 0 }

// Input is everything one iteration's reconciliation needs.
type Input struct {
	SessionID   int64                     `json:"session_id"`
	IterationID int64                     `json:"iteration_id"`
	Responses   []session.Response        `json:"responses,omitempty"`
	Bindings    []session.DeviceBinding   `json:"bindings"`
	Mappings    []session.QuestionMapping `json:"mappings"`
	// Ignored lists slide identifiers of template questions unrelated to this run.
	Ignored []string `json:"ignored,omitempty"`
	// Questions supplies answer keys by database question id.
	Questions map[int64]session.Question `json:"questions,omitempty"`
}

// State is a suspended reconciliation, kept until directives arrive or it is cancelled.
type State struct {
	Input Input `json:"input"`
	// Expected holds the provisional responses from bound devices.
	Expected  []session.Response `json:"expected"`
	Anomalies Anomalies          `json:"anomalies"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// Outcome is either a suspension (State set) or final results.
type Outcome struct {
	Suspended bool             `json:"suspended"`
	State     *State           `json:"-"`
	Results   []session.Result `json:"results,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}
