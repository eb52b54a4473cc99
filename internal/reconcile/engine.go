// Package reconcile matches extracted responses against the expected device roster of an
// iteration and turns them into result rows.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/scoring"
	"github.com/Val17-ui/CACESmodule-sub000/internal/session"
)

// Engine is the pure reconciliation pipeline. It holds no state between calls.
type Engine struct {
	scorer *scoring.Engine
	logger zerolog.Logger
}

func NewEngine(scorer *scoring.Engine, logger zerolog.Logger) *Engine {
	if scorer == nil {
		scorer = scoring.NewEngine(scoring.DefaultScoringConfig())
	}
	return &Engine{
		scorer: scorer,
		logger: logger.With().Str("component", "reconcile_engine").Logger(),
	}
}

// Begin filters, deduplicates and classifies the responses. When anomalies exist the
// outcome is suspended and carries the State to resume from.
func (e *Engine) Begin(in Input) *Outcome {
	in = normalizeInput(in)

	ignored := make(map[string]bool, len(in.Ignored))
	for _, guid := range in.Ignored {
		ignored[guid] = true
	}
	var kept []session.Response
	for _, r := range in.Responses {
		if !ignored[r.SlideGUID] {
			kept = append(kept, r)
		}
	}
	deduped := Deduplicate(kept)

	bound := make(map[string]session.DeviceBinding, len(in.Bindings))
	for _, b := range in.Bindings {
		bound[b.DeviceSerial] = b
	}

	var expected []session.Response
	unknownBySerial := make(map[string][]session.Response)
	var unknownOrder []string
	for _, r := range deduped {
		if _, ok := bound[r.DeviceSerial]; ok {
			expected = append(expected, r)
			continue
		}
		if _, seen := unknownBySerial[r.DeviceSerial]; !seen {
			unknownOrder = append(unknownOrder, r.DeviceSerial)
		}
		unknownBySerial[r.DeviceSerial] = append(unknownBySerial[r.DeviceSerial], r)
	}

	var anomalies Anomalies
	relevant := relevantGUIDs(in.Mappings, ignored)
	answered := make(map[string]map[string]bool)
	for _, r := range expected {
		if answered[r.DeviceSerial] == nil {
			answered[r.DeviceSerial] = make(map[string]bool)
		}
		answered[r.DeviceSerial][r.SlideGUID] = true
	}
	for _, b := range in.Bindings {
		issue := ExpectedIssue{
			DeviceSerial:    b.DeviceSerial,
			ParticipantID:   b.ParticipantID,
			ParticipantName: b.Name(),
			VisualID:        b.VisualID,
			RespondedGUIDs:  []string{},
			MissedGUIDs:     []string{},
		}
		for _, guid := range relevant {
			if answered[b.DeviceSerial][guid] {
				issue.RespondedGUIDs = append(issue.RespondedGUIDs, guid)
			} else {
				issue.MissedGUIDs = append(issue.MissedGUIDs, guid)
			}
		}
		if len(issue.MissedGUIDs) > 0 {
			anomalies.Expected = append(anomalies.Expected, issue)
		}
	}
	for _, serial := range unknownOrder {
		anomalies.Unknown = append(anomalies.Unknown, UnknownResponder{DeviceSerial: serial, Responses: unknownBySerial[serial]})
	}

	e.logger.Debug().
		Int64("iteration_id", in.IterationID).
		Int("responses", len(in.Responses)).
		Int("deduplicated", len(deduped)).
		Int("expected_with_issues", len(anomalies.Expected)).
		Int("unknown_responders", len(anomalies.Unknown)).
		Msg("responses classified")

	if !anomalies.Empty() {
		state := &State{Input: in, Expected: expected, Anomalies: anomalies}
		state.Input.Responses = nil
		return &Outcome{Suspended: true, State: state}
	}

	results, warnings := e.finalize(in, expected)
	return &Outcome{Results: results, Warnings: warnings}
}

// Resolve applies operator directives to a suspended reconciliation and finalizes it.
// Anomalies without a directive contribute nothing.
func (e *Engine) Resolve(state *State, directives []Directive) (*Outcome, error) {
	if state == nil {
		return nil, ErrNotSuspended
	}

	issues := make(map[string]ExpectedIssue, len(state.Anomalies.Expected))
	for _, issue := range state.Anomalies.Expected {
		issues[issue.DeviceSerial] = issue
	}
	unknown := make(map[string]UnknownResponder, len(state.Anomalies.Unknown))
	for _, u := range state.Anomalies.Unknown {
		unknown[u.DeviceSerial] = u
	}

	byDevice := make(map[string]Directive, len(directives))
	for _, d := range directives {
		d.DeviceSerial = session.NormalizeSerial(d.DeviceSerial)
		d.SourceSerial = session.NormalizeSerial(d.SourceSerial)
		if err := validateDirective(d, issues, unknown); err != nil {
			return nil, err
		}
		if _, dup := byDevice[d.DeviceSerial]; dup {
			return nil, fmt.Errorf("%w: device %s resolved twice", ErrInvalidDirective, d.DeviceSerial)
		}
		byDevice[d.DeviceSerial] = d
	}

	warnings := append([]string(nil), state.Warnings...)
	perDevice := make(map[string][]session.Response)
	var order []string
	for _, r := range state.Expected {
		if _, seen := perDevice[r.DeviceSerial]; !seen {
			order = append(order, r.DeviceSerial)
		}
		perDevice[r.DeviceSerial] = append(perDevice[r.DeviceSerial], r)
	}

	consumed := make(map[string]bool)
	var final []session.Response
	for _, serial := range order {
		if _, flagged := issues[serial]; !flagged {
			final = append(final, perDevice[serial]...)
		}
	}
	for _, issue := range state.Anomalies.Expected {
		d, ok := byDevice[issue.DeviceSerial]
		if !ok {
			e.logger.Warn().Str("device", issue.DeviceSerial).Msg("unresolved expected device excluded")
			warnings = append(warnings, fmt.Sprintf("device %s left unresolved; its responses are excluded", issue.DeviceSerial))
			continue
		}
		switch d.Action {
		case ActionMarkAbsent, ActionIgnoreDevice:
		case ActionAggregateWithUnknown:
			if consumed[d.SourceSerial] {
				return nil, fmt.Errorf("%w: unknown device %s merged twice", ErrInvalidDirective, d.SourceSerial)
			}
			consumed[d.SourceSerial] = true
			final = append(final, Merge(issue.DeviceSerial, perDevice[issue.DeviceSerial], unknown[d.SourceSerial].Responses)...)
		}
	}

	for _, u := range state.Anomalies.Unknown {
		if consumed[u.DeviceSerial] {
			continue
		}
		d, ok := byDevice[u.DeviceSerial]
		if !ok || d.Action != ActionAddAsNewParticipant {
			continue
		}
		// No binding is created for the device, so finalize drops these rows until one exists.
		warnings = append(warnings, fmt.Sprintf("device %s added as new participant without a binding; responses kept unassigned", u.DeviceSerial))
		e.logger.Warn().Str("device", u.DeviceSerial).Msg("add_as_new_participant has no binding to attach responses to")
		final = append(final, u.Responses...)
	}

	results, finalizeWarnings := e.finalize(state.Input, Deduplicate(final))
	return &Outcome{Results: results, Warnings: append(warnings, finalizeWarnings...)}, nil
}

func validateDirective(d Directive, issues map[string]ExpectedIssue, unknown map[string]UnknownResponder) error {
	_, isIssue := issues[d.DeviceSerial]
	_, isUnknown := unknown[d.DeviceSerial]
	switch {
	case d.Action.expectedSide():
		if !isIssue {
			return fmt.Errorf("%w: %s is not an expected device with issues", ErrInvalidDirective, d.DeviceSerial)
		}
		if d.Action == ActionAggregateWithUnknown {
			if _, ok := unknown[d.SourceSerial]; !ok {
				return fmt.Errorf("%w: %s is not an unknown responder", ErrInvalidDirective, d.SourceSerial)
			}
		}
	case d.Action.unknownSide():
		if !isUnknown {
			return fmt.Errorf("%w: %s is not an unknown responder", ErrInvalidDirective, d.DeviceSerial)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidDirective, d.Action)
	}
	return nil
}

// finalize maps slide identifiers to questions and devices to participants. Rows that map
// to neither are dropped with a warning.
func (e *Engine) finalize(in Input, responses []session.Response) ([]session.Result, []string) {
	mappings := make(map[string]session.QuestionMapping, len(in.Mappings))
	for _, m := range in.Mappings {
		if m.SlideGUID != "" {
			mappings[m.SlideGUID] = m
		}
	}
	bindings := make(map[string]session.DeviceBinding, len(in.Bindings))
	for _, b := range in.Bindings {
		bindings[b.DeviceSerial] = b
	}

	type rowKey struct{ question, participant int64 }
	seen := make(map[rowKey]int, len(responses))

	var warnings []string
	results := make([]session.Result, 0, len(responses))
	for _, r := range responses {
		m, ok := mappings[r.SlideGUID]
		if !ok {
			e.logger.Warn().Str("device", r.DeviceSerial).Str("slide_guid", r.SlideGUID).Msg("response for unmapped question dropped")
			warnings = append(warnings, fmt.Sprintf("response from %s to unmapped question %s dropped", r.DeviceSerial, r.SlideGUID))
			continue
		}
		b, ok := bindings[r.DeviceSerial]
		if !ok {
			e.logger.Warn().Str("device", r.DeviceSerial).Str("slide_guid", r.SlideGUID).Msg("response from unbound device dropped")
			warnings = append(warnings, fmt.Sprintf("response from unbound device %s dropped", r.DeviceSerial))
			continue
		}
		correct := false
		if q, ok := in.Questions[m.QuestionID]; ok {
			correct = e.scorer.IsCorrect(q, r.Answer)
		}
		row := session.Result{
			SessionID:     in.SessionID,
			IterationID:   in.IterationID,
			QuestionID:    m.QuestionID,
			ParticipantID: b.ParticipantID,
			Answer:        r.Answer,
			IsCorrect:     correct,
			Timestamp:     r.Timestamp,
		}

		// One row per question and participant, even when a participant holds several
		// devices or a question sits behind several slides.
		k := rowKey{m.QuestionID, b.ParticipantID}
		if i, ok := seen[k]; ok {
			e.logger.Warn().Int64("participant_id", b.ParticipantID).Int64("question_id", m.QuestionID).Msg("duplicate answer collapsed")
			warnings = append(warnings, fmt.Sprintf("participant %d answered question %d more than once; latest answer kept", b.ParticipantID, m.QuestionID))
			if !row.Timestamp.Before(results[i].Timestamp) {
				results[i] = row
			}
			continue
		}
		seen[k] = len(results)
		results = append(results, row)
	}

	order := make(map[int64]int, len(in.Mappings))
	for _, m := range in.Mappings {
		order[m.QuestionID] = m.Order
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].ParticipantID != results[j].ParticipantID {
			return results[i].ParticipantID < results[j].ParticipantID
		}
		return order[results[i].QuestionID] < order[results[j].QuestionID]
	})
	return results, warnings
}

// Deduplicate keeps, per device and slide identifier, the response with the latest
// timestamp. Equal timestamps resolve to the later occurrence. Output follows first
// appearance.
func Deduplicate(responses []session.Response) []session.Response {
	type key struct{ serial, guid string }
	index := make(map[key]int, len(responses))
	out := make([]session.Response, 0, len(responses))
	for _, r := range responses {
		k := key{r.DeviceSerial, r.SlideGUID}
		if i, ok := index[k]; ok {
			if !r.Timestamp.Before(out[i].Timestamp) {
				out[i] = r
			}
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// Merge combines an expected device's responses with an unknown device's, keyed by slide
// identifier. The unknown device wins collisions and every merged row is relabelled to
// the expected serial.
func Merge(expectedSerial string, expected, unknown []session.Response) []session.Response {
	byGUID := make(map[string]int)
	var out []session.Response
	for _, r := range expected {
		r.DeviceSerial = expectedSerial
		byGUID[r.SlideGUID] = len(out)
		out = append(out, r)
	}
	for _, r := range unknown {
		r.DeviceSerial = expectedSerial
		if i, ok := byGUID[r.SlideGUID]; ok {
			out[i] = r
			continue
		}
		byGUID[r.SlideGUID] = len(out)
		out = append(out, r)
	}
	return out
}

func relevantGUIDs(mappings []session.QuestionMapping, ignored map[string]bool) []string {
	sorted := append([]session.QuestionMapping(nil), mappings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	seen := make(map[string]bool)
	var out []string
	for _, m := range sorted {
		if m.SlideGUID == "" || ignored[m.SlideGUID] || seen[m.SlideGUID] {
			continue
		}
		seen[m.SlideGUID] = true
		out = append(out, m.SlideGUID)
	}
	return out
}

func normalizeInput(in Input) Input {
	responses := make([]session.Response, len(in.Responses))
	for i, r := range in.Responses {
		r.DeviceSerial = session.NormalizeSerial(r.DeviceSerial)
		r.SlideGUID = session.NormalizeSlideGUID(r.SlideGUID)
		responses[i] = r
	}
	in.Responses = responses

	bindings := make([]session.DeviceBinding, 0, len(in.Bindings))
	for _, b := range in.Bindings {
		b.DeviceSerial = session.NormalizeSerial(b.DeviceSerial)
		if b.DeviceSerial == "" {
			continue
		}
		bindings = append(bindings, b)
	}
	in.Bindings = bindings

	mappings := make([]session.QuestionMapping, len(in.Mappings))
	for i, m := range in.Mappings {
		m.SlideGUID = session.NormalizeSlideGUID(m.SlideGUID)
		mappings[i] = m
	}
	in.Mappings = mappings

	ignored := make([]string, len(in.Ignored))
	for i, guid := range in.Ignored {
		ignored[i] = session.NormalizeSlideGUID(guid)
	}
	in.Ignored = ignored
	return in
}
