package session

import (
	"strings"
	"time"
)

// MaxOptions bounds the answer list of a single question.
const MaxOptions = 10

// Poll start and countdown modes understood by the response-collection software.
const (
	StartModeAutomatic = "Automatic"
	StartModeManual    = "Manual"
)

// Question is a polling question as supplied by the question store.
type Question struct {
	ID              int64     `json:"id"`
	Text            string    `json:"text"`
	Options         []string  `json:"options"`
	CorrectIndex    *int      `json:"correct_index,omitempty"`
	Image           *ImageRef `json:"image,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	ThemeBlock      string    `json:"theme_block"`
}

// ImageRef points at the picture shown next to a question. Exactly one source is used,
// in order Data, Path, URL.
type ImageRef struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Theme returns the theme half of the theme_block label.
func (q Question) Theme() string {
	theme, _ := SplitThemeBlock(q.ThemeBlock)
	return theme
}

// Block returns the block half of the theme_block label.
func (q Question) Block() string {
	_, block := SplitThemeBlock(q.ThemeBlock)
	return block
}

// SplitThemeBlock splits a "theme_block" label on its last underscore.
func SplitThemeBlock(label string) (string, string) {
	label = strings.TrimSpace(label)
	idx := strings.LastIndex(label, "_")
	if idx < 0 {
		return label, ""
	}
	return label[:idx], label[idx+1:]
}

// Participant is a trainee attending the session.
type Participant struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization,omitempty"`
	DeviceSerial string `json:"device_serial"`
}

// FullName renders "Last First".
func (p Participant) FullName() string {
	return strings.TrimSpace(p.LastName + " " + p.FirstName)
}

// Info describes the session printed on the title slide.
type Info struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Reference string    `json:"reference,omitempty"`
	Date      time.Time `json:"date"`
	Location  string    `json:"location,omitempty"`
	Trainer   string    `json:"trainer,omitempty"`
}

// PollingConfig holds the polling behaviour written into each question slide.
type PollingConfig struct {
	StartMode              string `json:"start_mode"`
	CountdownMode          string `json:"countdown_mode"`
	DefaultDurationSeconds int    `json:"default_duration_seconds"`
	MultipleResponses      bool   `json:"multiple_responses"`
	BulletStyle            string `json:"bullet_style"`
}

// DefaultPollingConfig mirrors the settings screen defaults.
func DefaultPollingConfig() PollingConfig {
	return PollingConfig{
		StartMode:              StartModeAutomatic,
		CountdownMode:          StartModeAutomatic,
		DefaultDurationSeconds: 30,
		MultipleResponses:      false,
		BulletStyle:            "ppBulletAlphaUCParenRight",
	}
}

// WithDefaults fills empty fields from DefaultPollingConfig. A zero duration is kept.
func (c PollingConfig) WithDefaults() PollingConfig {
	def := DefaultPollingConfig()
	if c.StartMode == "" {
		c.StartMode = def.StartMode
	}
	if c.CountdownMode == "" {
		c.CountdownMode = def.CountdownMode
	}
	if c.BulletStyle == "" {
		c.BulletStyle = def.BulletStyle
	}
	if c.DefaultDurationSeconds < 0 {
		c.DefaultDurationSeconds = 0
	}
	return c
}

// EffectiveDuration picks the question's own duration, falling back to the configured default.
func (c PollingConfig) EffectiveDuration(q Question) int {
	if q.DurationSeconds > 0 {
		return q.DurationSeconds
	}
	if c.DefaultDurationSeconds > 0 {
		return c.DefaultDurationSeconds
	}
	return 0
}

// QuestionMapping links a database question to the slide generated for it.
// SlideGUID is empty when no slide identifier exists for the question.
type QuestionMapping struct {
	QuestionID int64  `json:"question_id"`
	SlideGUID  string `json:"slide_guid,omitempty"`
	// Order is the 0-based assembly order among question slides. Intro and template slides
	// do not count, so it stays stable when the template changes.
	Order   int    `json:"order"`
	Theme   string `json:"theme"`
	BlockID string `json:"block_id"`
}

// DeviceBinding assigns a response device to a participant for one iteration.
type DeviceBinding struct {
	ParticipantID int64  `json:"participant_id"`
	DeviceSerial  string `json:"device_serial"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	VisualID      int    `json:"visual_id,omitempty"`
}

// Name renders the bound participant's display name.
func (b DeviceBinding) Name() string {
	return strings.TrimSpace(b.LastName + " " + b.FirstName)
}

// Response is one answer read from an exported response log.
type Response struct {
	DeviceSerial string    `json:"device_serial"`
	SlideGUID    string    `json:"slide_guid"`
	Answer       string    `json:"answer"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is the persisted, reconciled answer of one participant to one question.
type Result struct {
	SessionID     int64     `json:"session_id"`
	IterationID   int64     `json:"iteration_id"`
	QuestionID    int64     `json:"question_id"`
	ParticipantID int64     `json:"participant_id"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"is_correct"`
	Timestamp     time.Time `json:"timestamp"`
}

// NormalizeSerial upper-cases and trims a device serial so bindings and logs compare equal.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// NormalizeSlideGUID strips braces and dashes and upper-cases a slide identifier, so
// "{0f3a9c1e-...}" in a response log matches the identifier written into the slide.
func NormalizeSlideGUID(guid string) string {
	guid = strings.TrimSpace(guid)
	guid = strings.Trim(guid, "{}")
	return strings.ToUpper(strings.ReplaceAll(guid, "-", ""))
}
