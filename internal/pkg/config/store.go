// Package config holds the live strummer document and daemon settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gethiox/strummer/internal/pkg/effect"
	"github.com/gethiox/strummer/internal/pkg/hid"
	"github.com/gethiox/strummer/internal/pkg/logger"
	"github.com/gethiox/strummer/internal/pkg/midi/scheduler"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var log = logger.GetLogger()

var ErrUnknownEffect = errors.New("unknown effect")

// Effect names, also top-level document keys.
const (
	NoteDuration = "noteDuration"
	PitchBend    = "pitchBend"
	NoteVelocity = "noteVelocity"
)

type Strumming struct {
	PluckVelocityScale float64  `yaml:"pluckVelocityScale" json:"pluckVelocityScale"`
	PressureThreshold  float64  `yaml:"pressureThreshold" json:"pressureThreshold"`
	MidiChannel        *int     `yaml:"midiChannel" json:"midiChannel"`
	InitialNotes       []string `yaml:"initialNotes" json:"initialNotes"`
	UpperNoteSpread    int      `yaml:"upperNoteSpread" json:"upperNoteSpread"`
	LowerNoteSpread    int      `yaml:"lowerNoteSpread" json:"lowerNoteSpread"`
	ReleaseOnLift      bool     `yaml:"releaseOnLift" json:"releaseOnLift"`
}

type StrumRelease struct {
	Active             bool    `yaml:"active" json:"active"`
	MidiNote           *int    `yaml:"midiNote" json:"midiNote"`
	MidiChannel        *int    `yaml:"midiChannel" json:"midiChannel"`
	MaxDuration        float64 `yaml:"maxDuration" json:"maxDuration"`
	VelocityMultiplier float64 `yaml:"velocityMultiplier" json:"velocityMultiplier"`
}

type Transpose struct {
	Active    bool `yaml:"active" json:"active"`
	Semitones int  `yaml:"semitones" json:"semitones"`
}

// Offset is the number of semitones to apply, zero when inactive.
func (t Transpose) Offset() int {
	if !t.Active {
		return 0
	}
	return t.Semitones
}

type StylusButtons struct {
	Active                bool        `yaml:"active" json:"active"`
	PrimaryButtonAction   interface{} `yaml:"primaryButtonAction" json:"primaryButtonAction"`
	SecondaryButtonAction interface{} `yaml:"secondaryButtonAction" json:"secondaryButtonAction"`
	// transposition of strummed notes while a button is held
	PrimarySemitones   int `yaml:"primarySemitones" json:"primarySemitones"`
	SecondarySemitones int `yaml:"secondarySemitones" json:"secondarySemitones"`
}

// Settings is a typed view of the whole document.
type Settings struct {
	Device           hid.Filter                `yaml:"device"`
	ReportID         int                       `yaml:"reportId"`
	UseSocketServer  bool                      `yaml:"useSocketServer"`
	SocketServerPort int                       `yaml:"socketServerPort"`
	MidiInputID      string                    `yaml:"midiInputId"`
	MidiStrumChannel *int                      `yaml:"midiStrumChannel"`
	AllowPitchBend   bool                      `yaml:"allowPitchBend"`
	NoteDuration     effect.Config             `yaml:"noteDuration"`
	PitchBend        effect.Config             `yaml:"pitchBend"`
	NoteVelocity     effect.Config             `yaml:"noteVelocity"`
	Strumming        Strumming                 `yaml:"strumming"`
	NoteRepeater     scheduler.RepeaterConfig  `yaml:"noteRepeater"`
	Transpose        Transpose                 `yaml:"transpose"`
	StrumRelease     StrumRelease              `yaml:"strumRelease"`
	StylusButtons    StylusButtons             `yaml:"stylusButtons"`
	TabletButtons    map[string]interface{}    `yaml:"tabletButtons"`
	Mappings         map[string]interface{}    `yaml:"mappings"`
}

// Channel is the strum channel, strumming.midiChannel wins over legacy midiStrumChannel.
func (s Settings) Channel() *int {
	if s.Strumming.MidiChannel != nil {
		return s.Strumming.MidiChannel
	}
	return s.MidiStrumChannel
}

func (s Settings) Effect(name string) (effect.Config, error) {
	switch name {
	case NoteDuration:
		return s.NoteDuration, nil
	case PitchBend:
		return s.PitchBend, nil
	case NoteVelocity:
		return s.NoteVelocity, nil
	}
	return effect.Config{}, fmt.Errorf("%w: \"%s\"", ErrUnknownEffect, name)
}

func decodeSettings(doc map[string]interface{}) (Settings, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return Settings{}, fmt.Errorf("encoding document failed: %w", err)
	}
	var s Settings
	err = yaml.Unmarshal(data, &s)
	if err != nil {
		return Settings{}, fmt.Errorf("decoding settings failed: %w", err)
	}
	for _, name := range []string{NoteDuration, PitchBend, NoteVelocity} {
		cfg, _ := s.Effect(name)
		if err := cfg.Validate(); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return s, nil
}

// Store is the live configuration shared by the sample loop, actions and the control hub.
type Store struct {
	mu       sync.RWMutex
	doc      map[string]interface{}
	version  uint64
	settings Settings
	decoded  uint64
}

// New merges overrides over built-in defaults.
func New(overrides map[string]interface{}) *Store {
	s := &Store{doc: deepMerge(Defaults(), overrides), version: 1}
	settings, err := decodeSettings(s.doc)
	if err != nil {
		log.Info(fmt.Sprintf("invalid configuration, using defaults: %v", err), logger.Warning)
		s.doc = Defaults()
		settings, _ = decodeSettings(s.doc)
	}
	s.settings, s.decoded = settings, s.version
	return s
}

func readDocument(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file failed: %w", err)
	}
	// yaml is a superset of json, one parser serves both formats
	var doc map[string]interface{}
	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("parsing config file failed: %w", err)
	}
	return doc, nil
}

// Load reads document from path. Missing file yields defaults.
func Load(path string) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info(fmt.Sprintf("config file \"%s\" not found, using defaults", path), logger.Warning)
		return New(nil), nil
	}
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if _, err := decodeSettings(deepMerge(Defaults(), doc)); err != nil {
		return nil, fmt.Errorf("invalid config file \"%s\": %w", path, err)
	}
	log.Info(fmt.Sprintf("loaded configuration from \"%s\"", path), logger.Info)
	return New(doc), nil
}

// Reload replaces whole document with file content merged over defaults.
// Invalid file leaves current document untouched.
func (s *Store) Reload(path string) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	merged := deepMerge(Defaults(), doc)
	settings, err := decodeSettings(merged)
	if err != nil {
		return fmt.Errorf("invalid config file \"%s\": %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = merged
	s.version++
	s.settings, s.decoded = settings, s.version
	return nil
}

func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := lookup(s.doc, key)
	if !ok {
		return nil, false
	}
	return normalize(v), true
}

// Set assigns dotted key (e.g. "noteRepeater.active"), missing intermediate maps are created.
func (s *Store) Set(key string, value interface{}) {
	s.Patch(map[string]interface{}{key: value})
}

// Patch applies several dotted-key updates at once and returns applied keys in sorted order.
func (s *Store) Patch(updates map[string]interface{}) []string {
	var keys = make([]string, 0, len(updates))
	for k := range updates {
		if k == "" || strings.HasPrefix(k, ".") || strings.HasSuffix(k, ".") {
			log.Info(fmt.Sprintf("ignoring invalid config key \"%s\"", k), logger.Warning)
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return keys
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		assign(s.doc, k, updates[k])
		log.Info(fmt.Sprintf("updated %s = %v", k, updates[k]), logger.Action, zap.String("key", k))
	}
	s.version++
	return keys
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return normalize(s.doc).(map[string]interface{})
}

// Settings returns typed view, decoded once per document version. A document
// that no longer decodes keeps the last valid settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	if s.decoded == s.version {
		settings := s.settings
		s.mu.RUnlock()
		return settings
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoded == s.version {
		return s.settings
	}
	settings, err := decodeSettings(s.doc)
	if err != nil {
		log.Info(fmt.Sprintf("configuration update rejected: %v", err), logger.Warning)
	} else {
		s.settings = settings
	}
	s.decoded = s.version
	return s.settings
}

func (s *Store) Effect(name string) (effect.Config, error) {
	return s.Settings().Effect(name)
}

func (s *Store) Strumming() Strumming {
	return s.Settings().Strumming
}

func (s *Store) NoteRepeater() scheduler.RepeaterConfig {
	return s.Settings().NoteRepeater
}

func (s *Store) StrumRelease() StrumRelease {
	return s.Settings().StrumRelease
}

func (s *Store) Transpose() Transpose {
	return s.Settings().Transpose
}

func (s *Store) StylusButtons() StylusButtons {
	return s.Settings().StylusButtons
}

func (s *Store) TabletButtons() map[string]interface{} {
	return s.Settings().TabletButtons
}

func (s *Store) Mappings() map[string]interface{} {
	return s.Settings().Mappings
}

func (s *Store) ReportID() int {
	return s.Settings().ReportID
}

func (s *Store) Channel() *int {
	return s.Settings().Channel()
}

// Save writes the document as json for .json paths and yaml otherwise.
func (s *Store) Save(path string) error {
	doc := s.Snapshot()

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encoding config failed: %w", err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("writing config file failed: %w", err)
	}
	log.Info(fmt.Sprintf("configuration saved to \"%s\"", path), logger.Info)
	return nil
}
