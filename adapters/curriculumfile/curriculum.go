package curriculumfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
)

// Curriculum is the seed document: levels, lessons with their questions, and
// the badge catalog. Files are JSON or YAML with the same field names.
type Curriculum struct {
	Levels  []core.Level  `json:"levels"`
	Lessons []core.Lesson `json:"lessons"`
	Badges  []core.Badge  `json:"badges"`
}

// Load reads a curriculum file. The format follows the extension:
// .yaml and .yml are YAML, everything else is JSON.
func Load(path string) (Curriculum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Curriculum{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(b)
	default:
		return DecodeJSON(b)
	}
}

// DecodeJSON parses and validates a JSON curriculum. Unknown fields are rejected.
func DecodeJSON(b []byte) (Curriculum, error) {
	var c Curriculum
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Curriculum{}, fmt.Errorf("decode curriculum: %w", err)
	}
	return c, c.Validate()
}

// DecodeYAML parses YAML by converting it to JSON so badge criteria go
// through the same decoder.
func DecodeYAML(b []byte) (Curriculum, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Curriculum{}, fmt.Errorf("decode curriculum yaml: %w", err)
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return Curriculum{}, fmt.Errorf("convert curriculum yaml: %w", err)
	}
	return DecodeJSON(j)
}

// Validate checks identifiers and references without touching storage.
func (c Curriculum) Validate() error {
	var errs []error
	levelIDs := map[core.LevelID]bool{}
	numbers := map[int]core.LevelID{}
	for _, l := range c.Levels {
		if l.ID <= 0 {
			errs = append(errs, fmt.Errorf("level %q: %w: id must be positive", l.Title, core.ErrInvalidIdentifier))
		}
		if levelIDs[l.ID] {
			errs = append(errs, fmt.Errorf("level %d defined twice", l.ID))
		}
		if other, ok := numbers[l.Number]; ok {
			errs = append(errs, fmt.Errorf("level number %d used by levels %d and %d", l.Number, other, l.ID))
		}
		levelIDs[l.ID] = true
		numbers[l.Number] = l.ID
	}
	lessonIDs := map[core.LessonID]bool{}
	for _, l := range c.Lessons {
		if l.ID <= 0 {
			errs = append(errs, fmt.Errorf("lesson %q: %w: id must be positive", l.Title, core.ErrInvalidIdentifier))
		}
		if lessonIDs[l.ID] {
			errs = append(errs, fmt.Errorf("lesson %d defined twice", l.ID))
		}
		lessonIDs[l.ID] = true
		if !levelIDs[l.LevelID] {
			errs = append(errs, fmt.Errorf("lesson %d: level %d: %w", l.ID, l.LevelID, core.ErrNotFound))
		}
		positions := map[int]bool{}
		for _, q := range l.Questions {
			if positions[q.Position] {
				errs = append(errs, fmt.Errorf("lesson %d: question position %d used twice", l.ID, q.Position))
			}
			positions[q.Position] = true
		}
	}
	badgeIDs := map[core.BadgeID]bool{}
	for _, b := range c.Badges {
		if b.ID <= 0 {
			errs = append(errs, fmt.Errorf("badge %q: %w: id must be positive", b.Name, core.ErrInvalidIdentifier))
		}
		if badgeIDs[b.ID] {
			errs = append(errs, fmt.Errorf("badge %d defined twice", b.ID))
		}
		badgeIDs[b.ID] = true
	}
	return errors.Join(errs...)
}

// Apply writes the curriculum in dependency order: levels, lessons, badges.
func (c Curriculum) Apply(ctx context.Context, w engine.CurriculumWriter) error {
	for _, l := range c.Levels {
		if err := w.PutLevel(ctx, l); err != nil {
			return fmt.Errorf("seed level %d: %w", l.ID, err)
		}
	}
	for _, l := range c.Lessons {
		qs := make([]core.Question, len(l.Questions))
		for i, q := range l.Questions {
			q.LessonID = l.ID
			qs[i] = q
		}
		l.Questions = qs
		if err := w.PutLesson(ctx, l); err != nil {
			return fmt.Errorf("seed lesson %d: %w", l.ID, err)
		}
	}
	for _, b := range c.Badges {
		if err := w.PutBadge(ctx, b); err != nil {
			return fmt.Errorf("seed badge %d: %w", b.ID, err)
		}
	}
	return nil
}

// LoadInto reads path and applies it to w.
func LoadInto(ctx context.Context, path string, w engine.CurriculumWriter) (Curriculum, error) {
	c, err := Load(path)
	if err != nil {
		return Curriculum{}, err
	}
	return c, c.Apply(ctx, w)
}

// Save writes c as indented JSON through a temp file and rename.
func Save(path string, c Curriculum) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
