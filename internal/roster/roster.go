// Package roster supplies the playable characters: a built-in default set
// embedded in the binary, plus an optional custom set persisted on disk.
// The engine only ever sees game.Character; the trait tags here exist for
// the local sim runner and never influence game logic.
package roster

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brechtDR/ai-guess-who/internal/game"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed images/*.png
var defaultImages embed.FS

const customDirName = "characters"

// Character is a roster entry. ImageFile names the portrait relative to the
// set's directory (or the embedded images for the default set); Image holds
// the loaded payload.
type Character struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	ImageFile string   `yaml:"image"`
	Traits    []string `yaml:"traits,omitempty"`
	Image     []byte   `yaml:"-"`
}

type characterSet struct {
	Characters []Character `yaml:"characters"`
}

// Store reads and writes character sets under a data directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// LoadDefaultCharacters returns the built-in set with image payloads loaded
// from the embedded portraits.
func (s *Store) LoadDefaultCharacters() ([]Character, error) {
	var set characterSet
	if err := yaml.Unmarshal(defaultsYAML, &set); err != nil {
		return nil, fmt.Errorf("parsing default roster: %w", err)
	}
	for i, c := range set.Characters {
		img, err := defaultImages.ReadFile("images/" + c.ImageFile)
		if err != nil {
			return nil, fmt.Errorf("loading portrait for %s: %w", c.Name, err)
		}
		set.Characters[i].Image = img
	}
	return set.Characters, nil
}

// HasCustomSet reports whether a saved custom set exists.
func (s *Store) HasCustomSet() bool {
	_, err := os.Stat(filepath.Join(s.dir, customDirName, "characters.yaml"))
	return err == nil
}

// LoadCustomCharacters returns the saved custom set with portraits loaded,
// or nil when none has been saved.
func (s *Store) LoadCustomCharacters() ([]Character, error) {
	dir := filepath.Join(s.dir, customDirName)
	data, err := os.ReadFile(filepath.Join(dir, "characters.yaml"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var set characterSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing custom roster: %w", err)
	}
	for i, c := range set.Characters {
		img, err := os.ReadFile(filepath.Join(dir, c.ImageFile))
		if err != nil {
			return nil, fmt.Errorf("loading portrait for %s: %w", c.Name, err)
		}
		set.Characters[i].Image = img
	}
	return set.Characters, nil
}

// SaveCustomCharacters persists a custom set, assigning ids to characters
// that don't have one and writing each portrait alongside the yaml index.
func (s *Store) SaveCustomCharacters(chars []Character) error {
	dir := filepath.Join(s.dir, customDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	saved := make([]Character, len(chars))
	copy(saved, chars)
	for i := range saved {
		if saved[i].ID == "" {
			saved[i].ID = uuid.NewString()
		}
		if len(saved[i].Image) == 0 {
			return fmt.Errorf("character %q has no portrait", saved[i].Name)
		}
		saved[i].ImageFile = saved[i].ID + ".png"
		if err := os.WriteFile(filepath.Join(dir, saved[i].ImageFile), saved[i].Image, 0644); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(characterSet{Characters: saved})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "characters.yaml"), data, 0644)
}

// GameCharacters converts roster entries to the engine's character type.
func GameCharacters(chars []Character) []game.Character {
	out := make([]game.Character, len(chars))
	for i, c := range chars {
		out[i] = game.Character{ID: c.ID, Name: c.Name, Image: c.Image}
	}
	return out
}

// Traits builds the name-keyed trait table the sim runner consumes.
func Traits(chars []Character) map[string][]string {
	out := make(map[string][]string, len(chars))
	for _, c := range chars {
		out[c.Name] = c.Traits
	}
	return out
}
