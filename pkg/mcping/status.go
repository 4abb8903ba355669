package mcping

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TreeParser turns a status document into a generic value tree built from
// map[string]any, []any, string, json.Number (or float64), bool and nil.
type TreeParser func(data []byte) (any, error)

// Status is the decoded status document of a server.
type Status struct {
	// Extra holds unknown top-level fields as generic tree values.
	Extra map[string]any `json:"extra,omitempty"`

	// DescriptionTree is the raw description value, nil when absent.
	DescriptionTree any `json:"-"`

	Version Version `json:"version"`

	// Description is the plain text of the MOTD, empty when absent.
	Description string `json:"description,omitempty"`

	// Favicon is a data URI ("data:image/png;base64,..."), empty when absent.
	Favicon string `json:"favicon,omitempty"`

	Players Players `json:"players"`

	Mods []Mod `json:"mods"`

	// Latency is the ping/pong round trip, zero unless WithLatency was used.
	Latency time.Duration `json:"latency,omitempty"`
}

// Version describes the server software.
type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

// Players holds the player counters and the optional sample list.
type Players struct {
	Sample []Player `json:"sample"`
	Online int      `json:"online"`
	Max    int      `json:"max"`
}

// Player is one entry of the sample list.
type Player struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// UUID parses the player id.
func (p Player) UUID() (uuid.UUID, error) {
	return uuid.Parse(p.ID)
}

// Mod is one entry of the mod list some modded servers publish.
type Mod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const faviconPrefix = "data:image/png;base64,"

// FaviconPNG decodes the favicon data URI into raw PNG bytes.
func (s *Status) FaviconPNG() ([]byte, error) {
	if s.Favicon == "" {
		return nil, errors.New("status has no favicon")
	}

	data, ok := strings.CutPrefix(s.Favicon, faviconPrefix)
	if !ok {
		return nil, errors.New("favicon is not a png data uri")
	}

	// some servers wrap the base64 text
	data = strings.NewReplacer("\n", "", "\r", "").Replace(data)

	return base64.StdEncoding.DecodeString(data)
}

// ParseJSONTree is the default TreeParser. Numbers are kept as json.Number
// so integer fields are not rounded through float64.
func ParseJSONTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("parse status document: %w", err)
	}

	return tree, nil
}

// DecodeStatus parses a status document with ParseJSONTree and decodes it.
func DecodeStatus(data []byte) (*Status, error) {
	tree, err := ParseJSONTree(data)
	if err != nil {
		return nil, err
	}

	return DecodeStatusTree(tree)
}

// DecodeStatusTree maps a generic value tree onto Status.
// version.name, version.protocol, players.online and players.max are required;
// everything else is optional and unknown fields are kept in Extra.
func DecodeStatusTree(tree any) (*Status, error) {
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, &FieldError{Path: "$", Want: "object", Err: ErrTypeMismatch}
	}

	version, err := requireObject(root, "version", "version")
	if err != nil {
		return nil, err
	}

	players, err := requireObject(root, "players", "players")
	if err != nil {
		return nil, err
	}

	s := &Status{
		Players: Players{Sample: []Player{}},
		Mods:    []Mod{},
	}

	if s.Version.Name, err = requireString(version, "name", "version.name"); err != nil {
		return nil, err
	}
	if s.Version.Protocol, err = requireInt(version, "protocol", "version.protocol"); err != nil {
		return nil, err
	}
	if s.Players.Online, err = requireInt(players, "online", "players.online"); err != nil {
		return nil, err
	}
	if s.Players.Max, err = requireInt(players, "max", "players.max"); err != nil {
		return nil, err
	}

	if sample, ok := players["sample"].([]any); ok {
		for _, item := range sample {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}

			name, _ := entry["name"].(string)
			id, _ := entry["id"].(string)
			s.Players.Sample = append(s.Players.Sample, Player{Name: name, ID: id})
		}
	}

	if desc, ok := root["description"]; ok && desc != nil {
		s.DescriptionTree = desc
		s.Description = FlattenText(desc)
	}

	if favicon, ok := root["favicon"].(string); ok {
		s.Favicon = favicon
	}

	if mods, ok := root["mods"].([]any); ok {
		for _, item := range mods {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}

			id, _ := entry["id"].(string)
			name, _ := entry["name"].(string)
			s.Mods = append(s.Mods, Mod{ID: id, Name: name})
		}
	}

	for key, value := range root {
		switch key {
		case "version", "players", "description", "favicon", "mods":
			continue
		}

		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[key] = value
	}

	return s, nil
}

func requireObject(obj map[string]any, key, path string) (map[string]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, &FieldError{Path: path, Err: ErrMissingField}
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, &FieldError{Path: path, Want: "object", Err: ErrTypeMismatch}
	}

	return m, nil
}

func requireString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", &FieldError{Path: path, Err: ErrMissingField}
	}

	s, ok := v.(string)
	if !ok {
		return "", &FieldError{Path: path, Want: "string", Err: ErrTypeMismatch}
	}

	return s, nil
}

func requireInt(obj map[string]any, key, path string) (int, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, &FieldError{Path: path, Err: ErrMissingField}
	}

	mismatch := &FieldError{Path: path, Want: "integer", Err: ErrTypeMismatch}

	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return 0, mismatch
		}
		return int(i), nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, mismatch
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, mismatch
	}
}
