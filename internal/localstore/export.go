package localstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/ordering"
)

// ExportVersion tags the snapshot wire format, independent of the persisted
// schema version.
const ExportVersion = 1

type exportSnapshot struct {
	Version int            `json:"version"`
	Folders []exportFolder `json:"folders"`
}

type exportFolder struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Prompts  []exportPrompt `json:"prompts"`
	Imported bool           `json:"isImported,omitempty"`
}

type exportPrompt struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Imported  bool      `json:"isImported,omitempty"`
}

const snapshotSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["version", "folders"],
	"properties": {
		"version": {"type": "integer", "minimum": 1},
		"folders": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "prompts"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"isImported": {"type": "boolean"},
					"prompts": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["id", "title", "text", "timestamp"],
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"title": {"type": "string", "minLength": 1},
								"text": {"type": "string", "minLength": 1},
								"timestamp": {"type": "string", "minLength": 1},
								"isImported": {"type": "boolean"}
							}
						}
					}
				}
			}
		}
	}
}`

var (
	snapshotSchemaOnce     sync.Once
	snapshotSchemaCompiled *jsonschema.Schema
	snapshotSchemaErr      error
)

func compiledSnapshotSchema() (*jsonschema.Schema, error) {
	snapshotSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snapshotSchema))
		if err != nil {
			snapshotSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("promptdeck://snapshot.schema.json", doc); err != nil {
			snapshotSchemaErr = err
			return
		}
		snapshotSchemaCompiled, snapshotSchemaErr = compiler.Compile("promptdeck://snapshot.schema.json")
	})
	return snapshotSchemaCompiled, snapshotSchemaErr
}

// Export produces a deterministic JSON snapshot of the owned folder tree:
// folders and prompts in position order, stable field layout.
func (m *Manager) Export() ([]byte, error) {
	folders := m.Folders()
	sort.SliceStable(folders, func(i, j int) bool { return folders[i].Position < folders[j].Position })

	out := exportSnapshot{Version: ExportVersion, Folders: make([]exportFolder, 0, len(folders))}
	for _, folder := range folders {
		prompts := append([]model.Prompt(nil), folder.Prompts...)
		sort.SliceStable(prompts, func(i, j int) bool { return prompts[i].Position < prompts[j].Position })
		exported := exportFolder{
			ID:       folder.ID,
			Name:     folder.Name,
			Imported: folder.Imported,
			Prompts:  make([]exportPrompt, 0, len(prompts)),
		}
		for _, prompt := range prompts {
			if !prompt.Active() {
				continue
			}
			exported.Prompts = append(exported.Prompts, exportPrompt{
				ID:        prompt.ID,
				Title:     prompt.Title,
				Text:      prompt.Text,
				Timestamp: prompt.CreatedAt,
				Imported:  prompt.Imported,
			})
		}
		out.Folders = append(out.Folders, exported)
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import validates data against the snapshot schema and replaces the owned
// folder collection with its contents. The previous collection is kept on
// any validation failure.
func (m *Manager) Import(data []byte) error {
	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	folders := snapshotToFolders(snapshot, false)
	if err := validateFolders(folders); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	return m.SetFolders(folders)
}

// MergeImport appends the snapshot's folders after the existing ones,
// assigning fresh ids to every incoming folder and prompt so they cannot
// collide, and tagging them as imported.
func (m *Manager) MergeImport(data []byte) error {
	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	incoming := snapshotToFolders(snapshot, true)
	if err := validateFolders(incoming); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	existing := m.Folders()
	refs := make([]ordering.Ref, 0, len(existing))
	for _, folder := range existing {
		refs = append(refs, ordering.Ref{ID: folder.ID, Position: folder.Position})
	}
	next := ordering.NextPosition(refs)
	for i := range incoming {
		incoming[i].Position = next + i
	}
	return m.SetFolders(append(existing, incoming...))
}

func decodeSnapshot(data []byte) (*exportSnapshot, error) {
	schema, err := compiledSnapshotSchema()
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	var snapshot exportSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	return &snapshot, nil
}

func snapshotToFolders(snapshot *exportSnapshot, freshIDs bool) []model.Folder {
	folders := make([]model.Folder, 0, len(snapshot.Folders))
	for i, in := range snapshot.Folders {
		folder := model.Folder{
			ID:       in.ID,
			Name:     in.Name,
			Position: i,
			Imported: in.Imported || freshIDs,
			Prompts:  make([]model.Prompt, 0, len(in.Prompts)),
		}
		if freshIDs {
			folder.ID = uuid.NewString()
		}
		for j, p := range in.Prompts {
			prompt := model.Prompt{
				ID:        p.ID,
				FolderID:  folder.ID,
				Title:     p.Title,
				Text:      p.Text,
				Position:  j,
				CreatedAt: p.Timestamp,
				Imported:  p.Imported || freshIDs,
			}
			if freshIDs {
				prompt.ID = uuid.NewString()
			}
			folder.Prompts = append(folder.Prompts, prompt)
		}
		folders = append(folders, folder)
	}
	return folders
}
