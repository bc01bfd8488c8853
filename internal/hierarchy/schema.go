package hierarchy

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// treeSchema constrains the shape of a serialized SpaceTree. It guards
// two boundaries: remote fetch-tree payloads and locally persisted
// snapshots. Both nodes are recursive, so the folder definition refers
// to itself for children. The server serializes unset optional fields
// as explicit nulls, so every optional is nullable here, space_id
// included.
const treeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["root_folders", "root_processes"],
  "properties": {
    "space_id": {"type": ["string", "null"]},
    "root_folders": {"type": "array", "items": {"$ref": "#/$defs/folder"}},
    "root_processes": {"type": "array", "items": {"$ref": "#/$defs/process"}}
  },
  "$defs": {
    "folder": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "description": {"type": ["string", "null"]},
        "parent_folder_id": {"type": ["string", "null"]},
        "color": {"type": ["string", "null"]},
        "icon": {"type": ["string", "null"]},
        "process_count": {"type": ["integer", "null"], "minimum": 0},
        "child_count": {"type": ["integer", "null"], "minimum": 0},
        "children": {"type": "array", "items": {"$ref": "#/$defs/folder"}},
        "processes": {"type": "array", "items": {"$ref": "#/$defs/process"}}
      }
    },
    "process": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "description": {"type": ["string", "null"]},
        "folder_id": {"type": ["string", "null"]},
        "created_at": {"type": ["string", "null"]}
      }
    }
  }
}`

var (
	treeSchemaOnce     sync.Once
	treeSchemaCompiled *jsonschema.Schema
	treeSchemaErr      error
)

func compiledTreeSchema() (*jsonschema.Schema, error) {
	treeSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(treeSchema))
		if err != nil {
			treeSchemaErr = fmt.Errorf("parse tree schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("spacetree.json", doc); err != nil {
			treeSchemaErr = fmt.Errorf("register tree schema: %w", err)
			return
		}
		treeSchemaCompiled, treeSchemaErr = compiler.Compile("spacetree.json")
	})
	return treeSchemaCompiled, treeSchemaErr
}

// ValidateTreeJSON checks that data is a structurally valid serialized
// SpaceTree.
func ValidateTreeJSON(data []byte) error {
	schema, err := compiledTreeSchema()
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse tree document: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("tree document rejected: %w", err)
	}
	return nil
}
