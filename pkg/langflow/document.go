package langflow

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dshills/flowsync/pkg/domain/types"
)

//go:embed flow.schema.json
var flowSchema []byte

var flowSchemaLoader = gojsonschema.NewBytesLoader(flowSchema)

// Document field names used by the workflow service.
const (
	fieldID                = "id"
	fieldFlowIDAlias       = "flow_id"
	fieldName              = "name"
	fieldProjectID         = "folder_id"
	fieldLastTestedVersion = "last_tested_version"
	fieldFlows             = "flows"
)

// ValidateFlowDocument checks that data is a flow document the service
// will accept.
func ValidateFlowDocument(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("not valid JSON")
	}

	result, err := gojsonschema.Validate(flowSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeFlow reads a flow document. The document is kept verbatim as the
// flow's payload. The id is read from "id", else "flow_id"; both may be
// absent when the caller knows the id from elsewhere.
func DecodeFlow(data []byte) (*types.Flow, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid flow document: not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("invalid flow document: not an object")
	}

	id := doc.Get(fieldID).String()
	if id == "" {
		id = doc.Get(fieldFlowIDAlias).String()
	}

	return &types.Flow{
		ID:                types.FlowID(id),
		Name:              doc.Get(fieldName).String(),
		ProjectID:         types.ProjectID(doc.Get(fieldProjectID).String()),
		LastTestedVersion: strings.TrimSpace(doc.Get(fieldLastTestedVersion).String()),
		Payload:           append(json.RawMessage(nil), data...),
	}, nil
}

// DecodeProject reads a project document. The flow list some endpoints
// embed is dropped from the metadata.
func DecodeProject(data []byte) (*types.Project, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid project document: not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("invalid project document: not an object")
	}

	metadata, err := withoutKey(data, fieldFlows)
	if err != nil {
		return nil, err
	}

	return &types.Project{
		ID:       types.ProjectID(doc.Get(fieldID).String()),
		Name:     doc.Get(fieldName).String(),
		Metadata: metadata,
	}, nil
}

// EncodeFlow renders f as a flow document: its payload with the identity
// fields overwritten from f. Every other byte of the payload is kept.
func EncodeFlow(f *types.Flow) ([]byte, error) {
	out, err := objectBytes(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", f.ID, err)
	}

	if out, err = sjson.SetBytes(out, fieldID, string(f.ID)); err != nil {
		return nil, fmt.Errorf("flow %s: %w", f.ID, err)
	}
	if out, err = sjson.SetBytes(out, fieldName, f.Name); err != nil {
		return nil, fmt.Errorf("flow %s: %w", f.ID, err)
	}
	if f.HasProject() {
		out, err = sjson.SetBytes(out, fieldProjectID, string(f.ProjectID))
	} else {
		out, err = sjson.SetRawBytes(out, fieldProjectID, []byte("null"))
	}
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", f.ID, err)
	}
	if f.LastTestedVersion != "" {
		if out, err = sjson.SetBytes(out, fieldLastTestedVersion, f.LastTestedVersion); err != nil {
			return nil, fmt.Errorf("flow %s: %w", f.ID, err)
		}
	}
	return out, nil
}

// EncodeProject renders p as a project document without an embedded flow
// list.
func EncodeProject(p *types.Project) ([]byte, error) {
	out, err := withoutKey(p.Metadata, fieldFlows)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	if out, err = sjson.SetBytes(out, fieldID, string(p.ID)); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	if out, err = sjson.SetBytes(out, fieldName, p.Name); err != nil {
		return nil, fmt.Errorf("project %s: %w", p.ID, err)
	}
	return out, nil
}

// objectBytes returns a private copy of raw, or an empty object when raw is
// empty or null.
func objectBytes(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || gjson.ParseBytes(raw).Type == gjson.Null {
		return []byte("{}"), nil
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return nil, fmt.Errorf("document is not an object")
	}
	return append([]byte(nil), raw...), nil
}

func withoutKey(data []byte, key string) (json.RawMessage, error) {
	out, err := objectBytes(data)
	if err != nil {
		return nil, err
	}
	if !gjson.GetBytes(out, key).Exists() {
		return out, nil
	}
	return sjson.DeleteBytes(out, key)
}
