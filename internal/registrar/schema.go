// Package registrar describes the credentials each supported registrar
// integration needs. The table is data only; no registrar is contacted here.
package registrar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Field describes one credential input
type Field struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Secret   bool   `json:"secret"`
	Required bool   `json:"required"`
}

// Schema is the ordered credential form of one registrar
type Schema struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

var ErrUnknownRegistrar = errors.New("unknown registrar")

var schemas = map[string]Schema{
	"godaddy": {ID: "godaddy", Name: "GoDaddy", Fields: []Field{
		{Key: "api_key", Label: "API Key", Required: true},
		{Key: "api_secret", Label: "API Secret", Secret: true, Required: true},
	}},
	"namecheap": {ID: "namecheap", Name: "Namecheap", Fields: []Field{
		{Key: "api_user", Label: "API User", Required: true},
		{Key: "api_key", Label: "API Key", Secret: true, Required: true},
		{Key: "username", Label: "Username", Required: true},
		{Key: "client_ip", Label: "Whitelisted IP", Required: true},
	}},
	"cloudflare": {ID: "cloudflare", Name: "Cloudflare", Fields: []Field{
		{Key: "api_token", Label: "API Token", Secret: true, Required: true},
		{Key: "account_id", Label: "Account ID"},
	}},
	"porkbun": {ID: "porkbun", Name: "Porkbun", Fields: []Field{
		{Key: "api_key", Label: "API Key", Required: true},
		{Key: "secret_api_key", Label: "Secret API Key", Secret: true, Required: true},
	}},
	"namecom": {ID: "namecom", Name: "Name.com", Fields: []Field{
		{Key: "username", Label: "Username", Required: true},
		{Key: "api_token", Label: "API Token", Secret: true, Required: true},
	}},
	"dynadot": {ID: "dynadot", Name: "Dynadot", Fields: []Field{
		{Key: "api_key", Label: "API Key", Secret: true, Required: true},
	}},
	"gandi": {ID: "gandi", Name: "Gandi", Fields: []Field{
		{Key: "personal_access_token", Label: "Personal Access Token", Secret: true, Required: true},
		{Key: "sharing_id", Label: "Organization ID"},
	}},
}

// Lookup returns the schema registered for id
func Lookup(id string) (Schema, bool) {
	s, ok := schemas[strings.ToLower(id)]
	return s, ok
}

// IDs lists every registrar id in alphabetical order
func IDs() []string {
	ids := make([]string, 0, len(schemas))
	for id := range schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every schema ordered by id
func All() []Schema {
	out := make([]Schema, 0, len(schemas))
	for _, id := range IDs() {
		out = append(out, schemas[id])
	}
	return out
}

// Validate checks credentials against the schema of id. Required fields
// must be non-empty strings and keys outside the schema are rejected.
func Validate(id string, creds map[string]any) error {
	s, ok := Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegistrar, id)
	}
	known := make(map[string]bool, len(s.Fields))
	var missing []string
	for _, f := range s.Fields {
		known[f.Key] = true
		if !f.Required {
			continue
		}
		v, _ := creds[f.Key].(string)
		if strings.TrimSpace(v) == "" {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing %s", s.Name, strings.Join(missing, ", "))
	}
	for k := range creds {
		if !known[k] {
			return fmt.Errorf("%s: unexpected field %q", s.Name, k)
		}
	}
	return nil
}

// Redact returns a copy of creds with secret values masked
func Redact(id string, creds map[string]any) map[string]any {
	s, _ := Lookup(id)
	secret := map[string]bool{}
	for _, f := range s.Fields {
		if f.Secret {
			secret[f.Key] = true
		}
	}
	out := make(map[string]any, len(creds))
	for k, v := range creds {
		if secret[k] {
			out[k] = "********"
			continue
		}
		out[k] = v
	}
	return out
}
