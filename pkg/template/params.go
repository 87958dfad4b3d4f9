// Package template implements the action-parameter templating engine. Action
// data may embed tokens of the form {category::field} or
// {cred_store::name::field}; the allowed categories and fields form a closed
// set validated at authoring time and substituted at assignment time.
package template

import (
	"regexp"

	"rebooto/pkg/errs"
)

// ParamKind is the closed set of token categories.
type ParamKind int

const (
	KindDevice ParamKind = iota + 1
	KindCred
	KindCredStore
	KindMetadata
)

const (
	categoryDevice    = "device"
	categoryCred      = "cred"
	categoryCredStore = "cred_store"
	categoryMetadata  = "metadata"
)

// Param is one parsed template token.
type Param struct {
	Kind     ParamKind
	Field    string // device/cred/cred_store field, or metadata key
	CredName string // cred_store only: the credential to fetch
	Token    string // full source token including braces
}

// tokenPattern captures {category::field} and {category::field::subfield}.
// Brace text not matching this shape is not a token and is left alone.
var tokenPattern = regexp.MustCompile(`\{(\w+)::([^:{}]+)(?:::([^:{}]+))?\}`)

var deviceFields = map[string]bool{"uid": true, "ip": true, "model": true}
var credFields = map[string]bool{"username": true, "password": true}

// parseParam classifies one regex match into a Param or a ValidationError.
func parseParam(token, category, field, subfield string) (Param, error) {
	switch category {
	case categoryDevice:
		if subfield != "" || !deviceFields[field] {
			return Param{}, errs.Validation("invalid field '%s' for param category 'device'", field)
		}
		return Param{Kind: KindDevice, Field: field, Token: token}, nil

	case categoryCred:
		if subfield != "" || !credFields[field] {
			return Param{}, errs.Validation("invalid field '%s' for param category 'cred'", field)
		}
		return Param{Kind: KindCred, Field: field, Token: token}, nil

	case categoryCredStore:
		if !credFields[subfield] {
			return Param{}, errs.Validation("invalid cred_store field '%s', must be 'username' or 'password'", subfield)
		}
		return Param{Kind: KindCredStore, CredName: field, Field: subfield, Token: token}, nil

	case categoryMetadata:
		if subfield != "" {
			return Param{}, errs.Validation("invalid field '%s' for param category 'metadata'", subfield)
		}
		return Param{Kind: KindMetadata, Field: field, Token: token}, nil

	default:
		return Param{}, errs.Validation("unknown param category '%s'", category)
	}
}

// Parse extracts and classifies every template token in actionData.
func Parse(actionData string) ([]Param, error) {
	var params []Param
	for _, match := range tokenPattern.FindAllStringSubmatch(actionData, -1) {
		param, err := parseParam(match[0], match[1], match[2], match[3])
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// ValidateActionData checks all template tokens in actionData against the
// category/field allow-list. It is run when actions are created or updated, so
// assignment-time resolution never sees a malformed token.
func ValidateActionData(actionData string) error {
	_, err := Parse(actionData)
	return err
}
