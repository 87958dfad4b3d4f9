package template

import (
	"context"
	"errors"
	"strings"

	"rebooto/pkg/errs"
	"rebooto/pkg/models"
)

// Resolution failure reasons, recorded verbatim as the Execution action name
// when assignment aborts.
const (
	ReasonMissingCred     = "Missing cred from store"
	ReasonMissingMetadata = "Missing metadata key"
)

// CredLookup fetches a named credential with a decrypted password. Absence is
// reported as errs.NotFound.
type CredLookup func(ctx context.Context, name string) (*models.Creds, error)

// Params is the substitution context built from the work's target device and
// its resolved credential.
type Params struct {
	DeviceUID   string
	DeviceIP    string
	DeviceModel string
	Username    string
	Password    string
	Metadata    map[string]string
}

// Resolver substitutes template tokens for one device at assignment time.
type Resolver struct {
	params      Params
	lookupCreds CredLookup
}

func NewResolver(params Params, lookupCreds CredLookup) *Resolver {
	return &Resolver{params: params, lookupCreds: lookupCreds}
}

// Resolve substitutes every template token in actionData. cred_store tokens
// are resolved first: they name a credential orthogonal to the device's own,
// and must become literal text before generic field substitution runs.
// Missing cred-store credentials and missing metadata keys return a
// ResolutionError; brace text that is not a valid token is left verbatim.
func (resolver *Resolver) Resolve(ctx context.Context, actionData string) (string, error) {
	params, err := Parse(actionData)
	if err != nil {
		// Tokens are validated at action write time; a malformed token here is
		// left verbatim rather than failing the whole work.
		return actionData, nil
	}

	// Pass 1: cred_store tokens.
	resolved := actionData
	for _, param := range params {
		if param.Kind != KindCredStore {
			continue
		}

		creds, err := resolver.lookupCreds(ctx, param.CredName)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return "", &errs.ResolutionError{Reason: ReasonMissingCred, Token: param.Token}
			}
			return "", err
		}

		value := creds.Username
		if param.Field == "password" {
			value = creds.Password
		}
		resolved = strings.ReplaceAll(resolved, param.Token, value)
	}

	// Pass 2: device, cred and metadata tokens.
	for _, param := range params {
		var value string
		switch param.Kind {
		case KindDevice:
			switch param.Field {
			case "uid":
				value = resolver.params.DeviceUID
			case "ip":
				value = resolver.params.DeviceIP
			case "model":
				value = resolver.params.DeviceModel
			}
		case KindCred:
			if param.Field == "username" {
				value = resolver.params.Username
			} else {
				value = resolver.params.Password
			}
		case KindMetadata:
			v, ok := resolver.params.Metadata[param.Field]
			if !ok {
				return "", &errs.ResolutionError{Reason: ReasonMissingMetadata, Token: param.Token}
			}
			value = v
		default:
			continue
		}
		resolved = strings.ReplaceAll(resolved, param.Token, value)
	}

	return resolved, nil
}
