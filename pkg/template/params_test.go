package template

import (
	"errors"
	"testing"

	"rebooto/pkg/errs"
)

func TestValidateActionData(t *testing.T) {
	valid := []string{
		"",
		"chassis power cycle",
		"ipmitool -H {device::ip} -U {cred::username} -P {cred::password} power reset",
		"{device::uid} {device::model}",
		"{cred_store::bmc-rack-7::password}",
		"{metadata::rack}",
		"{not a token} {also::not::a::token:}",
	}
	for _, data := range valid {
		if err := ValidateActionData(data); err != nil {
			t.Errorf("ValidateActionData(%q) = %v, want nil", data, err)
		}
	}

	invalid := []string{
		"{device::hostname}",
		"{device::ip::extra}",
		"{cred::name}",
		"{cred_store::store::token}",
		"{metadata::rack::row}",
		"{unknown::field}",
	}
	for _, data := range invalid {
		err := ValidateActionData(data)
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("ValidateActionData(%q) = %v, want ValidationError", data, err)
		}
	}
}

func TestParseClassifiesTokens(t *testing.T) {
	params, err := Parse("ssh {cred::username}@{device::ip} echo {metadata::rack} {cred_store::pdu::password}")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(params) != 4 {
		t.Fatalf("Parse() returned %d params, want 4", len(params))
	}

	if params[0].Kind != KindCred || params[0].Field != "username" {
		t.Errorf("param 0 = %+v, want cred username", params[0])
	}
	if params[1].Kind != KindDevice || params[1].Field != "ip" {
		t.Errorf("param 1 = %+v, want device ip", params[1])
	}
	if params[2].Kind != KindMetadata || params[2].Field != "rack" {
		t.Errorf("param 2 = %+v, want metadata rack", params[2])
	}
	if params[3].Kind != KindCredStore || params[3].CredName != "pdu" || params[3].Field != "password" {
		t.Errorf("param 3 = %+v, want cred_store pdu password", params[3])
	}
	if params[3].Token != "{cred_store::pdu::password}" {
		t.Errorf("param 3 token = %q", params[3].Token)
	}
}
